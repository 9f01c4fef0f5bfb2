package calc

import (
	"fmt"
	"strings"
)

// Mode is the calculator's display mode.
type Mode int

const (
	ModeStandard Mode = iota
	ModeScientific
	ModeProgrammer
)

var modeNames = map[Mode]string{
	ModeStandard:   "standard",
	ModeScientific: "scientific",
	ModeProgrammer: "programmer",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Modes lists all modes in keypad order.
func Modes() []Mode {
	return []Mode{ModeStandard, ModeScientific, ModeProgrammer}
}

// ParseMode accepts the mode names case-insensitively, plus their first three letters.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range modeNames {
		if name == n || (len(name) >= 3 && strings.HasPrefix(n, name)) {
			return m, nil
		}
	}
	return ModeStandard, fmt.Errorf("unknown mode %q", s)
}

// Base is the radix used for programmer-mode input and output.
type Base int

// The zero value is decimal so that a fresh Context reads decimal literals.
const (
	BaseDEC Base = iota
	BaseHEX
	BaseOCT
	BaseBIN
)

var baseNames = map[Base]string{
	BaseDEC: "DEC",
	BaseHEX: "HEX",
	BaseOCT: "OCT",
	BaseBIN: "BIN",
}

func (b Base) String() string {
	if name, ok := baseNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Base(%d)", int(b))
}

// Radix returns 10, 16, 8 or 2.
func (b Base) Radix() int {
	switch b {
	case BaseHEX:
		return 16
	case BaseOCT:
		return 8
	case BaseBIN:
		return 2
	default:
		return 10
	}
}

// Bases lists all bases in keypad order.
func Bases() []Base {
	return []Base{BaseHEX, BaseDEC, BaseOCT, BaseBIN}
}

// ParseBase accepts DEC/HEX/OCT/BIN in any case, or the radix as a number.
func ParseBase(s string) (Base, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEC", "10":
		return BaseDEC, nil
	case "HEX", "16":
		return BaseHEX, nil
	case "OCT", "8":
		return BaseOCT, nil
	case "BIN", "2":
		return BaseBIN, nil
	}
	return BaseDEC, fmt.Errorf("unknown base %q", s)
}

// IsDigit reports whether r is a valid literal digit in base b.
// Hex letters must be uppercase.
func (b Base) IsDigit(r rune) bool {
	switch b {
	case BaseBIN:
		return r == '0' || r == '1'
	case BaseOCT:
		return r >= '0' && r <= '7'
	case BaseHEX:
		return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'F')
	default:
		return r >= '0' && r <= '9'
	}
}

// Context carries the mode and base an expression is read and evaluated in.
type Context struct {
	Mode Mode
	Base Base
}

// InputBase is the base literals are read in: the selected base in
// programmer mode, decimal otherwise.
func (c Context) InputBase() Base {
	if c.Mode != ModeProgrammer {
		return BaseDEC
	}
	return c.Base
}

// Integer reports whether results are integers.
func (c Context) Integer() bool {
	return c.Mode == ModeProgrammer
}
