package session

import (
	"math"

	"github.com/antibyte/retrocalc/pkg/calc"
)

// labelKind decides how a button press combines with the pending input.
type labelKind int

const (
	kindDigit      labelKind = iota // 0-9
	kindHexDigit                    // A-F
	kindPoint                       // .
	kindOperator                    // infix operators
	kindPostfix                     // x², x³
	kindPrefix                      // NOT
	kindFunction                    // sin( and friends, √(
	kindConstant                    // π, e
	kindOpenParen                   // (
	kindCloseParen                  // )
	kindNegate                      // ±, NEG
	kindInvert                      // 1/x, inv
)

// startsOperand reports whether a press of this kind begins a new operand.
// After a result such presses start a fresh expression instead of chaining.
func (k labelKind) startsOperand() bool {
	switch k {
	case kindDigit, kindHexDigit, kindPoint, kindPrefix, kindFunction, kindConstant, kindOpenParen:
		return true
	}
	return false
}

// replacesZero reports whether a press of this kind replaces a lone "0"
// instead of being appended to it.
func (k labelKind) replacesZero() bool {
	return k.startsOperand() && k != kindPoint
}

// availability restricts a label to some modes.
type availability int

const (
	anyMode availability = iota
	floatModes
	programmerOnly
)

type label struct {
	kind    labelKind
	display string
	raw     string
	avail   availability
}

func (l label) segment() segment {
	return segment{display: l.display, raw: l.raw, kind: l.kind}
}

// labels is the closed button vocabulary.
var labels = map[string]label{
	".": {kind: kindPoint, display: ".", raw: ".", avail: floatModes},

	"+":   {kind: kindOperator, display: "+", raw: "+"},
	"-":   {kind: kindOperator, display: "-", raw: "-"},
	"×":   {kind: kindOperator, display: "×", raw: "*"},
	"*":   {kind: kindOperator, display: "×", raw: "*"},
	"÷":   {kind: kindOperator, display: "÷", raw: "/"},
	"/":   {kind: kindOperator, display: "÷", raw: "/"},
	"%":   {kind: kindOperator, display: "%", raw: "%"},
	"^":   {kind: kindOperator, display: "^", raw: "^", avail: floatModes},
	"xʸ":  {kind: kindOperator, display: "^", raw: "^", avail: floatModes},
	"MOD": {kind: kindOperator, display: " MOD ", raw: " MOD ", avail: programmerOnly},
	"AND": {kind: kindOperator, display: " AND ", raw: " AND ", avail: programmerOnly},
	"OR":  {kind: kindOperator, display: " OR ", raw: " OR ", avail: programmerOnly},
	"XOR": {kind: kindOperator, display: " XOR ", raw: " XOR ", avail: programmerOnly},
	"<<":  {kind: kindOperator, display: "<<", raw: "<<", avail: programmerOnly},
	">>":  {kind: kindOperator, display: ">>", raw: ">>", avail: programmerOnly},

	"NOT": {kind: kindPrefix, display: "NOT ", raw: "NOT ", avail: programmerOnly},
	"±":   {kind: kindNegate},
	"NEG": {kind: kindNegate},

	"x²": {kind: kindPostfix, display: "²", raw: "^2", avail: floatModes},
	"x³": {kind: kindPostfix, display: "³", raw: "^3", avail: floatModes},
	"√":  {kind: kindFunction, display: "√(", raw: "sqrt(", avail: floatModes},

	"sin":   {kind: kindFunction, display: "sin(", raw: "sin(", avail: floatModes},
	"cos":   {kind: kindFunction, display: "cos(", raw: "cos(", avail: floatModes},
	"tan":   {kind: kindFunction, display: "tan(", raw: "tan(", avail: floatModes},
	"asin":  {kind: kindFunction, display: "asin(", raw: "asin(", avail: floatModes},
	"acos":  {kind: kindFunction, display: "acos(", raw: "acos(", avail: floatModes},
	"atan":  {kind: kindFunction, display: "atan(", raw: "atan(", avail: floatModes},
	"sinh":  {kind: kindFunction, display: "sinh(", raw: "sinh(", avail: floatModes},
	"cosh":  {kind: kindFunction, display: "cosh(", raw: "cosh(", avail: floatModes},
	"tanh":  {kind: kindFunction, display: "tanh(", raw: "tanh(", avail: floatModes},
	"ln":    {kind: kindFunction, display: "ln(", raw: "ln(", avail: floatModes},
	"log":   {kind: kindFunction, display: "log(", raw: "log(", avail: floatModes},
	"log10": {kind: kindFunction, display: "log10(", raw: "log10(", avail: floatModes},
	"sqrt":  {kind: kindFunction, display: "sqrt(", raw: "sqrt(", avail: floatModes},
	"floor": {kind: kindFunction, display: "floor(", raw: "floor(", avail: floatModes},
	"ceil":  {kind: kindFunction, display: "ceil(", raw: "ceil(", avail: floatModes},
	"round": {kind: kindFunction, display: "round(", raw: "round(", avail: floatModes},
	"trunc": {kind: kindFunction, display: "trunc(", raw: "trunc(", avail: floatModes},

	"π":  {kind: kindConstant, display: "π", raw: calc.FormatFloat(math.Pi), avail: floatModes},
	"pi": {kind: kindConstant, display: "π", raw: calc.FormatFloat(math.Pi), avail: floatModes},
	"e":  {kind: kindConstant, display: "e", raw: calc.FormatFloat(math.E), avail: floatModes},

	"(": {kind: kindOpenParen, display: "(", raw: "("},
	")": {kind: kindCloseParen, display: ")", raw: ")"},

	"1/x": {kind: kindInvert, avail: floatModes},
	"inv": {kind: kindInvert, avail: floatModes},
}

func init() {
	for d := '0'; d <= '9'; d++ {
		labels[string(d)] = label{kind: kindDigit, display: string(d), raw: string(d)}
	}
	for d := 'A'; d <= 'F'; d++ {
		labels[string(d)] = label{kind: kindHexDigit, display: string(d), raw: string(d), avail: programmerOnly}
	}
}

// lookupLabel finds name and checks it against the mode and base.
func lookupLabel(name string, mode calc.Mode, base calc.Base) (label, bool) {
	l, ok := labels[name]
	if !ok {
		return label{}, false
	}

	programmer := mode == calc.ModeProgrammer
	switch l.avail {
	case floatModes:
		if programmer {
			return label{}, false
		}
	case programmerOnly:
		if !programmer {
			return label{}, false
		}
	}

	if programmer && (l.kind == kindDigit || l.kind == kindHexDigit) {
		if !base.IsDigit([]rune(l.raw)[0]) {
			return label{}, false
		}
	}
	return l, true
}

// Labels lists the labels accepted in mode and base, in no particular order.
func Labels(mode calc.Mode, base calc.Base) []string {
	var names []string
	for name := range labels {
		if _, ok := lookupLabel(name, mode, base); ok {
			names = append(names, name)
		}
	}
	return names
}
