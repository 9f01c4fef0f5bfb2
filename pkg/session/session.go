// Package session turns discrete keypad events into calculator state: the
// pending expression (display and raw text), the mode and base, and the
// history of completed calculations.
package session

import (
	"errors"
	"fmt"

	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/configuration"
	"github.com/antibyte/retrocalc/pkg/history"
	"github.com/antibyte/retrocalc/pkg/logger"
)

// ErrInvalidLabel is returned for a label outside the keypad vocabulary or
// one that is disabled in the current mode or base.
var ErrInvalidLabel = errors.New("invalid label")

// DefaultErrorIndicator is shown after a failed evaluation.
const DefaultErrorIndicator = "Error"

// Phase is the position in the entering/result/error cycle.
type Phase int

const (
	PhaseEntering Phase = iota
	PhaseResult
	PhaseError
)

var phaseNames = map[Phase]string{
	PhaseEntering: "entering",
	PhaseResult:   "result",
	PhaseError:    "error",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// State is an immutable snapshot of a session for presenters.
type State struct {
	Display string
	Raw     string
	Mode    calc.Mode
	Base    calc.Base
	Phase   Phase
}

// Outcome is the result of Equals: an entry on success, an error kind
// otherwise.
type Outcome struct {
	Entry *history.Entry
	Kind  calc.ErrorKind
	Err   error
}

// OK reports whether the evaluation succeeded.
func (o Outcome) OK() bool {
	return o.Kind == calc.KindNone
}

// Options configures a new Session.
type Options struct {
	Mode           calc.Mode
	Base           calc.Base
	ErrorIndicator string
}

// OptionsFromConfig reads the [Calculator] section.
func OptionsFromConfig() Options {
	opts := Options{ErrorIndicator: configuration.GetString("Calculator", "error_indicator", DefaultErrorIndicator)}

	mode, err := calc.ParseMode(configuration.GetString("Calculator", "default_mode", "standard"))
	if err != nil {
		logger.ConfigWarn("Calculator.default_mode: %v, using standard", err)
	}
	opts.Mode = mode

	base, err := calc.ParseBase(configuration.GetString("Calculator", "default_base", "DEC"))
	if err != nil {
		logger.ConfigWarn("Calculator.default_base: %v, using DEC", err)
	}
	opts.Base = base

	return opts
}

// Session is the state of one calculator. It is not safe for concurrent use;
// callers serialize events.
type Session struct {
	expr           Expression
	phase          Phase
	mode           calc.Mode
	base           calc.Base
	history        *history.History
	errorIndicator string
}

// New creates a session in the zero state using the configured defaults.
// A nil history gets a fresh in-memory one.
func New(h *history.History) *Session {
	return NewWithOptions(h, OptionsFromConfig())
}

// NewWithOptions creates a session in the zero state.
func NewWithOptions(h *history.History, opts Options) *Session {
	if h == nil {
		h = history.New(0, nil)
	}
	if opts.ErrorIndicator == "" {
		opts.ErrorIndicator = DefaultErrorIndicator
	}
	return &Session{
		expr:           ZeroExpression(),
		phase:          PhaseEntering,
		mode:           opts.Mode,
		base:           opts.Base,
		history:        h,
		errorIndicator: opts.ErrorIndicator,
	}
}

// Display returns the text the display shows.
func (s *Session) Display() string {
	if s.phase == PhaseError {
		return s.errorIndicator
	}
	return s.expr.Display()
}

// Raw returns the canonical expression the parser will see on Equals.
func (s *Session) Raw() string {
	if s.phase == PhaseError {
		return ""
	}
	return s.expr.Raw()
}

func (s *Session) Phase() Phase    { return s.phase }
func (s *Session) Mode() calc.Mode { return s.mode }
func (s *Session) Base() calc.Base { return s.base }

func (s *Session) context() calc.Context {
	return calc.Context{Mode: s.mode, Base: s.base}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	return State{
		Display: s.Display(),
		Raw:     s.Raw(),
		Mode:    s.mode,
		Base:    s.base,
		Phase:   s.phase,
	}
}

// Press applies one button press. Unknown labels and labels disabled in the
// current mode or base leave the state unchanged.
func (s *Session) Press(name string) error {
	l, ok := lookupLabel(name, s.mode, s.base)
	if !ok {
		logger.SessionDebug("Rejected label %q in %s/%s", name, s.mode, s.base)
		return fmt.Errorf("%w: %q in %s mode", ErrInvalidLabel, name, s.mode)
	}

	expr := s.expr
	switch s.phase {
	case PhaseError:
		expr = Expression{}
	case PhaseResult:
		if l.kind.startsOperand() {
			expr = Expression{}
		}
	}

	if expr.IsZero() && l.kind.replacesZero() {
		expr = Expression{}
	}

	switch l.kind {
	case kindNegate:
		expr = expr.ToggleNegate()
	case kindInvert:
		expr = expr.Reciprocal()
	default:
		expr = expr.push(l.segment())
	}

	s.expr = expr
	s.phase = PhaseEntering
	return nil
}

// Clear returns to the zero state. History, mode and base are kept.
func (s *Session) Clear() {
	s.expr = ZeroExpression()
	s.phase = PhaseEntering
}

// Delete removes the last input. A multi-character input such as "sin(" goes
// as a whole; removing the last one is the same as Clear.
func (s *Session) Delete() {
	if s.phase == PhaseError {
		s.Clear()
		return
	}
	s.expr = s.expr.DropLast()
	s.phase = PhaseEntering
}

// Equals evaluates the raw expression. On success the result replaces the
// expression and is recorded in the history; on failure the display shows the
// error indicator and the expression is discarded.
func (s *Session) Equals() Outcome {
	raw := s.Raw()
	display := s.Display()
	if s.phase == PhaseError {
		display = ""
	}

	value, err := calc.Evaluate(raw, s.context())
	if err != nil {
		kind := calc.ErrorKindOf(err)
		logger.SessionInfo("Evaluation of %q failed (%s): %v", raw, kind, err)
		s.expr = Expression{}
		s.phase = PhaseError
		return Outcome{Kind: kind, Err: err}
	}

	result := value.Format(s.base)
	entry := history.NewEntry(display, result, s.mode.String())
	if err := s.history.Add(entry); err != nil {
		// The entry is in memory; only archiving failed.
		logger.SessionWarn("History archive failed: %v", err)
	}
	logger.SessionDebug("%q = %s", raw, result)

	s.expr = ExpressionFromText(result)
	s.phase = PhaseResult
	return Outcome{Entry: &entry}
}

// EvaluateLine replaces the pending input with a typed expression and
// evaluates it. The line is both display and raw text.
func (s *Session) EvaluateLine(line string) Outcome {
	s.expr = Expression{segments: []segment{{display: line, raw: line, kind: kindDigit}}}
	s.phase = PhaseEntering
	return s.Equals()
}

// SelectMode switches the mode. The pending expression is kept; selecting the
// current mode changes nothing.
func (s *Session) SelectMode(mode calc.Mode) {
	if mode == s.mode {
		return
	}
	logger.SessionDebug("Mode %s -> %s", s.mode, mode)
	s.mode = mode
}

// SelectBase switches the programmer-mode base. Digits already entered are not
// converted.
func (s *Session) SelectBase(base calc.Base) {
	s.base = base
}

// History returns the session's history.
func (s *Session) History() *history.History {
	return s.history
}

// ListHistory returns the history, most recent first.
func (s *Session) ListHistory() []history.Entry {
	return s.history.List()
}

// ClearHistory empties the history.
func (s *Session) ClearHistory() error {
	return s.history.Clear()
}

// SelectHistoryEntry restores the result of the entry with id, as if it had
// just been computed.
func (s *Session) SelectHistoryEntry(id string) error {
	entry, err := s.history.Get(id)
	if err != nil {
		return err
	}
	s.expr = ExpressionFromText(entry.Result)
	s.phase = PhaseResult
	return nil
}
