package session

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/history"
)

func newTestSession(mode calc.Mode) *Session {
	return NewWithOptions(history.New(0, nil), Options{Mode: mode})
}

func press(t *testing.T, s *Session, labels ...string) {
	t.Helper()
	for _, l := range labels {
		if err := s.Press(l); err != nil {
			t.Fatalf("Press(%q): %v", l, err)
		}
	}
}

func TestZeroState(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	want := State{Display: "0", Raw: "0", Mode: calc.ModeStandard, Phase: PhaseEntering}
	if diff := cmp.Diff(want, s.Snapshot()); diff != "" {
		t.Errorf("initial state mismatch (-want +got):\n%s", diff)
	}
}

func TestPressExpansion(t *testing.T) {
	tests := []struct {
		name    string
		mode    calc.Mode
		base    calc.Base
		labels  []string
		display string
		raw     string
	}{
		{name: "digits replace leading zero", labels: []string{"7"}, display: "7", raw: "7"},
		{name: "zero stays single", labels: []string{"0", "0"}, display: "0", raw: "0"},
		{name: "decimal point keeps zero", labels: []string{".", "5"}, display: "0.5", raw: "0.5"},
		{name: "operator after zero", labels: []string{"+", "1"}, display: "0+1", raw: "0+1"},
		{name: "glyph operators", labels: []string{"6", "×", "2", "÷", "3"}, display: "6×2÷3", raw: "6*2/3"},
		{name: "square", labels: []string{"3", "x²"}, display: "3²", raw: "3^2"},
		{name: "cube", mode: calc.ModeScientific, labels: []string{"2", "x³"}, display: "2³", raw: "2^3"},
		{name: "root", labels: []string{"√", "9", ")"}, display: "√(9)", raw: "sqrt(9)"},
		{name: "function", mode: calc.ModeScientific, labels: []string{"sin", "0", ")"}, display: "sin(0)", raw: "sin(0)"},
		{name: "pi replaces zero", mode: calc.ModeScientific, labels: []string{"π"}, display: "π", raw: "3.141592653589793"},
		{name: "e constant", mode: calc.ModeScientific, labels: []string{"2", "×", "e"}, display: "2×e", raw: "2*2.718281828459045"},
		{name: "negate toggles on", labels: []string{"5", "±"}, display: "-5", raw: "-5"},
		{name: "negate toggles off", labels: []string{"5", "±", "NEG"}, display: "5", raw: "5"},
		{name: "reciprocal wraps", labels: []string{"4", "+", "1", "1/x"}, display: "1/(4+1)", raw: "1/(4+1)"},
		{name: "parentheses", labels: []string{"(", "1", "+", "2", ")", "×", "3"}, display: "(1+2)×3", raw: "(1+2)*3"},
		{name: "spaced keywords", mode: calc.ModeProgrammer, labels: []string{"5", "AND", "3"}, display: "5 AND 3", raw: "5 AND 3"},
		{name: "NOT prefix", mode: calc.ModeProgrammer, labels: []string{"NOT", "0"}, display: "NOT 0", raw: "NOT 0"},
		{name: "shift", mode: calc.ModeProgrammer, labels: []string{"1", "<<", "3"}, display: "1<<3", raw: "1<<3"},
		{name: "rounding function", mode: calc.ModeScientific, labels: []string{"floor", "2", ".", "7", ")"}, display: "floor(2.7)", raw: "floor(2.7)"},
		{name: "hyperbolic function", mode: calc.ModeScientific, labels: []string{"tanh", "0", ")"}, display: "tanh(0)", raw: "tanh(0)"},
		{name: "hex digits", mode: calc.ModeProgrammer, base: calc.BaseHEX, labels: []string{"F", "F", "AND", "A"}, display: "FF AND A", raw: "FF AND A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewWithOptions(nil, Options{Mode: tt.mode, Base: tt.base})
			press(t, s, tt.labels...)
			if s.Display() != tt.display || s.Raw() != tt.raw {
				t.Errorf("after %v: display=%q raw=%q, want display=%q raw=%q",
					tt.labels, s.Display(), s.Raw(), tt.display, tt.raw)
			}
		})
	}
}

func TestInvalidLabels(t *testing.T) {
	tests := []struct {
		name  string
		mode  calc.Mode
		base  calc.Base
		label string
	}{
		{name: "unknown label", label: "foo"},
		{name: "hex digit outside programmer", label: "A"},
		{name: "bitwise outside programmer", label: "AND"},
		{name: "function in programmer", mode: calc.ModeProgrammer, label: "sin"},
		{name: "rounding function in programmer", mode: calc.ModeProgrammer, label: "round"},
		{name: "decimal point in programmer", mode: calc.ModeProgrammer, label: "."},
		{name: "hex digit in decimal base", mode: calc.ModeProgrammer, label: "B"},
		{name: "digit 2 in binary", mode: calc.ModeProgrammer, base: calc.BaseBIN, label: "2"},
		{name: "digit 8 in octal", mode: calc.ModeProgrammer, base: calc.BaseOCT, label: "8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewWithOptions(nil, Options{Mode: tt.mode, Base: tt.base})
			press(t, s, "1")
			before := s.Snapshot()

			err := s.Press(tt.label)
			if !errors.Is(err, ErrInvalidLabel) {
				t.Fatalf("Press(%q) error = %v, want ErrInvalidLabel", tt.label, err)
			}
			if diff := cmp.Diff(before, s.Snapshot()); diff != "" {
				t.Errorf("rejected label changed state (-before +after):\n%s", diff)
			}
		})
	}
}

func TestScientificRoundingFunctions(t *testing.T) {
	tests := []struct {
		labels []string
		result string
	}{
		{labels: []string{"round", "2", ".", "5", ")"}, result: "3"},
		{labels: []string{"ceil", "0", ".", "1", ")"}, result: "1"},
		{labels: []string{"trunc", "-", "1", ".", "9", ")"}, result: "-1"},
		{labels: []string{"log10", "1", ")"}, result: "0"},
	}

	for _, tt := range tests {
		s := newTestSession(calc.ModeScientific)
		press(t, s, tt.labels...)
		outcome := s.Equals()
		if !outcome.OK() {
			t.Fatalf("%v: Equals failed: %v", tt.labels, outcome.Err)
		}
		if s.Display() != tt.result {
			t.Errorf("%v: display = %q, want %q", tt.labels, s.Display(), tt.result)
		}
	}
}

func TestEqualsRoundTrip(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "5", "+", "3")

	outcome := s.Equals()
	if !outcome.OK() {
		t.Fatalf("Equals failed: %v", outcome.Err)
	}
	if outcome.Entry.Result != "8" {
		t.Errorf("result = %q, want 8", outcome.Entry.Result)
	}
	if s.Display() != "8" || s.Raw() != "8" || s.Phase() != PhaseResult {
		t.Errorf("state after equals = %+v", s.Snapshot())
	}

	list := s.ListHistory()
	if len(list) != 1 {
		t.Fatalf("history has %d entries, want 1", len(list))
	}
	if list[0].Expression != "5+3" || list[0].Result != "8" {
		t.Errorf("history entry = %+v, want {5+3, 8}", list[0])
	}
}

func TestHistoryRecordsDisplayText(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "6", "×", "7")
	s.Equals()
	if got := s.ListHistory()[0].Expression; got != "6×7" {
		t.Errorf("history expression = %q, want 6×7", got)
	}
}

func TestDivideByZero(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "5", "÷", "0")

	outcome := s.Equals()
	if outcome.Kind != calc.KindDivideByZero {
		t.Fatalf("outcome kind = %q, want %q", outcome.Kind, calc.KindDivideByZero)
	}
	if s.Display() != DefaultErrorIndicator || s.Raw() != "" || s.Phase() != PhaseError {
		t.Errorf("state after error = %+v", s.Snapshot())
	}
	if len(s.ListHistory()) != 0 {
		t.Error("failed evaluation was recorded in history")
	}
}

func TestCustomErrorIndicator(t *testing.T) {
	s := NewWithOptions(nil, Options{ErrorIndicator: "E"})
	press(t, s, "(")
	if outcome := s.Equals(); outcome.Kind != calc.KindParse {
		t.Fatalf("outcome kind = %q, want parse", outcome.Kind)
	}
	if s.Display() != "E" {
		t.Errorf("display = %q, want E", s.Display())
	}
}

func TestChainedComputation(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "5", "+", "3")
	s.Equals()
	press(t, s, "+", "2")
	if s.Raw() != "8+2" {
		t.Fatalf("raw = %q, want 8+2", s.Raw())
	}
	outcome := s.Equals()
	if !outcome.OK() || outcome.Entry.Result != "10" {
		t.Fatalf("outcome = %+v, want 10", outcome)
	}
	if diff := cmp.Diff([]string{"8+2", "5+3"}, historyExpressions(s)); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestDigitAfterResultStartsFresh(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "2", "+", "2")
	s.Equals()
	press(t, s, "7")
	if s.Display() != "7" || s.Phase() != PhaseEntering {
		t.Errorf("state = %+v, want fresh 7", s.Snapshot())
	}
}

func TestNegateResult(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "2", "-", "5")
	s.Equals()
	if s.Display() != "-3" {
		t.Fatalf("display = %q, want -3", s.Display())
	}
	press(t, s, "±")
	if s.Display() != "3" || s.Raw() != "3" {
		t.Errorf("after ±: %+v", s.Snapshot())
	}
}

func TestInputAfterError(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "1", "÷", "0")
	s.Equals()

	press(t, s, "4", "+", "1")
	if s.Display() != "4+1" || s.Raw() != "4+1" {
		t.Fatalf("after error input: %+v", s.Snapshot())
	}
	if outcome := s.Equals(); outcome.Entry == nil || outcome.Entry.Result != "5" {
		t.Errorf("outcome = %+v, want 5", outcome)
	}
}

func TestOperatorAfterErrorAccumulatesOnEmpty(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "1", "÷", "0")
	s.Equals()
	press(t, s, "+")
	if s.Display() != "+" {
		t.Errorf("display = %q, want +", s.Display())
	}
}

func TestEqualsInErrorPhaseIsParseError(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "1", "÷", "0")
	s.Equals()
	if outcome := s.Equals(); outcome.Kind != calc.KindParse {
		t.Errorf("outcome kind = %q, want parse", outcome.Kind)
	}
}

func TestSqrtOfNegativeIsDomainError(t *testing.T) {
	s := newTestSession(calc.ModeScientific)
	press(t, s, "sqrt", "-", "1", ")")
	if outcome := s.Equals(); outcome.Kind != calc.KindDomain {
		t.Errorf("outcome kind = %q, want domain", outcome.Kind)
	}
}

func TestProgrammerBitwise(t *testing.T) {
	tests := []struct {
		labels   []string
		expected string
	}{
		{labels: []string{"5", "AND", "3"}, expected: "1"},
		{labels: []string{"5", "XOR", "3"}, expected: "6"},
		{labels: []string{"1", "<<", "3"}, expected: "8"},
		{labels: []string{"7", "MOD", "4"}, expected: "3"},
		{labels: []string{"NOT", "0"}, expected: "-1"},
	}
	for _, tt := range tests {
		s := newTestSession(calc.ModeProgrammer)
		press(t, s, tt.labels...)
		outcome := s.Equals()
		if !outcome.OK() || outcome.Entry.Result != tt.expected {
			t.Errorf("%v = %+v, want %s", tt.labels, outcome, tt.expected)
		}
	}
}

func TestProgrammerHexResult(t *testing.T) {
	s := NewWithOptions(nil, Options{Mode: calc.ModeProgrammer, Base: calc.BaseHEX})
	press(t, s, "F", "F", "+", "1")
	outcome := s.Equals()
	if !outcome.OK() || outcome.Entry.Result != "100" {
		t.Fatalf("FF+1 = %+v, want 100", outcome)
	}
	if outcome.Entry.Mode != "programmer" {
		t.Errorf("entry mode = %q", outcome.Entry.Mode)
	}
}

func TestSelectBaseDoesNotReinterpret(t *testing.T) {
	s := NewWithOptions(nil, Options{Mode: calc.ModeProgrammer, Base: calc.BaseDEC})
	press(t, s, "1", "0")
	s.SelectBase(calc.BaseBIN)
	if s.Raw() != "10" {
		t.Fatalf("raw = %q after base switch", s.Raw())
	}
	outcome := s.Equals()
	if !outcome.OK() || outcome.Entry.Result != "10" {
		t.Errorf("10 in BIN = %+v, want 10 (two)", outcome)
	}
}

func TestSelectModeIsIdempotent(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "1", "+", "2")

	s.SelectMode(calc.ModeScientific)
	once := s.Snapshot()
	s.SelectMode(calc.ModeScientific)
	if diff := cmp.Diff(once, s.Snapshot()); diff != "" {
		t.Errorf("second SelectMode changed state (-once +twice):\n%s", diff)
	}
	if once.Raw != "1+2" {
		t.Errorf("mode switch dropped the expression: %+v", once)
	}
}

func TestDeleteBoundary(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "7")
	s.Delete()

	cleared := newTestSession(calc.ModeStandard)
	press(t, cleared, "7")
	cleared.Clear()

	if diff := cmp.Diff(cleared.Snapshot(), s.Snapshot()); diff != "" {
		t.Errorf("Delete of single character differs from Clear (-clear +delete):\n%s", diff)
	}
}

func TestDeleteRemovesWholeSegments(t *testing.T) {
	s := newTestSession(calc.ModeScientific)
	press(t, s, "2", "+", "sin", "3")

	s.Delete()
	if s.Display() != "2+sin(" || s.Raw() != "2+sin(" {
		t.Fatalf("after first delete: %+v", s.Snapshot())
	}
	s.Delete()
	if s.Display() != "2+" || s.Raw() != "2+" {
		t.Fatalf("after second delete: %+v", s.Snapshot())
	}

	p := newTestSession(calc.ModeProgrammer)
	press(t, p, "5", "AND")
	p.Delete()
	if p.Display() != "5" || p.Raw() != "5" {
		t.Errorf("delete of keyword: %+v", p.Snapshot())
	}
}

func TestDeleteAfterResultAndError(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "6", "+", "6")
	s.Equals()
	s.Delete()
	if s.Display() != "1" || s.Phase() != PhaseEntering {
		t.Errorf("delete after result: %+v", s.Snapshot())
	}

	press(t, s, "÷", "0")
	s.Equals()
	s.Delete()
	if s.Display() != "0" || s.Raw() != "0" {
		t.Errorf("delete after error: %+v", s.Snapshot())
	}
}

func TestHistoryOrderingAndClear(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	for _, d := range []string{"1", "2", "3"} {
		s.Clear()
		press(t, s, d, "+", d)
		s.Equals()
	}
	if diff := cmp.Diff([]string{"3+3", "2+2", "1+1"}, historyExpressions(s)); diff != "" {
		t.Errorf("history order mismatch (-want +got):\n%s", diff)
	}

	for i := 0; i < 2; i++ {
		if err := s.ClearHistory(); err != nil {
			t.Fatal(err)
		}
		if len(s.ListHistory()) != 0 {
			t.Fatalf("history not empty after ClearHistory #%d", i+1)
		}
	}
}

func TestSelectHistoryEntry(t *testing.T) {
	s := newTestSession(calc.ModeStandard)
	press(t, s, "5", "+", "3")
	first := s.Equals().Entry
	press(t, s, "×", "2")
	s.Equals()

	if err := s.SelectHistoryEntry(first.ID); err != nil {
		t.Fatal(err)
	}
	if s.Display() != "8" || s.Raw() != "8" || s.Phase() != PhaseResult {
		t.Errorf("after select: %+v", s.Snapshot())
	}

	if err := s.SelectHistoryEntry("nope"); !errors.Is(err, history.ErrEntryNotFound) {
		t.Errorf("SelectHistoryEntry(nope) error = %v, want ErrEntryNotFound", err)
	}
}

func TestEvaluateLine(t *testing.T) {
	s := newTestSession(calc.ModeScientific)
	outcome := s.EvaluateLine("2 × π")
	if !outcome.OK() || outcome.Entry.Result != "6.283185307179586" {
		t.Fatalf("outcome = %+v", outcome)
	}
	if outcome.Entry.Expression != "2 × π" {
		t.Errorf("entry expression = %q", outcome.Entry.Expression)
	}

	if outcome := s.EvaluateLine("2 $ 3"); outcome.Kind != calc.KindLex {
		t.Errorf("outcome kind = %q, want lex", outcome.Kind)
	}
}

func TestLabels(t *testing.T) {
	contains := func(list []string, want string) bool {
		for _, l := range list {
			if l == want {
				return true
			}
		}
		return false
	}

	std := Labels(calc.ModeStandard, calc.BaseDEC)
	if !contains(std, "7") || contains(std, "AND") || contains(std, "A") {
		t.Errorf("standard labels = %v", std)
	}
	bin := Labels(calc.ModeProgrammer, calc.BaseBIN)
	if !contains(bin, "1") || contains(bin, "2") || !contains(bin, "XOR") || contains(bin, "sin") {
		t.Errorf("binary labels = %v", bin)
	}
}

func historyExpressions(s *Session) []string {
	var out []string
	for _, e := range s.ListHistory() {
		out = append(out, e.Expression)
	}
	return out
}
