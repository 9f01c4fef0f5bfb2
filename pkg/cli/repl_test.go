package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/history"
	"github.com/antibyte/retrocalc/pkg/session"
)

type testREPL struct {
	*REPL
	out, errOut *bytes.Buffer
}

func newTestREPL() testREPL {
	var out, errOut bytes.Buffer
	sess := session.New(history.New(0, nil))
	return testREPL{REPL: NewREPL(sess, &out, &errOut, false), out: &out, errOut: &errOut}
}

func (r testREPL) run(t *testing.T, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if !r.Execute(l) {
			t.Fatalf("Execute(%q) stopped the REPL", l)
		}
	}
}

func TestExecuteExpression(t *testing.T) {
	r := newTestREPL()
	r.run(t, "2 + 3 * 4")

	want := "  [!0] 2 + 3 * 4\n  = 14\n\n"
	if diff := cmp.Diff(want, r.out.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if r.errOut.Len() != 0 {
		t.Errorf("unexpected error output %q", r.errOut)
	}
}

func TestExecuteHistoryReferences(t *testing.T) {
	r := newTestREPL()
	r.run(t, "10 - 4", "!! * 2")
	if !strings.HasSuffix(r.out.String(), "  [!0] 6 * 2\n  = 12\n\n") {
		t.Errorf("latest entry not tagged !0: %q", r.out)
	}
	r.run(t, "!1 + 1")

	entries := r.sess.History().List()
	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.String()
	}
	want := []string{"6 + 1 = 7", "6 * 2 = 12", "10 - 4 = 6"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{name: "divide by zero", line: "5/0", want: "DIVISION BY ZERO"},
		{name: "parse error", line: "2 +", want: "MALFORMED EXPRESSION"},
		{name: "lex error", line: "2 $ 3", want: "UNRECOGNIZED CHARACTER"},
		{name: "missing reference", line: "!3 + 1", want: "Error:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestREPL()
			r.run(t, tt.line)
			if !strings.Contains(r.errOut.String(), tt.want) {
				t.Errorf("error output %q does not contain %q", r.errOut, tt.want)
			}
			if r.out.Len() != 0 {
				t.Errorf("unexpected output %q", r.out)
			}
			if n := r.sess.History().Len(); n != 0 {
				t.Errorf("failed line recorded %d history entries", n)
			}
		})
	}
}

func TestModeAndBase(t *testing.T) {
	r := newTestREPL()
	if got := r.Prompt(); got != "calc[standard]> " {
		t.Errorf("initial prompt = %q", got)
	}

	r.run(t, "mode prog", "base hex", "FF AND F0")
	if got := r.Prompt(); got != "calc[programmer:HEX]> " {
		t.Errorf("programmer prompt = %q", got)
	}
	if !strings.Contains(r.out.String(), "  = F0\n") {
		t.Errorf("hex result missing from %q", r.out)
	}

	r.out.Reset()
	r.run(t, "MODE")
	if got := r.out.String(); got != "Current mode: programmer\n" {
		t.Errorf("mode query = %q", got)
	}

	r.run(t, "mode abacus", "base 7")
	for _, want := range []string{"Unknown mode: abacus", "Unknown base: 7"} {
		if !strings.Contains(r.errOut.String(), want) {
			t.Errorf("error output %q does not contain %q", r.errOut, want)
		}
	}
	if r.sess.Mode() != calc.ModeProgrammer || r.sess.Base() != calc.BaseHEX {
		t.Errorf("invalid switch changed state to %s/%s", r.sess.Mode(), r.sess.Base())
	}
}

func TestHistoryCommand(t *testing.T) {
	r := newTestREPL()
	r.run(t, "history")
	if got := r.out.String(); got != "No calculations yet.\n" {
		t.Errorf("empty history = %q", got)
	}

	r.run(t, "1+1", "2+2", "3+3")
	r.out.Reset()
	r.run(t, "hist 2")

	want := "\nCalculation History (2 of 3):\n" + rule + "\n" +
		"  !1   2+2 = 4\n" +
		"  !0   3+3 = 6\n" +
		rule + "\nTotal: 3 entries\n\n"
	if diff := cmp.Diff(want, r.out.String()); diff != "" {
		t.Errorf("history output mismatch (-want +got):\n%s", diff)
	}

	r.run(t, "history x")
	if !strings.Contains(r.errOut.String(), "Invalid count: x") {
		t.Errorf("bad count not reported: %q", r.errOut)
	}
}

func TestSearchCommand(t *testing.T) {
	r := newTestREPL()
	r.run(t, "7*6", "1+1")
	r.out.Reset()

	r.run(t, "search 42")
	if !strings.Contains(r.out.String(), "Found 1 entries matching '42':") ||
		!strings.Contains(r.out.String(), "  7*6 = 42\n") {
		t.Errorf("search output = %q", r.out)
	}

	r.out.Reset()
	r.run(t, "search 99")
	if got := r.out.String(); got != "No entries found matching '99'\n" {
		t.Errorf("empty search = %q", got)
	}
}

func TestClearCommand(t *testing.T) {
	r := newTestREPL()
	r.run(t, "1+2", "clear")
	if n := r.sess.History().Len(); n != 0 {
		t.Errorf("history has %d entries after clear", n)
	}
	if r.sess.Display() != "0" {
		t.Errorf("display = %q after clear", r.sess.Display())
	}
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	r := newTestREPL()
	r.run(t, "6*7", "1-2")

	yamlPath := filepath.Join(dir, "history.yaml")
	textPath := filepath.Join(dir, "history.txt")
	r.run(t, "export "+yamlPath, "export "+textPath)

	f, err := os.Open(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	entries, err := history.ReadYAML(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Result != "-1" || entries[1].Result != "42" {
		t.Errorf("exported entries = %+v", entries)
	}

	text, err := os.ReadFile(textPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"[0] 1-2 = -1", "[1] 6*7 = 42", "Total entries: 2"} {
		if !strings.Contains(string(text), want) {
			t.Errorf("text export missing %q:\n%s", want, text)
		}
	}

	r.run(t, "export "+filepath.Join(dir, "missing", "x.txt"))
	if !strings.Contains(r.errOut.String(), "Failed to export history") {
		t.Errorf("export failure not reported: %q", r.errOut)
	}
}

func TestQuit(t *testing.T) {
	for _, word := range []string{"quit", "exit", "QUIT"} {
		r := newTestREPL()
		if r.Execute(word) {
			t.Errorf("Execute(%q) kept running", word)
		}
		if r.out.String() != "Goodbye!\n" {
			t.Errorf("Execute(%q) printed %q", word, r.out)
		}
	}
}

func TestHelpListsModes(t *testing.T) {
	r := newTestREPL()
	r.run(t, "?")
	for _, want := range []string{
		"Available modes: standard, scientific, programmer",
		"Functions: abs, acos, asin, atan, cbrt, ceil, cos, cosh, exp, floor, ln, log, log10, round, sin, sinh, sqrt, tan, tanh, trunc",
	} {
		if !strings.Contains(r.out.String(), want) {
			t.Errorf("help output %q lacks %q", r.out, want)
		}
	}
}

func TestEval(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		ctx     calc.Context
		want    string
		wantErr string
	}{
		{name: "standard", expr: "1/4", want: "0.25\n"},
		{name: "scientific", expr: "sqrt(16)", ctx: calc.Context{Mode: calc.ModeScientific}, want: "4\n"},
		{name: "binary", expr: "101 OR 10", ctx: calc.Context{Mode: calc.ModeProgrammer, Base: calc.BaseBIN}, want: "111\n"},
		{name: "empty", expr: "  ", wantErr: "no expression"},
		{name: "divide by zero", expr: "1/0", wantErr: "DIVISION BY ZERO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := Eval(&out, tt.expr, tt.ctx)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Eval(%q) error = %v, want %q", tt.expr, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if out.String() != tt.want {
				t.Errorf("Eval(%q) = %q, want %q", tt.expr, out.String(), tt.want)
			}
		})
	}
}
