// Package cli is the terminal front end: an interactive REPL over a calculator
// session and one-shot evaluation.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/antibyte/retrocalc/pkg/calc"
	"github.com/antibyte/retrocalc/pkg/history"
	"github.com/antibyte/retrocalc/pkg/logger"
	"github.com/antibyte/retrocalc/pkg/session"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
)

const (
	escBold   = "\033[1m"
	escRed    = "\033[31m"
	escNormal = "\033[0m"
	rule      = "--------------------------------------------------"
)

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// REPL evaluates lines against one session. Lines that start with a command
// word are commands; everything else is an expression.
type REPL struct {
	sess   *session.Session
	out    io.Writer
	errOut io.Writer
	color  bool
}

// NewREPL creates a REPL writing results to out and errors to errOut. color
// enables ANSI escapes in the prompt and messages.
func NewREPL(sess *session.Session, out, errOut io.Writer, color bool) *REPL {
	return &REPL{sess: sess, out: out, errOut: errOut, color: color}
}

// Prompt is "calc[mode]> ", with the base appended in programmer mode.
func (r *REPL) Prompt() string {
	p := "calc[" + r.sess.Mode().String()
	if r.sess.Mode() == calc.ModeProgrammer {
		p += ":" + r.sess.Base().String()
	}
	p += "]> "
	if r.color {
		return escBold + p + escNormal
	}
	return p
}

// Banner greets the user at startup.
func (r *REPL) Banner() {
	fmt.Fprintln(r.out, r.bold("retrocalc - Standard, Scientific and Programmer calculator"))
	fmt.Fprintln(r.out, "Type expressions to evaluate, or type 'help' for available commands.")
	fmt.Fprintln(r.out, "Press Ctrl+D or type 'quit' to exit.")
	fmt.Fprintln(r.out)
}

func (r *REPL) bold(s string) string {
	if r.color {
		return escBold + s + escNormal
	}
	return s
}

func (r *REPL) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if r.color {
		msg = escRed + msg + escNormal
	}
	fmt.Fprintln(r.errOut, msg)
}

type command func(r *REPL, args string) bool

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":    (*REPL).help,
		"?":       (*REPL).help,
		"quit":    (*REPL).quit,
		"exit":    (*REPL).quit,
		"clear":   (*REPL).clear,
		"mode":    (*REPL).mode,
		"base":    (*REPL).base,
		"history": (*REPL).history,
		"hist":    (*REPL).history,
		"search":  (*REPL).search,
		"export":  (*REPL).export,
	}
}

// Execute handles one input line. It returns false when the REPL should stop.
func (r *REPL) Execute(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}

	word, args, _ := strings.Cut(line, " ")
	if cmd, ok := commands[strings.ToLower(word)]; ok {
		return cmd(r, strings.TrimSpace(args))
	}

	r.evaluate(line)
	return true
}

func (r *REPL) evaluate(line string) {
	expanded, err := r.sess.History().Expand(line)
	if err != nil {
		r.errorf("  Error: %v", err)
		return
	}

	outcome := r.sess.EvaluateLine(expanded)
	if !outcome.OK() {
		r.errorf("  Error: %s (%v)", calc.GetFriendlyErrorText(outcome.Kind), outcome.Err)
		fmt.Fprintln(r.errOut)
		return
	}

	fmt.Fprintf(r.out, "  [!0] %s\n", outcome.Entry.Expression)
	fmt.Fprintf(r.out, "  = %s\n\n", r.bold(outcome.Entry.Result))
}

func (r *REPL) help(string) bool {
	fmt.Fprint(r.out, `
Available commands:
  help           - Show this help message
  quit, exit     - Exit the calculator
  clear          - Clear the display and the history
  mode [name]    - Show or switch the mode
  base [name]    - Show or switch the programmer base (DEC, HEX, OCT, BIN)
  history [N]    - Show calculation history (N entries or all)
  search <kw>    - Search history by keyword
  export <file>  - Export history (.yaml/.yml as YAML, else text)

History references:
  !!             - Use last result
  !N             - Use N-th most recent result (0 = most recent)

`)
	var names []string
	for _, m := range calc.Modes() {
		names = append(names, m.String())
	}
	fmt.Fprintf(r.out, "Available modes: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(r.out, "Functions: %s\n\n", strings.Join(calc.Functions(), ", "))
	return true
}

func (r *REPL) quit(string) bool {
	fmt.Fprintln(r.out, "Goodbye!")
	return false
}

func (r *REPL) clear(string) bool {
	r.sess.Clear()
	if err := r.sess.ClearHistory(); err != nil {
		r.errorf("Clearing history failed: %v", err)
		return true
	}
	fmt.Fprintln(r.out, "History cleared.")
	fmt.Fprintln(r.out)
	return true
}

func (r *REPL) mode(args string) bool {
	if args == "" {
		fmt.Fprintf(r.out, "Current mode: %s\n", r.sess.Mode())
		return true
	}
	mode, err := calc.ParseMode(args)
	if err != nil {
		r.errorf("Unknown mode: %s", args)
		return true
	}
	r.sess.SelectMode(mode)
	fmt.Fprintf(r.out, "Switched to %s mode.\n", mode)
	return true
}

func (r *REPL) base(args string) bool {
	if args == "" {
		fmt.Fprintf(r.out, "Current base: %s\n", r.sess.Base())
		return true
	}
	base, err := calc.ParseBase(args)
	if err != nil {
		r.errorf("Unknown base: %s", args)
		return true
	}
	r.sess.SelectBase(base)
	fmt.Fprintf(r.out, "Base set to %s.\n", base)
	if r.sess.Mode() != calc.ModeProgrammer {
		fmt.Fprintln(r.out, "The base applies in programmer mode.")
	}
	return true
}

// printEntries lists entries oldest first, tagged with their !N reference.
func (r *REPL) printEntries(entries []history.Entry) {
	for i := len(entries) - 1; i >= 0; i-- {
		fmt.Fprintf(r.out, "  !%-3d %s\n", i, entries[i])
	}
}

func (r *REPL) history(args string) bool {
	h := r.sess.History()
	if h.Len() == 0 {
		fmt.Fprintln(r.out, "No calculations yet.")
		return true
	}

	count := h.Len()
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n < 0 {
			r.errorf("Invalid count: %s", args)
			return true
		}
		count = min(n, h.Len())
	}

	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "Calculation History (%d of %d):\n", count, h.Len())
	fmt.Fprintln(r.out, rule)
	r.printEntries(h.Recent(count))
	fmt.Fprintln(r.out, rule)
	fmt.Fprintf(r.out, "Total: %d entries\n\n", h.Len())
	return true
}

func (r *REPL) search(keyword string) bool {
	if keyword == "" {
		r.errorf("Usage: search <keyword>")
		return true
	}
	results := r.sess.History().Search(keyword)
	if len(results) == 0 {
		fmt.Fprintf(r.out, "No entries found matching '%s'\n", keyword)
		return true
	}

	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "Found %d entries matching '%s':\n", len(results), keyword)
	fmt.Fprintln(r.out, rule)
	for _, e := range results {
		fmt.Fprintf(r.out, "  %s\n", e)
	}
	fmt.Fprintln(r.out, rule)
	fmt.Fprintln(r.out)
	return true
}

func (r *REPL) export(path string) bool {
	if path == "" {
		r.errorf("Usage: export <file>")
		return true
	}
	if err := ExportHistory(r.sess.History(), path); err != nil {
		r.errorf("Failed to export history to %s: %v", path, err)
		return true
	}
	fmt.Fprintf(r.out, "History exported to: %s\n", path)
	fmt.Fprintf(r.out, "Total entries: %d\n\n", r.sess.History().Len())
	return true
}

// ExportHistory writes h to path in the format its extension selects.
func ExportHistory(h *history.History, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return history.Export(f, h.List(), history.FormatForPath(path))
}

// Run reads lines with readline until quit, EOF or an interrupt on an empty
// line.
func (r *REPL) Run(historyFile string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          r.Prompt(),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	if r.color {
		r.Banner()
	}
	logger.SessionInfo("REPL started in %s mode", r.sess.Mode())

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if !r.Execute(line) {
			return nil
		}
		rl.SetPrompt(r.Prompt())
	}
}
