package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/antibyte/retrocalc/pkg/calc"
)

// Eval evaluates expr once and writes the formatted result to w.
func Eval(w io.Writer, expr string, ctx calc.Context) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return fmt.Errorf("no expression given")
	}
	value, err := calc.Evaluate(expr, ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", calc.GetFriendlyErrorText(calc.ErrorKindOf(err)), err)
	}
	_, err = fmt.Fprintln(w, value.Format(ctx.Base))
	return err
}
