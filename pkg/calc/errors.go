// Package calc implements the calculator's expression engine: a tokenizer, a
// recursive-descent parser producing a small syntax tree, and a pure tree
// evaluator for the standard, scientific and programmer modes.
package calc

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the engine can report. The session layer
// and the wire protocol only ever see these kinds, never raw Go errors.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindLex          ErrorKind = "lex"
	KindParse        ErrorKind = "parse"
	KindDivideByZero ErrorKind = "divide_by_zero"
	KindDomain       ErrorKind = "domain"
	KindOverflow     ErrorKind = "overflow"
	KindInternal     ErrorKind = "internal"
)

// FriendlyErrorTexts maps error kinds to short user-facing messages.
var FriendlyErrorTexts = map[ErrorKind]string{
	KindLex:          "UNRECOGNIZED CHARACTER",
	KindParse:        "MALFORMED EXPRESSION",
	KindDivideByZero: "DIVISION BY ZERO",
	KindDomain:       "INPUT OUTSIDE FUNCTION DOMAIN",
	KindOverflow:     "RESULT OUT OF INTEGER RANGE",
	KindInternal:     "INTERNAL ERROR",
}

// GetFriendlyErrorText returns the user-facing text for kind.
func GetFriendlyErrorText(kind ErrorKind) string {
	if text, ok := FriendlyErrorTexts[kind]; ok {
		return text
	}
	return string(kind)
}

// LexError reports a character the tokenizer cannot scan.
type LexError struct {
	Pos    int  // rune offset into the input
	Char   rune // offending character, 0 at end of input
	Reason string
}

func (e *LexError) Error() string {
	if e.Char == 0 {
		return fmt.Sprintf("lex error at %d: %s", e.Pos, e.Reason)
	}
	return fmt.Sprintf("lex error at %d: %s %q", e.Pos, e.Reason, e.Char)
}

// ParseError reports a structurally invalid expression.
type ParseError struct {
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d: %s", e.Pos, e.Reason)
}

// EvalError reports a failure while evaluating a well-formed tree.
type EvalError struct {
	Kind   ErrorKind // KindDivideByZero, KindDomain, KindOverflow or KindInternal
	Pos    int
	Reason string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s at %d: %s", e.Kind, e.Pos, e.Reason)
}

// ErrorKindOf maps any error returned by this package to its kind.
// Errors from elsewhere map to KindInternal, nil to KindNone.
func ErrorKindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var lexErr *LexError
	var parseErr *ParseError
	var evalErr *EvalError
	switch {
	case errors.As(err, &lexErr):
		return KindLex
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &evalErr):
		return evalErr.Kind
	default:
		return KindInternal
	}
}

func divideByZero(pos int) error {
	return &EvalError{Kind: KindDivideByZero, Pos: pos, Reason: "division by zero"}
}

func domainError(pos int, reason string) error {
	return &EvalError{Kind: KindDomain, Pos: pos, Reason: reason}
}

func overflowError(pos int, reason string) error {
	return &EvalError{Kind: KindOverflow, Pos: pos, Reason: reason}
}
