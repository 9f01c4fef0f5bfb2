package session

import "strings"

// segment is the display and raw text produced by one button press. Keeping
// them paired is what keeps Display and Raw consistent under Delete.
type segment struct {
	display string
	raw     string
	kind    labelKind
}

// Expression is the pending input. It is a value: every method returns a new
// Expression and leaves the receiver untouched.
type Expression struct {
	segments []segment
}

var zeroSegment = segment{display: "0", raw: "0", kind: kindDigit}

// ZeroExpression is the cleared state, "0" on both fields.
func ZeroExpression() Expression {
	return Expression{segments: []segment{zeroSegment}}
}

// ExpressionFromText builds an expression whose display and raw text are both
// text, one segment per character, so that Delete removes one character.
func ExpressionFromText(text string) Expression {
	var segs []segment
	for _, r := range text {
		kind := kindDigit
		if r == '-' || r == '+' {
			kind = kindOperator
		}
		segs = append(segs, segment{display: string(r), raw: string(r), kind: kind})
	}
	return Expression{segments: segs}
}

// Display renders the human-facing text.
func (e Expression) Display() string {
	var b strings.Builder
	for _, s := range e.segments {
		b.WriteString(s.display)
	}
	return b.String()
}

// Raw renders the parser input.
func (e Expression) Raw() string {
	var b strings.Builder
	for _, s := range e.segments {
		b.WriteString(s.raw)
	}
	return b.String()
}

// IsZero reports whether e is exactly the cleared state.
func (e Expression) IsZero() bool {
	return len(e.segments) == 1 && e.segments[0] == zeroSegment
}

// IsEmpty reports whether e has no input at all.
func (e Expression) IsEmpty() bool {
	return len(e.segments) == 0
}

func (e Expression) with(segs ...segment) Expression {
	out := make([]segment, 0, len(e.segments)+len(segs))
	out = append(out, e.segments...)
	out = append(out, segs...)
	return Expression{segments: out}
}

// push adds one segment at the end.
func (e Expression) push(s segment) Expression {
	return e.with(s)
}

// DropLast removes the last segment. Removing the only segment yields the
// cleared state.
func (e Expression) DropLast() Expression {
	if len(e.segments) <= 1 {
		return ZeroExpression()
	}
	out := make([]segment, len(e.segments)-1)
	copy(out, e.segments)
	return Expression{segments: out}
}

var negateSegment = segment{display: "-", raw: "-", kind: kindNegate}

// ToggleNegate adds a leading "-" or removes the one that is there.
func (e Expression) ToggleNegate() Expression {
	if len(e.segments) > 0 && e.segments[0].raw == "-" {
		out := make([]segment, len(e.segments)-1)
		copy(out, e.segments[1:])
		if len(out) == 0 {
			return ZeroExpression()
		}
		return Expression{segments: out}
	}
	return Expression{}.with(negateSegment).with(e.segments...)
}

// Reciprocal wraps the whole expression as 1/( ... ).
func (e Expression) Reciprocal() Expression {
	open := segment{display: "1/(", raw: "1/(", kind: kindOpenParen}
	closing := segment{display: ")", raw: ")", kind: kindCloseParen}
	return Expression{}.with(open).with(e.segments...).with(closing)
}
