package calc

import (
	"fmt"
	"strings"
)

// Op identifies a unary or binary operator.
type Op string

const (
	OpAdd Op = "+"
	OpSub Op = "-"
	OpMul Op = "*"
	OpDiv Op = "/"
	OpPow Op = "^"
	OpMod Op = "MOD"
	OpShl Op = "<<"
	OpShr Op = ">>"
	OpOr  Op = "OR"
	OpAnd Op = "AND"
	OpXor Op = "XOR"
	OpNot Op = "NOT"
	OpNeg Op = "NEG"
)

// bitwise reports whether op works on 32-bit integers.
func (op Op) bitwise() bool {
	switch op {
	case OpShl, OpShr, OpOr, OpAnd, OpXor, OpNot:
		return true
	}
	return false
}

// Node is one node of the expression tree.
type Node interface {
	// Position is the rune offset of the node's first token.
	Position() int
	String() string
	node()
}

// NumberLit is a numeric literal, already converted from its input base.
// Whole literals within the int64 range also carry their exact value in Int.
type NumberLit struct {
	Value float64
	Int   int64
	Exact bool
	// OutOfRange marks a base literal too large for int64; evaluating it
	// is an overflow.
	OutOfRange bool
	Text       string
	Pos        int
}

// UnaryOp is a prefix operator applied to Operand (OpNeg or OpNot).
type UnaryOp struct {
	Op      Op
	Operand Node
	Pos     int
}

// BinaryOp is an infix operator.
type BinaryOp struct {
	Op          Op
	Left, Right Node
	Pos         int
}

// Call is a one-argument function application.
type Call struct {
	Func string
	Arg  Node
	Pos  int
}

// Constant is a named constant such as pi or e.
type Constant struct {
	Name string
	Pos  int
}

func (n *NumberLit) Position() int { return n.Pos }
func (n *UnaryOp) Position() int   { return n.Pos }
func (n *BinaryOp) Position() int  { return n.Pos }
func (n *Call) Position() int      { return n.Pos }
func (n *Constant) Position() int  { return n.Pos }

func (*NumberLit) node() {}
func (*UnaryOp) node()   {}
func (*BinaryOp) node()  {}
func (*Call) node()      {}
func (*Constant) node()  {}

// The String methods print a fully parenthesized form, which makes
// precedence visible in tests and debug logs.

func (n *NumberLit) String() string { return n.Text }

func (n *UnaryOp) String() string {
	if n.Op == OpNeg {
		return fmt.Sprintf("(-%s)", n.Operand)
	}
	return fmt.Sprintf("(%s %s)", n.Op, n.Operand)
}

func (n *BinaryOp) String() string {
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(n.Left.String())
	b.WriteByte(' ')
	b.WriteString(string(n.Op))
	b.WriteByte(' ')
	b.WriteString(n.Right.String())
	b.WriteByte(')')
	return b.String()
}

func (n *Call) String() string { return fmt.Sprintf("%s(%s)", n.Func, n.Arg) }

func (n *Constant) String() string { return n.Name }

// Depth returns the height of the tree rooted at n.
func Depth(n Node) int {
	switch n := n.(type) {
	case *UnaryOp:
		return 1 + Depth(n.Operand)
	case *BinaryOp:
		return 1 + max(Depth(n.Left), Depth(n.Right))
	case *Call:
		return 1 + Depth(n.Arg)
	default:
		return 1
	}
}
