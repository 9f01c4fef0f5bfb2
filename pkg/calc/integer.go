package calc

import (
	"fmt"
	"math"
)

// maxExactFloat is the largest magnitude below which every whole float64 is
// an exact integer.
const maxExactFloat = 1 << 53

// number is a programmer-mode intermediate value. Exact values carry their
// int64 in i; the others are floats, truncated once the whole tree is done.
type number struct {
	i     int64
	f     float64
	exact bool
}

func exactNumber(i int64) number {
	return number{i: i, f: float64(i), exact: true}
}

// floatNumber wraps f, treating whole values up to 2^53 as exact.
func floatNumber(f float64) number {
	if f == math.Trunc(f) && math.Abs(f) <= maxExactFloat {
		return exactNumber(int64(f))
	}
	return number{f: f}
}

func (x number) int32(pos int) (int32, error) {
	if x.exact {
		return int32(x.i), nil
	}
	return toInt32(x.f, pos)
}

// evalInteger evaluates n for programmer mode. + - * and ^ with a
// non-negative exponent stay in int64 and fail with Overflow instead of
// rounding; / stays exact when it divides evenly. Everything else falls back
// to float evaluation.
func evalInteger(n Node, ctx Context) (number, error) {
	switch n := n.(type) {
	case *NumberLit:
		switch {
		case n.OutOfRange:
			return number{}, overflowError(n.Pos, n.Text+" is outside 64-bit integer range")
		case n.Exact:
			return exactNumber(n.Int), nil
		}
		return floatNumber(n.Value), nil

	case *Constant:
		f, err := evalNode(n, ctx)
		if err != nil {
			return number{}, err
		}
		return floatNumber(f), nil

	case *UnaryOp:
		operand, err := evalInteger(n.Operand, ctx)
		if err != nil {
			return number{}, err
		}
		return integerUnary(n, operand)

	case *BinaryOp:
		left, err := evalInteger(n.Left, ctx)
		if err != nil {
			return number{}, err
		}
		right, err := evalInteger(n.Right, ctx)
		if err != nil {
			return number{}, err
		}
		return integerBinary(n, left, right)

	case *Call:
		arg, err := evalInteger(n.Arg, ctx)
		if err != nil {
			return number{}, err
		}
		f, err := callFunction(n, arg.f)
		if err != nil {
			return number{}, err
		}
		return floatNumber(f), nil

	default:
		return number{}, &EvalError{Kind: KindInternal, Reason: fmt.Sprintf("unexpected node %T", n)}
	}
}

func integerUnary(n *UnaryOp, x number) (number, error) {
	switch n.Op {
	case OpNeg:
		if !x.exact {
			return floatNumber(-x.f), nil
		}
		if x.i == math.MinInt64 {
			return number{}, overflowError(n.Pos, "negation outside 64-bit integer range")
		}
		return exactNumber(-x.i), nil
	case OpNot:
		i, err := x.int32(n.Operand.Position())
		if err != nil {
			return number{}, err
		}
		return exactNumber(int64(^i)), nil
	}
	return number{}, &EvalError{Kind: KindInternal, Pos: n.Pos, Reason: "unknown unary operator " + string(n.Op)}
}

func integerBinary(n *BinaryOp, left, right number) (number, error) {
	if n.Op.bitwise() || n.Op == OpMod {
		a, err := left.int32(n.Left.Position())
		if err != nil {
			return number{}, err
		}
		b, err := right.int32(n.Right.Position())
		if err != nil {
			return number{}, err
		}
		r, err := applyInt32(n, a, b)
		if err != nil {
			return number{}, err
		}
		return exactNumber(int64(r)), nil
	}

	if left.exact && right.exact {
		a, b := left.i, right.i
		var (
			r  int64
			ok bool
		)
		switch n.Op {
		case OpAdd:
			r, ok = addInt64(a, b)
		case OpSub:
			r, ok = subInt64(a, b)
		case OpMul:
			r, ok = mulInt64(a, b)
		case OpDiv:
			if b == 0 {
				return number{}, divideByZero(n.Pos)
			}
			if a%b != 0 {
				return floatBinary(n, left, right)
			}
			if a == math.MinInt64 && b == -1 {
				ok = false
			} else {
				r, ok = a/b, true
			}
		case OpPow:
			if b < 0 {
				return floatBinary(n, left, right)
			}
			r, ok = powInt64(a, b)
		default:
			return floatBinary(n, left, right)
		}
		if !ok {
			return number{}, overflowError(n.Pos, fmt.Sprintf("%s outside 64-bit integer range", n.Op))
		}
		return exactNumber(r), nil
	}

	return floatBinary(n, left, right)
}

func floatBinary(n *BinaryOp, left, right number) (number, error) {
	f, err := evalBinary(n, left.f, right.f)
	if err != nil {
		return number{}, err
	}
	if math.IsNaN(f) {
		return number{}, domainError(n.Pos, fmt.Sprintf("%s has no real result", n.Op))
	}
	return floatNumber(f), nil
}

func addInt64(a, b int64) (int64, bool) {
	s := a + b
	if (a > 0 && b > 0 && s < 0) || (a < 0 && b < 0 && s >= 0) {
		return 0, false
	}
	return s, true
}

func subInt64(a, b int64) (int64, bool) {
	d := a - b
	if (b > 0 && d > a) || (b < 0 && d < a) {
		return 0, false
	}
	return d, true
}

func mulInt64(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	p := a * b
	if p/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return p, true
}

// powInt64 raises a to a non-negative power by repeated squaring.
func powInt64(a, e int64) (int64, bool) {
	result := int64(1)
	for e > 0 {
		if e&1 == 1 {
			var ok bool
			if result, ok = mulInt64(result, a); !ok {
				return 0, false
			}
		}
		e >>= 1
		if e > 0 {
			var ok bool
			if a, ok = mulInt64(a, a); !ok {
				return 0, false
			}
		}
	}
	return result, true
}
