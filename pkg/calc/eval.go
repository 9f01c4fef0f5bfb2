package calc

import (
	"fmt"
	"math"
)

// Value is an evaluation result: a float in the standard and scientific
// modes, an int64 in programmer mode.
type Value struct {
	Float   float64
	Int     int64
	Integer bool
}

// Format renders v the way the display shows it. Integers use base.
func (v Value) Format(base Base) string {
	if v.Integer {
		return FormatInt(v.Int, base)
	}
	return FormatFloat(v.Float)
}

// Eval evaluates the tree rooted at n. It has no side effects: the same tree
// and context always give the same result.
func Eval(n Node, ctx Context) (Value, error) {
	if !ctx.Integer() {
		f, err := evalNode(n, ctx)
		if err != nil {
			return Value{}, err
		}
		return Value{Float: f}, nil
	}

	x, err := evalInteger(n, ctx)
	if err != nil {
		return Value{}, err
	}
	if x.exact {
		return Value{Int: x.i, Integer: true}, nil
	}
	i, err := toInt64(x.f, n.Position())
	if err != nil {
		return Value{}, err
	}
	return Value{Int: i, Integer: true}, nil
}

// Evaluate tokenizes, parses and evaluates input in one step.
func Evaluate(input string, ctx Context) (Value, error) {
	n, err := Parse(input, ctx.InputBase())
	if err != nil {
		return Value{}, err
	}
	return Eval(n, ctx)
}

func evalNode(n Node, ctx Context) (float64, error) {
	switch n := n.(type) {
	case *NumberLit:
		if n.OutOfRange {
			return 0, overflowError(n.Pos, n.Text+" is outside 64-bit integer range")
		}
		return n.Value, nil

	case *Constant:
		value, ok := constants[n.Name]
		if !ok {
			return 0, &EvalError{Kind: KindInternal, Pos: n.Pos, Reason: "unknown constant " + n.Name}
		}
		return value, nil

	case *UnaryOp:
		operand, err := evalNode(n.Operand, ctx)
		if err != nil {
			return 0, err
		}
		return evalUnary(n, operand)

	case *BinaryOp:
		left, err := evalNode(n.Left, ctx)
		if err != nil {
			return 0, err
		}
		right, err := evalNode(n.Right, ctx)
		if err != nil {
			return 0, err
		}
		result, err := evalBinary(n, left, right)
		if err != nil {
			return 0, err
		}
		if math.IsNaN(result) {
			return 0, domainError(n.Pos, fmt.Sprintf("%s has no real result", n.Op))
		}
		return result, nil

	case *Call:
		arg, err := evalNode(n.Arg, ctx)
		if err != nil {
			return 0, err
		}
		return callFunction(n, arg)

	default:
		return 0, &EvalError{Kind: KindInternal, Reason: fmt.Sprintf("unexpected node %T", n)}
	}
}

func evalUnary(n *UnaryOp, operand float64) (float64, error) {
	switch n.Op {
	case OpNeg:
		return -operand, nil
	case OpNot:
		i, err := toInt32(operand, n.Pos)
		if err != nil {
			return 0, err
		}
		return float64(^i), nil
	}
	return 0, &EvalError{Kind: KindInternal, Pos: n.Pos, Reason: "unknown unary operator " + string(n.Op)}
}

func evalBinary(n *BinaryOp, left, right float64) (float64, error) {
	if n.Op.bitwise() {
		return evalInt32(n, left, right)
	}

	switch n.Op {
	case OpAdd:
		return left + right, nil
	case OpSub:
		return left - right, nil
	case OpMul:
		return left * right, nil
	case OpDiv:
		if right == 0 {
			return 0, divideByZero(n.Pos)
		}
		return left / right, nil
	case OpMod:
		if right == 0 {
			return 0, divideByZero(n.Pos)
		}
		return math.Mod(left, right), nil
	case OpPow:
		return math.Pow(left, right), nil
	}
	return 0, &EvalError{Kind: KindInternal, Pos: n.Pos, Reason: "unknown binary operator " + string(n.Op)}
}

// evalInt32 applies the bitwise operators to float operands.
func evalInt32(n *BinaryOp, left, right float64) (float64, error) {
	a, err := toInt32(left, n.Left.Position())
	if err != nil {
		return 0, err
	}
	b, err := toInt32(right, n.Right.Position())
	if err != nil {
		return 0, err
	}
	r, err := applyInt32(n, a, b)
	return float64(r), err
}

// applyInt32 applies the bitwise operators (and programmer-mode MOD) with
// 32-bit signed wraparound, like a C operator on int32.
func applyInt32(n *BinaryOp, a, b int32) (int32, error) {
	switch n.Op {
	case OpOr:
		return a | b, nil
	case OpAnd:
		return a & b, nil
	case OpXor:
		return a ^ b, nil
	case OpShl:
		return a << (uint32(b) & 31), nil
	case OpShr:
		return a >> (uint32(b) & 31), nil
	case OpMod:
		if b == 0 {
			return 0, divideByZero(n.Pos)
		}
		return a % b, nil
	}
	return 0, &EvalError{Kind: KindInternal, Pos: n.Pos, Reason: "unknown bitwise operator " + string(n.Op)}
}

func callFunction(n *Call, x float64) (float64, error) {
	var result float64
	switch n.Func {
	case "sin":
		result = math.Sin(x)
	case "cos":
		result = math.Cos(x)
	case "tan":
		result = math.Tan(x)
	case "asin", "acos":
		if x < -1 || x > 1 {
			return 0, domainError(n.Pos, n.Func+" argument must be in [-1, 1]")
		}
		if n.Func == "asin" {
			result = math.Asin(x)
		} else {
			result = math.Acos(x)
		}
	case "atan":
		result = math.Atan(x)
	case "sinh":
		result = math.Sinh(x)
	case "cosh":
		result = math.Cosh(x)
	case "tanh":
		result = math.Tanh(x)
	case "ln", "log", "log10":
		if x <= 0 {
			return 0, domainError(n.Pos, n.Func+" argument must be positive")
		}
		if n.Func == "ln" {
			result = math.Log(x)
		} else {
			result = math.Log10(x)
		}
	case "sqrt":
		if x < 0 {
			return 0, domainError(n.Pos, "sqrt argument must be non-negative")
		}
		result = math.Sqrt(x)
	case "cbrt":
		result = math.Cbrt(x)
	case "abs":
		result = math.Abs(x)
	case "exp":
		result = math.Exp(x)
	case "floor":
		result = math.Floor(x)
	case "ceil":
		result = math.Ceil(x)
	case "round":
		result = math.Round(x)
	case "trunc":
		result = math.Trunc(x)
	default:
		return 0, &EvalError{Kind: KindInternal, Pos: n.Pos, Reason: "unknown function " + n.Func}
	}

	if math.IsNaN(result) {
		return 0, domainError(n.Pos, n.Func+" has no real result")
	}
	return result, nil
}

// int64 bounds as floats; 2^63 itself is not representable as int64.
const (
	minInt64Float = -9223372036854775808.0
	maxInt64Float = 9223372036854775808.0
)

// toInt64 truncates toward zero, failing outside the int64 range.
func toInt64(f float64, pos int) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < minInt64Float || f >= maxInt64Float {
		return 0, overflowError(pos, "value outside 64-bit integer range")
	}
	return int64(f), nil
}

// toInt32 converts like ToInt32 of a dynamic language: truncate, then wrap
// modulo 2^32.
func toInt32(f float64, pos int) (int32, error) {
	i, err := toInt64(f, pos)
	if err != nil {
		return 0, err
	}
	return int32(i), nil
}
