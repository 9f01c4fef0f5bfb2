package calc

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// MaxNesting bounds parenthesis and unary-operator nesting.
const MaxNesting = 200

// functions lists the one-argument functions the parser accepts.
var functions = map[string]bool{
	"sin":   true,
	"cos":   true,
	"tan":   true,
	"asin":  true,
	"acos":  true,
	"atan":  true,
	"sinh":  true,
	"cosh":  true,
	"tanh":  true,
	"ln":    true,
	"log":   true,
	"log10": true,
	"sqrt":  true,
	"cbrt":  true,
	"abs":   true,
	"exp":   true,
	"floor": true,
	"ceil":  true,
	"round": true,
	"trunc": true,
}

// constants lists the named constants.
var constants = map[string]float64{
	"pi":       math.Pi,
	"e":        math.E,
	"infinity": math.Inf(1),
}

// Functions returns the names of all supported functions, sorted.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parser is a recursive-descent parser over a Lexer.
type Parser struct {
	lexer   *Lexer
	current Token
	peek    Token
	base    Base
	depth   int
}

// NewParser creates a parser reading literals in base. Lexing errors of the
// first two tokens are reported here.
func NewParser(input string, base Base) (*Parser, error) {
	p := &Parser{
		lexer: NewLexer(input, base),
		base:  base,
	}

	// Read two tokens to initialize current and peek
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	return p, nil
}

// Parse parses input into a tree. The whole input must be consumed.
func Parse(input string, base Base) (Node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &ParseError{Pos: 0, Reason: "empty expression"}
	}
	p, err := NewParser(input, base)
	if err != nil {
		return nil, err
	}
	return p.ParseExpression()
}

// nextToken advances to the next token
func (p *Parser) nextToken() error {
	p.current = p.peek
	tok, err := p.lexer.Next()
	if err != nil {
		return err
	}
	p.peek = tok
	return nil
}

func (p *Parser) errorf(pos int, format string, args ...interface{}) error {
	return &ParseError{Pos: pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *Parser) enter() error {
	p.depth++
	if p.depth > MaxNesting {
		return p.errorf(p.current.Pos, "expression nested too deeply")
	}
	return nil
}

func (p *Parser) leave() {
	p.depth--
}

// ParseExpression parses a complete expression and rejects trailing tokens.
func (p *Parser) ParseExpression() (Node, error) {
	node, err := p.parseOrExpression()
	if err != nil {
		return nil, err
	}
	if p.current.Kind != TokenEOF {
		if p.current.is(TokenParen, ")") {
			return nil, p.errorf(p.current.Pos, "unmatched ')'")
		}
		return nil, p.errorf(p.current.Pos, "unexpected %s", p.current)
	}
	return node, nil
}

// binaryLevel parses a left-associative chain of the given operators.
func (p *Parser) binaryLevel(next func() (Node, error), ops map[string]Op) (Node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}

	for p.current.Kind == TokenOperator {
		op, ok := ops[p.current.Text]
		if !ok {
			break
		}
		pos := p.current.Pos
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right, Pos: pos}
	}
	return left, nil
}

var (
	orOps             = map[string]Op{"OR": OpOr, "XOR": OpXor}
	andOps            = map[string]Op{"AND": OpAnd}
	additiveOps       = map[string]Op{"+": OpAdd, "-": OpSub}
	multiplicativeOps = map[string]Op{
		"*": OpMul, "/": OpDiv, "%": OpMod, "MOD": OpMod, "<<": OpShl, ">>": OpShr,
	}
)

// parseOrExpression handles OR and XOR (lowest precedence)
func (p *Parser) parseOrExpression() (Node, error) {
	return p.binaryLevel(p.parseAndExpression, orOps)
}

// parseAndExpression handles AND
func (p *Parser) parseAndExpression() (Node, error) {
	return p.binaryLevel(p.parseAdditiveExpression, andOps)
}

// parseAdditiveExpression handles + and -
func (p *Parser) parseAdditiveExpression() (Node, error) {
	return p.binaryLevel(p.parseMultiplicativeExpression, additiveOps)
}

// parseMultiplicativeExpression handles *, /, %, MOD and the shifts
func (p *Parser) parseMultiplicativeExpression() (Node, error) {
	return p.binaryLevel(p.parseUnaryExpression, multiplicativeOps)
}

// parseUnaryExpression handles unary -, +, NOT and ~
func (p *Parser) parseUnaryExpression() (Node, error) {
	if p.current.Kind != TokenOperator {
		return p.parsePowerExpression()
	}

	var op Op
	switch p.current.Text {
	case "-":
		op = OpNeg
	case "+":
		op = OpAdd
	case "NOT", "~":
		op = OpNot
	default:
		return p.parsePowerExpression()
	}

	pos := p.current.Pos
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	operand, err := p.parseUnaryExpression()
	if err != nil {
		return nil, err
	}
	if op == OpAdd {
		return operand, nil
	}
	return &UnaryOp{Op: op, Operand: operand, Pos: pos}, nil
}

// parsePowerExpression handles ^ (right-associative). The exponent is a
// unary expression so that 2^-1 parses.
func (p *Parser) parsePowerExpression() (Node, error) {
	base, err := p.parsePrimaryExpression()
	if err != nil {
		return nil, err
	}
	if !p.current.is(TokenOperator, "^") {
		return base, nil
	}

	pos := p.current.Pos
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	exponent, err := p.parseUnaryExpression()
	if err != nil {
		return nil, err
	}
	return &BinaryOp{Op: OpPow, Left: base, Right: exponent, Pos: pos}, nil
}

// parsePrimaryExpression handles literals, constants, parentheses and function calls
func (p *Parser) parsePrimaryExpression() (Node, error) {
	tok := p.current
	switch tok.Kind {
	case TokenNumber:
		lit, err := p.numberLiteral(tok)
		if err != nil {
			return nil, err
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return lit, nil

	case TokenIdentifier:
		name := strings.ToLower(tok.Text)
		if functions[name] {
			return p.parseFunctionCall(name)
		}
		if _, ok := constants[name]; ok {
			if p.peek.is(TokenParen, "(") {
				return nil, p.errorf(p.peek.Pos, "constant %s takes no arguments", name)
			}
			if err := p.nextToken(); err != nil {
				return nil, err
			}
			return &Constant{Name: name, Pos: tok.Pos}, nil
		}
		return nil, p.errorf(tok.Pos, "unknown identifier %q", tok.Text)

	case TokenParen:
		if tok.Text == ")" {
			return nil, p.errorf(tok.Pos, "missing operand before ')'")
		}
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()
		if err := p.nextToken(); err != nil { // Skip (
			return nil, err
		}
		inner, err := p.parseOrExpression()
		if err != nil {
			return nil, err
		}
		if !p.current.is(TokenParen, ")") {
			return nil, p.errorf(p.current.Pos, "expected ')' to close '(' at %d", tok.Pos)
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return inner, nil

	case TokenEOF:
		return nil, p.errorf(tok.Pos, "missing operand at end of expression")

	default:
		return nil, p.errorf(tok.Pos, "missing operand before %s", tok)
	}
}

// parseFunctionCall handles calls like sin(x); exactly one argument is allowed.
func (p *Parser) parseFunctionCall(name string) (Node, error) {
	pos := p.current.Pos
	if !p.peek.is(TokenParen, "(") {
		return nil, p.errorf(p.peek.Pos, "expected '(' after %s", name)
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if err := p.nextToken(); err != nil { // Skip function name
		return nil, err
	}
	if err := p.nextToken(); err != nil { // Skip (
		return nil, err
	}
	if p.current.is(TokenParen, ")") {
		return nil, p.errorf(p.current.Pos, "%s expects one argument", name)
	}

	arg, err := p.parseOrExpression()
	if err != nil {
		return nil, err
	}
	if !p.current.is(TokenParen, ")") {
		if p.current.Kind == TokenEOF {
			return nil, p.errorf(p.current.Pos, "missing ')' after %s argument", name)
		}
		return nil, p.errorf(p.current.Pos, "%s expects one argument", name)
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	return &Call{Func: name, Arg: arg, Pos: pos}, nil
}

// numberLiteral converts a literal token in the parser's base.
func (p *Parser) numberLiteral(tok Token) (*NumberLit, error) {
	lit := &NumberLit{Text: tok.Text, Pos: tok.Pos}

	i, err := ParseInt(tok.Text, p.base)
	if err == nil {
		lit.Value, lit.Int, lit.Exact = float64(i), i, true
		return lit, nil
	}
	if p.base != BaseDEC {
		if !isRangeError(err) {
			return nil, p.errorf(tok.Pos, "invalid %s literal %q", p.base, tok.Text)
		}
		lit.OutOfRange = true
		return lit, nil
	}

	value, err := strconv.ParseFloat(tok.Text, 64)
	if err != nil && !isRangeError(err) {
		return nil, p.errorf(tok.Pos, "invalid number %q", tok.Text)
	}
	lit.Value = value
	return lit, nil
}

// isRangeError reports a ParseFloat overflow, which still yields ±Inf or 0
// like the native number reader does.
func isRangeError(err error) bool {
	numErr, ok := err.(*strconv.NumError)
	return ok && numErr.Err == strconv.ErrRange
}
