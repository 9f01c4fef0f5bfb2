package calc

import "fmt"

// TokenKind is the lexical class of a Token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenNumber
	TokenIdentifier
	TokenOperator
	TokenParen
)

var tokenKindNames = map[TokenKind]string{
	TokenEOF:        "EOF",
	TokenNumber:     "Number",
	TokenIdentifier: "Identifier",
	TokenOperator:   "Operator",
	TokenParen:      "Paren",
}

func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is one lexical token. Operator tokens carry the canonical operator
// text (glyph aliases and keyword spellings are normalized by the lexer).
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

func (t Token) String() string {
	if t.Kind == TokenEOF {
		return "end of input"
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Text)
}

func (t Token) is(kind TokenKind, text string) bool {
	return t.Kind == kind && t.Text == text
}

// keywords are the word operators, matched case-insensitively.
var keywords = map[string]Op{
	"OR":  OpOr,
	"AND": OpAnd,
	"XOR": OpXor,
	"NOT": OpNot,
	"MOD": OpMod,
}
