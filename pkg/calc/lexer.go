package calc

import (
	"strings"
	"unicode"
)

// Lexer tokenizes calculator expressions lazily. Literals are read in the
// base given at construction.
type Lexer struct {
	input   []rune
	pos     int // index of the rune after char
	char    rune
	base    Base
	pending []Token
}

// NewLexer creates a lexer over input reading literals in base.
func NewLexer(input string, base Base) *Lexer {
	l := &Lexer{input: []rune(input), base: base}
	l.readChar()
	return l
}

// Tokenize scans the whole input, including the trailing EOF token.
func Tokenize(input string, base Base) ([]Token, error) {
	l := NewLexer(input, base)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens, nil
		}
	}
}

// readChar advances the lexer position
func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		l.char = 0
	} else {
		l.char = l.input[l.pos]
	}
	l.pos++
}

// peekChar returns the next character without advancing
func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) offset() int {
	return l.pos - 1
}

func (l *Lexer) atEOF() bool {
	return l.pos > len(l.input)
}

func (l *Lexer) skipWhitespace() {
	for !l.atEOF() && unicode.IsSpace(l.char) {
		l.readChar()
	}
}

func (l *Lexer) operator(text string, pos int) Token {
	l.readChar()
	return Token{Kind: TokenOperator, Text: text, Pos: pos}
}

// Next returns the next token. After the EOF token it keeps returning EOF.
func (l *Lexer) Next() (Token, error) {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok, nil
	}

	l.skipWhitespace()
	pos := l.offset()
	if l.atEOF() {
		return Token{Kind: TokenEOF, Pos: len(l.input)}, nil
	}

	switch l.char {
	case '+', '-', '*', '/', '^', '%', '~', ',':
		return l.operator(string(l.char), pos), nil
	case '×':
		return l.operator("*", pos), nil
	case '÷':
		return l.operator("/", pos), nil
	case '<', '>':
		if l.peekChar() != l.char {
			return Token{}, &LexError{Pos: pos, Char: l.char, Reason: "incomplete shift operator"}
		}
		text := string([]rune{l.char, l.char})
		l.readChar()
		return l.operator(text, pos), nil
	case '²', '³':
		// The display glyphs expand to "^2" and "^3".
		exp := "2"
		if l.char == '³' {
			exp = "3"
		}
		l.pending = append(l.pending, Token{Kind: TokenNumber, Text: exp, Pos: pos})
		return l.operator("^", pos), nil
	case '(', ')':
		text := string(l.char)
		l.readChar()
		return Token{Kind: TokenParen, Text: text, Pos: pos}, nil
	case 'π':
		l.readChar()
		return Token{Kind: TokenIdentifier, Text: "pi", Pos: pos}, nil
	case '√':
		l.readChar()
		return Token{Kind: TokenIdentifier, Text: "sqrt", Pos: pos}, nil
	}

	switch {
	case isDigit(l.char) || l.char == '.':
		return l.readNumber()
	case l.base == BaseHEX && l.char >= 'A' && l.char <= 'F':
		return l.readWord(true), nil
	case isLetter(l.char):
		return l.readWord(false), nil
	}

	return Token{}, &LexError{Pos: pos, Char: l.char, Reason: "unexpected character"}
}

// readNumber reads a numeric literal. Decimal literals may carry one decimal
// point and an exponent; other bases only take their own digits.
func (l *Lexer) readNumber() (Token, error) {
	if l.base != BaseDEC {
		return l.readBaseNumber()
	}

	start := l.offset()
	digits := 0
	for isDigit(l.char) {
		l.readChar()
		digits++
	}
	if l.char == '.' {
		l.readChar()
		for isDigit(l.char) {
			l.readChar()
			digits++
		}
		if l.char == '.' {
			return Token{}, &LexError{Pos: l.offset(), Char: '.', Reason: "second decimal point in number"}
		}
	}
	if digits == 0 {
		return Token{}, &LexError{Pos: start, Char: '.', Reason: "decimal point without digits"}
	}

	// Exponent, as produced when formatting very large or very small results.
	if l.char == 'e' || l.char == 'E' {
		next := l.peekChar()
		signed := next == '+' || next == '-'
		if isDigit(next) || (signed && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1])) {
			l.readChar()
			if signed {
				l.readChar()
			}
			for isDigit(l.char) {
				l.readChar()
			}
		}
	}

	return Token{Kind: TokenNumber, Text: string(l.input[start:l.offset()]), Pos: start}, nil
}

func (l *Lexer) readBaseNumber() (Token, error) {
	start := l.offset()
	for isDigit(l.char) || (l.base == BaseHEX && l.char >= 'A' && l.char <= 'F') {
		if !l.base.IsDigit(l.char) {
			return Token{}, &LexError{Pos: l.offset(), Char: l.char, Reason: "digit not valid in " + l.base.String()}
		}
		l.readChar()
	}
	if l.char == '.' {
		return Token{}, &LexError{Pos: l.offset(), Char: '.', Reason: "fractional literal in " + l.base.String()}
	}
	if start == l.offset() {
		return Token{}, &LexError{Pos: start, Char: l.char, Reason: "expected digit"}
	}
	return Token{Kind: TokenNumber, Text: string(l.input[start:l.offset()]), Pos: start}, nil
}

// readWord reads an identifier, keyword or (in HEX) a letter-led literal.
func (l *Lexer) readWord(hexCandidate bool) Token {
	start := l.offset()
	for isLetter(l.char) || isDigit(l.char) || l.char == '_' {
		l.readChar()
	}
	word := string(l.input[start:l.offset()])

	upper := strings.ToUpper(word)
	if _, ok := keywords[upper]; ok {
		return Token{Kind: TokenOperator, Text: upper, Pos: start}
	}
	if hexCandidate && isHexLiteral(word) {
		return Token{Kind: TokenNumber, Text: word, Pos: start}
	}
	return Token{Kind: TokenIdentifier, Text: word, Pos: start}
}

func isHexLiteral(word string) bool {
	for _, r := range word {
		if !BaseHEX.IsDigit(r) {
			return false
		}
	}
	return word != ""
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isLetter(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
