package calc

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		base     Base
		expected []Token
	}{
		{
			name:  "simple addition",
			input: "5+3",
			expected: []Token{
				{Kind: TokenNumber, Text: "5", Pos: 0},
				{Kind: TokenOperator, Text: "+", Pos: 1},
				{Kind: TokenNumber, Text: "3", Pos: 2},
				{Kind: TokenEOF, Pos: 3},
			},
		},
		{
			name:  "decimal forms and whitespace",
			input: " 1.5 * .5 ",
			expected: []Token{
				{Kind: TokenNumber, Text: "1.5", Pos: 1},
				{Kind: TokenOperator, Text: "*", Pos: 5},
				{Kind: TokenNumber, Text: ".5", Pos: 7},
				{Kind: TokenEOF, Pos: 10},
			},
		},
		{
			name:  "trailing decimal point",
			input: "5.",
			expected: []Token{
				{Kind: TokenNumber, Text: "5.", Pos: 0},
				{Kind: TokenEOF, Pos: 2},
			},
		},
		{
			name:  "exponent literal",
			input: "1e+21",
			expected: []Token{
				{Kind: TokenNumber, Text: "1e+21", Pos: 0},
				{Kind: TokenEOF, Pos: 5},
			},
		},
		{
			name:  "e constant after number is not an exponent",
			input: "2e",
			expected: []Token{
				{Kind: TokenNumber, Text: "2", Pos: 0},
				{Kind: TokenIdentifier, Text: "e", Pos: 1},
				{Kind: TokenEOF, Pos: 2},
			},
		},
		{
			name:  "glyph aliases",
			input: "2×π÷√4",
			expected: []Token{
				{Kind: TokenNumber, Text: "2", Pos: 0},
				{Kind: TokenOperator, Text: "*", Pos: 1},
				{Kind: TokenIdentifier, Text: "pi", Pos: 2},
				{Kind: TokenOperator, Text: "/", Pos: 3},
				{Kind: TokenIdentifier, Text: "sqrt", Pos: 4},
				{Kind: TokenNumber, Text: "4", Pos: 5},
				{Kind: TokenEOF, Pos: 6},
			},
		},
		{
			name:  "square glyph expands to power",
			input: "3²",
			expected: []Token{
				{Kind: TokenNumber, Text: "3", Pos: 0},
				{Kind: TokenOperator, Text: "^", Pos: 1},
				{Kind: TokenNumber, Text: "2", Pos: 1},
				{Kind: TokenEOF, Pos: 2},
			},
		},
		{
			name:  "keywords are case-insensitive",
			input: "5 and 3",
			expected: []Token{
				{Kind: TokenNumber, Text: "5", Pos: 0},
				{Kind: TokenOperator, Text: "AND", Pos: 2},
				{Kind: TokenNumber, Text: "3", Pos: 6},
				{Kind: TokenEOF, Pos: 7},
			},
		},
		{
			name:  "shifts",
			input: "1<<3>>1",
			expected: []Token{
				{Kind: TokenNumber, Text: "1", Pos: 0},
				{Kind: TokenOperator, Text: "<<", Pos: 1},
				{Kind: TokenNumber, Text: "3", Pos: 3},
				{Kind: TokenOperator, Text: ">>", Pos: 4},
				{Kind: TokenNumber, Text: "1", Pos: 6},
				{Kind: TokenEOF, Pos: 7},
			},
		},
		{
			name:  "hex literals next to keywords",
			input: "FF AND A",
			base:  BaseHEX,
			expected: []Token{
				{Kind: TokenNumber, Text: "FF", Pos: 0},
				{Kind: TokenOperator, Text: "AND", Pos: 3},
				{Kind: TokenNumber, Text: "A", Pos: 7},
				{Kind: TokenEOF, Pos: 8},
			},
		},
		{
			name:  "hex digits after decimal digits",
			input: "1F",
			base:  BaseHEX,
			expected: []Token{
				{Kind: TokenNumber, Text: "1F", Pos: 0},
				{Kind: TokenEOF, Pos: 2},
			},
		},
		{
			name:  "function call",
			input: "sin(0)",
			expected: []Token{
				{Kind: TokenIdentifier, Text: "sin", Pos: 0},
				{Kind: TokenParen, Text: "(", Pos: 3},
				{Kind: TokenNumber, Text: "0", Pos: 4},
				{Kind: TokenParen, Text: ")", Pos: 5},
				{Kind: TokenEOF, Pos: 6},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tokenize(tt.input, tt.base)
			if err != nil {
				t.Fatalf("Tokenize(%q) error: %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		base  Base
		pos   int
		char  rune
	}{
		{name: "second decimal point", input: "1.2.3", pos: 3, char: '.'},
		{name: "lone decimal point", input: ".", pos: 0, char: '.'},
		{name: "unknown character", input: "2 $ 3", pos: 2, char: '$'},
		{name: "single angle bracket", input: "1 < 2", pos: 2, char: '<'},
		{name: "binary digit out of range", input: "102", base: BaseBIN, pos: 2, char: '2'},
		{name: "octal digit out of range", input: "78", base: BaseOCT, pos: 1, char: '8'},
		{name: "fraction outside decimal", input: "1.5", base: BaseHEX, pos: 1, char: '.'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input, tt.base)
			var lexErr *LexError
			if !errors.As(err, &lexErr) {
				t.Fatalf("Tokenize(%q) error = %v, want *LexError", tt.input, err)
			}
			if lexErr.Pos != tt.pos || lexErr.Char != tt.char {
				t.Errorf("Tokenize(%q) = LexError{Pos: %d, Char: %q}, want {Pos: %d, Char: %q}",
					tt.input, lexErr.Pos, lexErr.Char, tt.pos, tt.char)
			}
			if got := ErrorKindOf(err); got != KindLex {
				t.Errorf("ErrorKindOf = %q, want %q", got, KindLex)
			}
		})
	}
}

func TestLexerKeepsReturningEOF(t *testing.T) {
	l := NewLexer("1", BaseDEC)
	for i := 0; i < 3; i++ {
		if _, err := l.Next(); err != nil {
			t.Fatal(err)
		}
	}
	tok, err := l.Next()
	if err != nil || tok.Kind != TokenEOF {
		t.Errorf("Next() after end = %v, %v; want EOF", tok, err)
	}
}
