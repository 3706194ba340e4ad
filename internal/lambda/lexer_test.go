package lambda

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexerTokens(t *testing.T) {
	input := `x => x.A >= 1.5 && !y.B || $n != "s\"q" // trailing
new { K = 'v' } [1, 2e3] % <= < > = -`

	want := []struct {
		typ     TokenType
		literal string
	}{
		{IDENT, "x"}, {ARROW, "=>"}, {IDENT, "x"}, {DOT, "."}, {IDENT, "A"},
		{GE, ">="}, {FLOAT, "1.5"}, {AND, "&&"}, {NOT, "!"}, {IDENT, "y"},
		{DOT, "."}, {IDENT, "B"}, {OR, "||"}, {DOLLAR, "$"}, {IDENT, "n"},
		{NE, "!="}, {STRING, `s"q`},
		{NEW, "new"}, {LBRACE, "{"}, {IDENT, "K"}, {ASSIGN, "="}, {STRING, "v"},
		{RBRACE, "}"}, {LBRACKET, "["}, {INT, "1"}, {COMMA, ","}, {FLOAT, "2e3"},
		{RBRACKET, "]"}, {PERCENT, "%"}, {LE, "<="}, {LT, "<"}, {GT, ">"},
		{ASSIGN, "="}, {MINUS, "-"}, {EOF, ""},
	}

	l := NewLexer(input)
	for i, w := range want {
		tok := l.NextToken()
		assert.Equal(t, w.typ, tok.Type, "token %d (%q)", i, tok.Literal)
		assert.Equal(t, w.literal, tok.Literal, "token %d", i)
	}
	assert.Equal(t, EOF, l.NextToken().Type, "EOF is sticky")
}

func TestLexerPositions(t *testing.T) {
	l := NewLexer("a\n  bb")

	first := l.NextToken()
	assert.Equal(t, 1, first.Line)
	assert.Equal(t, 1, first.Column)

	second := l.NextToken()
	assert.Equal(t, 2, second.Line)
	assert.Equal(t, 3, second.Column)
}

func TestLexerIllegal(t *testing.T) {
	tests := []struct {
		input   string
		literal string
	}{
		{`"open`, `"open`},
		{"&", "&"},
		{"|", "|"},
		{"#", "#"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := NewLexer(tt.input).NextToken()
			assert.Equal(t, ILLEGAL, tok.Type)
			assert.Equal(t, tt.literal, tok.Literal)
		})
	}
}

func TestTokenTypeString(t *testing.T) {
	assert.Equal(t, "=>", ARROW.String())
	assert.Equal(t, "IDENT", IDENT.String())
	assert.Equal(t, "TokenType(999)", TokenType(999).String())
}
