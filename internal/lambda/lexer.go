package lambda

import (
	"fmt"
	"strings"
)

// TokenType identifies a lexical token of the lambda language.
type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF

	IDENT  // Project, x, Name
	INT    // 42
	FLOAT  // 3.5
	STRING // "text" or 'text'
	TRUE   // true
	FALSE  // false
	NULL   // null
	NEW    // new

	DOLLAR   // $
	DOT      // .
	COMMA    // ,
	LPAREN   // (
	RPAREN   // )
	LBRACE   // {
	RBRACE   // }
	LBRACKET // [
	RBRACKET // ]
	ARROW    // =>
	ASSIGN   // =

	EQ  // ==
	NE  // !=
	LT  // <
	LE  // <=
	GT  // >
	GE  // >=
	AND // &&
	OR  // ||
	NOT // !

	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %
)

var tokenNames = map[TokenType]string{
	ILLEGAL: "ILLEGAL", EOF: "EOF", IDENT: "IDENT", INT: "INT", FLOAT: "FLOAT",
	STRING: "STRING", TRUE: "TRUE", FALSE: "FALSE", NULL: "NULL", NEW: "NEW",
	DOLLAR: "$", DOT: ".", COMMA: ",", LPAREN: "(", RPAREN: ")", LBRACE: "{",
	RBRACE: "}", LBRACKET: "[", RBRACKET: "]", ARROW: "=>", ASSIGN: "=",
	EQ: "==", NE: "!=", LT: "<", LE: "<=", GT: ">", GE: ">=", AND: "&&",
	OR: "||", NOT: "!", PLUS: "+", MINUS: "-", STAR: "*", SLASH: "/", PERCENT: "%",
}

// String returns the token type name or its punctuation.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

var keywords = map[string]TokenType{
	"true":  TRUE,
	"false": FALSE,
	"null":  NULL,
	"new":   NEW,
}

// Token is one lexical token with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Line    int
	Column  int
}

// Lexer tokenizes lambda text.
type Lexer struct {
	input        string
	position     int
	readPosition int
	ch           byte
	line         int
	column       int
}

// NewLexer creates a lexer over input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++

	if l.ch == '\n' {
		l.line++
		l.column = 0
	} else {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// NextToken returns the next token. At end of input it returns EOF forever.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	tok := Token{Line: l.line, Column: l.column}
	two := func(next byte, double, single TokenType) {
		if l.peekChar() == next {
			tok.Literal = string([]byte{l.ch, next})
			tok.Type = double
			l.readChar()
			return
		}
		tok.Literal = string(l.ch)
		tok.Type = single
	}

	switch l.ch {
	case 0:
		tok.Type = EOF
		return tok
	case '"', '\'':
		quote := l.ch
		s, ok := l.readString(quote)
		tok.Literal = s
		tok.Type = STRING
		if !ok {
			tok.Type = ILLEGAL
			tok.Literal = string(quote) + s
		}
		return tok
	case '=':
		switch l.peekChar() {
		case '>':
			two('>', ARROW, ASSIGN)
		default:
			two('=', EQ, ASSIGN)
		}
	case '!':
		two('=', NE, NOT)
	case '<':
		two('=', LE, LT)
	case '>':
		two('=', GE, GT)
	case '&':
		two('&', AND, ILLEGAL)
	case '|':
		two('|', OR, ILLEGAL)
	case '$':
		tok.Type, tok.Literal = DOLLAR, "$"
	case '.':
		tok.Type, tok.Literal = DOT, "."
	case ',':
		tok.Type, tok.Literal = COMMA, ","
	case '(':
		tok.Type, tok.Literal = LPAREN, "("
	case ')':
		tok.Type, tok.Literal = RPAREN, ")"
	case '{':
		tok.Type, tok.Literal = LBRACE, "{"
	case '}':
		tok.Type, tok.Literal = RBRACE, "}"
	case '[':
		tok.Type, tok.Literal = LBRACKET, "["
	case ']':
		tok.Type, tok.Literal = RBRACKET, "]"
	case '+':
		tok.Type, tok.Literal = PLUS, "+"
	case '-':
		tok.Type, tok.Literal = MINUS, "-"
	case '*':
		tok.Type, tok.Literal = STAR, "*"
	case '/':
		tok.Type, tok.Literal = SLASH, "/"
	case '%':
		tok.Type, tok.Literal = PERCENT, "%"
	default:
		switch {
		case isDigit(l.ch):
			return l.readNumber(tok)
		case isLetter(l.ch):
			tok.Literal = l.readIdentifier()
			tok.Type = IDENT
			if kw, ok := keywords[tok.Literal]; ok {
				tok.Type = kw
			}
			return tok
		default:
			tok.Type, tok.Literal = ILLEGAL, string(l.ch)
		}
	}

	l.readChar()
	return tok
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		return
	}
}

// readString reads a quoted string. It reports false when the string is
// not terminated.
func (l *Lexer) readString(quote byte) (string, bool) {
	var sb strings.Builder
	l.readChar()

	for l.ch != quote {
		if l.ch == 0 {
			return sb.String(), false
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case 0:
				return sb.String(), false
			default:
				sb.WriteByte(l.ch)
			}
		} else {
			sb.WriteByte(l.ch)
		}
		l.readChar()
	}

	l.readChar()
	return sb.String(), true
}

func (l *Lexer) readNumber(tok Token) Token {
	start := l.position
	tok.Type = INT
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		tok.Type = FLOAT
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			tok.Type = FLOAT
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	tok.Literal = l.input[start:l.position]
	return tok
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
