package sqlexpr

import (
	"strings"
	"unicode"
)

// Lexer tokenizes a single SQL expression.
type Lexer struct {
	input   string
	pos     int  // position of ch in input
	readPos int  // next position to read
	ch      byte // current char, 0 at EOF
}

// NewLexer creates a lexer over the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.advance()
	return l
}

func (l *Lexer) advance() {
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peek() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// Next returns the next token.
func (l *Lexer) Next() Token {
	l.skipSpaceAndComments()

	switch {
	case l.ch == 0:
		return Token{Type: TOKEN_EOF}
	case l.ch == '\'':
		lit, ok := l.readString()
		if !ok {
			return Token{Type: TOKEN_ILLEGAL, Literal: lit}
		}
		return Token{Type: TOKEN_STRING, Literal: lit}
	case l.ch == '"':
		lit, ok := l.readQuotedIdent()
		if !ok {
			return Token{Type: TOKEN_ILLEGAL, Literal: lit}
		}
		return Token{Type: TOKEN_IDENT, Literal: lit, Quoted: true}
	case isIdentStart(l.ch):
		lit := l.readIdent()
		return Token{Type: lookupKeyword(strings.ToLower(lit)), Literal: lit}
	case isDigit(l.ch):
		return Token{Type: TOKEN_NUMBER, Literal: l.readNumber()}
	}

	tok := l.readOperator()
	return tok
}

// readOperator consumes a one- or two-character operator.
func (l *Lexer) readOperator() Token {
	one := func(t TokenType) Token {
		tok := Token{Type: t, Literal: string(l.ch)}
		l.advance()
		return tok
	}
	two := func(t TokenType, lit string) Token {
		l.advance()
		l.advance()
		return Token{Type: t, Literal: lit}
	}

	switch l.ch {
	case '=':
		if l.peek() == '=' {
			return two(TOKEN_DBLEQ, "==")
		}
		return one(TOKEN_EQ)
	case '<':
		switch l.peek() {
		case '=':
			return two(TOKEN_LE, "<=")
		case '>':
			return two(TOKEN_NE, "<>")
		}
		return one(TOKEN_LT)
	case '>':
		if l.peek() == '=' {
			return two(TOKEN_GE, ">=")
		}
		return one(TOKEN_GT)
	case '!':
		if l.peek() == '=' {
			return two(TOKEN_NE, "!=")
		}
		return one(TOKEN_ILLEGAL)
	case '|':
		if l.peek() == '|' {
			return two(TOKEN_DPIPE, "||")
		}
		return one(TOKEN_ILLEGAL)
	case ':':
		switch l.peek() {
		case ':':
			return two(TOKEN_DCOLON, "::")
		case '=':
			return two(TOKEN_COLONEQ, ":=")
		}
		return one(TOKEN_ILLEGAL)
	case '/':
		if l.peek() == '/' {
			return two(TOKEN_DSLASH, "//")
		}
		return one(TOKEN_SLASH)
	case '+':
		return one(TOKEN_PLUS)
	case '-':
		return one(TOKEN_MINUS)
	case '*':
		return one(TOKEN_STAR)
	case '%':
		return one(TOKEN_MOD)
	case '~':
		return one(TOKEN_TILDE)
	case '(':
		return one(TOKEN_LPAREN)
	case ')':
		return one(TOKEN_RPAREN)
	case '[':
		return one(TOKEN_LBRACKET)
	case ']':
		return one(TOKEN_RBRACKET)
	case ',':
		return one(TOKEN_COMMA)
	case '.':
		return one(TOKEN_DOT)
	default:
		return one(TOKEN_ILLEGAL)
	}
}

// skipSpaceAndComments skips whitespace, -- line comments and /* */ blocks.
func (l *Lexer) skipSpaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.advance()
		}
		if l.ch == '-' && l.peek() == '-' {
			for l.ch != '\n' && l.ch != 0 {
				l.advance()
			}
			continue
		}
		if l.ch == '/' && l.peek() == '*' {
			l.advance()
			l.advance()
			for l.ch != 0 {
				if l.ch == '*' && l.peek() == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
			continue
		}
		return
	}
}

// readString reads a single-quoted string literal, unescaping doubled quote pairs.
// The second return is false when the literal is unterminated.
func (l *Lexer) readString() (string, bool) {
	l.advance() // opening quote
	var b strings.Builder
	for l.ch != 0 {
		if l.ch == '\'' {
			if l.peek() == '\'' {
				b.WriteByte('\'')
				l.advance()
				l.advance()
				continue
			}
			l.advance() // closing quote
			return b.String(), true
		}
		b.WriteByte(l.ch)
		l.advance()
	}
	return b.String(), false
}

// readQuotedIdent reads a double-quoted identifier, unescaping "" pairs.
// The second return is false when the identifier is unterminated.
func (l *Lexer) readQuotedIdent() (string, bool) {
	l.advance() // opening quote
	var b strings.Builder
	for l.ch != 0 {
		if l.ch == '"' {
			if l.peek() == '"' {
				b.WriteByte('"')
				l.advance()
				l.advance()
				continue
			}
			l.advance() // closing quote
			return b.String(), true
		}
		b.WriteByte(l.ch)
		l.advance()
	}
	return b.String(), false
}

func (l *Lexer) readIdent() string {
	start := l.pos
	for isIdentStart(l.ch) || isDigit(l.ch) {
		l.advance()
	}
	return l.input[start:l.pos]
}

// readNumber reads an integer, decimal or scientific literal.
func (l *Lexer) readNumber() string {
	start := l.pos
	for isDigit(l.ch) {
		l.advance()
	}
	if l.ch == '.' && isDigit(l.peek()) {
		l.advance()
		for isDigit(l.ch) {
			l.advance()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.advance()
		if l.ch == '+' || l.ch == '-' {
			l.advance()
		}
		for isDigit(l.ch) {
			l.advance()
		}
	}
	return l.input[start:l.pos]
}

func isIdentStart(ch byte) bool {
	return ch == '_' || unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
