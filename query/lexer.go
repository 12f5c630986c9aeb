package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes SQL query strings
type Lexer struct {
	input string
	pos   int // offset of the next rune
	start int // offset of ch
	ch    rune
}

// NewLexer creates a new lexer
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character
func (l *Lexer) readChar() {
	l.start = l.pos
	if l.pos >= len(l.input) {
		l.ch = 0
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.pos:])
	l.ch = r
	l.pos += size
}

// peekChar looks at the next character without advancing
func (l *Lexer) peekChar() rune {
	if l.pos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.pos:])
	return r
}

func (l *Lexer) skipWhitespace() {
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			// line comment
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readQuoted reads a quoted string or identifier. A doubled quote stands for
// itself. ok is false when the input ends before the closing quote.
func (l *Lexer) readQuoted(quote rune) (string, bool) {
	var result strings.Builder
	l.readChar() // skip opening quote

	for {
		switch l.ch {
		case 0:
			if l.start >= len(l.input) {
				return result.String(), false
			}
		case quote:
			if l.peekChar() != quote {
				l.readChar() // skip closing quote
				return result.String(), true
			}
			l.readChar()
		}
		result.WriteRune(l.ch)
		l.readChar()
	}
}

// readNumber reads an integer or decimal literal with optional exponent.
func (l *Lexer) readNumber() string {
	begin := l.start
	for unicode.IsDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && unicode.IsDigit(l.peekChar()) {
		l.readChar()
		for unicode.IsDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if unicode.IsDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for unicode.IsDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return l.input[begin:l.start]
}

func (l *Lexer) readIdentifier() string {
	begin := l.start
	for unicode.IsLetter(l.ch) || unicode.IsDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[begin:l.start]
}

// single returns a one-character token and advances past it.
func (l *Lexer) single(t TokenType) Token {
	tok := Token{Type: t, Value: string(l.ch), Pos: l.start}
	l.readChar()
	return tok
}

// double returns a two-character token and advances past it.
func (l *Lexer) double(t TokenType) Token {
	pos := l.start
	first := l.ch
	l.readChar()
	tok := Token{Type: t, Value: string(first) + string(l.ch), Pos: pos}
	l.readChar()
	return tok
}

// NextToken returns the next token
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	pos := l.start
	switch l.ch {
	case 0:
		return Token{Type: TokenEOF, Pos: pos}
	case '=':
		return l.single(TokenEqual)
	case '!':
		if l.peekChar() == '=' {
			return l.double(TokenNotEqual)
		}
		return l.single(TokenError)
	case '<':
		switch l.peekChar() {
		case '=':
			return l.double(TokenLessEqual)
		case '>':
			return l.double(TokenNotEqual)
		}
		return l.single(TokenLess)
	case '>':
		if l.peekChar() == '=' {
			return l.double(TokenGreaterEqual)
		}
		return l.single(TokenGreater)
	case '+':
		return l.single(TokenPlus)
	case '-':
		return l.single(TokenMinus)
	case '*':
		return l.single(TokenStar)
	case '/':
		return l.single(TokenSlash)
	case '%':
		return l.single(TokenPercent)
	case ',':
		return l.single(TokenComma)
	case '(':
		return l.single(TokenLeftParen)
	case ')':
		return l.single(TokenRightParen)
	case ';':
		// a trailing semicolon ends the statement
		l.readChar()
		l.skipWhitespace()
		if l.ch == 0 {
			return Token{Type: TokenEOF, Pos: pos}
		}
		return Token{Type: TokenError, Value: ";", Pos: pos}
	case '\'':
		value, ok := l.readQuoted('\'')
		if !ok {
			return Token{Type: TokenError, Value: "unterminated string", Pos: pos}
		}
		return Token{Type: TokenString, Value: value, Pos: pos}
	case '"':
		value, ok := l.readQuoted('"')
		if !ok || value == "" {
			return Token{Type: TokenError, Value: "invalid quoted identifier", Pos: pos}
		}
		return Token{Type: TokenIdent, Value: value, Pos: pos}
	case '.':
		if unicode.IsDigit(l.peekChar()) {
			l.readChar()
			return Token{Type: TokenNumber, Value: "0." + l.readNumber(), Pos: pos}
		}
		return l.single(TokenDot)
	}

	switch {
	case unicode.IsDigit(l.ch):
		return Token{Type: TokenNumber, Value: l.readNumber(), Pos: pos}
	case unicode.IsLetter(l.ch) || l.ch == '_':
		value := l.readIdentifier()
		return Token{Type: identifierType(value), Value: value, Pos: pos}
	}
	return l.single(TokenError)
}

var keywords = map[string]TokenType{
	"SELECT":  TokenSelect,
	"FROM":    TokenFrom,
	"WHERE":   TokenWhere,
	"AND":     TokenAnd,
	"OR":      TokenOr,
	"NOT":     TokenNot,
	"AS":      TokenAs,
	"LIMIT":   TokenLimit,
	"OFFSET":  TokenOffset,
	"IN":      TokenIn,
	"LIKE":    TokenLike,
	"BETWEEN": TokenBetween,
	"IS":      TokenIs,
	"NULL":    TokenNull,
	"CAST":    TokenCast,
	"TRUE":    TokenBool,
	"FALSE":   TokenBool,
}

// identifierType determines if an identifier is a keyword
func identifierType(ident string) TokenType {
	if tokType, ok := keywords[strings.ToUpper(ident)]; ok {
		return tokType
	}
	return TokenIdent
}

// Tokenize returns all tokens from the input, ending with EOF or the first
// error token.
func Tokenize(input string) []Token {
	lexer := NewLexer(input)
	var tokens []Token

	for {
		tok := lexer.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			break
		}
	}

	return tokens
}
