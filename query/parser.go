package query

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is matched by every error Parse returns.
var ErrSyntax = errors.New("syntax error")

// SyntaxError describes malformed SQL at a byte offset of the query.
type SyntaxError struct {
	Pos int
	Msg string
	Err error // optional validation cause
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

// Is matches ErrSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// unsupportedClauses are words that start clauses outside the supported
// subset. They are reported instead of being taken as a table alias.
var unsupportedClauses = map[string]bool{
	"GROUP":     true,
	"ORDER":     true,
	"HAVING":    true,
	"JOIN":      true,
	"INNER":     true,
	"LEFT":      true,
	"RIGHT":     true,
	"FULL":      true,
	"CROSS":     true,
	"UNION":     true,
	"INTERSECT": true,
	"EXCEPT":    true,
	"WINDOW":    true,
}

// Parser parses SQL queries into AST
type Parser struct {
	tokens       []Token
	pos          int
	depthCounter *ExpressionDepthCounter
}

// NewParser creates a new parser
func NewParser(tokens []Token) *Parser {
	return &Parser{
		tokens:       tokens,
		depthCounter: NewExpressionDepthCounter(),
	}
}

// current returns the current token
func (p *Parser) current() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos]
}

// peek returns the next token without advancing
func (p *Parser) peek() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Type: TokenEOF}
	}
	return p.tokens[p.pos+1]
}

// advance moves to the next token
func (p *Parser) advance() {
	p.pos++
}

// errorf builds a SyntaxError positioned at the current token.
func (p *Parser) errorf(format string, args ...interface{}) error {
	tok := p.current()
	msg := fmt.Sprintf(format, args...)
	if tok.Type == TokenError {
		msg = fmt.Sprintf("invalid input %q", tok.Value)
	}
	return &SyntaxError{Pos: tok.Pos, Msg: msg}
}

// expect checks if current token matches expected type and advances
func (p *Parser) expect(tokType TokenType) error {
	if p.current().Type != tokType {
		return p.errorf("expected %v, got %s", tokType, describe(p.current()))
	}
	p.advance()
	return nil
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdent, TokenNumber, TokenBool:
		return fmt.Sprintf("%q", tok.Value)
	case TokenString:
		return fmt.Sprintf("string '%s'", tok.Value)
	}
	return strings.ToUpper(tok.Value)
}

// Parse parses a single SELECT statement.
func Parse(sql string) (*Statement, error) {
	if err := ValidateQuery(sql); err != nil {
		return nil, &SyntaxError{Msg: err.Error(), Err: err}
	}

	tokens := Tokenize(sql)
	if err := ValidateTokens(tokens); err != nil {
		return nil, &SyntaxError{Msg: err.Error(), Err: err}
	}

	parser := NewParser(tokens)
	stmt, err := parser.parseStatement()
	if err != nil {
		return nil, err
	}

	if parser.current().Type != TokenEOF {
		if word := strings.ToUpper(parser.current().Value); unsupportedClauses[word] {
			return nil, parser.errorf("%s is not supported", word)
		}
		return nil, parser.errorf("unexpected %s after query", describe(parser.current()))
	}

	return stmt, nil
}

// parseStatement parses: SELECT items FROM table [alias] [WHERE expr] [LIMIT n [OFFSET m]]
func (p *Parser) parseStatement() (*Statement, error) {
	if err := p.expect(TokenSelect); err != nil {
		return nil, err
	}

	selectList, err := p.parseSelectList()
	if err != nil {
		return nil, err
	}

	if err := p.expect(TokenFrom); err != nil {
		return nil, err
	}

	stmt := &Statement{SelectList: selectList}

	if p.current().Type != TokenIdent {
		return nil, p.errorf("expected table name, got %s", describe(p.current()))
	}
	stmt.TableName = p.current().Value
	if err := p.validateIdentifier(); err != nil {
		return nil, err
	}
	p.advance()

	// Optional alias: [AS] alias
	if p.current().Type == TokenAs {
		p.advance()
		if p.current().Type != TokenIdent {
			return nil, p.errorf("expected alias after AS, got %s", describe(p.current()))
		}
	}
	if p.current().Type == TokenIdent && !unsupportedClauses[strings.ToUpper(p.current().Value)] {
		if err := p.validateIdentifier(); err != nil {
			return nil, err
		}
		stmt.TableAlias = p.current().Value
		p.advance()
	}

	if p.current().Type == TokenWhere {
		p.advance()
		filter, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Filter = filter
	}

	if p.current().Type == TokenLimit {
		p.advance()
		limit, err := p.parseCount("LIMIT")
		if err != nil {
			return nil, err
		}
		stmt.Limit = &limit

		if p.current().Type == TokenOffset {
			p.advance()
			offset, err := p.parseCount("OFFSET")
			if err != nil {
				return nil, err
			}
			stmt.Offset = &offset
		}
	}

	return stmt, nil
}

// parseCount parses the non-negative integer after LIMIT or OFFSET.
func (p *Parser) parseCount(clause string) (int64, error) {
	tok := p.current()
	if tok.Type != TokenNumber {
		return 0, p.errorf("%s requires a non-negative integer, got %s", clause, describe(tok))
	}
	n, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil || n < 0 {
		return 0, p.errorf("%s requires a non-negative integer, got %s", clause, tok.Value)
	}
	p.advance()
	return n, nil
}

func (p *Parser) parseSelectList() ([]SelectItem, error) {
	var items []SelectItem

	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)

		if p.current().Type != TokenComma {
			break
		}
		p.advance()
	}

	return items, nil
}

func (p *Parser) parseSelectItem() (SelectItem, error) {
	// * or t.*
	if p.current().Type == TokenStar {
		p.advance()
		return SelectItem{Star: true}, nil
	}
	if p.current().Type == TokenIdent && p.peek().Type == TokenDot &&
		p.pos+2 < len(p.tokens) && p.tokens[p.pos+2].Type == TokenStar {
		table := p.current().Value
		p.pos += 3
		return SelectItem{Star: true, StarTable: table}, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: expr}

	switch p.current().Type {
	case TokenAs:
		p.advance()
		if p.current().Type != TokenIdent {
			return SelectItem{}, p.errorf("expected alias after AS, got %s", describe(p.current()))
		}
		fallthrough
	case TokenIdent:
		if err := p.validateIdentifier(); err != nil {
			return SelectItem{}, err
		}
		item.Alias = p.current().Value
		p.advance()
	}

	return item, nil
}

func (p *Parser) validateIdentifier() error {
	if err := ValidateIdentifier(p.current().Value); err != nil {
		return &SyntaxError{Pos: p.current().Pos, Msg: err.Error(), Err: err}
	}
	return nil
}
