package query

import (
	"strconv"
	"strings"
)

// parseExpr parses a full expression. It is the only entry point that
// counts nesting depth; parentheses and function arguments come back here.
func (p *Parser) parseExpr() (Expr, error) {
	if err := p.depthCounter.Enter(); err != nil {
		return nil, &SyntaxError{Pos: p.current().Pos, Msg: err.Error(), Err: err}
	}
	defer p.depthCounter.Exit()

	return p.parseOr()
}

// parseOr parses OR expressions (lowest precedence)
func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: TokenOr, Right: right}
	}

	return left, nil
}

// parseAnd parses AND expressions (higher precedence than OR)
func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.current().Type == TokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: TokenAnd, Right: right}
	}

	return left, nil
}

func (p *Parser) parseNot() (Expr, error) {
	if p.current().Type == TokenNot {
		p.advance()
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Operator: TokenNot, Expr: expr}, nil
	}
	return p.parseComparison()
}

// parseComparison parses comparisons and the IS/IN/BETWEEN/LIKE predicates.
func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	if op := p.current().Type; op.IsComparison() {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Left: left, Operator: op, Right: right}, nil
	}

	switch p.current().Type {
	case TokenIs:
		return p.parseIsNull(left)
	case TokenNot:
		// Could be "NOT IN", "NOT LIKE", "NOT BETWEEN"
		switch p.peek().Type {
		case TokenIn, TokenLike, TokenBetween:
			p.advance()
			return p.parsePredicate(left, true)
		}
		return nil, p.errorf("expected IN, LIKE or BETWEEN after NOT")
	case TokenIn, TokenLike, TokenBetween:
		return p.parsePredicate(left, false)
	}

	return left, nil
}

func (p *Parser) parsePredicate(left Expr, negate bool) (Expr, error) {
	switch p.current().Type {
	case TokenIn:
		return p.parseIn(left, negate)
	case TokenLike:
		return p.parseLike(left, negate)
	default:
		return p.parseBetween(left, negate)
	}
}

// parseIsNull parses: IS [NOT] NULL
func (p *Parser) parseIsNull(left Expr) (Expr, error) {
	p.advance() // IS
	negate := false
	if p.current().Type == TokenNot {
		negate = true
		p.advance()
	}
	if err := p.expect(TokenNull); err != nil {
		return nil, err
	}
	return &IsNullExpr{Expr: left, Negate: negate}, nil
}

// parseIn parses: IN (v1, v2, ...)
func (p *Parser) parseIn(left Expr, negate bool) (Expr, error) {
	p.advance() // IN
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	if p.current().Type == TokenSelect {
		return nil, p.errorf("subqueries are not supported")
	}

	var list []Expr
	for {
		if len(list) >= MaxInListLength {
			return nil, &SyntaxError{Pos: p.current().Pos, Msg: ErrInListTooLong.Error(), Err: ErrInListTooLong}
		}
		item, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		list = append(list, item)

		if p.current().Type != TokenComma {
			break
		}
		p.advance()
	}

	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return &InExpr{Expr: left, List: list, Negate: negate}, nil
}

// parseLike parses: LIKE 'pattern'
func (p *Parser) parseLike(left Expr, negate bool) (Expr, error) {
	p.advance() // LIKE
	if p.current().Type != TokenString {
		return nil, p.errorf("LIKE requires a string pattern, got %s", describe(p.current()))
	}
	pattern := p.current().Value
	p.advance()
	return &LikeExpr{Expr: left, Pattern: pattern, Negate: negate}, nil
}

// parseBetween parses: BETWEEN low AND high
func (p *Parser) parseBetween(left Expr, negate bool) (Expr, error) {
	p.advance() // BETWEEN
	low, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenAnd); err != nil {
		return nil, err
	}
	high, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &BetweenExpr{Expr: left, Low: low, High: high, Negate: negate}, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}

	for op := p.current().Type; op == TokenPlus || op == TokenMinus; op = p.current().Type {
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: op, Right: right}
	}

	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for op := p.current().Type; op == TokenStar || op == TokenSlash || op == TokenPercent; op = p.current().Type {
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Operator: op, Right: right}
	}

	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	switch p.current().Type {
	case TokenMinus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		// Fold negative numeric literals so -1 stays a literal.
		if lit, ok := operand.(*Literal); ok {
			switch v := lit.Value.(type) {
			case int64:
				return &Literal{Value: -v}, nil
			case float64:
				return &Literal{Value: -v}, nil
			}
		}
		return &UnaryExpr{Operator: TokenMinus, Expr: operand}, nil
	case TokenPlus:
		p.advance()
		return p.parseUnary()
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (Expr, error) {
	tok := p.current()

	switch tok.Type {
	case TokenNumber:
		p.advance()
		return parseNumber(tok)
	case TokenString:
		p.advance()
		return &Literal{Value: tok.Value}, nil
	case TokenBool:
		p.advance()
		return &Literal{Value: strings.EqualFold(tok.Value, "true")}, nil
	case TokenNull:
		p.advance()
		return &Literal{Value: nil}, nil
	case TokenCast:
		return p.parseCast()
	case TokenLeftParen:
		p.advance()
		if p.current().Type == TokenSelect {
			return nil, p.errorf("subqueries are not supported")
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TokenRightParen); err != nil {
			return nil, err
		}
		return expr, nil
	case TokenIdent:
		if err := p.validateIdentifier(); err != nil {
			return nil, err
		}
		p.advance()

		switch p.current().Type {
		case TokenLeftParen:
			return p.parseFunctionCall(tok.Value)
		case TokenDot:
			p.advance()
			if p.current().Type != TokenIdent {
				return nil, p.errorf("expected column name after %s., got %s", tok.Value, describe(p.current()))
			}
			if err := p.validateIdentifier(); err != nil {
				return nil, err
			}
			column := p.current().Value
			p.advance()
			return &ColumnRef{Table: tok.Value, Column: column}, nil
		}
		return &ColumnRef{Column: tok.Value}, nil
	}

	return nil, p.errorf("expected expression, got %s", describe(tok))
}

func parseNumber(tok Token) (Expr, error) {
	if !strings.ContainsAny(tok.Value, ".eE") {
		if v, err := strconv.ParseInt(tok.Value, 10, 64); err == nil {
			return &Literal{Value: v}, nil
		}
	}
	v, err := strconv.ParseFloat(tok.Value, 64)
	if err != nil {
		return nil, &SyntaxError{Pos: tok.Pos, Msg: "invalid number " + tok.Value}
	}
	return &Literal{Value: v}, nil
}

// parseCast parses: CAST(expr AS type)
func (p *Parser) parseCast() (Expr, error) {
	p.advance() // CAST
	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenAs); err != nil {
		return nil, err
	}
	if p.current().Type != TokenIdent {
		return nil, p.errorf("expected type name, got %s", describe(p.current()))
	}
	typeName := p.current().Value
	p.advance()
	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return &CastExpr{Expr: expr, TypeName: typeName}, nil
}

// parseFunctionCall parses: name(arg, ...). The name token is consumed.
func (p *Parser) parseFunctionCall(name string) (Expr, error) {
	p.advance() // (
	call := &FunctionCall{Name: name}

	if p.current().Type == TokenRightParen {
		p.advance()
		return call, nil
	}
	if p.current().Type == TokenStar {
		return nil, p.errorf("aggregate functions are not supported")
	}

	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		if p.current().Type != TokenComma {
			break
		}
		p.advance()
	}

	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return call, nil
}
