package query

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenType represents the type of a token
type TokenType int

const (
	// Keywords
	TokenSelect TokenType = iota
	TokenFrom
	TokenWhere
	TokenAnd
	TokenOr
	TokenNot
	TokenAs
	TokenLimit
	TokenOffset
	TokenIn
	TokenLike
	TokenBetween
	TokenIs
	TokenNull
	TokenCast

	// Operators
	TokenEqual        // =
	TokenNotEqual     // != or <>
	TokenLess         // <
	TokenGreater      // >
	TokenLessEqual    // <=
	TokenGreaterEqual // >=
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenPercent      // %

	// Literals
	TokenString
	TokenNumber
	TokenIdent
	TokenBool

	// Delimiters
	TokenComma      // ,
	TokenDot        // .
	TokenLeftParen  // (
	TokenRightParen // )

	// Special
	TokenEOF
	TokenError
)

var tokenNames = map[TokenType]string{
	TokenSelect:       "SELECT",
	TokenFrom:         "FROM",
	TokenWhere:        "WHERE",
	TokenAnd:          "AND",
	TokenOr:           "OR",
	TokenNot:          "NOT",
	TokenAs:           "AS",
	TokenLimit:        "LIMIT",
	TokenOffset:       "OFFSET",
	TokenIn:           "IN",
	TokenLike:         "LIKE",
	TokenBetween:      "BETWEEN",
	TokenIs:           "IS",
	TokenNull:         "NULL",
	TokenCast:         "CAST",
	TokenEqual:        "=",
	TokenNotEqual:     "!=",
	TokenLess:         "<",
	TokenGreater:      ">",
	TokenLessEqual:    "<=",
	TokenGreaterEqual: ">=",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenPercent:      "%",
	TokenString:       "string",
	TokenNumber:       "number",
	TokenIdent:        "identifier",
	TokenBool:         "boolean",
	TokenComma:        ",",
	TokenDot:          ".",
	TokenLeftParen:    "(",
	TokenRightParen:   ")",
	TokenEOF:          "end of input",
	TokenError:        "invalid token",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// IsComparison reports whether t is one of = != < > <= >=.
func (t TokenType) IsComparison() bool {
	switch t {
	case TokenEqual, TokenNotEqual, TokenLess, TokenGreater, TokenLessEqual, TokenGreaterEqual:
		return true
	}
	return false
}

// IsArithmetic reports whether t is one of + - * / %.
func (t TokenType) IsArithmetic() bool {
	switch t {
	case TokenPlus, TokenMinus, TokenStar, TokenSlash, TokenPercent:
		return true
	}
	return false
}

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Pos   int // byte offset in the query
}

// Statement is a parsed SELECT statement:
//
//	SELECT <items> FROM <table> [alias] [WHERE <expr>] [LIMIT n [OFFSET m]]
type Statement struct {
	SelectList []SelectItem
	TableName  string
	TableAlias string
	Filter     Expr   // nil without WHERE
	Limit      *int64 // nil without LIMIT
	Offset     *int64 // nil without OFFSET
}

// SelectItem is one entry of the SELECT list. Star items expand to all
// columns of the table (StarTable holds the qualifier of t.*).
type SelectItem struct {
	Expr      Expr
	Alias     string
	Star      bool
	StarTable string
}

// Expr is a node of the expression AST.
type Expr interface {
	String() string
	exprNode()
}

// ColumnRef references a column, optionally qualified by table name or alias.
type ColumnRef struct {
	Table  string
	Column string
}

// Literal holds an int64, float64, string, bool or nil (NULL) value.
type Literal struct {
	Value interface{}
}

// BinaryExpr covers AND, OR, comparisons and arithmetic.
type BinaryExpr struct {
	Left     Expr
	Operator TokenType
	Right    Expr
}

// UnaryExpr is NOT or unary minus.
type UnaryExpr struct {
	Operator TokenType
	Expr     Expr
}

// IsNullExpr represents: expr IS [NOT] NULL
type IsNullExpr struct {
	Expr   Expr
	Negate bool
}

// InExpr represents: expr [NOT] IN (v1, v2, ...)
type InExpr struct {
	Expr   Expr
	List   []Expr
	Negate bool
}

// BetweenExpr represents: expr [NOT] BETWEEN low AND high
type BetweenExpr struct {
	Expr   Expr
	Low    Expr
	High   Expr
	Negate bool
}

// LikeExpr represents: expr [NOT] LIKE 'pattern'
type LikeExpr struct {
	Expr    Expr
	Pattern string
	Negate  bool
}

// CastExpr represents: CAST(expr AS type)
type CastExpr struct {
	Expr     Expr
	TypeName string
}

// FunctionCall represents a scalar function invocation
type FunctionCall struct {
	Name string
	Args []Expr
}

func (*ColumnRef) exprNode()    {}
func (*Literal) exprNode()      {}
func (*BinaryExpr) exprNode()   {}
func (*UnaryExpr) exprNode()    {}
func (*IsNullExpr) exprNode()   {}
func (*InExpr) exprNode()       {}
func (*BetweenExpr) exprNode()  {}
func (*LikeExpr) exprNode()     {}
func (*CastExpr) exprNode()     {}
func (*FunctionCall) exprNode() {}

func (c *ColumnRef) String() string {
	if c.Table != "" {
		return c.Table + "." + c.Column
	}
	return c.Column
}

func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left, b.Operator, b.Right)
}

func (u *UnaryExpr) String() string {
	if u.Operator == TokenNot {
		return fmt.Sprintf("(NOT %s)", u.Expr)
	}
	return fmt.Sprintf("(-%s)", u.Expr)
}

func (i *IsNullExpr) String() string {
	if i.Negate {
		return fmt.Sprintf("(%s IS NOT NULL)", i.Expr)
	}
	return fmt.Sprintf("(%s IS NULL)", i.Expr)
}

func (i *InExpr) String() string {
	items := make([]string, len(i.List))
	for n, e := range i.List {
		items[n] = e.String()
	}
	op := "IN"
	if i.Negate {
		op = "NOT IN"
	}
	return fmt.Sprintf("(%s %s (%s))", i.Expr, op, strings.Join(items, ", "))
}

func (b *BetweenExpr) String() string {
	op := "BETWEEN"
	if b.Negate {
		op = "NOT BETWEEN"
	}
	return fmt.Sprintf("(%s %s %s AND %s)", b.Expr, op, b.Low, b.High)
}

func (l *LikeExpr) String() string {
	op := "LIKE"
	if l.Negate {
		op = "NOT LIKE"
	}
	return fmt.Sprintf("(%s %s %s)", l.Expr, op, (&Literal{Value: l.Pattern}).String())
}

func (c *CastExpr) String() string {
	return fmt.Sprintf("CAST(%s AS %s)", c.Expr, strings.ToUpper(c.TypeName))
}

func (f *FunctionCall) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", strings.ToUpper(f.Name), strings.Join(args, ", "))
}
