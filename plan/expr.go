package plan

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/pqsql/datatype"
	"github.com/vegasq/pqsql/query"
)

// Row gives expressions access to the values of the input row.
type Row interface {
	Value(i int) (interface{}, error)
}

// emptyRow is the input of expressions without column references.
type emptyRow struct{}

func (emptyRow) Value(i int) (interface{}, error) {
	return nil, fmt.Errorf("%w: column #%d read during constant evaluation", ErrPlanInvariantViolation, i)
}

// Expr is a resolved, typed expression. Column references are positions in
// the schema of the plan node the expression is evaluated against.
type Expr interface {
	// Type returns the result type.
	Type() arrow.DataType
	// Children returns the direct sub-expressions.
	Children() []Expr
	// WithChildren returns a copy of the expression with new children.
	WithChildren(children []Expr) Expr
	// Eval evaluates the expression on one row. NULL is nil.
	Eval(row Row) (interface{}, error)
	String() string
}

// Column reads a column of the input row.
type Column struct {
	Index    int
	Name     string
	DataType arrow.DataType
}

// Literal is a constant. Value uses the scalar representation of DataType.
type Literal struct {
	Value    interface{}
	DataType arrow.DataType
}

// Cast converts its input to To.
type Cast struct {
	Expr Expr
	To   arrow.DataType
}

// Compare applies a comparison operator to operands of one common type.
type Compare struct {
	Op          query.TokenType
	Left, Right Expr
}

// BoolOp is AND or OR with three-valued logic.
type BoolOp struct {
	Op          query.TokenType
	Left, Right Expr
}

// Not negates a boolean.
type Not struct {
	Expr Expr
}

// Negate is unary minus.
type Negate struct {
	Expr Expr
}

// Arith applies + - * / % to operands already cast to DataType.
type Arith struct {
	Op          query.TokenType
	Left, Right Expr
	DataType    arrow.DataType
}

// IsNull tests for NULL.
type IsNull struct {
	Expr   Expr
	Negate bool
}

// InList tests membership in a list of values of the operand's type.
type InList struct {
	Expr   Expr
	List   []Expr
	Negate bool
}

// Like matches a string against a LIKE pattern.
type Like struct {
	Expr    Expr
	Pattern string
	Negate  bool
	re      *regexp.Regexp
}

// ScalarFunction calls a registered function.
type ScalarFunction struct {
	Func     query.Function
	Args     []Expr
	DataType arrow.DataType
}

var boolType = arrow.FixedWidthTypes.Boolean

// NewLike compiles pattern and returns the predicate.
func NewLike(expr Expr, pattern string, negate bool) (*Like, error) {
	re, err := datatype.LikePattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: LIKE pattern %q: %w", ErrTypeCheck, pattern, err)
	}
	return &Like{Expr: expr, Pattern: pattern, Negate: negate, re: re}, nil
}

func (c *Column) Type() arrow.DataType         { return c.DataType }
func (l *Literal) Type() arrow.DataType        { return l.DataType }
func (c *Cast) Type() arrow.DataType           { return c.To }
func (c *Compare) Type() arrow.DataType        { return boolType }
func (b *BoolOp) Type() arrow.DataType         { return boolType }
func (n *Not) Type() arrow.DataType            { return boolType }
func (n *Negate) Type() arrow.DataType         { return n.Expr.Type() }
func (a *Arith) Type() arrow.DataType          { return a.DataType }
func (i *IsNull) Type() arrow.DataType         { return boolType }
func (i *InList) Type() arrow.DataType         { return boolType }
func (l *Like) Type() arrow.DataType           { return boolType }
func (f *ScalarFunction) Type() arrow.DataType { return f.DataType }

func (c *Column) Children() []Expr         { return nil }
func (l *Literal) Children() []Expr        { return nil }
func (c *Cast) Children() []Expr           { return []Expr{c.Expr} }
func (c *Compare) Children() []Expr        { return []Expr{c.Left, c.Right} }
func (b *BoolOp) Children() []Expr         { return []Expr{b.Left, b.Right} }
func (n *Not) Children() []Expr            { return []Expr{n.Expr} }
func (n *Negate) Children() []Expr         { return []Expr{n.Expr} }
func (a *Arith) Children() []Expr          { return []Expr{a.Left, a.Right} }
func (i *IsNull) Children() []Expr         { return []Expr{i.Expr} }
func (i *InList) Children() []Expr         { return append([]Expr{i.Expr}, i.List...) }
func (l *Like) Children() []Expr           { return []Expr{l.Expr} }
func (f *ScalarFunction) Children() []Expr { return f.Args }

func (c *Column) WithChildren([]Expr) Expr  { cp := *c; return &cp }
func (l *Literal) WithChildren([]Expr) Expr { cp := *l; return &cp }
func (c *Cast) WithChildren(ch []Expr) Expr { return &Cast{Expr: ch[0], To: c.To} }
func (c *Compare) WithChildren(ch []Expr) Expr {
	return &Compare{Op: c.Op, Left: ch[0], Right: ch[1]}
}
func (b *BoolOp) WithChildren(ch []Expr) Expr {
	return &BoolOp{Op: b.Op, Left: ch[0], Right: ch[1]}
}
func (n *Not) WithChildren(ch []Expr) Expr    { return &Not{Expr: ch[0]} }
func (n *Negate) WithChildren(ch []Expr) Expr { return &Negate{Expr: ch[0]} }
func (a *Arith) WithChildren(ch []Expr) Expr {
	return &Arith{Op: a.Op, Left: ch[0], Right: ch[1], DataType: a.DataType}
}
func (i *IsNull) WithChildren(ch []Expr) Expr { return &IsNull{Expr: ch[0], Negate: i.Negate} }
func (i *InList) WithChildren(ch []Expr) Expr {
	return &InList{Expr: ch[0], List: append([]Expr(nil), ch[1:]...), Negate: i.Negate}
}
func (l *Like) WithChildren(ch []Expr) Expr {
	return &Like{Expr: ch[0], Pattern: l.Pattern, Negate: l.Negate, re: l.re}
}
func (f *ScalarFunction) WithChildren(ch []Expr) Expr {
	return &ScalarFunction{Func: f.Func, Args: append([]Expr(nil), ch...), DataType: f.DataType}
}

func (c *Column) Eval(row Row) (interface{}, error) {
	return row.Value(c.Index)
}

func (l *Literal) Eval(Row) (interface{}, error) {
	return l.Value, nil
}

func (c *Cast) Eval(row Row) (interface{}, error) {
	v, err := c.Expr.Eval(row)
	if err != nil || v == nil {
		return nil, err
	}
	return datatype.Cast(v, c.Expr.Type(), c.To)
}

func (c *Compare) Eval(row Row) (interface{}, error) {
	l, err := c.Left.Eval(row)
	if err != nil || l == nil {
		return nil, err
	}
	r, err := c.Right.Eval(row)
	if err != nil || r == nil {
		return nil, err
	}
	cmp, err := datatype.Compare(l, r)
	if err != nil {
		return nil, err
	}
	switch c.Op {
	case query.TokenEqual:
		return cmp == 0, nil
	case query.TokenNotEqual:
		return cmp != 0, nil
	case query.TokenLess:
		return cmp < 0, nil
	case query.TokenLessEqual:
		return cmp <= 0, nil
	case query.TokenGreater:
		return cmp > 0, nil
	case query.TokenGreaterEqual:
		return cmp >= 0, nil
	}
	return nil, fmt.Errorf("%w: unknown comparison %v", ErrPlanInvariantViolation, c.Op)
}

// Eval implements SQL three-valued logic: FALSE AND NULL is FALSE, TRUE OR
// NULL is TRUE, everything else involving NULL is NULL.
func (b *BoolOp) Eval(row Row) (interface{}, error) {
	l, err := b.Left.Eval(row)
	if err != nil {
		return nil, err
	}
	short := b.Op == query.TokenOr // value that decides the result alone
	if lb, ok := l.(bool); ok && lb == short {
		return short, nil
	}
	r, err := b.Right.Eval(row)
	if err != nil {
		return nil, err
	}
	if rb, ok := r.(bool); ok && rb == short {
		return short, nil
	}
	if l == nil || r == nil {
		return nil, nil
	}
	return !short, nil
}

func (n *Not) Eval(row Row) (interface{}, error) {
	v, err := n.Expr.Eval(row)
	if err != nil || v == nil {
		return nil, err
	}
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("%w: NOT applied to %T", ErrPlanInvariantViolation, v)
	}
	return !b, nil
}

func (n *Negate) Eval(row Row) (interface{}, error) {
	v, err := n.Expr.Eval(row)
	if err != nil || v == nil {
		return nil, err
	}
	switch x := v.(type) {
	case int64:
		return -x, nil
	case float64:
		return -x, nil
	}
	return nil, fmt.Errorf("%w: unary minus applied to %T", ErrPlanInvariantViolation, v)
}

func (a *Arith) Eval(row Row) (interface{}, error) {
	l, err := a.Left.Eval(row)
	if err != nil || l == nil {
		return nil, err
	}
	r, err := a.Right.Eval(row)
	if err != nil || r == nil {
		return nil, err
	}
	return datatype.Arithmetic(a.Op.String(), l, r, a.DataType)
}

func (i *IsNull) Eval(row Row) (interface{}, error) {
	v, err := i.Expr.Eval(row)
	if err != nil {
		return nil, err
	}
	return (v == nil) != i.Negate, nil
}

// Eval returns NULL when no element matches and the operand or any element
// is NULL.
func (i *InList) Eval(row Row) (interface{}, error) {
	v, err := i.Expr.Eval(row)
	if err != nil || v == nil {
		return nil, err
	}
	sawNull := false
	for _, e := range i.List {
		item, err := e.Eval(row)
		if err != nil {
			return nil, err
		}
		if item == nil {
			sawNull = true
			continue
		}
		cmp, err := datatype.Compare(v, item)
		if err != nil {
			return nil, err
		}
		if cmp == 0 {
			return !i.Negate, nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return i.Negate, nil
}

func (l *Like) Eval(row Row) (interface{}, error) {
	v, err := l.Expr.Eval(row)
	if err != nil || v == nil {
		return nil, err
	}
	var matched bool
	switch s := v.(type) {
	case string:
		matched = l.re.MatchString(s)
	case []byte:
		matched = l.re.Match(s)
	default:
		return nil, fmt.Errorf("%w: LIKE applied to %T", ErrPlanInvariantViolation, v)
	}
	return matched != l.Negate, nil
}

func (f *ScalarFunction) Eval(row Row) (interface{}, error) {
	args := make([]interface{}, len(f.Args))
	for i, a := range f.Args {
		v, err := a.Eval(row)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	out, err := f.Func.Evaluate(args)
	if err != nil || out == nil {
		return nil, err
	}
	// Functions may return a wider representation than the declared type.
	return datatype.Cast(out, nil, f.DataType)
}

func (c *Column) String() string { return c.Name }

func (l *Literal) String() string {
	if b, ok := l.Value.([]byte); ok {
		return fmt.Sprintf("X'%x'", b)
	}
	return (&query.Literal{Value: l.Value}).String()
}

func (c *Cast) String() string {
	return fmt.Sprintf("CAST(%s AS %s)", c.Expr, c.To)
}

func (c *Compare) String() string {
	return fmt.Sprintf("%s %s %s", operand(c.Left), c.Op, operand(c.Right))
}

func (b *BoolOp) String() string {
	return fmt.Sprintf("%s %s %s", operand(b.Left), b.Op, operand(b.Right))
}

func (n *Not) String() string    { return "NOT " + operand(n.Expr) }
func (n *Negate) String() string { return "-" + operand(n.Expr) }

func (a *Arith) String() string {
	return fmt.Sprintf("%s %s %s", operand(a.Left), a.Op, operand(a.Right))
}

func (i *IsNull) String() string {
	if i.Negate {
		return operand(i.Expr) + " IS NOT NULL"
	}
	return operand(i.Expr) + " IS NULL"
}

func (i *InList) String() string {
	items := make([]string, len(i.List))
	for n, e := range i.List {
		items[n] = e.String()
	}
	op := " IN "
	if i.Negate {
		op = " NOT IN "
	}
	return operand(i.Expr) + op + "(" + strings.Join(items, ", ") + ")"
}

func (l *Like) String() string {
	op := " LIKE "
	if l.Negate {
		op = " NOT LIKE "
	}
	return operand(l.Expr) + op + (&query.Literal{Value: l.Pattern}).String()
}

func (f *ScalarFunction) String() string {
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", f.Func.Name(), strings.Join(args, ", "))
}

// operand parenthesizes compound sub-expressions.
func operand(e Expr) string {
	switch e.(type) {
	case *Column, *Literal, *Cast, *ScalarFunction:
		return e.String()
	}
	return "(" + e.String() + ")"
}

// Transform rewrites e bottom-up: children first, then fn on the rebuilt
// node. Inputs are never modified.
func Transform(e Expr, fn func(Expr) (Expr, error)) (Expr, error) {
	children := e.Children()
	if len(children) > 0 {
		rewritten := make([]Expr, len(children))
		for i, c := range children {
			nc, err := Transform(c, fn)
			if err != nil {
				return nil, err
			}
			rewritten[i] = nc
		}
		e = e.WithChildren(rewritten)
	}
	return fn(e)
}

// ColumnIndexes adds the input positions referenced by e to dst.
func ColumnIndexes(e Expr, dst map[int]bool) {
	if c, ok := e.(*Column); ok {
		dst[c.Index] = true
		return
	}
	for _, child := range e.Children() {
		ColumnIndexes(child, dst)
	}
}

// IsConstant reports whether e reads no columns.
func IsConstant(e Expr) bool {
	used := make(map[int]bool)
	ColumnIndexes(e, used)
	return len(used) == 0
}
