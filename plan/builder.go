package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/pqsql/catalog"
	"github.com/vegasq/pqsql/datatype"
	"github.com/vegasq/pqsql/query"
)

var (
	// ErrUnresolvedReference is returned for unknown tables, columns and
	// functions.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrTypeCheck is returned when operand types do not fit an operator,
	// function or CAST.
	ErrTypeCheck = errors.New("type check failed")

	// ErrPlanInvariantViolation is returned when a rewrite breaks a plan
	// invariant, such as changing the output schema.
	ErrPlanInvariantViolation = errors.New("plan invariant violation")
)

// Builder turns parsed statements into logical plans by resolving names
// against a catalog and type checking every expression.
type Builder struct {
	catalog   *catalog.Catalog
	functions *query.FunctionRegistry
}

// NewBuilder creates a builder. A nil registry uses the global one.
func NewBuilder(cat *catalog.Catalog, functions *query.FunctionRegistry) *Builder {
	if functions == nil {
		functions = query.GetGlobalRegistry()
	}
	return &Builder{catalog: cat, functions: functions}
}

// Build creates the logical plan of stmt:
//
//	Limit? -> Projection -> Filter? -> Scan
func (b *Builder) Build(stmt *query.Statement) (LogicalPlan, error) {
	table, err := b.catalog.Lookup(stmt.TableName)
	if err != nil {
		return nil, fmt.Errorf("%w: table %q", ErrUnresolvedReference, stmt.TableName)
	}

	scan := NewScan(table, stmt.TableAlias, nil)
	scope := &scope{table: table.Name, alias: stmt.TableAlias, schema: scan.Schema()}

	var input LogicalPlan = scan
	if stmt.Filter != nil {
		predicate, err := b.resolve(stmt.Filter, scope)
		if err != nil {
			return nil, err
		}
		if !isBoolean(predicate.Type()) {
			return nil, fmt.Errorf("%w: WHERE clause must be boolean, got %s", ErrTypeCheck, predicate.Type())
		}
		input = NewFilter(input, predicate)
	}

	var exprs []Expr
	var names []string
	for _, item := range stmt.SelectList {
		if item.Star {
			if item.StarTable != "" && !scope.matches(item.StarTable) {
				return nil, fmt.Errorf("%w: table %q in %s.*", ErrUnresolvedReference, item.StarTable, item.StarTable)
			}
			for i, f := range scope.schema.Fields() {
				exprs = append(exprs, &Column{Index: i, Name: f.Name, DataType: f.Type})
				names = append(names, f.Name)
			}
			continue
		}

		expr, err := b.resolve(item.Expr, scope)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, expr)
		names = append(names, outputName(item))
	}

	var root LogicalPlan = NewProjection(input, exprs, names)
	if stmt.Limit != nil || stmt.Offset != nil {
		fetch := int64(-1)
		if stmt.Limit != nil {
			fetch = *stmt.Limit
		}
		var offset int64
		if stmt.Offset != nil {
			offset = *stmt.Offset
		}
		root = NewLimit(root, offset, fetch)
	}
	return root, nil
}

// outputName labels a select item: the alias, the bare column name, or the
// SQL text of the expression.
func outputName(item query.SelectItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	if ref, ok := item.Expr.(*query.ColumnRef); ok {
		return ref.Column
	}
	return item.Expr.String()
}

// scope is the single table visible to expressions.
type scope struct {
	table  string
	alias  string
	schema *arrow.Schema
}

func (s *scope) matches(qualifier string) bool {
	if s.alias != "" {
		return qualifier == s.alias
	}
	return qualifier == s.table
}

// column resolves a name: an exact match wins, otherwise a unique
// case-insensitive match.
func (s *scope) column(ref *query.ColumnRef) (*Column, error) {
	if ref.Table != "" && !s.matches(ref.Table) {
		return nil, fmt.Errorf("%w: table %q in %s", ErrUnresolvedReference, ref.Table, ref)
	}

	if idx := s.schema.FieldIndices(ref.Column); len(idx) == 1 {
		f := s.schema.Field(idx[0])
		return &Column{Index: idx[0], Name: f.Name, DataType: f.Type}, nil
	}

	found := -1
	for i, f := range s.schema.Fields() {
		if strings.EqualFold(f.Name, ref.Column) {
			if found >= 0 {
				return nil, fmt.Errorf("%w: column %q is ambiguous", ErrUnresolvedReference, ref.Column)
			}
			found = i
		}
	}
	if found < 0 {
		return nil, fmt.Errorf("%w: column %q not found in table %q", ErrUnresolvedReference, ref.Column, s.table)
	}
	f := s.schema.Field(found)
	return &Column{Index: found, Name: f.Name, DataType: f.Type}, nil
}

func (b *Builder) resolve(e query.Expr, s *scope) (Expr, error) {
	switch e := e.(type) {
	case *query.ColumnRef:
		return s.column(e)

	case *query.Literal:
		return literal(e.Value), nil

	case *query.CastExpr:
		inner, err := b.resolve(e.Expr, s)
		if err != nil {
			return nil, err
		}
		to, err := datatype.Parse(e.TypeName)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTypeCheck, err)
		}
		if !datatype.CanCast(inner.Type(), to) {
			return nil, fmt.Errorf("%w: cannot cast %s to %s", ErrTypeCheck, inner.Type(), to)
		}
		return &Cast{Expr: inner, To: to}, nil

	case *query.UnaryExpr:
		inner, err := b.resolve(e.Expr, s)
		if err != nil {
			return nil, err
		}
		if e.Operator == query.TokenNot {
			if !isBoolean(inner.Type()) {
				return nil, fmt.Errorf("%w: NOT requires a boolean, got %s", ErrTypeCheck, inner.Type())
			}
			return &Not{Expr: inner}, nil
		}
		if !datatype.IsNumeric(inner.Type()) {
			return nil, fmt.Errorf("%w: unary minus requires a number, got %s", ErrTypeCheck, inner.Type())
		}
		return &Negate{Expr: coerce(inner, arithmeticType(inner.Type()))}, nil

	case *query.BinaryExpr:
		return b.resolveBinary(e, s)

	case *query.IsNullExpr:
		inner, err := b.resolve(e.Expr, s)
		if err != nil {
			return nil, err
		}
		return &IsNull{Expr: inner, Negate: e.Negate}, nil

	case *query.InExpr:
		inner, err := b.resolve(e.Expr, s)
		if err != nil {
			return nil, err
		}
		list := make([]Expr, len(e.List))
		common := inner.Type()
		for i, item := range e.List {
			if list[i], err = b.resolve(item, s); err != nil {
				return nil, err
			}
			if common, err = datatype.Common(common, list[i].Type()); err != nil {
				return nil, fmt.Errorf("%w: %s: %w", ErrTypeCheck, e, err)
			}
		}
		for i := range list {
			list[i] = coerce(list[i], common)
		}
		return &InList{Expr: coerce(inner, common), List: list, Negate: e.Negate}, nil

	case *query.BetweenExpr:
		// x BETWEEN a AND b is x >= a AND x <= b
		low := &query.BinaryExpr{Left: e.Expr, Operator: query.TokenGreaterEqual, Right: e.Low}
		high := &query.BinaryExpr{Left: e.Expr, Operator: query.TokenLessEqual, Right: e.High}
		var rewritten query.Expr = &query.BinaryExpr{Left: low, Operator: query.TokenAnd, Right: high}
		if e.Negate {
			rewritten = &query.UnaryExpr{Operator: query.TokenNot, Expr: rewritten}
		}
		return b.resolve(rewritten, s)

	case *query.LikeExpr:
		inner, err := b.resolve(e.Expr, s)
		if err != nil {
			return nil, err
		}
		if !datatype.IsString(inner.Type()) && !datatype.IsNull(inner.Type()) {
			return nil, fmt.Errorf("%w: LIKE requires a string, got %s", ErrTypeCheck, inner.Type())
		}
		return NewLike(inner, e.Pattern, e.Negate)

	case *query.FunctionCall:
		return b.resolveFunction(e, s)
	}

	return nil, fmt.Errorf("%w: unsupported expression %T", ErrTypeCheck, e)
}

func (b *Builder) resolveBinary(e *query.BinaryExpr, s *scope) (Expr, error) {
	left, err := b.resolve(e.Left, s)
	if err != nil {
		return nil, err
	}
	right, err := b.resolve(e.Right, s)
	if err != nil {
		return nil, err
	}

	switch {
	case e.Operator == query.TokenAnd || e.Operator == query.TokenOr:
		if !isBoolean(left.Type()) || !isBoolean(right.Type()) {
			return nil, fmt.Errorf("%w: %v requires booleans, got %s and %s", ErrTypeCheck, e.Operator, left.Type(), right.Type())
		}
		return &BoolOp{Op: e.Operator, Left: left, Right: right}, nil

	case e.Operator.IsComparison():
		common, err := datatype.Common(left.Type(), right.Type())
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTypeCheck, e, err)
		}
		return &Compare{Op: e.Operator, Left: coerce(left, common), Right: coerce(right, common)}, nil

	case e.Operator.IsArithmetic():
		lt, rt := left.Type(), right.Type()
		if !(datatype.IsNumeric(lt) || datatype.IsNull(lt)) || !(datatype.IsNumeric(rt) || datatype.IsNull(rt)) {
			return nil, fmt.Errorf("%w: %v requires numbers, got %s and %s", ErrTypeCheck, e.Operator, lt, rt)
		}
		common, err := datatype.Common(lt, rt)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrTypeCheck, e, err)
		}
		result := arithmeticType(common)
		return &Arith{Op: e.Operator, Left: coerce(left, result), Right: coerce(right, result), DataType: result}, nil
	}

	return nil, fmt.Errorf("%w: unsupported operator %v", ErrTypeCheck, e.Operator)
}

func (b *Builder) resolveFunction(e *query.FunctionCall, s *scope) (Expr, error) {
	fn, ok := b.functions.Get(e.Name)
	if !ok {
		return nil, fmt.Errorf("%w: function %s", ErrUnresolvedReference, strings.ToUpper(e.Name))
	}
	if err := query.CheckArity(fn, len(e.Args)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTypeCheck, err)
	}

	args := make([]Expr, len(e.Args))
	types := make([]arrow.DataType, len(e.Args))
	for i, a := range e.Args {
		arg, err := b.resolve(a, s)
		if err != nil {
			return nil, err
		}
		args[i] = arg
		types[i] = arg.Type()
	}

	result, err := fn.ReturnType(types)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTypeCheck, err)
	}
	return &ScalarFunction{Func: fn, Args: args, DataType: result}, nil
}

// literal types a parsed constant.
func literal(v interface{}) *Literal {
	switch v.(type) {
	case int64:
		return &Literal{Value: v, DataType: arrow.PrimitiveTypes.Int64}
	case float64:
		return &Literal{Value: v, DataType: arrow.PrimitiveTypes.Float64}
	case string:
		return &Literal{Value: v, DataType: arrow.BinaryTypes.String}
	case bool:
		return &Literal{Value: v, DataType: boolType}
	}
	return &Literal{Value: nil, DataType: datatype.Null}
}

// coerce wraps e in a cast unless it already has type t.
func coerce(e Expr, t arrow.DataType) Expr {
	if arrow.TypeEqual(e.Type(), t) {
		return e
	}
	return &Cast{Expr: e, To: t}
}

// arithmeticType widens integer results to int64 and float results to
// float64.
func arithmeticType(t arrow.DataType) arrow.DataType {
	if datatype.IsInteger(t) {
		return arrow.PrimitiveTypes.Int64
	}
	return arrow.PrimitiveTypes.Float64
}

func isBoolean(t arrow.DataType) bool {
	return t.ID() == arrow.BOOL || datatype.IsNull(t)
}
