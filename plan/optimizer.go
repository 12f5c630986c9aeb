package plan

import (
	"fmt"
	"sort"

	"github.com/vegasq/pqsql/query"
)

const andOp = query.TokenAnd

// Rule is one rewrite of the optimizer.
type Rule interface {
	Name() string
	Rewrite(p LogicalPlan) (LogicalPlan, error)
}

// Optimizer applies rules in order. After every rule the output schema must
// still equal the input schema.
type Optimizer struct {
	rules []Rule
}

// DefaultRules returns constant folding, filter simplification and
// projection pushdown, in that order.
func DefaultRules() []Rule {
	return []Rule{ConstantFolding{}, SimplifyFilters{}, PushDownProjection{}}
}

// NewOptimizer creates an optimizer. Without rules it uses DefaultRules.
func NewOptimizer(rules ...Rule) *Optimizer {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Optimizer{rules: rules}
}

// Optimize rewrites p. The input plan is left untouched.
func (o *Optimizer) Optimize(p LogicalPlan) (LogicalPlan, error) {
	want := p.Schema()
	for _, rule := range o.rules {
		next, err := rule.Rewrite(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rule.Name(), err)
		}
		if !sameSchema(want, next.Schema()) {
			return nil, fmt.Errorf("%w: rule %s changed the output schema from %s to %s",
				ErrPlanInvariantViolation, rule.Name(), want, next.Schema())
		}
		p = next
	}
	return p, nil
}

// mapExprs rebuilds the tree with fn applied to the expressions of every
// filter and projection.
func mapExprs(p LogicalPlan, fn func(Expr) (Expr, error)) (LogicalPlan, error) {
	switch n := p.(type) {
	case *Scan:
		return n, nil
	case *Filter:
		input, err := mapExprs(n.Input, fn)
		if err != nil {
			return nil, err
		}
		pred, err := fn(n.Predicate)
		if err != nil {
			return nil, err
		}
		return NewFilter(input, pred), nil
	case *Projection:
		input, err := mapExprs(n.Input, fn)
		if err != nil {
			return nil, err
		}
		exprs := make([]Expr, len(n.Exprs))
		for i, e := range n.Exprs {
			if exprs[i], err = fn(e); err != nil {
				return nil, err
			}
		}
		return n.withExprs(input, exprs), nil
	case *Limit:
		input, err := mapExprs(n.Input, fn)
		if err != nil {
			return nil, err
		}
		return NewLimit(input, n.Offset, n.Fetch), nil
	}
	return nil, fmt.Errorf("%w: unknown plan node %T", ErrPlanInvariantViolation, p)
}

// ConstantFolding evaluates sub-expressions that read no columns. Constants
// whose evaluation fails (1/0) are left for execution to report.
type ConstantFolding struct{}

func (ConstantFolding) Name() string { return "constant_folding" }

func (ConstantFolding) Rewrite(p LogicalPlan) (LogicalPlan, error) {
	return mapExprs(p, foldConstants)
}

func foldConstants(e Expr) (Expr, error) {
	return Transform(e, func(e Expr) (Expr, error) {
		if _, ok := e.(*Literal); ok || !IsConstant(e) {
			return e, nil
		}
		v, err := e.Eval(emptyRow{})
		if err != nil {
			return e, nil
		}
		return &Literal{Value: v, DataType: e.Type()}, nil
	})
}

// SimplifyFilters removes filters that are always TRUE, merges stacked
// filters into one conjunction and drops TRUE/FALSE operands of AND/OR.
type SimplifyFilters struct{}

func (SimplifyFilters) Name() string { return "simplify_filters" }

func (SimplifyFilters) Rewrite(p LogicalPlan) (LogicalPlan, error) {
	switch n := p.(type) {
	case *Scan:
		return n, nil
	case *Filter:
		input, err := SimplifyFilters{}.Rewrite(n.Input)
		if err != nil {
			return nil, err
		}
		pred, err := Transform(n.Predicate, simplifyBool)
		if err != nil {
			return nil, err
		}
		if isTrue(pred) {
			return input, nil
		}
		if inner, ok := input.(*Filter); ok {
			return NewFilter(inner.Input, &BoolOp{Op: andOp, Left: inner.Predicate, Right: pred}), nil
		}
		return NewFilter(input, pred), nil
	case *Projection:
		input, err := SimplifyFilters{}.Rewrite(n.Input)
		if err != nil {
			return nil, err
		}
		return n.withExprs(input, n.Exprs), nil
	case *Limit:
		input, err := SimplifyFilters{}.Rewrite(n.Input)
		if err != nil {
			return nil, err
		}
		return NewLimit(input, n.Offset, n.Fetch), nil
	}
	return nil, fmt.Errorf("%w: unknown plan node %T", ErrPlanInvariantViolation, p)
}

func simplifyBool(e Expr) (Expr, error) {
	op, ok := e.(*BoolOp)
	if !ok {
		return e, nil
	}
	// x AND TRUE = x, x OR FALSE = x
	identity := op.Op == andOp
	switch {
	case isBool(op.Right, identity):
		return op.Left, nil
	case isBool(op.Left, identity):
		return op.Right, nil
	// x AND FALSE = FALSE, x OR TRUE = TRUE
	case isBool(op.Left, !identity) || isBool(op.Right, !identity):
		return &Literal{Value: !identity, DataType: boolType}, nil
	}
	return e, nil
}

func isBool(e Expr, want bool) bool {
	lit, ok := e.(*Literal)
	if !ok {
		return false
	}
	b, ok := lit.Value.(bool)
	return ok && b == want
}

func isTrue(e Expr) bool { return isBool(e, true) }

// PushDownProjection narrows the scan to the columns the plan reads and
// renumbers the column references above it.
type PushDownProjection struct{}

func (PushDownProjection) Name() string { return "projection_pushdown" }

func (PushDownProjection) Rewrite(p LogicalPlan) (LogicalPlan, error) {
	all := make([]int, len(p.Schema().Fields()))
	for i := range all {
		all[i] = i
	}
	out, _, err := prune(p, all)
	return out, err
}

// prune rewrites p so that it produces at least the required output
// columns. It returns the new plan and the old-to-new position mapping of
// its output columns.
func prune(p LogicalPlan, required []int) (LogicalPlan, map[int]int, error) {
	switch n := p.(type) {
	case *Scan:
		if len(required) == 0 {
			// A scan still needs one column to count rows.
			required = []int{narrowestColumn(n)}
		}
		cols := n.Columns()
		projection := make([]int, len(required))
		mapping := make(map[int]int, len(required))
		for i, r := range required {
			projection[i] = cols[r]
			mapping[r] = i
		}
		return NewScan(n.Table, n.Alias, projection), mapping, nil

	case *Filter:
		used := toSet(required)
		ColumnIndexes(n.Predicate, used)
		input, mapping, err := prune(n.Input, sortedKeys(used))
		if err != nil {
			return nil, nil, err
		}
		pred, err := remap(n.Predicate, mapping)
		if err != nil {
			return nil, nil, err
		}
		return NewFilter(input, pred), mapping, nil

	case *Projection:
		used := make(map[int]bool)
		for _, e := range n.Exprs {
			ColumnIndexes(e, used)
		}
		input, mapping, err := prune(n.Input, sortedKeys(used))
		if err != nil {
			return nil, nil, err
		}
		exprs := make([]Expr, len(n.Exprs))
		for i, e := range n.Exprs {
			if exprs[i], err = remap(e, mapping); err != nil {
				return nil, nil, err
			}
		}
		// The projection keeps all of its outputs.
		identity := make(map[int]int, len(exprs))
		for i := range exprs {
			identity[i] = i
		}
		return n.withExprs(input, exprs), identity, nil

	case *Limit:
		input, mapping, err := prune(n.Input, required)
		if err != nil {
			return nil, nil, err
		}
		return NewLimit(input, n.Offset, n.Fetch), mapping, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown plan node %T", ErrPlanInvariantViolation, p)
}

func remap(e Expr, mapping map[int]int) (Expr, error) {
	return Transform(e, func(e Expr) (Expr, error) {
		c, ok := e.(*Column)
		if !ok {
			return e, nil
		}
		idx, ok := mapping[c.Index]
		if !ok {
			return nil, fmt.Errorf("%w: column %s (#%d) pruned but still referenced", ErrPlanInvariantViolation, c.Name, c.Index)
		}
		return &Column{Index: idx, Name: c.Name, DataType: c.DataType}, nil
	})
}

func narrowestColumn(s *Scan) int {
	cols := s.Columns()
	best := 0
	for i, c := range cols {
		if c < len(s.Table.BytesPerRow) && s.Table.BytesPerRow[c] < s.Table.BytesPerRow[cols[best]] {
			best = i
		}
	}
	return best
}

func toSet(idx []int) map[int]bool {
	set := make(map[int]bool, len(idx))
	for _, i := range idx {
		set[i] = true
	}
	return set
}

func sortedKeys(set map[int]bool) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
