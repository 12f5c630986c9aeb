package exec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/vegasq/pqsql/plan"
)

// ErrExecution wraps every failure that happens while a plan runs.
var ErrExecution = errors.New("execution failed")

// ProduceFunc receives the batches of an operator in order. The record is
// only valid during the call; receivers that keep it must Retain it.
type ProduceFunc func(ctx context.Context, rec arrow.Record) error

// ExecutionPlan is a physical operator.
type ExecutionPlan interface {
	// Schema returns the schema of the produced batches.
	Schema() *arrow.Schema
	// Children returns the input operators.
	Children() []ExecutionPlan
	// Run executes the operator and passes its batches to produce.
	Run(ctx context.Context, produce ProduceFunc) error
	String() string
}

// CreatePhysicalPlan maps a logical plan to operators sized for a memory
// budget of budget bytes. It fails with ErrResourceBudgetExceeded when no
// batch of at least one row fits.
func CreatePhysicalPlan(p plan.LogicalPlan, budget int64, mem memory.Allocator) (ExecutionPlan, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	scan, err := findScan(p)
	if err != nil {
		return nil, err
	}
	b, err := NewBudget(budget, rowBytes(p), scan.Table.NumRowGroups)
	if err != nil {
		return nil, err
	}
	return build(p, b, mem)
}

func findScan(p plan.LogicalPlan) (*plan.Scan, error) {
	if s, ok := p.(*plan.Scan); ok {
		return s, nil
	}
	children := p.Children()
	if len(children) != 1 {
		return nil, fmt.Errorf("%w: %T has %d inputs", plan.ErrPlanInvariantViolation, p, len(children))
	}
	return findScan(children[0])
}

func build(p plan.LogicalPlan, b Budget, mem memory.Allocator) (ExecutionPlan, error) {
	switch n := p.(type) {
	case *plan.Scan:
		return NewScanExec(n, b, mem), nil
	case *plan.Filter:
		input, err := build(n.Input, b, mem)
		if err != nil {
			return nil, err
		}
		return &FilterExec{Input: input, Predicate: n.Predicate, mem: mem}, nil
	case *plan.Projection:
		input, err := build(n.Input, b, mem)
		if err != nil {
			return nil, err
		}
		return &ProjectionExec{Input: input, Exprs: n.Exprs, schema: n.Schema(), mem: mem}, nil
	case *plan.Limit:
		input, err := build(n.Input, b, mem)
		if err != nil {
			return nil, err
		}
		return &LimitExec{Input: input, Offset: n.Offset, Fetch: n.Fetch}, nil
	}
	return nil, fmt.Errorf("%w: no operator for %T", plan.ErrPlanInvariantViolation, p)
}

// Collect runs p to completion and returns its non-empty batches in order.
// The caller owns the records and must release them. On failure nothing is
// returned.
func Collect(ctx context.Context, p ExecutionPlan) ([]arrow.Record, error) {
	var out []arrow.Record
	err := p.Run(ctx, func(ctx context.Context, rec arrow.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.NumRows() == 0 {
			return nil
		}
		rec.Retain()
		out = append(out, rec)
		return nil
	})
	if err != nil {
		for _, rec := range out {
			rec.Release()
		}
		if errors.Is(err, ErrExecution) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	return out, nil
}

// Format renders the operator tree, one operator per line.
func Format(p ExecutionPlan) string {
	var b strings.Builder
	format(&b, p, 0)
	return b.String()
}

func format(b *strings.Builder, p ExecutionPlan, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(p.String())
	b.WriteByte('\n')
	for _, c := range p.Children() {
		format(b, c, depth+1)
	}
}

// BudgetOf returns the budget the plan was sized with.
func BudgetOf(p ExecutionPlan) (Budget, bool) {
	if s, ok := p.(*ScanExec); ok {
		return s.Budget, true
	}
	for _, c := range p.Children() {
		if b, ok := BudgetOf(c); ok {
			return b, true
		}
	}
	return Budget{}, false
}
