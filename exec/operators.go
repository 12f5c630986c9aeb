package exec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/vegasq/pqsql/plan"
)

// FilterExec passes the rows for which Predicate is TRUE. Batches without
// such rows are dropped.
type FilterExec struct {
	Input     ExecutionPlan
	Predicate plan.Expr

	mem memory.Allocator
}

func (f *FilterExec) Schema() *arrow.Schema     { return f.Input.Schema() }
func (f *FilterExec) Children() []ExecutionPlan { return []ExecutionPlan{f.Input} }
func (f *FilterExec) String() string            { return "FilterExec: " + f.Predicate.String() }

func (f *FilterExec) Run(ctx context.Context, produce ProduceFunc) error {
	return f.Input.Run(ctx, func(ctx context.Context, rec arrow.Record) error {
		ranges, selected, err := selection(f.Predicate, rec)
		if err != nil {
			return err
		}
		switch selected {
		case 0:
			return nil
		case rec.NumRows():
			return produce(ctx, rec)
		}

		out, err := take(rec, ranges, selected, f.mem)
		if err != nil {
			return err
		}
		defer out.Release()
		return produce(ctx, out)
	})
}

// ProjectionExec computes one output column per expression.
type ProjectionExec struct {
	Input ExecutionPlan
	Exprs []plan.Expr

	schema *arrow.Schema
	mem    memory.Allocator
}

func (p *ProjectionExec) Schema() *arrow.Schema     { return p.schema }
func (p *ProjectionExec) Children() []ExecutionPlan { return []ExecutionPlan{p.Input} }

func (p *ProjectionExec) String() string {
	items := make([]string, len(p.Exprs))
	for i, e := range p.Exprs {
		items[i] = e.String() + " AS " + p.schema.Field(i).Name
	}
	return "ProjectionExec: " + strings.Join(items, ", ")
}

func (p *ProjectionExec) Run(ctx context.Context, produce ProduceFunc) error {
	return p.Input.Run(ctx, func(ctx context.Context, rec arrow.Record) error {
		out, err := p.project(rec)
		if err != nil {
			return err
		}
		defer out.Release()
		return produce(ctx, out)
	})
}

func (p *ProjectionExec) project(rec arrow.Record) (arrow.Record, error) {
	cols := make([]arrow.Array, len(p.Exprs))
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	for i, e := range p.Exprs {
		col, err := Evaluate(e, rec, p.mem)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", p.schema.Field(i).Name, err)
		}
		cols[i] = col
	}
	return array.NewRecord(p.schema, cols, rec.NumRows()), nil
}

// errLimitReached stops the input of a LimitExec once Fetch rows passed.
var errLimitReached = errors.New("limit reached")

// LimitExec skips Offset rows and then passes at most Fetch rows. A negative
// Fetch passes everything after the offset.
type LimitExec struct {
	Input  ExecutionPlan
	Offset int64
	Fetch  int64
}

func (l *LimitExec) Schema() *arrow.Schema     { return l.Input.Schema() }
func (l *LimitExec) Children() []ExecutionPlan { return []ExecutionPlan{l.Input} }

func (l *LimitExec) String() string {
	if l.Fetch < 0 {
		return fmt.Sprintf("LimitExec: skip=%d, fetch=None", l.Offset)
	}
	return fmt.Sprintf("LimitExec: skip=%d, fetch=%d", l.Offset, l.Fetch)
}

func (l *LimitExec) Run(ctx context.Context, produce ProduceFunc) error {
	if l.Fetch == 0 {
		return nil
	}
	skip, remaining := l.Offset, l.Fetch

	err := l.Input.Run(ctx, func(ctx context.Context, rec arrow.Record) error {
		n := rec.NumRows()
		if skip >= n {
			skip -= n
			return nil
		}
		start, end := skip, n
		skip = 0
		if remaining >= 0 && end-start > remaining {
			end = start + remaining
		}

		out := rec.NewSlice(start, end)
		err := produce(ctx, out)
		out.Release()
		if err != nil {
			return err
		}

		if remaining >= 0 {
			remaining -= end - start
			if remaining == 0 {
				return errLimitReached
			}
		}
		return nil
	})
	if errors.Is(err, errLimitReached) {
		return nil
	}
	return err
}
