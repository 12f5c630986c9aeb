package exec

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/vegasq/pqsql/datatype"
	"github.com/vegasq/pqsql/plan"
)

// recordRow exposes one row of a record to plan expressions.
type recordRow struct {
	rec arrow.Record
	i   int
}

func (r *recordRow) Value(col int) (interface{}, error) {
	if col < 0 || col >= int(r.rec.NumCols()) {
		return nil, fmt.Errorf("column #%d out of range [0, %d)", col, r.rec.NumCols())
	}
	return datatype.ValueAt(r.rec.Column(col), r.i)
}

// Evaluate computes expr for every row of rec. Column references are
// returned without copying.
func Evaluate(expr plan.Expr, rec arrow.Record, mem memory.Allocator) (arrow.Array, error) {
	if c, ok := expr.(*plan.Column); ok {
		col := rec.Column(c.Index)
		col.Retain()
		return col, nil
	}

	b := array.NewBuilder(mem, expr.Type())
	defer b.Release()
	b.Reserve(int(rec.NumRows()))

	row := &recordRow{rec: rec}
	for i := 0; i < int(rec.NumRows()); i++ {
		row.i = i
		v, err := expr.Eval(row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", expr, err)
		}
		if err := datatype.Append(b, v); err != nil {
			return nil, fmt.Errorf("%s: %w", expr, err)
		}
	}
	return b.NewArray(), nil
}

// selection evaluates a predicate and returns the row ranges [start, end)
// where it is TRUE. NULL counts as false.
func selection(pred plan.Expr, rec arrow.Record) ([][2]int64, int64, error) {
	var (
		ranges   [][2]int64
		selected int64
	)
	row := &recordRow{rec: rec}
	for i := 0; i < int(rec.NumRows()); i++ {
		row.i = i
		v, err := pred.Eval(row)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", pred, err)
		}
		if keep, _ := v.(bool); !keep {
			continue
		}
		selected++
		if n := len(ranges); n > 0 && ranges[n-1][1] == int64(i) {
			ranges[n-1][1]++
			continue
		}
		ranges = append(ranges, [2]int64{int64(i), int64(i) + 1})
	}
	return ranges, selected, nil
}

// take builds a record from the given row ranges of rec.
func take(rec arrow.Record, ranges [][2]int64, rows int64, mem memory.Allocator) (arrow.Record, error) {
	cols := make([]arrow.Array, rec.NumCols())
	defer func() {
		for _, c := range cols {
			if c != nil {
				c.Release()
			}
		}
	}()

	for i, col := range rec.Columns() {
		parts := make([]arrow.Array, len(ranges))
		for j, r := range ranges {
			parts[j] = array.NewSlice(col, r[0], r[1])
		}
		out, err := array.Concatenate(parts, mem)
		for _, p := range parts {
			p.Release()
		}
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", rec.ColumnName(i), err)
		}
		cols[i] = out
	}
	return array.NewRecord(rec.Schema(), cols, rows), nil
}
