package exec

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/pqsql/plan"
)

// MaxBatchRows caps the number of rows in one batch.
const MaxBatchRows = 8192

// variableWidth is the per-row estimate for variable length values.
const variableWidth = 32

// ErrResourceBudgetExceeded is returned when not even a one-row batch fits
// the memory budget.
var ErrResourceBudgetExceeded = errors.New("resource budget exceeded")

// Budget is the resource allotment of a physical plan.
type Budget struct {
	// Bytes is the memory budget the plan was sized for.
	Bytes int64
	// BatchRows is the maximum number of rows per batch.
	BatchRows int
	// Workers is the number of row groups the scan decodes concurrently.
	Workers int
	// RowBytes is the estimated memory one row takes through the pipeline.
	RowBytes int64
}

func (b Budget) String() string {
	return fmt.Sprintf("bytes=%d row_bytes=%d batch_rows=%d workers=%d", b.Bytes, b.RowBytes, b.BatchRows, b.Workers)
}

// NewBudget sizes batches and scan parallelism for a pipeline whose rows take
// rowBytes bytes and whose scan covers rowGroups row groups.
func NewBudget(bytes, rowBytes int64, rowGroups int) (Budget, error) {
	if rowBytes < 1 {
		rowBytes = 1
	}
	batch := bytes / rowBytes
	if batch > MaxBatchRows {
		batch = MaxBatchRows
	}
	if batch < 1 {
		return Budget{}, fmt.Errorf("%w: %d bytes cannot hold a single row of %d bytes", ErrResourceBudgetExceeded, bytes, rowBytes)
	}

	maxWorkers := runtime.GOMAXPROCS(0)
	if rowGroups < maxWorkers {
		maxWorkers = rowGroups
	}
	workers := bytes / (batch * rowBytes)
	if workers > int64(maxWorkers) {
		workers = int64(maxWorkers)
	}
	if workers < 1 {
		workers = 1
	}

	return Budget{Bytes: bytes, BatchRows: int(batch), Workers: int(workers), RowBytes: rowBytes}, nil
}

// rowBytes estimates the per-row memory of p: the width of the columns the
// scan reads plus the width every operator adds.
func rowBytes(p plan.LogicalPlan) int64 {
	switch n := p.(type) {
	case *plan.Scan:
		var width int64
		fields := n.Schema().Fields()
		for i, c := range n.Columns() {
			w := typeWidth(fields[i].Type)
			if c < len(n.Table.BytesPerRow) && n.Table.BytesPerRow[c] > w {
				w = n.Table.BytesPerRow[c]
			}
			width += w
		}
		return width
	case *plan.Filter:
		// one selection flag per row
		return 1 + rowBytes(n.Input)
	case *plan.Projection:
		var width int64
		for _, f := range n.Schema().Fields() {
			width += typeWidth(f.Type)
		}
		return width + rowBytes(n.Input)
	case *plan.Limit:
		return rowBytes(n.Input)
	}
	return 0
}

func typeWidth(dt arrow.DataType) int64 {
	if fw, ok := dt.(arrow.FixedWidthDataType); ok {
		if w := int64(fw.BitWidth()+7) / 8; w > 0 {
			return w
		}
		return 1
	}
	return variableWidth
}
