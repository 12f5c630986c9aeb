package output

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/pqsql/decode"
)

var (
	// ErrSink wraps failures to write the report.
	ErrSink = errors.New("sink error")

	// ErrUnknownFormat is returned for unsupported format names.
	ErrUnknownFormat = errors.New("unknown output format")

	// ErrInvalidOrder is returned when a column order does not fit the
	// batches.
	ErrInvalidOrder = errors.New("invalid column order")
)

// DecodeFunc turns a batch into rows.
type DecodeFunc func(rec arrow.Record) ([]decode.Row, error)

// Sink reports collected batches.
type Sink interface {
	Report(batches []arrow.Record, decode DecodeFunc) error
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithOrder prints the columns at the given batch positions, in that order.
func WithOrder(order []int) Option {
	return func(r *Reporter) { r.order = order }
}

// WithLabels replaces the column names of the output. Labels apply after
// WithOrder.
func WithLabels(labels []string) Option {
	return func(r *Reporter) { r.labels = labels }
}

// WithColumns sets the column names used when there are no batches.
func WithColumns(names []string) Option {
	return func(r *Reporter) { r.columns = names }
}

// Reporter is the Sink that decodes batches and hands them to a Formatter.
type Reporter struct {
	formatter Formatter
	order     []int
	labels    []string
	columns   []string
}

// NewReporter creates a sink that writes to w in the named format.
func NewReporter(format string, w io.Writer, opts ...Option) (*Reporter, error) {
	f, err := NewFormatter(format, w)
	if err != nil {
		return nil, err
	}
	return NewReporterWithFormatter(f, opts...), nil
}

// NewReporterWithFormatter creates a sink around f.
func NewReporterWithFormatter(f Formatter, opts ...Option) *Reporter {
	r := &Reporter{formatter: f}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report decodes every batch and writes the result. Nothing is written when
// a batch fails to decode; the decode error is returned unchanged.
func (r *Reporter) Report(batches []arrow.Record, decodeFn DecodeFunc) error {
	columns := r.columns
	if len(batches) > 0 {
		columns = make([]string, batches[0].NumCols())
		for i, f := range batches[0].Schema().Fields() {
			columns[i] = f.Name
		}
	}

	result := &Result{Batches: make([][]decode.Row, 0, len(batches))}
	for _, rec := range batches {
		rows, err := decodeFn(rec)
		if err != nil {
			return err
		}
		result.Batches = append(result.Batches, rows)
	}

	// Without batches and configured columns there is nothing to reorder.
	unknown := len(batches) == 0 && r.columns == nil
	if r.order != nil && !unknown {
		for _, idx := range r.order {
			if idx < 0 || idx >= len(columns) {
				return fmt.Errorf("%w: column %d of %d", ErrInvalidOrder, idx, len(columns))
			}
		}
		columns = pick(columns, r.order)
		for _, rows := range result.Batches {
			for i, row := range rows {
				rows[i] = pick(row, r.order)
			}
		}
	}
	if r.labels != nil && !unknown {
		if len(r.labels) != len(columns) {
			return fmt.Errorf("%w: %d labels for %d columns", ErrInvalidOrder, len(r.labels), len(columns))
		}
		columns = r.labels
	}
	result.Columns = columns

	if err := r.formatter.Format(result); err != nil {
		return fmt.Errorf("%w: %w", ErrSink, err)
	}
	return nil
}

func pick[T any](values []T, order []int) []T {
	out := make([]T, len(order))
	for i, idx := range order {
		out[i] = values[idx]
	}
	return out
}
