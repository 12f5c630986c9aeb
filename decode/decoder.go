// Package decode turns result batches into rows of Go values.
//
// The caller states the semantic type of every column up front. Columns are
// narrowed to typed views before any row is produced, so a batch whose
// physical types disagree with the caller's expectation yields an error and
// no rows. Decoding never converts between types.
package decode

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// ErrColumnCount is returned when a batch and the expected types disagree
// on the number of columns.
var ErrColumnCount = errors.New("column count mismatch")

// Row holds the values of one result row; nil marks a null.
type Row []interface{}

// Decoder decodes batches whose columns have the given types.
type Decoder struct {
	Types []SemanticType
}

// Decode returns the rows of rec. A zero-row batch decodes to an empty,
// non-nil slice.
func (d *Decoder) Decode(rec arrow.Record) ([]Row, error) {
	if int(rec.NumCols()) != len(d.Types) {
		return nil, fmt.Errorf("%w: batch has %d columns, expected %d", ErrColumnCount, rec.NumCols(), len(d.Types))
	}

	cols := make([]Column, len(d.Types))
	for i, want := range d.Types {
		col, err := NewColumn(rec.Column(i), want)
		if err != nil {
			var mismatch *TypeMismatchError
			if errors.As(err, &mismatch) {
				mismatch.Column = i
			}
			return nil, err
		}
		cols[i] = col
	}

	rows := make([]Row, int(rec.NumRows()))
	for r := range rows {
		row := make(Row, len(cols))
		for c, col := range cols {
			row[c] = col.Interface(r)
		}
		rows[r] = row
	}
	return rows, nil
}

// Decode decodes rec with the given column types.
func Decode(rec arrow.Record, types []SemanticType) ([]Row, error) {
	return (&Decoder{Types: types}).Decode(rec)
}

// TypesFromSchema returns the semantic types matching schema.
func TypesFromSchema(schema *arrow.Schema) ([]SemanticType, error) {
	types := make([]SemanticType, len(schema.Fields()))
	for i, f := range schema.Fields() {
		t, err := SemanticTypeOf(f.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", f.Name, err)
		}
		types[i] = t
	}
	return types, nil
}
