package decode

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// ErrTypeMismatch is matched by every *TypeMismatchError.
var ErrTypeMismatch = errors.New("type mismatch")

// SemanticType is the type a caller expects a result column to have.
type SemanticType int

const (
	Null SemanticType = iota + 1
	Bool
	Int8
	Int16
	Int32
	Int64
	Float32
	Float64
	Utf8
	Binary
	Date
	Timestamp
)

var semanticNames = map[SemanticType]string{
	Null:      "null",
	Bool:      "bool",
	Int8:      "int8",
	Int16:     "int16",
	Int32:     "int32",
	Int64:     "int64",
	Float32:   "float32",
	Float64:   "float64",
	Utf8:      "utf8",
	Binary:    "binary",
	Date:      "date",
	Timestamp: "timestamp",
}

func (t SemanticType) String() string {
	if name, ok := semanticNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SemanticType(%d)", int(t))
}

// ParseSemanticType looks a type up by name, ignoring case.
func ParseSemanticType(name string) (SemanticType, error) {
	for t, n := range semanticNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown semantic type %q", name)
}

// TypeMismatchError reports a column whose physical type differs from the
// expected semantic type.
type TypeMismatchError struct {
	// Column is the position of the column in the batch, or -1 when the
	// column was checked on its own.
	Column   int
	Expected SemanticType
	Actual   arrow.DataType
}

func (e *TypeMismatchError) Error() string {
	if e.Column < 0 {
		return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Actual)
	}
	return fmt.Sprintf("type mismatch in column %d: expected %s, got %s", e.Column, e.Expected, e.Actual)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// Column is a read-only view of one result column.
type Column interface {
	Type() SemanticType
	Len() int
	IsNull(i int) bool
	// Interface returns row i, or nil when it is null.
	Interface(i int) interface{}
}

// TypedColumn is a Column whose values are read as T.
type TypedColumn[T any] struct {
	arr   arrow.Array
	typ   SemanticType
	value func(i int) T
}

func (c *TypedColumn[T]) Type() SemanticType { return c.typ }
func (c *TypedColumn[T]) Len() int           { return c.arr.Len() }
func (c *TypedColumn[T]) IsNull(i int) bool  { return c.arr.IsNull(i) }

// Value returns row i. Null rows return the zero value of T.
func (c *TypedColumn[T]) Value(i int) T {
	if c.arr.IsNull(i) {
		var zero T
		return zero
	}
	return c.value(i)
}

func (c *TypedColumn[T]) Interface(i int) interface{} {
	if c.arr.IsNull(i) {
		return nil
	}
	return c.value(i)
}

func mismatch(want SemanticType, col arrow.Array) error {
	return &TypeMismatchError{Column: -1, Expected: want, Actual: col.DataType()}
}

// narrow downcasts col to A or reports a mismatch with want.
func narrow[A arrow.Array, T any](col arrow.Array, want SemanticType, value func(a A, i int) T) (*TypedColumn[T], error) {
	a, ok := col.(A)
	if !ok {
		return nil, mismatch(want, col)
	}
	return &TypedColumn[T]{arr: col, typ: want, value: func(i int) T { return value(a, i) }}, nil
}

// Bools views col as booleans.
func Bools(col arrow.Array) (*TypedColumn[bool], error) {
	return narrow(col, Bool, func(a *array.Boolean, i int) bool { return a.Value(i) })
}

// Int8s views col as int8 values.
func Int8s(col arrow.Array) (*TypedColumn[int8], error) {
	return narrow(col, Int8, func(a *array.Int8, i int) int8 { return a.Value(i) })
}

// Int16s views col as int16 values.
func Int16s(col arrow.Array) (*TypedColumn[int16], error) {
	return narrow(col, Int16, func(a *array.Int16, i int) int16 { return a.Value(i) })
}

// Int32s views col as int32 values.
func Int32s(col arrow.Array) (*TypedColumn[int32], error) {
	return narrow(col, Int32, func(a *array.Int32, i int) int32 { return a.Value(i) })
}

// Int64s views col as int64 values.
func Int64s(col arrow.Array) (*TypedColumn[int64], error) {
	return narrow(col, Int64, func(a *array.Int64, i int) int64 { return a.Value(i) })
}

// Float32s views col as float32 values.
func Float32s(col arrow.Array) (*TypedColumn[float32], error) {
	return narrow(col, Float32, func(a *array.Float32, i int) float32 { return a.Value(i) })
}

// Float64s views col as float64 values.
func Float64s(col arrow.Array) (*TypedColumn[float64], error) {
	return narrow(col, Float64, func(a *array.Float64, i int) float64 { return a.Value(i) })
}

// Strings views a utf8 column as strings.
func Strings(col arrow.Array) (*TypedColumn[string], error) {
	return narrow(col, Utf8, func(a *array.String, i int) string { return a.Value(i) })
}

// Binaries views a binary or fixed size binary column as byte slices. The
// slices alias the column buffers.
func Binaries(col arrow.Array) (*TypedColumn[[]byte], error) {
	switch col.(type) {
	case *array.Binary:
		return narrow(col, Binary, func(a *array.Binary, i int) []byte { return a.Value(i) })
	case *array.FixedSizeBinary:
		return narrow(col, Binary, func(a *array.FixedSizeBinary, i int) []byte { return a.Value(i) })
	}
	return nil, mismatch(Binary, col)
}

// Dates views a date32 column as UTC midnights.
func Dates(col arrow.Array) (*TypedColumn[time.Time], error) {
	return narrow(col, Date, func(a *array.Date32, i int) time.Time { return a.Value(i).ToTime() })
}

// Timestamps views a timestamp column as UTC times.
func Timestamps(col arrow.Array) (*TypedColumn[time.Time], error) {
	ts, ok := col.DataType().(*arrow.TimestampType)
	if !ok {
		return nil, mismatch(Timestamp, col)
	}
	return narrow(col, Timestamp, func(a *array.Timestamp, i int) time.Time {
		return a.Value(i).ToTime(ts.Unit).UTC()
	})
}

// Nulls views a column of the null type.
func Nulls(col arrow.Array) (*TypedColumn[interface{}], error) {
	return narrow(col, Null, func(*array.Null, int) interface{} { return nil })
}

// NewColumn views col as want. It never converts: a column whose physical
// type differs from want yields a *TypeMismatchError.
func NewColumn(col arrow.Array, want SemanticType) (Column, error) {
	switch want {
	case Null:
		return Nulls(col)
	case Bool:
		return Bools(col)
	case Int8:
		return Int8s(col)
	case Int16:
		return Int16s(col)
	case Int32:
		return Int32s(col)
	case Int64:
		return Int64s(col)
	case Float32:
		return Float32s(col)
	case Float64:
		return Float64s(col)
	case Utf8:
		return Strings(col)
	case Binary:
		return Binaries(col)
	case Date:
		return Dates(col)
	case Timestamp:
		return Timestamps(col)
	}
	return nil, mismatch(want, col)
}

// SemanticTypeOf returns the semantic type of an Arrow type.
func SemanticTypeOf(dt arrow.DataType) (SemanticType, error) {
	switch dt.ID() {
	case arrow.NULL:
		return Null, nil
	case arrow.BOOL:
		return Bool, nil
	case arrow.INT8:
		return Int8, nil
	case arrow.INT16:
		return Int16, nil
	case arrow.INT32:
		return Int32, nil
	case arrow.INT64:
		return Int64, nil
	case arrow.FLOAT32:
		return Float32, nil
	case arrow.FLOAT64:
		return Float64, nil
	case arrow.STRING:
		return Utf8, nil
	case arrow.BINARY, arrow.FIXED_SIZE_BINARY:
		return Binary, nil
	case arrow.DATE32:
		return Date, nil
	case arrow.TIMESTAMP:
		return Timestamp, nil
	}
	return 0, fmt.Errorf("no semantic type for %s", dt)
}
