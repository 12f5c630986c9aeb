package decode

import (
	"errors"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resultBatch builds the batch the example query produces.
func resultBatch(t *testing.T, ints []int32, doubles []float64, dates []string) arrow.Record {
	t.Helper()
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "int_col", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "double_col", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
		{Name: "date", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()
	b.Field(0).(*array.Int32Builder).AppendValues(ints, nil)
	b.Field(1).(*array.Float64Builder).AppendValues(doubles, nil)
	b.Field(2).(*array.StringBuilder).AppendValues(dates, nil)

	rec := b.NewRecord()
	t.Cleanup(rec.Release)
	return rec
}

var exampleTypes = []SemanticType{Int32, Float64, Utf8}

func TestDecode(t *testing.T) {
	rec := resultBatch(t, []int32{5}, []float64{1.0}, []string{"02/02/09"})

	rows, err := Decode(rec, exampleTypes)
	require.NoError(t, err)
	assert.Equal(t, []Row{{int32(5), 1.0, "02/02/09"}}, rows)
}

func TestDecode_Idempotent(t *testing.T) {
	rec := resultBatch(t, []int32{1, 2, 3}, []float64{0.5, 1.5, 2.5}, []string{"a", "b", "c"})
	d := &Decoder{Types: exampleTypes}

	first, err := d.Decode(rec)
	require.NoError(t, err)
	second, err := d.Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 3)
}

func TestDecode_EmptyBatch(t *testing.T) {
	rec := resultBatch(t, nil, nil, nil)

	rows, err := Decode(rec, exampleTypes)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestDecode_TypeMismatch(t *testing.T) {
	rec := resultBatch(t, []int32{5}, []float64{1.0}, []string{"02/02/09"})

	tests := []struct {
		name   string
		types  []SemanticType
		column int
	}{
		{name: "int64 for int32", types: []SemanticType{Int64, Float64, Utf8}, column: 0},
		{name: "float32 for float64", types: []SemanticType{Int32, Float32, Utf8}, column: 1},
		{name: "binary for utf8", types: []SemanticType{Int32, Float64, Binary}, column: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Decode(rec, tt.types)
			assert.Nil(t, rows)
			require.ErrorIs(t, err, ErrTypeMismatch)

			var mismatch *TypeMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, tt.column, mismatch.Column)
			assert.Equal(t, tt.types[tt.column], mismatch.Expected)
			assert.Equal(t, rec.Column(tt.column).DataType(), mismatch.Actual)
		})
	}
}

func TestDecode_ColumnCount(t *testing.T) {
	rec := resultBatch(t, []int32{5}, []float64{1.0}, []string{"x"})

	_, err := Decode(rec, []SemanticType{Int32, Float64})
	assert.ErrorIs(t, err, ErrColumnCount)
}

func TestDecode_Nulls(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues([]int64{1, 0, 3}, []bool{true, false, true})
	arr := b.NewArray()
	defer arr.Release()

	col, err := Int64s(arr)
	require.NoError(t, err)
	assert.Equal(t, 3, col.Len())
	assert.True(t, col.IsNull(1))
	assert.Equal(t, int64(0), col.Value(1))
	assert.Nil(t, col.Interface(1))
	assert.Equal(t, int64(3), col.Value(2))
}

func TestNewColumn(t *testing.T) {
	mem := memory.NewGoAllocator()

	tb := array.NewTimestampBuilder(mem, &arrow.TimestampType{Unit: arrow.Microsecond})
	defer tb.Release()
	ts := time.Date(2009, 2, 2, 10, 30, 0, 0, time.UTC)
	tb.Append(arrow.Timestamp(ts.UnixMicro()))
	tsArr := tb.NewArray()
	defer tsArr.Release()

	db := array.NewDate32Builder(mem)
	defer db.Release()
	db.Append(arrow.Date32FromTime(ts))
	dateArr := db.NewArray()
	defer dateArr.Release()

	bb := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer bb.Release()
	bb.Append([]byte{0xde, 0xad})
	binArr := bb.NewArray()
	defer binArr.Release()

	boolB := array.NewBooleanBuilder(mem)
	defer boolB.Release()
	boolB.Append(true)
	boolArr := boolB.NewArray()
	defer boolArr.Release()

	tests := []struct {
		name string
		arr  arrow.Array
		want SemanticType
		val  interface{}
	}{
		{name: "timestamp", arr: tsArr, want: Timestamp, val: ts},
		{name: "date", arr: dateArr, want: Date, val: time.Date(2009, 2, 2, 0, 0, 0, 0, time.UTC)},
		{name: "binary", arr: binArr, want: Binary, val: []byte{0xde, 0xad}},
		{name: "bool", arr: boolArr, want: Bool, val: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			col, err := NewColumn(tt.arr, tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.want, col.Type())
			assert.Equal(t, tt.val, col.Interface(0))

			_, err = NewColumn(tt.arr, Utf8)
			var mismatch *TypeMismatchError
			require.True(t, errors.As(err, &mismatch))
			assert.Equal(t, -1, mismatch.Column)
		})
	}
}

func TestTypesFromSchema(t *testing.T) {
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int32},
		{Name: "b", Type: arrow.PrimitiveTypes.Float64},
		{Name: "c", Type: arrow.BinaryTypes.String},
		{Name: "d", Type: arrow.FixedWidthTypes.Timestamp_ns},
	}, nil)

	types, err := TypesFromSchema(schema)
	require.NoError(t, err)
	assert.Equal(t, []SemanticType{Int32, Float64, Utf8, Timestamp}, types)

	nested := arrow.NewSchema([]arrow.Field{
		{Name: "l", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)},
	}, nil)
	_, err = TypesFromSchema(nested)
	assert.Error(t, err)
}

func TestParseSemanticType(t *testing.T) {
	got, err := ParseSemanticType("FLOAT64")
	require.NoError(t, err)
	assert.Equal(t, Float64, got)
	assert.Equal(t, "float64", got.String())

	_, err = ParseSemanticType("decimal")
	assert.Error(t, err)
}
