package reader

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/pqsql/internal/fixtures"
)

func TestNewReader_ArrowSchema(t *testing.T) {
	path := fixtures.Write(t, t.TempDir(), "alltypes.parquet", []fixtures.AllTypesRow{
		fixtures.AllTypes(0, 0, 1.0, 4, "01/01/09"),
	})

	r, err := NewReader(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	want := map[string]arrow.DataType{
		"id":              arrow.PrimitiveTypes.Int32,
		"bool_col":        arrow.FixedWidthTypes.Boolean,
		"tinyint_col":     arrow.PrimitiveTypes.Int32,
		"bigint_col":      arrow.PrimitiveTypes.Int64,
		"float_col":       arrow.PrimitiveTypes.Float32,
		"double_col":      arrow.PrimitiveTypes.Float64,
		"date_string_col": arrow.BinaryTypes.Binary,
	}

	schema := r.ArrowSchema()
	for name, dt := range want {
		idx := schema.FieldIndices(name)
		require.Len(t, idx, 1, "field %s", name)
		assert.True(t, arrow.TypeEqual(dt, schema.Field(idx[0]).Type), "field %s: got %s want %s", name, schema.Field(idx[0]).Type, dt)
	}
	assert.Equal(t, int64(1), r.NumRows())
	assert.Equal(t, 1, r.NumRowGroups())
}

func TestNewReader_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{name: "missing file", path: filepath.Join(dir, "missing.parquet")},
		{name: "not parquet", path: fixtures.WriteGarbage(t, dir, "garbage.parquet")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader(tt.path)
			assert.Error(t, err)
		})
	}

	_, err := NewReader(filepath.Join(dir, "missing.parquet"))
	assert.True(t, os.IsNotExist(errors.Unwrap(err)), "got %v", err)
}

func TestNewReader_RejectsNested(t *testing.T) {
	type Address struct {
		Street string `parquet:"street"`
	}
	type Person struct {
		Name    string  `parquet:"name"`
		Address Address `parquet:"address"`
	}

	path := fixtures.Write(t, t.TempDir(), "nested.parquet", []Person{{Name: "a", Address: Address{Street: "b"}}})

	_, err := NewReader(path)
	require.ErrorIs(t, err, ErrUnsupportedColumn)

	// Schema inspection still works.
	infos, err := ExtractSchemaInfo(path)
	require.NoError(t, err)
	require.Len(t, infos, 2)

	byName := make(map[string]SchemaInfo)
	for _, info := range infos {
		byName[info.Name] = info
	}
	require.Contains(t, byName, "address.street")
	assert.Equal(t, "STRING", byName["address.street"].Type)
	assert.Equal(t, "utf8", byName["address.street"].ArrowType)
}

func TestReadRowGroup(t *testing.T) {
	path := fixtures.WriteGroups(t, t.TempDir(), "groups.parquet",
		[]fixtures.NullableRow{
			{ID: 1, Name: "alice", Score: fixtures.Float64(1.5)},
			{ID: 2, Name: "bob"},
			{ID: 3, Name: "carol", Score: fixtures.Float64(3.5), Level: fixtures.Int32(7)},
		},
		[]fixtures.NullableRow{
			{ID: 4, Name: "dave"},
		},
	)

	r, err := NewReader(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	require.Equal(t, 2, r.NumRowGroups())

	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	// Project name and score (in reverse order) in batches of two rows.
	nameIdx := r.ArrowSchema().FieldIndices("name")[0]
	scoreIdx := r.ArrowSchema().FieldIndices("score")[0]
	records, err := r.ReadRowGroup(0, []int{scoreIdx, nameIdx}, 2, mem)
	require.NoError(t, err)
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()

	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].NumRows())
	assert.Equal(t, int64(1), records[1].NumRows())
	assert.Equal(t, "score", records[0].ColumnName(0))
	assert.Equal(t, "name", records[0].ColumnName(1))

	scores := records[0].Column(0).(*array.Float64)
	assert.Equal(t, 1.5, scores.Value(0))
	assert.True(t, scores.IsNull(1))

	names := records[1].Column(1).(*array.String)
	assert.Equal(t, "carol", names.Value(0))
}

func TestReadRowGroup_InvalidArguments(t *testing.T) {
	path := fixtures.Write(t, t.TempDir(), "one.parquet", []fixtures.NullableRow{{ID: 1, Name: "a"}})

	r, err := NewReader(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	mem := memory.NewGoAllocator()

	_, err = r.ReadRowGroup(5, nil, 10, mem)
	assert.Error(t, err)

	_, err = r.ReadRowGroup(0, nil, 0, mem)
	assert.Error(t, err)

	_, err = r.ReadRowGroup(0, []int{42}, 10, mem)
	assert.Error(t, err)
}

func TestColumnBytesPerRow(t *testing.T) {
	rows := make([]fixtures.AllTypesRow, 100)
	for i := range rows {
		rows[i] = fixtures.AllTypes(int32(i), 0, 1.0, int32(i), "01/01/09")
	}
	path := fixtures.Write(t, t.TempDir(), "wide.parquet", rows)

	r, err := NewReader(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	widths := r.ColumnBytesPerRow()
	require.Len(t, widths, len(r.ArrowSchema().Fields()))
	for i, w := range widths {
		assert.Greater(t, w, int64(0), "column %d", i)
	}
}

func TestExpandPattern(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.parquet", "a.parquet", "c.csv"} {
		fixtures.Write(t, dir, name, []fixtures.NullableRow{{ID: 1, Name: name}})
	}

	t.Run("plain path", func(t *testing.T) {
		files, err := ExpandPattern(filepath.Join(dir, "a.parquet"))
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "a.parquet")}, files)
	})

	t.Run("glob sorted", func(t *testing.T) {
		files, err := ExpandPattern(filepath.Join(dir, "*.parquet"))
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(dir, "a.parquet"), filepath.Join(dir, "b.parquet")}, files)
	})

	t.Run("no match", func(t *testing.T) {
		_, err := ExpandPattern(filepath.Join(dir, "*.orc"))
		assert.ErrorIs(t, err, ErrNoMatch)
	})

	t.Run("braces are literal", func(t *testing.T) {
		path := fixtures.Write(t, dir, "{a,b}.parquet", []fixtures.NullableRow{{ID: 1, Name: "x"}})
		assert.False(t, IsPattern(path))

		files, err := ExpandPattern(path)
		require.NoError(t, err)
		assert.Equal(t, []string{path}, files)

		missing := filepath.Join(dir, "{c}.parquet")
		files, err = ExpandPattern(missing)
		require.NoError(t, err)
		assert.Equal(t, []string{missing}, files)
	})

	t.Run("invalid pattern", func(t *testing.T) {
		_, err := ExpandPattern(filepath.Join(dir, "[.parquet"))
		assert.Error(t, err)
	})
}

func TestInt96Nanos(t *testing.T) {
	// 2009-01-01T00:01:00Z is Julian day 2454833, 60 seconds into the day.
	nanos := int64(60 * 1_000_000_000)
	v := [3]uint32{uint32(nanos), uint32(nanos >> 32), 2454833}
	assert.Equal(t, int64(1230768060)*1_000_000_000, int96Nanos(v))
}
