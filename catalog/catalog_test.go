package catalog

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vegasq/pqsql/internal/fixtures"
)

func TestRegister(t *testing.T) {
	dir := t.TempDir()
	path := fixtures.Write(t, dir, "alltypes.parquet", []fixtures.AllTypesRow{
		fixtures.AllTypes(0, 0, 1.0, 4, "01/01/09"),
		fixtures.AllTypes(2, 0, 1.0, 5, "02/02/09"),
	})

	c := New()
	table, err := c.Register("alltypes_plain", path)
	require.NoError(t, err)

	assert.Equal(t, "alltypes_plain", table.Name)
	assert.Equal(t, []string{path}, table.Files)
	assert.Equal(t, int64(2), table.NumRows)
	assert.Equal(t, 1, table.NumRowGroups)
	assert.Len(t, table.BytesPerRow, len(table.Schema.Fields()))

	got, err := c.Lookup("alltypes_plain")
	require.NoError(t, err)
	assert.Same(t, table, got)
}

func TestRegister_Errors(t *testing.T) {
	dir := t.TempDir()
	good := fixtures.Write(t, dir, "good.parquet", []fixtures.NullableRow{{ID: 1, Name: "a"}})
	garbage := fixtures.WriteGarbage(t, dir, "garbage.parquet")

	type Address struct {
		Street string `parquet:"street"`
	}
	type Person struct {
		Address Address `parquet:"address"`
	}
	nested := fixtures.Write(t, dir, "nested.parquet", []Person{{Address: Address{Street: "x"}}})

	tests := []struct {
		name     string
		table    string
		location string
		wantErr  error
	}{
		{name: "missing file", table: "t", location: filepath.Join(dir, "missing.parquet"), wantErr: ErrSourceNotFound},
		{name: "not parquet", table: "t", location: garbage, wantErr: ErrSourceNotFound},
		{name: "empty glob", table: "t", location: filepath.Join(dir, "*.orc"), wantErr: ErrSourceNotFound},
		{name: "nested schema", table: "t", location: nested, wantErr: ErrUnsupportedSchema},
		{name: "empty name", table: "", location: good, wantErr: ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			_, err := c.Register(tt.table, tt.location)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, c.Tables())
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	dir := t.TempDir()
	first := fixtures.Write(t, dir, "first.parquet", []fixtures.NullableRow{{ID: 1, Name: "a"}})
	second := fixtures.Write(t, dir, "second.parquet", []fixtures.NullableRow{{ID: 2, Name: "b"}})

	c := New()
	_, err := c.Register("t", first)
	require.NoError(t, err)

	_, err = c.Register("t", second)
	require.ErrorIs(t, err, ErrSourceAlreadyRegistered)

	// The original binding is untouched.
	table, err := c.Lookup("t")
	require.NoError(t, err)
	assert.Equal(t, first, table.Location)
}

func TestRegister_Glob(t *testing.T) {
	dir := t.TempDir()
	fixtures.Write(t, dir, "part-1.parquet", []fixtures.NullableRow{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}})
	fixtures.Write(t, dir, "part-2.parquet", []fixtures.NullableRow{{ID: 3, Name: "c"}})

	c := New()
	table, err := c.Register("parts", filepath.Join(dir, "part-*.parquet"))
	require.NoError(t, err)
	assert.Len(t, table.Files, 2)
	assert.Equal(t, int64(3), table.NumRows)
	assert.Equal(t, 2, table.NumRowGroups)
}

func TestRegister_GlobSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	fixtures.Write(t, dir, "a.parquet", []fixtures.NullableRow{{ID: 1, Name: "a"}})
	fixtures.Write(t, dir, "b.parquet", []fixtures.AllTypesRow{fixtures.AllTypes(1, 0, 1, 1, "x")})

	c := New()
	_, err := c.Register("mixed", filepath.Join(dir, "*.parquet"))
	assert.ErrorIs(t, err, ErrUnsupportedSchema)
}

func TestLookup_Unknown(t *testing.T) {
	_, err := New().Lookup("nope")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestRegister_Concurrent(t *testing.T) {
	dir := t.TempDir()
	path := fixtures.Write(t, dir, "t.parquet", []fixtures.NullableRow{{ID: 1, Name: "a"}})

	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Register(fmt.Sprintf("t%d", i), path)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	tables := c.Tables()
	require.Len(t, tables, 8)
	assert.Equal(t, "t0", tables[0].Name)
}
