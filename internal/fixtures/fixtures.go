// Package fixtures writes small parquet files for tests.
package fixtures

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
)

// AllTypesRow mirrors the layout of the alltypes_plain.parquet test file:
// integer and floating point columns plus binary (non UTF-8 annotated)
// string columns.
type AllTypesRow struct {
	ID            int32   `parquet:"id"`
	BoolCol       bool    `parquet:"bool_col"`
	TinyintCol    int32   `parquet:"tinyint_col"`
	SmallintCol   int32   `parquet:"smallint_col"`
	IntCol        int32   `parquet:"int_col"`
	BigintCol     int64   `parquet:"bigint_col"`
	FloatCol      float32 `parquet:"float_col"`
	DoubleCol     float64 `parquet:"double_col"`
	DateStringCol []byte  `parquet:"date_string_col"`
	StringCol     []byte  `parquet:"string_col"`
}

// NullableRow has optional columns and a UTF-8 annotated string column.
type NullableRow struct {
	ID    int64    `parquet:"id"`
	Name  string   `parquet:"name"`
	Score *float64 `parquet:"score,optional"`
	Level *int32   `parquet:"level,optional"`
}

// AllTypes returns a row with the given values and defaults elsewhere.
func AllTypes(id int32, tinyint int32, double float64, intCol int32, date string) AllTypesRow {
	return AllTypesRow{
		ID:            id,
		BoolCol:       id%2 == 0,
		TinyintCol:    tinyint,
		SmallintCol:   tinyint,
		IntCol:        intCol,
		BigintCol:     int64(intCol) * 10,
		FloatCol:      float32(double),
		DoubleCol:     double,
		DateStringCol: []byte(date),
		StringCol:     []byte("0"),
	}
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int32 returns a pointer to v.
func Int32(v int32) *int32 { return &v }

// Write writes rows to dir/name and returns the path.
func Write[T any](t testing.TB, dir, name string, rows []T) string {
	t.Helper()
	return WriteGroups(t, dir, name, rows)
}

// WriteGroups writes every slice in groups as its own row group.
func WriteGroups[T any](t testing.TB, dir, name string, groups ...[]T) string {
	t.Helper()
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	defer func() { _ = f.Close() }()

	writer := parquet.NewGenericWriter[T](f)
	for _, rows := range groups {
		if _, err := writer.Write(rows); err != nil {
			t.Fatalf("failed to write test data: %v", err)
		}
		if err := writer.Flush(); err != nil {
			t.Fatalf("failed to flush row group: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return path
}

// WriteGarbage writes a file that is not parquet.
func WriteGarbage(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("this is not a parquet file"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	return path
}
