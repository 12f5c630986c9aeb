// Package reader provides functionality for reading Apache Parquet files.
//
// It uses the parquet-go library to open files and inspect their metadata,
// and decodes row groups into Apache Arrow record batches so that the query
// engine can work on typed columns.
package reader

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/parquet-go/parquet-go"
)

// maxFiles bounds the number of files a single glob pattern may expand to.
const maxFiles = 1000

var (
	// ErrNoMatch is returned when a glob pattern matches no files.
	ErrNoMatch = errors.New("no files match pattern")

	// ErrTooManyFiles is returned when a glob pattern matches more than maxFiles files.
	ErrTooManyFiles = errors.New("glob pattern matched too many files")
)

// Reader reads a single parquet file.
//
// It maintains both an OS file handle and a parquet file handle to enable
// proper resource cleanup.
type Reader struct {
	path   string
	file   *os.File
	pqFile *parquet.File
	schema *arrow.Schema
}

// NewReader creates a new parquet reader for the specified file path.
//
// The file is opened and validated as a parquet file, and its schema is
// mapped to an Arrow schema. Returns an error if the file doesn't exist, is
// not a valid parquet file, or contains columns that cannot be represented
// as flat Arrow columns.
//
// Example:
//
//	r, err := NewReader("alltypes_plain.parquet")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
func NewReader(path string) (*Reader, error) {
	r, err := openFile(path)
	if err != nil {
		return nil, err
	}

	schema, err := ArrowSchema(r.pqFile.Schema())
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	r.schema = schema

	return r, nil
}

// openFile opens a parquet file without mapping its schema, so that schema
// inspection also works on files the engine cannot scan.
func openFile(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pqFile, err := parquet.OpenFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}

	return &Reader{
		path:   path,
		file:   file,
		pqFile: pqFile,
	}, nil
}

// Path returns the path the reader was opened with.
func (r *Reader) Path() string {
	return r.path
}

// Schema returns the parquet file schema.
func (r *Reader) Schema() *parquet.Schema {
	return r.pqFile.Schema()
}

// ArrowSchema returns the Arrow schema the file's columns decode into.
func (r *Reader) ArrowSchema() *arrow.Schema {
	return r.schema
}

// NumRows returns the total number of rows in the file.
func (r *Reader) NumRows() int64 {
	return r.pqFile.NumRows()
}

// NumRowGroups returns the number of row groups in the file.
func (r *Reader) NumRowGroups() int {
	return len(r.pqFile.RowGroups())
}

// ColumnBytesPerRow returns, for every top-level column, the average number
// of uncompressed bytes one row occupies according to the column chunk
// metadata. Columns without metadata report zero.
func (r *Reader) ColumnBytesPerRow() []int64 {
	widths := make([]int64, len(r.schema.Fields()))
	counts := make([]int64, len(widths))

	md := r.pqFile.Metadata()
	for _, rg := range md.RowGroups {
		for i, chunk := range rg.Columns {
			if i >= len(widths) {
				break
			}
			widths[i] += chunk.MetaData.TotalUncompressedSize
			counts[i] += chunk.MetaData.NumValues
		}
	}

	for i := range widths {
		if counts[i] > 0 {
			widths[i] = (widths[i] + counts[i] - 1) / counts[i]
		}
	}
	return widths
}

// ReadRowGroup decodes row group i into Arrow record batches of at most
// batchRows rows each.
//
// columns selects (and orders) the top-level columns to materialize; a nil
// slice selects every column. The returned records are owned by the caller,
// who must release them.
func (r *Reader) ReadRowGroup(i int, columns []int, batchRows int, mem memory.Allocator) ([]arrow.Record, error) {
	groups := r.pqFile.RowGroups()
	if i < 0 || i >= len(groups) {
		return nil, fmt.Errorf("row group %d out of range [0, %d)", i, len(groups))
	}
	if batchRows < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchRows)
	}
	if columns == nil {
		columns = make([]int, len(r.schema.Fields()))
		for c := range columns {
			columns[c] = c
		}
	}

	fields := make([]arrow.Field, len(columns))
	slot := make(map[int]int, len(columns))
	for out, c := range columns {
		if c < 0 || c >= len(r.schema.Fields()) {
			return nil, fmt.Errorf("column %d out of range [0, %d)", c, len(r.schema.Fields()))
		}
		fields[out] = r.schema.Field(c)
		slot[c] = out
	}
	schema := arrow.NewSchema(fields, nil)

	rows := groups[i].Rows()
	defer func() { _ = rows.Close() }()

	var records []arrow.Record
	release := func() {
		for _, rec := range records {
			rec.Release()
		}
	}

	buf := make([]parquet.Row, batchRows)
	for {
		n, err := rows.ReadRows(buf)
		if n > 0 {
			rec, convErr := buildRecord(mem, schema, slot, buf[:n])
			if convErr != nil {
				release()
				return nil, fmt.Errorf("row group %d: %w", i, convErr)
			}
			records = append(records, rec)
		}
		if err != nil {
			// Use errors.Is for proper EOF detection
			if errors.Is(err, io.EOF) {
				break
			}
			release()
			return nil, fmt.Errorf("failed to read rows from row group %d: %w", i, err)
		}
		if n == 0 {
			break
		}
	}

	return records, nil
}

// buildRecord converts parquet rows into a single record.
func buildRecord(mem memory.Allocator, schema *arrow.Schema, slot map[int]int, rows []parquet.Row) (arrow.Record, error) {
	builders := make([]array.Builder, len(schema.Fields()))
	for i, f := range schema.Fields() {
		builders[i] = array.NewBuilder(mem, f.Type)
		builders[i].Reserve(len(rows))
	}
	defer func() {
		for _, b := range builders {
			b.Release()
		}
	}()

	for _, row := range rows {
		for _, v := range row {
			out, ok := slot[v.Column()]
			if !ok {
				continue
			}
			if err := appendValue(builders[out], v); err != nil {
				return nil, fmt.Errorf("column %q: %w", schema.Field(out).Name, err)
			}
		}
	}

	cols := make([]arrow.Array, len(builders))
	for i, b := range builders {
		cols[i] = b.NewArray()
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	return array.NewRecord(schema, cols, int64(len(rows))), nil
}

// Close closes the parquet reader and releases associated resources.
//
// Should be called when done reading to avoid resource leaks.
func (r *Reader) Close() error {
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// IsPattern reports whether location contains glob wildcards. Braces are
// literal: filepath.Glob has no brace expansion.
func IsPattern(location string) bool {
	return strings.ContainsAny(location, "*?[")
}

// ExpandPattern resolves a location to the list of files it names.
//
// The pattern can include wildcards:
//   - * matches any sequence of non-separator characters
//   - ? matches any single non-separator character
//   - [range] matches any character in range
//
// A location without wildcards is returned as is. Matches are returned in
// lexical order so that scans over a pattern are deterministic.
func ExpandPattern(location string) ([]string, error) {
	if !IsPattern(location) {
		return []string{location}, nil
	}

	matches, err := filepath.Glob(location)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, location)
	}

	// Limit number of files to prevent resource exhaustion
	if len(matches) > maxFiles {
		return nil, fmt.Errorf("%w (%d), maximum is %d", ErrTooManyFiles, len(matches), maxFiles)
	}

	sort.Strings(matches)
	return matches, nil
}
