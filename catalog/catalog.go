// Package catalog keeps the tables registered in a query session.
//
// A table binds a name to a parquet location (a file or a glob pattern).
// Registration opens every file once to validate it and to capture the Arrow
// schema and the size statistics used for planning. The catalog is
// append-only: tables are never replaced or removed.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/pqsql/reader"
)

var (
	// ErrSourceNotFound is returned when a location cannot be read as parquet.
	ErrSourceNotFound = errors.New("source not found")

	// ErrSourceAlreadyRegistered is returned when a table name is reused.
	ErrSourceAlreadyRegistered = errors.New("source already registered")

	// ErrUnsupportedSchema is returned for nested schemas and for glob
	// locations whose files disagree on the schema.
	ErrUnsupportedSchema = errors.New("unsupported schema")

	// ErrInvalidName is returned for empty table names.
	ErrInvalidName = errors.New("invalid table name")

	// ErrTableNotFound is returned by Lookup for unknown names.
	ErrTableNotFound = errors.New("table not found")
)

// Table is a registered parquet source.
type Table struct {
	Name         string
	Location     string
	Files        []string
	Schema       *arrow.Schema
	NumRows      int64
	NumRowGroups int

	// FileRowGroups holds the row group count of every file in Files.
	FileRowGroups []int

	// BytesPerRow holds the average uncompressed size of one value of every
	// column, weighted over all files.
	BytesPerRow []int64
}

// Catalog is a session-scoped table registry. It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{tables: make(map[string]*Table)}
}

// Register binds name to the parquet file or glob pattern at location.
func (c *Catalog) Register(name, location string) (*Table, error) {
	if name == "" {
		return nil, ErrInvalidName
	}
	if c.exists(name) {
		return nil, fmt.Errorf("%w: %q", ErrSourceAlreadyRegistered, name)
	}

	table, err := load(name, location)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrSourceAlreadyRegistered, name)
	}
	c.tables[name] = table
	return table, nil
}

// Lookup returns the table registered under name.
func (c *Catalog) Lookup(name string) (*Table, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTableNotFound, name)
	}
	return t, nil
}

// Tables returns the registered tables sorted by name.
func (c *Catalog) Tables() []*Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) exists(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.tables[name]
	return ok
}

// load opens every file of location and builds the table description.
func load(name, location string) (*Table, error) {
	files, err := reader.ExpandPattern(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, location, err)
	}

	table := &Table{Name: name, Location: location, Files: files}
	var totals []int64

	for _, path := range files {
		r, err := reader.NewReader(path)
		if err != nil {
			if errors.Is(err, reader.ErrUnsupportedColumn) {
				return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedSchema, path, err)
			}
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, path, err)
		}

		schema := r.ArrowSchema()
		if table.Schema == nil {
			table.Schema = schema
			totals = make([]int64, len(schema.Fields()))
		} else if !table.Schema.Equal(schema) {
			_ = r.Close()
			return nil, fmt.Errorf("%w: %s has schema %s, expected %s", ErrUnsupportedSchema, path, schema, table.Schema)
		}

		rows := r.NumRows()
		for i, w := range r.ColumnBytesPerRow() {
			totals[i] += w * rows
		}
		table.NumRows += rows
		table.NumRowGroups += r.NumRowGroups()
		table.FileRowGroups = append(table.FileRowGroups, r.NumRowGroups())

		if err := r.Close(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrSourceNotFound, path, err)
		}
	}

	table.BytesPerRow = make([]int64, len(totals))
	for i, total := range totals {
		if table.NumRows > 0 {
			table.BytesPerRow[i] = (total + table.NumRows - 1) / table.NumRows
		}
	}

	return table, nil
}
