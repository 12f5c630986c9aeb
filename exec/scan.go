package exec

import (
	"context"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"github.com/vegasq/pqsql/catalog"
	"github.com/vegasq/pqsql/plan"
	"github.com/vegasq/pqsql/reader"
)

// ScanExec decodes the row groups of a table. Up to Budget.Workers row
// groups are decoded at once; batches are still produced in file and row
// group order.
type ScanExec struct {
	Table   *catalog.Table
	Columns []int
	Budget  Budget

	schema *arrow.Schema
	mem    memory.Allocator
}

// NewScanExec creates the operator for a logical scan.
func NewScanExec(s *plan.Scan, b Budget, mem memory.Allocator) *ScanExec {
	return &ScanExec{
		Table:   s.Table,
		Columns: s.Columns(),
		Budget:  b,
		schema:  s.Schema(),
		mem:     mem,
	}
}

type rowGroup struct {
	file  string
	index int
}

func (s *ScanExec) Schema() *arrow.Schema     { return s.schema }
func (s *ScanExec) Children() []ExecutionPlan { return nil }

func (s *ScanExec) String() string {
	names := make([]string, len(s.schema.Fields()))
	for i, f := range s.schema.Fields() {
		names[i] = f.Name
	}
	return fmt.Sprintf("ParquetScanExec: %s files=%d row_groups=%d columns=[%s] batch_rows=%d workers=%d",
		s.Table.Name, len(s.Table.Files), s.Table.NumRowGroups, strings.Join(names, ", "),
		s.Budget.BatchRows, s.Budget.Workers)
}

func (s *ScanExec) rowGroups() []rowGroup {
	var groups []rowGroup
	for i, file := range s.Table.Files {
		n := 0
		if i < len(s.Table.FileRowGroups) {
			n = s.Table.FileRowGroups[i]
		}
		for rg := 0; rg < n; rg++ {
			groups = append(groups, rowGroup{file: file, index: rg})
		}
	}
	return groups
}

// Run decodes the row groups in windows of Budget.Workers. A window is
// produced, in order, once all of its row groups are decoded.
func (s *ScanExec) Run(ctx context.Context, produce ProduceFunc) error {
	groups := s.rowGroups()
	workers := s.Budget.Workers
	if workers < 1 {
		workers = 1
	}

	for start := 0; start < len(groups); start += workers {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + workers
		if end > len(groups) {
			end = len(groups)
		}

		window := make([][]arrow.Record, end-start)
		var g errgroup.Group
		g.SetLimit(workers)
		for i := start; i < end; i++ {
			g.Go(func() error {
				recs, err := s.read(groups[i])
				window[i-start] = recs
				return err
			})
		}
		if err := g.Wait(); err != nil {
			releaseWindow(window)
			return err
		}

		for i, recs := range window {
			for j, rec := range recs {
				err := produce(ctx, rec)
				rec.Release()
				recs[j] = nil
				if err != nil {
					releaseWindow(window[i:])
					return err
				}
			}
		}
	}
	return nil
}

func (s *ScanExec) read(rg rowGroup) ([]arrow.Record, error) {
	r, err := reader.NewReader(rg.file)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	recs, err := r.ReadRowGroup(rg.index, s.Columns, s.Budget.BatchRows, s.mem)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", rg.file, err)
	}
	return recs, nil
}

func releaseWindow(window [][]arrow.Record) {
	for _, recs := range window {
		for _, rec := range recs {
			if rec != nil {
				rec.Release()
			}
		}
	}
}
