package plan

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/vegasq/pqsql/catalog"
)

// LogicalPlan is a node of an immutable relational plan tree. Rewrites build
// new nodes and never modify their input.
type LogicalPlan interface {
	// Schema returns the output schema of the node.
	Schema() *arrow.Schema
	// Children returns the input plans.
	Children() []LogicalPlan
	// String describes the node on one line.
	String() string
}

// Scan reads the columns listed in Projection (positions in the table
// schema) from a registered table. A nil Projection reads every column.
type Scan struct {
	Table      *catalog.Table
	Alias      string
	Projection []int

	schema *arrow.Schema
}

// NewScan creates a scan of table. projection may be nil.
func NewScan(table *catalog.Table, alias string, projection []int) *Scan {
	fields := table.Schema.Fields()
	if projection != nil {
		picked := make([]arrow.Field, len(projection))
		for i, c := range projection {
			picked[i] = fields[c]
		}
		fields = picked
	}
	return &Scan{
		Table:      table,
		Alias:      alias,
		Projection: projection,
		schema:     arrow.NewSchema(fields, nil),
	}
}

// Columns returns the table column positions read by the scan.
func (s *Scan) Columns() []int {
	if s.Projection != nil {
		return s.Projection
	}
	cols := make([]int, len(s.Table.Schema.Fields()))
	for i := range cols {
		cols[i] = i
	}
	return cols
}

func (s *Scan) Schema() *arrow.Schema   { return s.schema }
func (s *Scan) Children() []LogicalPlan { return nil }

func (s *Scan) String() string {
	var b strings.Builder
	b.WriteString("TableScan: ")
	b.WriteString(s.Table.Name)
	if s.Alias != "" && s.Alias != s.Table.Name {
		b.WriteString(" AS ")
		b.WriteString(s.Alias)
	}
	if s.Projection != nil {
		names := make([]string, len(s.schema.Fields()))
		for i, f := range s.schema.Fields() {
			names[i] = f.Name
		}
		fmt.Fprintf(&b, " projection=[%s]", strings.Join(names, ", "))
	}
	return b.String()
}

// Filter keeps the rows for which Predicate is TRUE.
type Filter struct {
	Input     LogicalPlan
	Predicate Expr
}

// NewFilter creates a filter node.
func NewFilter(input LogicalPlan, predicate Expr) *Filter {
	return &Filter{Input: input, Predicate: predicate}
}

func (f *Filter) Schema() *arrow.Schema   { return f.Input.Schema() }
func (f *Filter) Children() []LogicalPlan { return []LogicalPlan{f.Input} }
func (f *Filter) String() string          { return "Filter: " + f.Predicate.String() }

// Projection computes one output column per expression.
type Projection struct {
	Input LogicalPlan
	Exprs []Expr

	schema *arrow.Schema
}

// NewProjection creates a projection; names label the output columns.
func NewProjection(input LogicalPlan, exprs []Expr, names []string) *Projection {
	fields := make([]arrow.Field, len(exprs))
	for i, e := range exprs {
		fields[i] = arrow.Field{Name: names[i], Type: e.Type(), Nullable: true}
	}
	return &Projection{Input: input, Exprs: exprs, schema: arrow.NewSchema(fields, nil)}
}

// withExprs returns a projection over input with the same output names.
func (p *Projection) withExprs(input LogicalPlan, exprs []Expr) *Projection {
	names := make([]string, len(p.schema.Fields()))
	for i, f := range p.schema.Fields() {
		names[i] = f.Name
	}
	return NewProjection(input, exprs, names)
}

func (p *Projection) Schema() *arrow.Schema   { return p.schema }
func (p *Projection) Children() []LogicalPlan { return []LogicalPlan{p.Input} }

func (p *Projection) String() string {
	items := make([]string, len(p.Exprs))
	for i, e := range p.Exprs {
		name := p.schema.Field(i).Name
		if s := e.String(); s != name {
			items[i] = s + " AS " + name
		} else {
			items[i] = s
		}
	}
	return "Projection: " + strings.Join(items, ", ")
}

// Limit skips Offset rows and then passes at most Fetch rows. A negative
// Fetch passes everything after the offset.
type Limit struct {
	Input  LogicalPlan
	Offset int64
	Fetch  int64
}

// NewLimit creates a limit node.
func NewLimit(input LogicalPlan, offset, fetch int64) *Limit {
	return &Limit{Input: input, Offset: offset, Fetch: fetch}
}

func (l *Limit) Schema() *arrow.Schema   { return l.Input.Schema() }
func (l *Limit) Children() []LogicalPlan { return []LogicalPlan{l.Input} }

func (l *Limit) String() string {
	if l.Fetch < 0 {
		return fmt.Sprintf("Limit: skip=%d, fetch=None", l.Offset)
	}
	return fmt.Sprintf("Limit: skip=%d, fetch=%d", l.Offset, l.Fetch)
}

// Format renders the plan tree, one node per line, children indented.
func Format(p LogicalPlan) string {
	var b strings.Builder
	format(&b, p, 0)
	return b.String()
}

func format(b *strings.Builder, p LogicalPlan, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(p.String())
	b.WriteByte('\n')
	for _, c := range p.Children() {
		format(b, c, depth+1)
	}
}

// sameSchema compares names and types, ignoring nullability and metadata.
func sameSchema(a, b *arrow.Schema) bool {
	if len(a.Fields()) != len(b.Fields()) {
		return false
	}
	for i, f := range a.Fields() {
		g := b.Field(i)
		if f.Name != g.Name || !arrow.TypeEqual(f.Type, g.Type) {
			return false
		}
	}
	return true
}
