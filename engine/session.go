// Package engine runs SQL statements over registered parquet sources.
//
// A Session owns the table registrations of one driver run. RunQuery walks
// the pipeline stage by stage:
//
//	register -> plan -> optimize -> physicalize -> collect
//
// Each stage completes before the next starts and the first failure aborts
// the query. Failures are returned as *QueryError, which matches both the
// underlying error and the category of the failing stage (ErrSource,
// ErrPlan, ErrResource, ErrExecution).
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/vegasq/pqsql/catalog"
	"github.com/vegasq/pqsql/exec"
	"github.com/vegasq/pqsql/plan"
	"github.com/vegasq/pqsql/query"
)

const instrumentationName = "github.com/vegasq/pqsql/engine"

// Registration binds a table name to a parquet file or glob pattern.
type Registration struct {
	Name     string
	Location string
}

// Session holds the registered tables and the collaborators of a query run.
// Sessions are independent; several may live in one process.
type Session struct {
	id        string
	catalog   *catalog.Catalog
	functions *query.FunctionRegistry
	optimizer *plan.Optimizer
	mem       memory.Allocator
	logger    hclog.Logger

	tracer  trace.Tracer
	batches metric.Int64Counter
	rows    metric.Int64Counter
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l hclog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithAllocator sets the allocator for result batches.
func WithAllocator(mem memory.Allocator) Option {
	return func(s *Session) { s.mem = mem }
}

// WithFunctions sets the scalar function registry.
func WithFunctions(r *query.FunctionRegistry) Option {
	return func(s *Session) { s.functions = r }
}

// WithOptimizer replaces the default optimizer.
func WithOptimizer(o *plan.Optimizer) Option {
	return func(s *Session) { s.optimizer = o }
}

// WithTracerProvider sets the provider of the stage spans. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Session) { s.tracer = tp.Tracer(instrumentationName) }
}

// NewSession creates a session with an empty catalog.
func NewSession(opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		catalog:   catalog.New(),
		functions: query.GetGlobalRegistry(),
		optimizer: plan.NewOptimizer(),
		mem:       memory.DefaultAllocator,
		logger:    hclog.NewNullLogger(),
		tracer:    otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id)

	meter := otel.GetMeterProvider().Meter(instrumentationName)
	var err error
	if s.batches, err = meter.Int64Counter("pqsql.batches", metric.WithDescription("Result batches collected")); err != nil {
		s.logger.Warn("creating batch counter", "error", err)
		s.batches = noop.Int64Counter{}
	}
	if s.rows, err = meter.Int64Counter("pqsql.rows", metric.WithDescription("Result rows collected")); err != nil {
		s.logger.Warn("creating row counter", "error", err)
		s.rows = noop.Int64Counter{}
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Catalog returns the session catalog.
func (s *Session) Catalog() *catalog.Catalog { return s.catalog }

// stage runs fn inside a span and converts its failure to a *QueryError.
func (s *Session) stage(ctx context.Context, st Stage, fn func(ctx context.Context, span trace.Span) error) error {
	ctx, span := s.tracer.Start(ctx, "pqsql."+string(st),
		trace.WithAttributes(attribute.String("pqsql.session", s.id)))
	defer span.End()

	start := time.Now()
	if err := fn(ctx, span); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Debug("stage failed", "stage", st, "error", err)
		return stageError(st, err)
	}
	s.logger.Debug("stage done", "stage", st, "elapsed", time.Since(start))
	return nil
}

// RegisterParquet binds name to the parquet file or glob pattern at
// location. Names are unique within the session.
func (s *Session) RegisterParquet(ctx context.Context, name, location string) error {
	return s.stage(ctx, StageRegister, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.String("pqsql.table", name))
		t, err := s.catalog.Register(name, location)
		if err != nil {
			return err
		}
		s.logger.Debug("registered table", "name", name, "files", len(t.Files), "rows", t.NumRows, "row_groups", t.NumRowGroups)
		return nil
	})
}

// CreateLogicalPlan parses sql and resolves it against the catalog.
func (s *Session) CreateLogicalPlan(ctx context.Context, sql string) (plan.LogicalPlan, error) {
	var p plan.LogicalPlan
	err := s.stage(ctx, StagePlan, func(ctx context.Context, span trace.Span) error {
		stmt, err := query.Parse(sql)
		if err != nil {
			return err
		}
		p, err = plan.NewBuilder(s.catalog, s.functions).Build(stmt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Optimize rewrites p. The result has the same output schema as p.
func (s *Session) Optimize(ctx context.Context, p plan.LogicalPlan) (plan.LogicalPlan, error) {
	var out plan.LogicalPlan
	err := s.stage(ctx, StageOptimize, func(ctx context.Context, span trace.Span) error {
		var err error
		out, err = s.optimizer.Optimize(p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreatePhysicalPlan sizes p for a memory budget of budget bytes.
func (s *Session) CreatePhysicalPlan(ctx context.Context, p plan.LogicalPlan, budget int64) (exec.ExecutionPlan, error) {
	var out exec.ExecutionPlan
	err := s.stage(ctx, StagePhysicalize, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.Int64("pqsql.budget", budget))
		var err error
		out, err = exec.CreatePhysicalPlan(p, budget, s.mem)
		if err != nil {
			return err
		}
		if b, ok := exec.BudgetOf(out); ok {
			s.logger.Debug("physical plan sized", "budget", b.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Collect runs p and returns its non-empty batches in order. The caller
// releases the records.
func (s *Session) Collect(ctx context.Context, p exec.ExecutionPlan) ([]arrow.Record, error) {
	var out []arrow.Record
	err := s.stage(ctx, StageCollect, func(ctx context.Context, span trace.Span) error {
		recs, err := exec.Collect(ctx, p)
		if err != nil {
			return err
		}
		var rows int64
		for _, rec := range recs {
			rows += rec.NumRows()
		}
		attrs := metric.WithAttributes(attribute.String("pqsql.session", s.id))
		s.batches.Add(ctx, int64(len(recs)), attrs)
		s.rows.Add(ctx, rows, attrs)
		span.SetAttributes(attribute.Int("pqsql.batches", len(recs)), attribute.Int64("pqsql.rows", rows))
		out = recs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RunQuery registers regs, then plans, optimizes, sizes and runs sql. On
// failure no batches are returned.
func (s *Session) RunQuery(ctx context.Context, regs []Registration, sql string, budget int64) ([]arrow.Record, error) {
	for _, r := range regs {
		if err := s.RegisterParquet(ctx, r.Name, r.Location); err != nil {
			return nil, err
		}
	}

	logical, err := s.CreateLogicalPlan(ctx, sql)
	if err != nil {
		return nil, err
	}
	optimized, err := s.Optimize(ctx, logical)
	if err != nil {
		return nil, err
	}
	physical, err := s.CreatePhysicalPlan(ctx, optimized, budget)
	if err != nil {
		return nil, err
	}
	return s.Collect(ctx, physical)
}

// Explain renders the logical, optimized and physical plans of sql.
func (s *Session) Explain(ctx context.Context, sql string, budget int64) (string, error) {
	logical, err := s.CreateLogicalPlan(ctx, sql)
	if err != nil {
		return "", err
	}
	optimized, err := s.Optimize(ctx, logical)
	if err != nil {
		return "", err
	}
	physical, err := s.CreatePhysicalPlan(ctx, optimized, budget)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "logical_plan\n%s", indent(plan.Format(logical)))
	fmt.Fprintf(&b, "optimized_plan\n%s", indent(plan.Format(optimized)))
	fmt.Fprintf(&b, "physical_plan\n%s", indent(exec.Format(physical)))
	return b.String(), nil
}

// OutputSchema returns the schema of the batches sql would produce.
func (s *Session) OutputSchema(ctx context.Context, sql string) (*arrow.Schema, error) {
	p, err := s.CreateLogicalPlan(ctx, sql)
	if err != nil {
		return nil, err
	}
	return p.Schema(), nil
}

func indent(s string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l == "" {
			continue
		}
		b.WriteString("  ")
		b.WriteString(l)
	}
	return b.String()
}
