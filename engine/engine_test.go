package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/vegasq/pqsql/catalog"
	"github.com/vegasq/pqsql/decode"
	"github.com/vegasq/pqsql/exec"
	"github.com/vegasq/pqsql/internal/fixtures"
	"github.com/vegasq/pqsql/plan"
	"github.com/vegasq/pqsql/query"
)

const (
	driverQuery = "SELECT int_col, double_col, CAST(date_string_col as VARCHAR) " +
		"FROM alltypes_plain WHERE id > 1 AND tinyint_col < double_col"
	mib = 1024 * 1024
)

var driverTypes = []decode.SemanticType{decode.Int32, decode.Float64, decode.Utf8}

func writeAllTypes(t *testing.T, rows ...fixtures.AllTypesRow) string {
	t.Helper()
	return fixtures.Write(t, t.TempDir(), "alltypes_plain.parquet", rows)
}

func decodeAll(t *testing.T, recs []arrow.Record) []decode.Row {
	t.Helper()
	var out []decode.Row
	for _, rec := range recs {
		rows, err := decode.Decode(rec, driverTypes)
		require.NoError(t, err)
		out = append(out, rows...)
	}
	return out
}

func release(recs []arrow.Record) {
	for _, rec := range recs {
		rec.Release()
	}
}

func TestRunQuery_NoQualifyingRow(t *testing.T) {
	path := writeAllTypes(t, fixtures.AllTypes(0, 0, 1.0, 4, "01/01/09"))

	recs, err := NewSession().RunQuery(context.Background(),
		[]Registration{{Name: "alltypes_plain", Location: path}}, driverQuery, mib)
	require.NoError(t, err)
	assert.Empty(t, decodeAll(t, recs))
}

func TestRunQuery_OneQualifyingRow(t *testing.T) {
	path := writeAllTypes(t,
		fixtures.AllTypes(0, 0, 1.0, 4, "01/01/09"),
		fixtures.AllTypes(2, 0, 1.0, 5, "02/02/09"),
	)

	recs, err := NewSession().RunQuery(context.Background(),
		[]Registration{{Name: "alltypes_plain", Location: path}}, driverQuery, mib)
	require.NoError(t, err)
	defer release(recs)

	assert.Equal(t, []decode.Row{{int32(5), 1.0, "02/02/09"}}, decodeAll(t, recs))
}

func TestRunQuery_RowCountMatchesPredicate(t *testing.T) {
	var rows []fixtures.AllTypesRow
	want := 0
	for i := int32(0); i < 50; i++ {
		rows = append(rows, fixtures.AllTypes(i, i%3, 1.5, i, "03/03/09"))
		if i > 1 && float64(i%3) < 1.5 {
			want++
		}
	}
	var groups [][]fixtures.AllTypesRow
	for len(rows) > 7 {
		groups, rows = append(groups, rows[:7]), rows[7:]
	}
	groups = append(groups, rows)
	path := fixtures.WriteGroups(t, t.TempDir(), "alltypes_plain.parquet", groups...)

	// Row groups of seven rows produce several batches.
	recs, err := NewSession().RunQuery(context.Background(),
		[]Registration{{Name: "alltypes_plain", Location: path}}, driverQuery, 4096)
	require.NoError(t, err)
	defer release(recs)

	var got int64
	for _, rec := range recs {
		assert.NotZero(t, rec.NumRows())
		got += rec.NumRows()
	}
	assert.Equal(t, int64(want), got)
}

func TestRunQuery_DuplicateRegistration(t *testing.T) {
	path := writeAllTypes(t, fixtures.AllTypes(0, 0, 1.0, 4, "01/01/09"))
	regs := []Registration{
		{Name: "alltypes_plain", Location: path},
		{Name: "alltypes_plain", Location: path},
	}

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	s := NewSession(WithTracerProvider(tp))

	recs, err := s.RunQuery(context.Background(), regs, "SELECT nope FROM missing", mib)
	assert.Nil(t, recs)
	require.ErrorIs(t, err, catalog.ErrSourceAlreadyRegistered)
	assert.ErrorIs(t, err, ErrSource)
	assert.NotErrorIs(t, err, ErrPlan)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, StageRegister, qe.Stage)

	// The plan stage never ran.
	for _, span := range sr.Ended() {
		assert.Equal(t, "pqsql.register", span.Name())
	}
	assert.Len(t, sr.Ended(), 2)
}

func TestRunQuery_ZeroBudget(t *testing.T) {
	path := writeAllTypes(t, fixtures.AllTypes(2, 0, 1.0, 5, "02/02/09"))

	recs, err := NewSession().RunQuery(context.Background(),
		[]Registration{{Name: "alltypes_plain", Location: path}}, driverQuery, 0)
	assert.Nil(t, recs)
	require.ErrorIs(t, err, exec.ErrResourceBudgetExceeded)
	assert.ErrorIs(t, err, ErrResource)
}

func TestRunQuery_StageErrors(t *testing.T) {
	path := writeAllTypes(t, fixtures.AllTypes(2, 0, 1.0, 5, "02/02/09"))
	regs := []Registration{{Name: "alltypes_plain", Location: path}}

	tests := []struct {
		name     string
		regs     []Registration
		sql      string
		stage    Stage
		category error
		cause    error
	}{
		{
			name:     "missing file",
			regs:     []Registration{{Name: "t", Location: filepath.Join(t.TempDir(), "none.parquet")}},
			sql:      "SELECT 1 FROM t",
			stage:    StageRegister,
			category: ErrSource,
			cause:    catalog.ErrSourceNotFound,
		},
		{
			name:     "syntax",
			regs:     regs,
			sql:      "SELECT FROM",
			stage:    StagePlan,
			category: ErrPlan,
			cause:    query.ErrSyntax,
		},
		{
			name:     "unknown column",
			regs:     regs,
			sql:      "SELECT nope FROM alltypes_plain",
			stage:    StagePlan,
			category: ErrPlan,
			cause:    plan.ErrUnresolvedReference,
		},
		{
			name:     "type check",
			regs:     regs,
			sql:      "SELECT int_col FROM alltypes_plain WHERE int_col",
			stage:    StagePlan,
			category: ErrPlan,
			cause:    plan.ErrTypeCheck,
		},
		{
			name:     "division by zero",
			regs:     regs,
			sql:      "SELECT int_col / (id - 2) FROM alltypes_plain",
			stage:    StageCollect,
			category: ErrExecution,
			cause:    exec.ErrExecution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := NewSession().RunQuery(context.Background(), tt.regs, tt.sql, mib)
			assert.Nil(t, recs)
			require.ErrorIs(t, err, tt.cause)
			assert.ErrorIs(t, err, tt.category)

			var qe *QueryError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, tt.stage, qe.Stage)
			assert.Contains(t, err.Error(), string(tt.stage)+": ")
		})
	}
}

// brokenRule changes the output schema.
type brokenRule struct{}

func (brokenRule) Name() string { return "broken" }

func (brokenRule) Rewrite(p plan.LogicalPlan) (plan.LogicalPlan, error) {
	return p.Children()[0], nil
}

func TestOptimize_InvariantViolation(t *testing.T) {
	path := writeAllTypes(t, fixtures.AllTypes(2, 0, 1.0, 5, "02/02/09"))
	s := NewSession(WithOptimizer(plan.NewOptimizer(brokenRule{})))

	_, err := s.RunQuery(context.Background(),
		[]Registration{{Name: "alltypes_plain", Location: path}}, driverQuery, mib)
	require.ErrorIs(t, err, plan.ErrPlanInvariantViolation)
	assert.ErrorIs(t, err, ErrPlan)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, StageOptimize, qe.Stage)
}

// orphanNode is a plan without a scan.
type orphanNode struct{}

func (orphanNode) Schema() *arrow.Schema        { return arrow.NewSchema(nil, nil) }
func (orphanNode) Children() []plan.LogicalPlan { return nil }
func (orphanNode) String() string               { return "Orphan" }

func TestCreatePhysicalPlan_MalformedPlan(t *testing.T) {
	_, err := NewSession().CreatePhysicalPlan(context.Background(), orphanNode{}, mib)
	require.ErrorIs(t, err, plan.ErrPlanInvariantViolation)
	assert.ErrorIs(t, err, ErrPlan)
	assert.NotErrorIs(t, err, ErrResource)

	var qe *QueryError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, StagePhysicalize, qe.Stage)
}

func TestRunQuery_BudgetMonotone(t *testing.T) {
	path := writeAllTypes(t, fixtures.AllTypes(2, 0, 1.0, 5, "02/02/09"))
	s := NewSession()
	require.NoError(t, s.RegisterParquet(context.Background(), "alltypes_plain", path))

	succeeded := false
	for _, budget := range []int64{1, 16, 64, 256, 1024, mib} {
		recs, err := s.RunQuery(context.Background(), nil, driverQuery, budget)
		if succeeded {
			assert.NoError(t, err, "budget %d", budget)
		}
		if err == nil {
			succeeded = true
			release(recs)
		} else {
			assert.ErrorIs(t, err, exec.ErrResourceBudgetExceeded)
		}
	}
	assert.True(t, succeeded)
}

func TestRunQuery_Glob(t *testing.T) {
	dir := t.TempDir()
	fixtures.Write(t, dir, "part-0.parquet", []fixtures.AllTypesRow{fixtures.AllTypes(2, 0, 1.0, 5, "02/02/09")})
	fixtures.Write(t, dir, "part-1.parquet", []fixtures.AllTypesRow{fixtures.AllTypes(3, 0, 1.0, 6, "03/03/09")})

	recs, err := NewSession().RunQuery(context.Background(),
		[]Registration{{Name: "alltypes_plain", Location: filepath.Join(dir, "part-*.parquet")}}, driverQuery, mib)
	require.NoError(t, err)
	defer release(recs)

	assert.Equal(t, []decode.Row{
		{int32(5), 1.0, "02/02/09"},
		{int32(6), 1.0, "03/03/09"},
	}, decodeAll(t, recs))
}

func TestSession_Spans(t *testing.T) {
	path := writeAllTypes(t, fixtures.AllTypes(2, 0, 1.0, 5, "02/02/09"))
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	s := NewSession(WithTracerProvider(tp), WithLogger(hclog.NewNullLogger()))

	recs, err := s.RunQuery(context.Background(),
		[]Registration{{Name: "alltypes_plain", Location: path}}, driverQuery, mib)
	require.NoError(t, err)
	release(recs)

	var names []string
	for _, span := range sr.Ended() {
		names = append(names, span.Name())
	}
	assert.Equal(t, []string{"pqsql.register", "pqsql.plan", "pqsql.optimize", "pqsql.physicalize", "pqsql.collect"}, names)
	assert.NotEmpty(t, s.ID())
	assert.NotEqual(t, s.ID(), NewSession().ID())
}

func TestExplain(t *testing.T) {
	path := writeAllTypes(t, fixtures.AllTypes(2, 0, 1.0, 5, "02/02/09"))
	s := NewSession()
	require.NoError(t, s.RegisterParquet(context.Background(), "alltypes_plain", path))

	out, err := s.Explain(context.Background(), "SELECT int_col FROM alltypes_plain LIMIT 1", mib)
	require.NoError(t, err)

	assert.Contains(t, out, "logical_plan\n  Limit: skip=0, fetch=1\n")
	assert.Contains(t, out, "optimized_plan\n")
	assert.Contains(t, out, "TableScan: alltypes_plain projection=[int_col]")
	assert.Contains(t, out, "physical_plan\n  LimitExec: skip=0, fetch=1\n")
	assert.Contains(t, out, "ParquetScanExec: alltypes_plain files=1 row_groups=1 columns=[int_col]")
}

func TestOutputSchema(t *testing.T) {
	path := writeAllTypes(t, fixtures.AllTypes(2, 0, 1.0, 5, "02/02/09"))
	s := NewSession()
	require.NoError(t, s.RegisterParquet(context.Background(), "alltypes_plain", path))

	schema, err := s.OutputSchema(context.Background(), driverQuery)
	require.NoError(t, err)

	types, err := decode.TypesFromSchema(schema)
	require.NoError(t, err)
	assert.Equal(t, driverTypes, types)
}
