package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/vegasq/pqsql/decode"
	"github.com/vegasq/pqsql/engine"
	"github.com/vegasq/pqsql/internal/config"
	"github.com/vegasq/pqsql/output"
	"github.com/vegasq/pqsql/reader"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// tableFlags collects repeated -t name=path flags.
type tableFlags []config.Table

func (t *tableFlags) String() string {
	parts := make([]string, len(*t))
	for i, tb := range *t {
		parts[i] = tb.Name + "=" + tb.Location
	}
	return strings.Join(parts, ",")
}

func (t *tableFlags) Set(v string) error {
	tb, err := config.ParseTable(v)
	if err != nil {
		return err
	}
	*t = append(*t, tb)
	return nil
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, os.Getenv))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) int {
	fs := flag.NewFlagSet("pqsql", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var tables tableFlags
	queryFlag := fs.String("q", "", "SQL query (default: the alltypes_plain example query)")
	formatFlag := fs.String("f", "", "Output format: text, jsonl, csv, table")
	budgetFlag := fs.String("budget", "", "Memory budget in bytes, e.g. 1048576 or 1MiB")
	configFlag := fs.String("config", "", "YAML config file (default: $"+config.EnvConfig+")")
	explainFlag := fs.Bool("explain", false, "Print the logical, optimized and physical plans instead of running")
	schemaFlag := fs.Bool("schema", false, "Show the schema of the registered tables instead of running")
	fs.Var(&tables, "t", "Register a table as name=path; path may be a glob (repeatable)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pqsql [options]\n\n")
		fmt.Fprintf(stderr, "Runs one SQL query over registered Parquet files.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nEnvironment:\n")
		fmt.Fprintf(stderr, "  %s     directory holding alltypes_plain.parquet\n", config.EnvTestData)
		fmt.Fprintf(stderr, "  %s   memory budget (default 1MiB)\n", config.EnvMemoryBudget)
		fmt.Fprintf(stderr, "  %s       log level (default warn)\n", config.EnvLogLevel)
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  pqsql\n")
		fmt.Fprintf(stderr, "  pqsql -f table -q \"select id, int_col from alltypes_plain limit 3\"\n")
		fmt.Fprintf(stderr, "  pqsql -t 'events=data/*.parquet' -q \"select * from events where id > 10\"\n")
		fmt.Fprintf(stderr, "  pqsql -explain -budget 64KiB\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "Error: unexpected argument %q\n\n", fs.Arg(0))
		fs.Usage()
		return exitUsage
	}
	if *schemaFlag && *explainFlag {
		fmt.Fprintf(stderr, "Error: -schema and -explain cannot be used together\n")
		return exitUsage
	}

	cfg, err := config.Load(*configFlag, getenv)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	if *queryFlag != "" {
		cfg.Query = *queryFlag
	}
	if *formatFlag != "" {
		cfg.Format = *formatFlag
	}
	if *budgetFlag != "" {
		if cfg.MemoryBudget, err = config.ParseBytes(*budgetFlag); err != nil {
			fmt.Fprintf(stderr, "Error: -budget: %v\n", err)
			return exitUsage
		}
	}
	cfg.Tables = append(cfg.Tables, tables...)

	regs, err := cfg.Registrations()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	level := hclog.LevelFromString(cfg.LogLevel)
	if level == hclog.NoLevel {
		fmt.Fprintf(stderr, "Error: unknown log level %q\n", cfg.LogLevel)
		return exitUsage
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "pqsql",
		Level:  level,
		Output: stderr,
	})

	session := engine.NewSession(engine.WithLogger(logger))
	logger.Debug("starting", "session", session.ID(), "tables", len(regs), "budget", cfg.MemoryBudget)

	for _, r := range regs {
		if err := session.RegisterParquet(ctx, r.Name, r.Location); err != nil {
			return fail(stderr, err)
		}
	}

	switch {
	case *schemaFlag:
		return showSchema(session, cfg.Format, stdout, stderr)
	case *explainFlag:
		out, err := session.Explain(ctx, cfg.Query, cfg.MemoryBudget)
		if err != nil {
			return fail(stderr, err)
		}
		fmt.Fprint(stdout, out)
		return exitOK
	}

	schema, err := session.OutputSchema(ctx, cfg.Query)
	if err != nil {
		return fail(stderr, err)
	}
	types, err := decode.TypesFromSchema(schema)
	if err != nil {
		fmt.Fprintf(stderr, "Error: decode: %v\n", err)
		return exitError
	}

	names := make([]string, len(schema.Fields()))
	for i, f := range schema.Fields() {
		names[i] = f.Name
	}
	opts := append([]output.Option{output.WithColumns(names)}, reportOptions(cfg)...)
	reporter, err := output.NewReporter(cfg.Format, stdout, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	recs, err := session.RunQuery(ctx, nil, cfg.Query, cfg.MemoryBudget)
	if err != nil {
		return fail(stderr, err)
	}
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()

	decoder := &decode.Decoder{Types: types}
	if err := reporter.Report(recs, decoder.Decode); err != nil {
		stage := "report"
		if errors.Is(err, decode.ErrTypeMismatch) || errors.Is(err, decode.ErrColumnCount) {
			stage = "decode"
		}
		fmt.Fprintf(stderr, "Error: %s: %v\n", stage, err)
		return exitError
	}
	return exitOK
}

// reportOptions reproduces the example driver's "Date, Int, Double" lines
// when the default query runs in text format.
func reportOptions(cfg *config.Config) []output.Option {
	if cfg.Query != config.DefaultQuery || (cfg.Format != "" && cfg.Format != output.FormatText) {
		return nil
	}
	return []output.Option{
		output.WithOrder([]int{2, 0, 1}),
		output.WithLabels([]string{"Date", "Int", "Double"}),
	}
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitError
}

// showSchema prints the column metadata of every registered table.
func showSchema(session *engine.Session, format string, stdout, stderr io.Writer) int {
	formatter, err := output.NewFormatter(format, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	result := &output.Result{
		Columns: []string{"table", "name", "type", "physical_type", "logical_type", "arrow_type", "required", "optional", "repeated"},
	}
	for _, t := range session.Catalog().Tables() {
		// Files of a glob share one schema; the first is representative.
		infos, err := reader.ExtractSchemaInfo(t.Files[0])
		if err != nil {
			fmt.Fprintf(stderr, "Error: schema: %s: %v\n", t.Name, err)
			return exitError
		}
		rows := make([]decode.Row, len(infos))
		for i, f := range infos {
			rows[i] = decode.Row{t.Name, f.Name, f.Type, f.PhysicalType, f.LogicalType, f.ArrowType, f.Required, f.Optional, f.Repeated}
		}
		result.Batches = append(result.Batches, rows)
	}

	if err := formatter.Format(result); err != nil {
		fmt.Fprintf(stderr, "Error: report: %v\n", err)
		return exitError
	}
	return exitOK
}
