// Package config loads the driver configuration from the environment and an
// optional YAML file.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables. Command line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables.
const (
	EnvTestData     = "PARQUET_TEST_DATA"
	EnvMemoryBudget = "PQSQL_MEMORY_BUDGET"
	EnvLogLevel     = "PQSQL_LOG_LEVEL"
	EnvConfig       = "PQSQL_CONFIG"
)

// Defaults reproduce the example driver.
const (
	DefaultTable        = "alltypes_plain"
	DefaultFile         = "alltypes_plain.parquet"
	DefaultMemoryBudget = 1024 * 1024
	DefaultLogLevel     = "warn"
	DefaultFormat       = "text"
	DefaultQuery        = "SELECT int_col, double_col, CAST(date_string_col as VARCHAR) " +
		"FROM alltypes_plain WHERE id > 1 AND tinyint_col < double_col"
)

var (
	// ErrMissingTestData is returned when PARQUET_TEST_DATA is unset and no
	// other table is configured.
	ErrMissingTestData = errors.New(EnvTestData + " is not set")

	// ErrInvalid is returned for malformed configuration values.
	ErrInvalid = errors.New("invalid configuration")
)

// Table registers a parquet file or glob pattern under a name.
type Table struct {
	Name     string `yaml:"name"`
	Location string `yaml:"location"`
}

// Config is the driver configuration.
type Config struct {
	// TestData is the directory holding the default table's file.
	TestData string `yaml:"test_data"`

	Tables       []Table `yaml:"tables"`
	Query        string  `yaml:"query"`
	MemoryBudget int64   `yaml:"memory_budget"`
	Format       string  `yaml:"format"`
	LogLevel     string  `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Query:        DefaultQuery,
		MemoryBudget: DefaultMemoryBudget,
		Format:       DefaultFormat,
		LogLevel:     DefaultLogLevel,
	}
}

// Load builds the configuration. path names a YAML file; when empty the
// file named by PQSQL_CONFIG is used, if any. getenv is os.Getenv outside
// of tests.
func Load(path string, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path == "" {
		path = getenv(EnvConfig)
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if v := getenv(EnvTestData); v != "" {
		cfg.TestData = v
	}
	if v := getenv(EnvMemoryBudget); v != "" {
		n, err := ParseBytes(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvMemoryBudget, err)
		}
		cfg.MemoryBudget = n
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: reading config file: %w", ErrInvalid, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: parsing %s: %w", ErrInvalid, path, err)
	}

	// Relative locations are relative to the config file.
	dir := filepath.Dir(path)
	for i, t := range c.Tables {
		if t.Name == "" || t.Location == "" {
			return fmt.Errorf("%w: table %d in %s needs a name and a location", ErrInvalid, i, path)
		}
		if !filepath.IsAbs(t.Location) {
			c.Tables[i].Location = filepath.Join(dir, t.Location)
		}
	}
	return nil
}

// Registrations returns the tables to register. When TestData is set the
// default table comes first, followed by the configured tables. Without
// either there is nothing to query.
func (c *Config) Registrations() ([]Table, error) {
	var tables []Table
	if c.TestData != "" {
		tables = append(tables, Table{Name: DefaultTable, Location: filepath.Join(c.TestData, DefaultFile)})
	}
	tables = append(tables, c.Tables...)
	if len(tables) == 0 {
		return nil, ErrMissingTestData
	}
	return tables, nil
}

// ParseTable parses a "name=location" flag value.
func ParseTable(s string) (Table, error) {
	name, location, ok := strings.Cut(s, "=")
	name, location = strings.TrimSpace(name), strings.TrimSpace(location)
	if !ok || name == "" || location == "" {
		return Table{}, fmt.Errorf("%w: table %q, expected name=path", ErrInvalid, s)
	}
	return Table{Name: name, Location: location}, nil
}

var byteUnits = []struct {
	suffix string
	scale  int64
}{
	{"GiB", 1 << 30}, {"MiB", 1 << 20}, {"KiB", 1 << 10},
	{"G", 1 << 30}, {"M", 1 << 20}, {"K", 1 << 10},
	{"B", 1},
}

// ParseBytes parses a byte count with an optional binary unit suffix
// ("512", "64KiB", "1M"). Negative and overflowing counts are rejected.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	scale := int64(1)
	for _, u := range byteUnits {
		if strings.HasSuffix(s, u.suffix) {
			s, scale = strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), u.scale
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: byte count %q", ErrInvalid, s)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative byte count %d", ErrInvalid, n)
	}
	if n > math.MaxInt64/scale {
		return 0, fmt.Errorf("%w: byte count %d overflows", ErrInvalid, n)
	}
	return n * scale, nil
}
