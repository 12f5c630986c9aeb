package output

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/vegasq/pqsql/decode"
)

// Result is what a formatter renders: column labels plus the decoded rows
// of every batch, in order.
type Result struct {
	Columns []string
	Batches [][]decode.Row
}

// NumRows returns the total number of rows.
func (r *Result) NumRows() int {
	n := 0
	for _, b := range r.Batches {
		n += len(b)
	}
	return n
}

// Formatter defines the interface for output formatters.
//
// Implementers must provide Format to render a result in the target format
// and SetOutput to change the output destination.
type Formatter interface {
	// Format writes the result in the formatter's specific format
	Format(result *Result) error

	// SetOutput changes the output writer
	SetOutput(w io.Writer)
}

// NewFormatter returns the formatter registered under name.
func NewFormatter(name string, w io.Writer) (Formatter, error) {
	switch name {
	case "", FormatText:
		return NewTextFormatter(w), nil
	case FormatJSONL, "json":
		return NewJSONFormatter(w), nil
	case FormatCSV:
		return NewCSVFormatter(w), nil
	case FormatTable:
		return NewTableFormatter(w), nil
	}
	return nil, fmt.Errorf("%w: %q (supported: %s, %s, %s, %s)", ErrUnknownFormat, name, FormatText, FormatJSONL, FormatCSV, FormatTable)
}

// Format names.
const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
	FormatCSV   = "csv"
	FormatTable = "table"
)

// FormatValue renders a decoded value as text. NULL renders as "NULL" in
// text and table output; CSV leaves the field empty.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case []byte:
		if utf8.Valid(val) {
			return string(val)
		}
		return "0x" + hex.EncodeToString(val)
	case int8, int16, int32, int64:
		return fmt.Sprintf("%d", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		if val.Equal(val.Truncate(24 * time.Hour)) {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05.999999999")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// errWriter remembers the first write error of writers whose callers do not
// report it.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
