package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVFormatter outputs rows as CSV format
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// SetOutput sets the output writer
func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

// Format writes a header row followed by the rows of every batch. A result
// without rows produces no output.
func (c *CSVFormatter) Format(result *Result) error {
	csvWriter := csv.NewWriter(c.writer)

	if result.NumRows() == 0 {
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			return fmt.Errorf("failed to flush CSV writer: %w", err)
		}
		return nil
	}

	if err := csvWriter.Write(result.Columns); err != nil {
		return err
	}

	record := make([]string, len(result.Columns))
	for _, rows := range result.Batches {
		for _, row := range rows {
			for i, v := range row {
				record[i] = formatCSVValue(v)
			}
			if err := csvWriter.Write(record); err != nil {
				return err
			}
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}

	return nil
}

// formatCSVValue converts a value to string for CSV output
func formatCSVValue(v interface{}) string {
	if v == nil {
		return ""
	}

	s := FormatValue(v)
	if _, ok := v.(string); !ok {
		if _, ok := v.([]byte); !ok {
			return s
		}
	}

	// Sanitize against CSV injection by prefixing dangerous characters
	// that could trigger formula execution in spreadsheet applications
	if len(s) > 0 {
		switch s[0] {
		case '=', '+', '-', '@', '\t', '\r', '\n', '|':
			return "'" + strings.ReplaceAll(s, "'", "''")
		}
	}
	return s
}
