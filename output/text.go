package output

import (
	"bufio"
	"fmt"
	"io"
)

// TextFormatter prints a summary line per batch followed by one
// "label: value" line per row.
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(w io.Writer) *TextFormatter {
	return &TextFormatter{writer: w}
}

// SetOutput sets the output writer
func (f *TextFormatter) SetOutput(w io.Writer) {
	f.writer = w
}

// Format writes every batch of the result
func (f *TextFormatter) Format(result *Result) error {
	w := bufio.NewWriter(f.writer)
	for _, rows := range result.Batches {
		fmt.Fprintf(w, "RecordBatch has %d rows and %d columns\n", len(rows), len(result.Columns))
		for _, row := range rows {
			for i, v := range row {
				if i > 0 {
					w.WriteString(", ")
				}
				w.WriteString(result.Columns[i])
				w.WriteString(": ")
				w.WriteString(FormatValue(v))
			}
			w.WriteByte('\n')
		}
	}
	return w.Flush()
}
