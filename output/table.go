package output

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
)

// TableFormatter renders all rows as one ASCII table.
type TableFormatter struct {
	writer io.Writer
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{writer: w}
}

// SetOutput sets the output writer
func (f *TableFormatter) SetOutput(w io.Writer) {
	f.writer = w
}

// Format renders the result. The footer holds the row count.
func (f *TableFormatter) Format(result *Result) error {
	w := &errWriter{w: f.writer}

	table := tablewriter.NewWriter(w)
	table.SetHeader(result.Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, rows := range result.Batches {
		for _, row := range rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = FormatValue(v)
			}
			table.Append(cells)
		}
	}
	table.Render()
	if w.err != nil {
		return w.err
	}

	_, err := io.WriteString(w, rowCount(result.NumRows()))
	return err
}

func rowCount(n int) string {
	if n == 1 {
		return "(1 row)\n"
	}
	return "(" + strconv.Itoa(n) + " rows)\n"
}
