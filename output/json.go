package output

import (
	"bufio"
	"encoding/json"
	"io"
	"unicode/utf8"
)

// JSONFormatter outputs rows as JSON Lines format
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter creates a new JSON Lines formatter
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput sets the output writer
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

// Format writes one JSON object per row. Keys keep the column order.
func (j *JSONFormatter) Format(result *Result) error {
	keys := make([][]byte, len(result.Columns))
	for i, name := range result.Columns {
		key, err := json.Marshal(name)
		if err != nil {
			return err
		}
		keys[i] = key
	}

	w := bufio.NewWriter(j.writer)
	for _, rows := range result.Batches {
		for _, row := range rows {
			w.WriteByte('{')
			for i, v := range row {
				if i > 0 {
					w.WriteByte(',')
				}
				val, err := json.Marshal(jsonValue(v))
				if err != nil {
					return err
				}
				w.Write(keys[i])
				w.WriteByte(':')
				w.Write(val)
			}
			w.WriteString("}\n")
		}
	}
	return w.Flush()
}

// jsonValue keeps UTF-8 byte strings readable instead of base64.
func jsonValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok && utf8.Valid(b) {
		return string(b)
	}
	return v
}
