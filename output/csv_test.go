package output

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/vegasq/pqsql/decode"
)

func TestCSVFormatter_Format(t *testing.T) {
	tests := []struct {
		name      string
		result    *Result
		wantLines int
		wantErr   bool
	}{
		{
			name:      "empty result",
			result:    &Result{Columns: []string{"id"}},
			wantLines: 0,
		},
		{
			name: "single row",
			result: &Result{
				Columns: []string{"id", "name", "age"},
				Batches: [][]decode.Row{{{int64(1), "alice", int32(30)}}},
			},
			wantLines: 2, // header + 1 data row
		},
		{
			name: "rows across batches",
			result: &Result{
				Columns: []string{"id", "name", "age"},
				Batches: [][]decode.Row{
					{{int64(1), "alice", int32(30)}},
					{},
					{{int64(2), "bob", int32(25)}},
				},
			},
			wantLines: 3, // header + 2 data rows
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			formatter := NewCSVFormatter(&buf)

			err := formatter.Format(tt.result)
			if (err != nil) != tt.wantErr {
				t.Errorf("Format() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if tt.wantErr {
				return
			}

			output := buf.String()
			if tt.wantLines == 0 {
				if output != "" {
					t.Errorf("Format() output should be empty for empty results")
				}
				return
			}

			// Parse CSV to verify format
			reader := csv.NewReader(strings.NewReader(output))
			records, err := reader.ReadAll()
			if err != nil {
				t.Errorf("Format() produced invalid CSV: %v", err)
				return
			}

			if len(records) != tt.wantLines {
				t.Errorf("Format() produced %d lines, want %d", len(records), tt.wantLines)
			}
		})
	}
}

func TestCSVFormatter_ColumnOrder(t *testing.T) {
	// Columns keep the result order
	result := &Result{
		Columns: []string{"z_last", "a_first", "m_middle"},
		Batches: [][]decode.Row{{{"value1", "value2", "value3"}}},
	}

	var buf bytes.Buffer
	if err := NewCSVFormatter(&buf).Format(result); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}

	header := records[0]
	want := []string{"z_last", "a_first", "m_middle"}
	for i := range want {
		if header[i] != want[i] {
			t.Errorf("column %d should be %q, got %q", i, want[i], header[i])
		}
	}
}

func TestCSVFormatter_TypeFormatting(t *testing.T) {
	result := &Result{
		Columns: []string{"string", "int", "float", "bool", "nil", "bytes"},
		Batches: [][]decode.Row{{{"alice", int64(42), float64(3.14), true, nil, []byte("02/02/09")}}},
	}

	var buf bytes.Buffer
	if err := NewCSVFormatter(&buf).Format(result); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV: %v", err)
	}

	if len(records) != 2 {
		t.Fatalf("Expected 2 records (header + data), got %d", len(records))
	}

	want := []string{"alice", "42", "3.14", "true", "", "02/02/09"}
	for i, w := range want {
		if records[1][i] != w {
			t.Errorf("%s column should be %q, got %q", records[0][i], w, records[1][i])
		}
	}
}

func TestCSVFormatter_Injection(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{name: "formula", value: "=SUM(A1:A2)", want: "'=SUM(A1:A2)"},
		{name: "plus", value: "+1", want: "'+1"},
		{name: "at", value: "@cmd", want: "'@cmd"},
		{name: "quote escaped", value: "=a'b", want: "'=a''b"},
		{name: "bytes", value: []byte("-x"), want: "'-x"},
		{name: "negative number untouched", value: int64(-5), want: "-5"},
		{name: "plain", value: "hello", want: "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatCSVValue(tt.value); got != tt.want {
				t.Errorf("formatCSVValue(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestCSVFormatter_SpecialCharacters(t *testing.T) {
	result := &Result{
		Columns: []string{"name", "quote", "newline"},
		Batches: [][]decode.Row{{{"Alice, Bob", `He said "hello"`, "line1\nline2"}}},
	}

	var buf bytes.Buffer
	if err := NewCSVFormatter(&buf).Format(result); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	// CSV library should handle escaping automatically
	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse CSV with special characters: %v", err)
	}

	if records[1][0] != "Alice, Bob" {
		t.Errorf("comma in value not handled correctly")
	}
	if records[1][1] != `He said "hello"` {
		t.Errorf("quotes in value not handled correctly")
	}
	if records[1][2] != "line1\nline2" {
		t.Errorf("newline in value not handled correctly")
	}
}

func TestCSVFormatter_SetOutput(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	formatter := NewCSVFormatter(&buf1)

	result := &Result{
		Columns: []string{"id", "name"},
		Batches: [][]decode.Row{{{int64(1), "alice"}}},
	}

	if err := formatter.Format(result); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if buf1.Len() == 0 {
		t.Error("First buffer should have content")
	}

	// Change output and write again
	formatter.SetOutput(&buf2)
	if err := formatter.Format(result); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if buf2.Len() == 0 {
		t.Error("Second buffer should have content")
	}
}
