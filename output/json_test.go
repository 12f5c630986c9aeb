package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/vegasq/pqsql/decode"
)

func TestJSONFormatter_Format(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
	}{
		{
			name:   "empty result",
			result: &Result{Columns: []string{"id"}},
		},
		{
			name: "single row",
			result: &Result{
				Columns: []string{"id", "name", "age"},
				Batches: [][]decode.Row{{{int64(1), "alice", int32(30)}}},
			},
		},
		{
			name: "multiple batches",
			result: &Result{
				Columns: []string{"id", "name", "age"},
				Batches: [][]decode.Row{
					{{int64(1), "alice", int32(30)}},
					{{int64(2), "bob", int32(25)}},
				},
			},
		},
		{
			name: "nil values",
			result: &Result{
				Columns: []string{"id", "name"},
				Batches: [][]decode.Row{{{int64(1), nil}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewJSONFormatter(&buf).Format(tt.result); err != nil {
				t.Fatalf("Format() error = %v", err)
			}

			output := buf.String()
			if tt.result.NumRows() == 0 {
				if output != "" {
					t.Errorf("Format() output should be empty for empty results, got %q", output)
				}
				return
			}

			lines := strings.Split(strings.TrimSpace(output), "\n")
			if len(lines) != tt.result.NumRows() {
				t.Errorf("Format() produced %d lines, want %d", len(lines), tt.result.NumRows())
			}

			// Verify each line is valid JSON
			for i, line := range lines {
				var decoded map[string]interface{}
				if err := json.Unmarshal([]byte(line), &decoded); err != nil {
					t.Errorf("Format() line %d is not valid JSON: %v", i, err)
				}
			}
		})
	}
}

func TestJSONFormatter_OutputFormat(t *testing.T) {
	result := &Result{
		Columns: []string{"id", "name", "active", "raw"},
		Batches: [][]decode.Row{{
			{int64(1), "alice", true, []byte("02/02/09")},
			{int64(2), "bob", false, []byte{0xff}},
		}},
	}

	var buf bytes.Buffer
	if err := NewJSONFormatter(&buf).Format(result); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	want := `{"id":1,"name":"alice","active":true,"raw":"02/02/09"}` + "\n" +
		`{"id":2,"name":"bob","active":false,"raw":"/w=="}` + "\n"
	if buf.String() != want {
		t.Errorf("Format() = %q, want %q", buf.String(), want)
	}
}

func TestJSONFormatter_SetOutput(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	formatter := NewJSONFormatter(&buf1)

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

	formatter.SetOutput(&buf2)
	if err := formatter.Format(result); err != nil {
		t.Fatalf("Format() error = %v", err)
	}
	if buf2.Len() == 0 {
		t.Error("Second buffer should have content")
	}
}
