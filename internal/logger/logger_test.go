package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestTruncateForLog(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		limit    int
		expected string
	}{
		{"short untouched", "hello", 10, "hello"},
		{"trimmed", "  hello  ", 10, "hello"},
		{"truncated", "hello world", 5, "hello..."},
		{"zero limit", "hello", 0, ""},
		{"multibyte", "héllo wörld", 5, "héllo..."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TruncateForLog(tc.input, tc.limit); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestStringFieldsSkipsEmpty(t *testing.T) {
	fields := StringFields(
		StringField{Key: "a", Value: "1"},
		StringField{Key: "", Value: "2"},
		StringField{Key: "b", Value: "  "},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "a" {
		t.Fatalf("unexpected field: %+v", fields[0])
	}
}

func TestWithFieldsNilLogger(t *testing.T) {
	if got := WithFields(nil); got == nil {
		t.Fatal("expected non-nil logger")
	}

	if got := WithGenerationFields(nil, "gemini", "gemini-test"); got == nil {
		t.Fatal("expected non-nil logger")
	}

	if got := WithFields(zap.NewNop(), zap.String("k", "v")); got == nil {
		t.Fatal("expected non-nil logger")
	}
}
