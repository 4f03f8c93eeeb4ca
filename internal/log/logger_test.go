package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNewJSONLoggerWritesComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentEngine, Output: &buf})

	l.WithComponent("budgets").Info("stage done", FieldUserID, "u1")

	line := buf.String()
	if strings.Count(line, `"component"`) != 1 {
		t.Fatalf("expected component once, got %s", line)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", line, err)
	}
	if rec[FieldComponent] != ComponentEngine || rec[FieldSubComponent] != "budgets" || rec[FieldUserID] != "u1" {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Output: &buf})
	l.Info("hidden")
	l.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"WARNING", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("ParseLevel(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

func TestFieldsToSliceIsSorted(t *testing.T) {
	s := NewFields().
		WithUser("u1").
		WithAnalyzer("goals").
		WithError(errors.New("boom")).
		WithDuration(1500 * time.Millisecond).
		ToSlice()
	want := []any{FieldAnalyzer, "goals", FieldDuration, int64(1500), FieldError, "boom", FieldUserID, "u1"}
	if len(s) != len(want) {
		t.Fatalf("expected %v, got %v", want, s)
	}
	for i := range want {
		if s[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, s)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	l := Discard()
	if FromContext(NewContext(context.Background(), l)) != l {
		t.Fatalf("expected stored logger")
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}
