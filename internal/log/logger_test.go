package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Output: &buf, Component: ComponentQuery})

	fields := NewFields().WithOperation(OpRankByYear).WithYears(2020, 0).WithLimit(5).WithError(errors.New("boom"))
	l.WarnContext(context.Background(), "query failed", fields.ToSlice()...)

	out := buf.String()
	for _, want := range []string{"component=query", "operation=rank_by_year", "year=2020", "limit=5", "error=boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestWithYearsSpan(t *testing.T) {
	f := NewFields().WithYears(2000, 2010)
	if f[FieldStartYear] != 2000 || f[FieldEndYear] != 2010 {
		t.Fatalf("unexpected fields %v", f)
	}
	if _, ok := f[FieldYear]; ok {
		t.Fatal("span should not set year")
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatal("expected fallback logger")
	}
	l := Discard().WithComponent(ComponentHTTP)
	if FromContext(NewContext(context.Background(), l)) != l {
		t.Fatal("expected stored logger")
	}
}
