package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("trace"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(&buf, "warn", false)
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hidden")
	l.Warn("shown", "column", "market_cap")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "column=market_cap") {
		t.Fatalf("unexpected output: %q", out)
	}

	buf.Reset()
	l, _ = New(&buf, "error", true)
	l.Debug("trace step")
	if !strings.Contains(buf.String(), "trace step") {
		t.Fatalf("debug flag should force debug level: %q", buf.String())
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("expected a logger")
	}
	l := Discard()
	if OrDiscard(l) != l {
		t.Fatal("expected the same logger back")
	}
}
