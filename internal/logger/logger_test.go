package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Setenv("DEBUG", "")
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseLevel_DebugEnvFallback(t *testing.T) {
	t.Setenv("DEBUG", "true")
	if got := ParseLevel(""); got != slog.LevelDebug {
		t.Errorf("expected debug level from DEBUG=true, got %v", got)
	}
}

func TestInitWithWriter(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "warn")

	Info("hidden")
	Warn("shown", "feed", "https://example.com/rss")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "feed=https://example.com/rss") {
		t.Errorf("expected warn message with attribute, got %q", out)
	}
}
