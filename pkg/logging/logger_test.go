package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInitLoggerJSONWithComponent(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logger := initLogger(&buf, Config{Level: "debug", Format: "json"})
	NewComponentLogger(logger, "session").Debug("session_started", "call_sid", "CA1")

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected one json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "session_started" {
		t.Fatalf("unexpected msg: %v", entry["msg"])
	}
	if entry["component"] != "session" {
		t.Fatalf("expected component attr, got %v", entry["component"])
	}
}

func TestInitLoggerWarnsOnUnknownLevel(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	initLogger(&buf, Config{Level: "loud", Format: "text"})
	if !strings.Contains(buf.String(), "invalid log level") {
		t.Fatalf("expected warning about level, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"":        slog.LevelInfo,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Fatalf("ParseLevel(%q) = %v,%v want %v", in, got, ok, want)
		}
	}
}
