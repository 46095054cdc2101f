package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONLoggerAddsService(t *testing.T) {
	var buf bytes.Buffer
	NewJSONLoggerTo(&buf, "hub-api", "info").Info("started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "hub-api" || entry["msg"] != "started" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestOpenLogFile(t *testing.T) {
	f, err := OpenLogFile(filepath.Join(t.TempDir(), "logs", "hubctl.log"))
	if err != nil {
		t.Fatalf("OpenLogFile() error = %v", err)
	}
	defer f.Close()
	NewJSONLoggerTo(f, "hubctl", "debug").Debug("hello")
}
