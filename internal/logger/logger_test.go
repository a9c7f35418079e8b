package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "info", "prod")
	l.Info("Sync complete", "added", 2)
	l.Debug("hidden")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected a single json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "Sync complete" {
		t.Errorf("unexpected msg %v", entry["msg"])
	}
	if entry["added"] != float64(2) {
		t.Errorf("unexpected added %v", entry["added"])
	}
}

func TestNewDevWritesText(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "debug", "dev")
	l.Debug("Adding host", "host", "a.example.com")

	out := buf.String()
	if !strings.Contains(out, "Adding host") || !strings.Contains(out, "a.example.com") {
		t.Errorf("unexpected dev output %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("expected no color codes for a non-terminal writer, got %q", out)
	}
}
