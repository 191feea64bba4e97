package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adamavenir/frayfeed/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Fatalf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "feed.log")
	log, closer, err := New(core.LogConfig{Level: "debug", Sink: "file:" + path})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Debug("history_loaded", "direction", "older", "count", 3)
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "msg=history_loaded direction=older count=3") {
		t.Fatalf("log line: %s", data)
	}
}

func TestUnknownSink(t *testing.T) {
	if _, _, err := New(core.LogConfig{Sink: "syslog"}); err == nil {
		t.Fatalf("expected error")
	}
}
