package logger_test

import (
	stdlog "log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"revenue-balance/internal/logger"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := logger.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_WritesRotatingFile(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)
	defer stdlog.SetOutput(os.Stderr)

	path := filepath.Join(t.TempDir(), "balancer.log")
	log, closer := logger.New(logger.Options{Service: "balancer", Level: "debug", File: path})
	log.Debug("order classified", "event", "order_classified", "order_id", "101")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	for _, want := range []string{`"event":"order_classified"`, `"service":"balancer"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected %s in log output, got %s", want, data)
		}
	}
}
