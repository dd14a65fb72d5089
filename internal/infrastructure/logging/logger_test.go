package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/hearth-home/hearth-core/internal/infrastructure/config"
)

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		level       string
		debugPasses bool
		warnPasses  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"error", false, false},
		{"nonsense", false, true}, // falls back to info
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := New(config.LoggingConfig{Level: tt.level, Format: "json", Output: "stdout"}, "test")

			ctx := context.Background()
			if got := logger.Enabled(ctx, slog.LevelDebug); got != tt.debugPasses {
				t.Errorf("debug enabled = %v, want %v", got, tt.debugPasses)
			}
			if got := logger.Enabled(ctx, slog.LevelWarn); got != tt.warnPasses {
				t.Errorf("warn enabled = %v, want %v", got, tt.warnPasses)
			}
		})
	}
}

func TestNew_FormatAndOutputVariants(t *testing.T) {
	// Every combination must produce a usable logger; bad values fall
	// back rather than fail.
	for _, format := range []string{"json", "text", "TEXT", ""} {
		for _, output := range []string{"stdout", "stderr", "STDERR", ""} {
			logger := New(config.LoggingConfig{Level: "info", Format: format, Output: output}, "test")
			if logger == nil || logger.Logger == nil {
				t.Fatalf("New(format=%q, output=%q) produced unusable logger", format, output)
			}
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestWith_ReturnsChildLogger(t *testing.T) {
	parent := Default()
	child := parent.With("component", "engine")

	if child == nil || child == parent {
		t.Fatal("With() must return a distinct logger")
	}
	// The child shares the parent's handler chain and level.
	if child.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("child logger gained debug level unexpectedly")
	}
}

func TestDefault(t *testing.T) {
	logger := Default()
	if logger == nil {
		t.Fatal("Default() returned nil")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("default logger should log at info")
	}
}
