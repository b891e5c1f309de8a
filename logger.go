package scape

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with scape-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithStrategy adds a generation-strategy field to the logger.
func (l *Logger) WithStrategy(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("strategy", name),
	}
}

// WithModel adds a model ID field to the logger.
func (l *Logger) WithModel(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("model", id),
	}
}

// LogFit logs a landmark training run.
func (l *Logger) LogFit(ctx context.Context, strategy string, points, landmarks int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fit failed",
			"strategy", strategy,
			"points", points,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "fit completed",
			"strategy", strategy,
			"points", points,
			"landmarks", landmarks,
			"duration", duration,
		)
	}
}

// LogLayout logs a landmark layout run.
func (l *Logger) LogLayout(ctx context.Context, provider string, dims int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "layout failed",
			"provider", provider,
			"dims", dims,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "layout completed",
			"provider", provider,
			"dims", dims,
			"duration", duration,
		)
	}
}

// LogProject logs a projection run.
func (l *Logger) LogProject(ctx context.Context, points, k int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "projection failed",
			"points", points,
			"k", k,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "projection completed",
			"points", points,
			"k", k,
			"duration", duration,
		)
	}
}

// LogSnapshot logs a model snapshot save or load.
func (l *Logger) LogSnapshot(ctx context.Context, op, target string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"op", op,
			"target", target,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot completed",
			"op", op,
			"target", target,
		)
	}
}
