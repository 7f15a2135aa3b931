package atomicvec

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with atomicvec-specific helpers.
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
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogSave logs a snapshot save operation.
func (l *Logger) LogSave(ctx context.Context, count uint64, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.ErrorContext(ctx, "snapshot save failed",
			"count", count,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"count", count,
		)
	}
}

// LogLoad logs a snapshot load operation.
func (l *Logger) LogLoad(ctx context.Context, count uint64, workers int, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.ErrorContext(ctx, "snapshot load failed",
			"count", count,
			"workers", workers,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot loaded",
			"count", count,
			"workers", workers,
		)
	}
}

// LogClose logs vector teardown.
func (l *Logger) LogClose(count uint64, err error) {
	if l == nil {
		return
	}
	if err != nil {
		l.Error("close failed",
			"count", count,
			"error", err,
		)
	} else {
		l.Debug("vector closed",
			"count", count,
		)
	}
}
