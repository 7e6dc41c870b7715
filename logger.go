package synapgo

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with synapgo-specific helpers.
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
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithDirection tags the logger with the connection direction.
func (l *Logger) WithDirection(afferent bool) *Logger {
	dir := "efferent"
	if afferent {
		dir = "afferent"
	}
	return &Logger{
		Logger: l.Logger.With("direction", dir),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogStage logs the outcome of a load stage.
func (l *Logger) LogStage(ctx context.Context, stage string, size int, d time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load stage failed",
			"stage", stage,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "load stage completed",
		"stage", stage,
		"size", size,
		"duration", d,
	)
}

// LogCache logs a position cache lookup.
func (l *Logger) LogCache(ctx context.Context, hits, misses int) {
	l.DebugContext(ctx, "position cache lookup",
		"hits", hits,
		"misses", misses,
	)
}

// LogClose logs the release of the shared sources.
func (l *Logger) LogClose(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "closing sources failed",
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "sources closed")
}
