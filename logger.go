package pyro

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with pyro-specific context.
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
	return NewLogger(slog.DiscardHandler)
}

// WithRunID adds the run id of a discovery to the logger.
func (l *Logger) WithRunID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", id),
	}
}

// WithSearchSpace adds a search space id to the logger.
func (l *Logger) WithSearchSpace(id int) *Logger {
	return &Logger{
		Logger: l.Logger.With("search_space", id),
	}
}

// WithRHS adds the right-hand side column of an FD search to the logger.
func (l *Logger) WithRHS(column string) *Logger {
	return &Logger{
		Logger: l.Logger.With("rhs", column),
	}
}

// LogDependency logs a registered minimal dependency.
func (l *Logger) LogDependency(ctx context.Context, kind, dependency string, err float64) {
	l.DebugContext(ctx, "dependency registered",
		"kind", kind,
		"dependency", dependency,
		"error", err,
	)
}

// LogSearchSpace logs the completion of a search space.
func (l *Logger) LogSearchSpace(ctx context.Context, strategy string, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search space failed",
			"strategy", strategy,
			"duration", duration,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search space completed",
			"strategy", strategy,
			"duration", duration,
		)
	}
}

// LogDiscovery logs the outcome of a discovery run.
func (l *Logger) LogDiscovery(ctx context.Context, fds, uccs int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "discovery failed",
			"fds", fds,
			"uccs", uccs,
			"duration", duration,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "discovery completed",
			"fds", fds,
			"uccs", uccs,
			"duration", duration,
		)
	}
}
