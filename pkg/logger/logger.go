// Package logger configures the process-wide slog logger and provides helpers
// for component-scoped and context-scoped loggers.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs the default logger. Output goes to stderr so that binaries
// printing results on stdout stay pipeable.
func Setup(level string, format string) {
	SetupWriter(os.Stderr, level, format)
}

// SetupWriter is Setup with an explicit destination.
func SetupWriter(w io.Writer, level string, format string) {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithQuery tags ctx with the raw query text being served.
func WithQuery(ctx context.Context, query string) context.Context {
	return context.WithValue(ctx, contextKey{}, query)
}

// FromContext returns the default logger, carrying the query attribute when
// one was attached with WithQuery.
func FromContext(ctx context.Context) *slog.Logger {
	logger := slog.Default()
	if query, ok := ctx.Value(contextKey{}).(string); ok {
		logger = logger.With("query", query)
	}
	return logger
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
