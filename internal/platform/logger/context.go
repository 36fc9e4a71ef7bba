package logger

import (
	"context"
	"log/slog"
)

// loggerKey is the private context key for the request-scoped logger.
type loggerKey struct{}

// WithLogger returns a copy of ctx carrying the given logger. Handlers and
// middleware attach request-scoped attributes (trace ids, run ids) this way
// so lower layers log with full context.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, log)
}

// FromContext returns the logger stored in ctx, or slog.Default() when the
// context carries none.
func FromContext(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return slog.Default()
}

// FromContextOrDefault returns the logger stored in ctx, falling back to the
// provided default rather than the process-wide one.
func FromContextOrDefault(ctx context.Context, def *slog.Logger) *slog.Logger {
	if log, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	if def != nil {
		return def
	}
	return slog.Default()
}
