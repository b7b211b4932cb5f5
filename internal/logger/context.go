package logger

import (
	"context"
	"log/slog"
)

// contextKey is a private type so no other package can collide with our
// context entry.
type contextKey struct{}

// WithContext returns a new context carrying the provided logger. The HTTP
// middleware uses this to inject a request-scoped logger.
func WithContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext retrieves the logger from the context. It never returns nil:
// when no logger was injected it falls back to slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
