package logger

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// With attaches fields to the logger carried by ctx. Middleware uses it to stamp request_id,
// user_id and merchant_id once so every later line repeats them.
func With(ctx context.Context, fields ...any) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, From(ctx).With(fields...))
}

// From returns the request-scoped logger, or the process logger when none was attached.
func From(ctx context.Context) *slog.Logger {
	return Scoped(ctx, LoggerWrapper())
}

// Scoped is From with an explicit fallback.
func Scoped(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return fallback
}
