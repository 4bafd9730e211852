package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const requestIDKey contextKey = "request_id"

func GenerateRequestID() string {
	return uuid.New().String()
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns "" when no request ID is set.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// EnsureRequestID returns ctx unchanged when it already carries a request
// ID, otherwise a child context with a fresh one.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := GenerateRequestID()
	return ContextWithRequestID(ctx, id), id
}

// Ctx decorates l with the request ID carried by ctx.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func Ctx(ctx context.Context, l zerolog.Logger) zerolog.Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return l.With().Str("request_id", id).Logger()
	}
	return l
}
