package correlation

import (
    "context"
    "log/slog"
)

// key is an unexported type to avoid collisions in context values.
type key struct{}

// With returns a new context carrying the correlation ID of an API call.
// The name is deliberate: "request ID" in this codebase means the derived
// identity of a fetch request, not the ID of an HTTP exchange.
func With(ctx context.Context, id string) context.Context {
    if ctx == nil {
        ctx = context.Background()
    }
    return context.WithValue(ctx, key{}, id)
}

// From extracts the correlation ID from the context, if present.
func From(ctx context.Context) (string, bool) {
    if ctx == nil {
        return "", false
    }
    v := ctx.Value(key{})
    if v == nil {
        return "", false
    }
    if s, ok := v.(string); ok && s != "" {
        return s, true
    }
    return "", false
}

// Logger returns l with the context's correlation ID attached, or l
// unchanged when the context has none.
func Logger(ctx context.Context, l *slog.Logger) *slog.Logger {
    if id, ok := From(ctx); ok {
        return l.With("correlation_id", id)
    }
    return l
}
