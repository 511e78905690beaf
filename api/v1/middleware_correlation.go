package v1

import (
    "net/http"

    "github.com/avask/reqkey/internal/correlation"
    "github.com/google/uuid"
)

const headerCorrelationID = "X-Request-ID"

// CorrelationID ensures every API call carries a correlation ID in context
// and headers.
// - Honors an incoming X-Request-ID if present, otherwise generates a UUIDv4.
// - Stores the value in request context via correlation.With.
// - Echoes the value in the response header.
//
// The wire header keeps its conventional name even though "request ID" means
// something else in this service; proxies and clients expect X-Request-ID.
func CorrelationID(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        id := r.Header.Get(headerCorrelationID)
        if id == "" {
            id = uuid.NewString()
        }
        ctx := correlation.With(r.Context(), id)
        w.Header().Set(headerCorrelationID, id)
        next.ServeHTTP(w, r.WithContext(ctx))
    })
}
