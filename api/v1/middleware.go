package v1

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/avask/reqkey/internal/data"
)

// MiddlewareRequestValidation decodes and sanity-checks a request descriptor
// before the handler runs. The decoded value travels in the context.
func MiddlewareRequestValidation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req data.Request
		if err := decodeJSONStrict(w, r, &req); err != nil {
			markErr(w, err)
			if errors.Is(err, ErrContentType) {
				http.Error(w, ErrContentType.Error(), http.StatusUnsupportedMediaType)
				return
			}
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		if strings.TrimSpace(req.URL) == "" {
			markErr(w, data.ErrEmptyURL)
			http.Error(w, data.ErrEmptyURL.Error(), http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyRequest{}, req)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MiddlewareNormalizeValidation decodes the body of the normalize endpoint.
func MiddlewareNormalizeValidation(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body normalizeBody
		if err := decodeJSONStrict(w, r, &body); err != nil {
			markErr(w, err)
			if errors.Is(err, ErrContentType) {
				http.Error(w, ErrContentType.Error(), http.StatusUnsupportedMediaType)
				return
			}
			http.Error(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		if strings.TrimSpace(body.URL) == "" {
			markErr(w, data.ErrEmptyURL)
			http.Error(w, data.ErrEmptyURL.Error(), http.StatusBadRequest)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyNormalize{}, body)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
