package v1

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/avask/reqkey/internal/correlation"
	"github.com/avask/reqkey/internal/data"
	"github.com/avask/reqkey/internal/events"
	"github.com/avask/reqkey/internal/service"
	"github.com/gorilla/mux"
)

type KeyHandler struct {
	l   *slog.Logger
	svc service.Keying
	hub *events.Hub
}

type normalizeBody struct {
	URL             string `json:"url"`
	KeepURLFragment bool   `json:"keepUrlFragment,omitempty"`
}

type normalizeResponse struct {
	NormalizedURL string `json:"normalizedUrl"`
}

type rwLogger struct {
	http.ResponseWriter
	status int
	bytes  int
	err    error
}

func (w *rwLogger) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *rwLogger) SetErr(err error) {
	w.err = err
}

func (w *rwLogger) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}

	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Hijack lets websocket upgrades pass through the logging wrapper.
func (w *rwLogger) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

func (w *rwLogger) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *rwLogger) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type errorSetter interface {
	SetErr(error)
}

func markErr(w http.ResponseWriter, err error) {
	if es, ok := w.(errorSetter); ok {
		es.SetErr(err)
	}
}

// context keys
type ctxKeyRequest struct{}
type ctxKeyNormalize struct{}

func NewKeyHandler(l *slog.Logger, svc service.Keying, hub *events.Hub) *KeyHandler {
	return &KeyHandler{l: l, svc: svc, hub: hub}
}

// Normalize canonicalizes the submitted URL. Parse failures are the
// caller's problem here; the fallback policy belongs to key computation.
func (h *KeyHandler) Normalize(w http.ResponseWriter, r *http.Request) {
	v := r.Context().Value(ctxKeyNormalize{})
	body, ok := v.(normalizeBody)
	if !ok {
		markErr(w, ErrNormalizeCtx)
		http.Error(w, ErrNormalizeCtx.Error(), http.StatusInternalServerError)
		return
	}

	normalized, err := h.svc.Normalize(r.Context(), body.URL, body.KeepURLFragment)
	if err != nil {
		markErr(w, err)
		if errors.Is(err, data.ErrEmptyURL) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, "unable to normalize url: "+err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(normalizeResponse{NormalizedURL: normalized})
}

// ComputeKey resolves the identity of a request without registering it.
func (h *KeyHandler) ComputeKey(w http.ResponseWriter, r *http.Request) {
	req, ok := requestFromCtx(r)
	if !ok {
		markErr(w, ErrRequestCtx)
		http.Error(w, ErrRequestCtx.Error(), http.StatusInternalServerError)
		return
	}

	identity, err := h.svc.Resolve(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = identity.ToJSON(w)
}

// RegisterRequest resolves and stores the identity. Replays of an already
// seen request return the stored record with a 200 instead of a 201.
func (h *KeyHandler) RegisterRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := requestFromCtx(r)
	if !ok {
		markErr(w, ErrRequestCtx)
		http.Error(w, ErrRequestCtx.Error(), http.StatusInternalServerError)
		return
	}

	rec, created, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if created {
		w.WriteHeader(http.StatusCreated)
	}
	_ = rec.ToJSON(w)
}

func (h *KeyHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.List(r.Context())
	if err != nil {
		markErr(w, err)
		http.Error(w, "unable to list requests", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = data.Records{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := list.ToJSON(w); err != nil {
		markErr(w, err)
	}
}

func (h *KeyHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rec, err := h.svc.Get(r.Context(), vars["id"])
	if err != nil {
		markErr(w, err)
		if errors.Is(err, data.ErrNotFound) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		http.Error(w, "unable to fetch request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = rec.ToJSON(w)
}

// Log is the access-log middleware. It captures status, bytes and duration,
// and tags lines with the call's correlation ID when one is present.
func (h *KeyHandler) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		rw := &rwLogger{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		if rw.status == 0 {
			rw.status = http.StatusOK
		}
		timeElapsed := time.Since(startTime)
		l := correlation.Logger(r.Context(), h.l)
		if rw.err != nil {
			l.Error(rw.err.Error(),
				"method", r.Method,
				"url", r.URL.Path,
				"status", rw.status,
				"remote", r.RemoteAddr,
				"ua", r.UserAgent(),
				"dur_ms", timeElapsed.Milliseconds(),
				"bytes", rw.bytes)
			return
		}

		l.Info("", "method", r.Method,
			"url", r.URL.Path,
			"status", rw.status,
			"remote", r.RemoteAddr,
			"ua", r.UserAgent(),
			"dur_ms", timeElapsed.Milliseconds(),
			"bytes", rw.bytes)
	})
}

func (h *KeyHandler) writeServiceError(w http.ResponseWriter, err error) {
	markErr(w, err)
	switch {
	case errors.Is(err, data.ErrEmptyURL), errors.Is(err, data.ErrBadMethod), errors.Is(err, data.ErrBadIDLength):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, data.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func requestFromCtx(r *http.Request) (data.Request, bool) {
	v := r.Context().Value(ctxKeyRequest{})
	req, ok := v.(data.Request)
	return req, ok
}
