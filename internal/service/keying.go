package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avask/reqkey/internal/data"
	"github.com/avask/reqkey/internal/events"
	"github.com/avask/reqkey/internal/keys"
	"github.com/avask/reqkey/internal/metrics"
	"github.com/avask/reqkey/internal/repo"
)

// Keying derives request identities and keeps the seen-set of registered
// requests.
type Keying interface {
	// Normalize canonicalizes a URL. Unlike Resolve it surfaces parse
	// errors instead of falling back to the raw input.
	Normalize(ctx context.Context, rawURL string, keepFragment bool) (string, error)
	// Resolve computes the identity of a request without storing anything.
	Resolve(ctx context.Context, req data.Request) (*data.Identity, error)
	// Register resolves the request and records it. A request whose ID is
	// already known returns the stored record and created=false.
	Register(ctx context.Context, req data.Request) (*data.Record, bool, error)
	List(ctx context.Context) (data.Records, error)
	Get(ctx context.Context, requestID string) (*data.Record, error)
}

var (
	AllowedMethods = map[string]bool{
		"GET":     true,
		"HEAD":    true,
		"POST":    true,
		"PUT":     true,
		"PATCH":   true,
		"DELETE":  true,
		"OPTIONS": true,
		"TRACE":   true,
		"CONNECT": true,
	}
)

type keying struct {
	l        *slog.Logger
	repo     repo.RequestRepo
	hub      events.Publisher
	hasher   keys.Hasher
	idLength int
}

// NewKeying wires the keying service. hasher may be nil to use the package
// default, hub may be nil to disable event publishing, and idLength <= 0
// falls back to keys.DefaultRequestIDLength.
func NewKeying(l *slog.Logger, rpo repo.RequestRepo, hub events.Publisher, hasher keys.Hasher, idLength int) Keying {
	if idLength <= 0 {
		idLength = keys.DefaultRequestIDLength
	}
	return &keying{
		l:        l,
		repo:     rpo,
		hub:      hub,
		hasher:   hasher,
		idLength: idLength,
	}
}

func (s *keying) Normalize(ctx context.Context, rawURL string, keepFragment bool) (string, error) {
	if strings.TrimSpace(rawURL) == "" {
		return "", data.ErrEmptyURL
	}
	return keys.NormalizeURL(rawURL, keepFragment)
}

func (s *keying) Resolve(ctx context.Context, req data.Request) (*data.Identity, error) {
	if strings.TrimSpace(req.URL) == "" {
		return nil, data.ErrEmptyURL
	}

	method, err := s.method(req.Method)
	if err != nil {
		return nil, err
	}
	if req.RequestIDLength < 0 {
		return nil, data.ErrBadIDLength
	}

	normalized, nerr := keys.NormalizeURL(req.URL, req.KeepURLFragment)
	fallback := nerr != nil
	if fallback {
		// Identity stays computable; the raw URL stands in for the
		// canonical form.
		normalized = req.URL
		s.l.Warn("failed to normalize url", "url", req.URL, "err", nerr)
		metrics.KeysComputed.WithLabelValues(metrics.OutcomeFallback).Inc()
	} else {
		metrics.KeysComputed.WithLabelValues(metrics.OutcomeNormalized).Inc()
	}

	uniqueKey, _ := keys.ComputeUniqueKey(keys.Request{
		URL:                  req.URL,
		Method:               method,
		Payload:              []byte(req.Payload),
		KeepURLFragment:      req.KeepURLFragment,
		UseExtendedUniqueKey: req.UseExtendedUniqueKey,
		Headers:              req.Headers,
		WhitelistedHeaders:   req.WhitelistedHeaders,
	}, s.hasher)

	requestID, err := keys.ToRequestID(uniqueKey, s.requestIDLength(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", data.ErrBadIDLength, err)
	}

	return &data.Identity{
		NormalizedURL:         normalized,
		UniqueKey:             uniqueKey,
		RequestID:             requestID,
		NormalizationFallback: fallback,
	}, nil
}

func (s *keying) Register(ctx context.Context, req data.Request) (*data.Record, bool, error) {
	identity, err := s.Resolve(ctx, req)
	if err != nil {
		return nil, false, err
	}

	method, err := s.method(req.Method)
	if err != nil {
		return nil, false, err
	}

	rec := &data.Record{
		RequestID:     identity.RequestID,
		UniqueKey:     identity.UniqueKey,
		URL:           req.URL,
		NormalizedURL: identity.NormalizedURL,
		Method:        method,
		CreatedAt:     time.Now().UTC(),
	}

	start := time.Now()
	stored, created, err := s.repo.Add(ctx, rec)
	metrics.StoreLatency.WithLabelValues("add").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, false, err
	}

	if created {
		metrics.Registrations.WithLabelValues(metrics.ResultCreated).Inc()
		if s.hub != nil {
			s.hub.Publish(events.Event{Type: events.TypeRegistered, Record: stored})
		}
	} else {
		metrics.Registrations.WithLabelValues(metrics.ResultDuplicate).Inc()
	}
	return stored, created, nil
}

func (s *keying) List(ctx context.Context) (data.Records, error) {
	start := time.Now()
	out, err := s.repo.List(ctx)
	metrics.StoreLatency.WithLabelValues("list").Observe(time.Since(start).Seconds())
	return out, err
}

func (s *keying) Get(ctx context.Context, requestID string) (*data.Record, error) {
	start := time.Now()
	rec, err := s.repo.Get(ctx, requestID)
	metrics.StoreLatency.WithLabelValues("get").Observe(time.Since(start).Seconds())
	return rec, err
}

func (s *keying) method(m string) (string, error) {
	method := strings.ToUpper(strings.TrimSpace(m))
	if method == "" {
		method = "GET"
	}
	if !AllowedMethods[method] {
		return "", data.ErrBadMethod
	}
	return method, nil
}

func (s *keying) requestIDLength(req data.Request) int {
	if req.RequestIDLength > 0 {
		return req.RequestIDLength
	}
	return s.idLength
}
