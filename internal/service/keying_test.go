package service

import (
    "context"
    "errors"
    "io"
    "log/slog"
    "strings"
    "testing"

    "github.com/avask/reqkey/internal/data"
    "github.com/avask/reqkey/internal/events"
    "github.com/avask/reqkey/internal/repo"
)

type stubPublisher struct {
    published []events.Event
}

func (s *stubPublisher) Publish(e events.Event) {
    s.published = append(s.published, e)
}

type failingRepo struct {
    err error
}

func (f *failingRepo) List(ctx context.Context) (data.Records, error)   { return nil, f.err }
func (f *failingRepo) Get(ctx context.Context, id string) (*data.Record, error) {
    return nil, f.err
}
func (f *failingRepo) Add(ctx context.Context, rec *data.Record) (*data.Record, bool, error) {
    return nil, false, f.err
}
func (f *failingRepo) Ping(ctx context.Context) error { return f.err }

func newTestKeying(rpo repo.RequestRepo, hub events.Publisher) Keying {
    logger := slog.New(slog.NewTextHandler(io.Discard, nil))
    return NewKeying(logger, rpo, hub, nil, 0)
}

func TestNormalize(t *testing.T) {
    ctx := context.Background()
    svc := newTestKeying(repo.NewInMemoryRequestRepo(), nil)

    got, err := svc.Normalize(ctx, "HTTP://Example.com/Path/?b=2&a=1", false)
    if err != nil {
        t.Fatalf("Normalize: %v", err)
    }
    if got != "http://example.com/path?a=1&b=2" {
        t.Fatalf("normalized = %q", got)
    }

    if _, err := svc.Normalize(ctx, " ", false); !errors.Is(err, data.ErrEmptyURL) {
        t.Fatalf("expected ErrEmptyURL, got %v", err)
    }
    if _, err := svc.Normalize(ctx, "not a valid url:::", false); err == nil {
        t.Fatal("expected a parse error")
    }
}

func TestResolve(t *testing.T) {
    ctx := context.Background()
    svc := newTestKeying(repo.NewInMemoryRequestRepo(), nil)

    t.Run("computes the full identity", func(t *testing.T) {
        id, err := svc.Resolve(ctx, data.Request{URL: "HTTP://Example.com/Page/?utm_source=x&b=2&a=1"})
        if err != nil {
            t.Fatalf("Resolve: %v", err)
        }
        if id.NormalizedURL != "http://example.com/page?a=1&b=2" {
            t.Fatalf("normalized = %q", id.NormalizedURL)
        }
        if id.UniqueKey != id.NormalizedURL {
            t.Fatalf("unique key = %q", id.UniqueKey)
        }
        if len(id.RequestID) != 15 {
            t.Fatalf("request id = %q", id.RequestID)
        }
        if id.NormalizationFallback {
            t.Fatal("unexpected fallback")
        }
    })

    t.Run("falls back to the raw url", func(t *testing.T) {
        raw := "not a valid url:::"
        id, err := svc.Resolve(ctx, data.Request{URL: raw})
        if err != nil {
            t.Fatalf("Resolve: %v", err)
        }
        if !id.NormalizationFallback {
            t.Fatal("expected fallback")
        }
        if id.UniqueKey != raw || id.NormalizedURL != raw {
            t.Fatalf("fallback identity = %+v", id)
        }
        if len(id.RequestID) != 15 {
            t.Fatalf("request id = %q", id.RequestID)
        }
    })

    t.Run("rejects an empty url", func(t *testing.T) {
        if _, err := svc.Resolve(ctx, data.Request{URL: "   "}); !errors.Is(err, data.ErrEmptyURL) {
            t.Fatalf("expected ErrEmptyURL, got %v", err)
        }
    })

    t.Run("rejects an unknown method", func(t *testing.T) {
        if _, err := svc.Resolve(ctx, data.Request{URL: "http://x.com", Method: "FROB"}); !errors.Is(err, data.ErrBadMethod) {
            t.Fatalf("expected ErrBadMethod, got %v", err)
        }
    })

    t.Run("lower case methods are accepted", func(t *testing.T) {
        if _, err := svc.Resolve(ctx, data.Request{URL: "http://x.com", Method: "post"}); err != nil {
            t.Fatalf("Resolve: %v", err)
        }
    })

    t.Run("rejects bad id lengths", func(t *testing.T) {
        if _, err := svc.Resolve(ctx, data.Request{URL: "http://x.com", RequestIDLength: -1}); !errors.Is(err, data.ErrBadIDLength) {
            t.Fatalf("expected ErrBadIDLength, got %v", err)
        }
        if _, err := svc.Resolve(ctx, data.Request{URL: "http://x.com", RequestIDLength: 99}); !errors.Is(err, data.ErrBadIDLength) {
            t.Fatalf("expected ErrBadIDLength, got %v", err)
        }
    })

    t.Run("honours a custom id length", func(t *testing.T) {
        id, err := svc.Resolve(ctx, data.Request{URL: "http://x.com", RequestIDLength: 20})
        if err != nil {
            t.Fatalf("Resolve: %v", err)
        }
        if len(id.RequestID) != 20 {
            t.Fatalf("request id = %q", id.RequestID)
        }
        if strings.ContainsAny(id.RequestID, "+/=") {
            t.Fatalf("request id not url safe: %q", id.RequestID)
        }
    })
}

func TestRegister(t *testing.T) {
    ctx := context.Background()

    t.Run("creates then deduplicates", func(t *testing.T) {
        hub := &stubPublisher{}
        svc := newTestKeying(repo.NewInMemoryRequestRepo(), hub)

        req := data.Request{URL: "http://example.com/?b=2&a=1"}
        rec, created, err := svc.Register(ctx, req)
        if err != nil {
            t.Fatalf("Register: %v", err)
        }
        if !created {
            t.Fatal("expected created=true")
        }
        if rec.Method != "GET" {
            t.Fatalf("method = %q", rec.Method)
        }

        // a semantically identical request must hit the same record
        again, created, err := svc.Register(ctx, data.Request{URL: "HTTP://example.com/?a=1&b=2"})
        if err != nil {
            t.Fatalf("Register: %v", err)
        }
        if created {
            t.Fatal("expected created=false for a duplicate")
        }
        if again.RequestID != rec.RequestID || again.ID != rec.ID {
            t.Fatalf("duplicate resolved to a different record: %+v vs %+v", again, rec)
        }

        if len(hub.published) != 1 {
            t.Fatalf("expected exactly one event, got %d", len(hub.published))
        }
        if hub.published[0].Type != events.TypeRegistered || hub.published[0].Record.RequestID != rec.RequestID {
            t.Fatalf("unexpected event: %+v", hub.published[0])
        }
    })

    t.Run("propagates store errors", func(t *testing.T) {
        boom := errors.New("store down")
        svc := newTestKeying(&failingRepo{err: boom}, nil)
        if _, _, err := svc.Register(ctx, data.Request{URL: "http://x.com"}); !errors.Is(err, boom) {
            t.Fatalf("expected store error, got %v", err)
        }
    })

    t.Run("validation failures never reach the store", func(t *testing.T) {
        svc := newTestKeying(&failingRepo{err: errors.New("must not be called")}, nil)
        if _, _, err := svc.Register(ctx, data.Request{URL: ""}); !errors.Is(err, data.ErrEmptyURL) {
            t.Fatalf("expected ErrEmptyURL, got %v", err)
        }
    })
}

func TestListAndGet(t *testing.T) {
    ctx := context.Background()
    svc := newTestKeying(repo.NewInMemoryRequestRepo(), nil)

    rec, _, err := svc.Register(ctx, data.Request{URL: "http://example.com/a"})
    if err != nil {
        t.Fatalf("Register: %v", err)
    }

    list, err := svc.List(ctx)
    if err != nil {
        t.Fatalf("List: %v", err)
    }
    if len(list) != 1 || list[0].RequestID != rec.RequestID {
        t.Fatalf("unexpected list: %+v", list)
    }

    got, err := svc.Get(ctx, rec.RequestID)
    if err != nil {
        t.Fatalf("Get: %v", err)
    }
    if got.RequestID != rec.RequestID {
        t.Fatalf("got = %+v", got)
    }

    if _, err := svc.Get(ctx, "missing"); !errors.Is(err, data.ErrNotFound) {
        t.Fatalf("expected ErrNotFound, got %v", err)
    }
}
