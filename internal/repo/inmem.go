package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/avask/reqkey/internal/data"
	"github.com/google/uuid"
)

type InMemoryRequestRepo struct {
	mu      sync.RWMutex
	records map[string]*data.Record
}

func NewInMemoryRequestRepo() *InMemoryRequestRepo {
	return &InMemoryRequestRepo{
		records: make(map[string]*data.Record),
	}
}

func (r *InMemoryRequestRepo) List(ctx context.Context) (data.Records, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(data.Records, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RequestID < out[j].RequestID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *InMemoryRequestRepo) Get(ctx context.Context, requestID string) (*data.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[requestID]
	if !ok {
		return nil, data.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *InMemoryRequestRepo) Add(ctx context.Context, rec *data.Record) (*data.Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.records[rec.RequestID]; ok {
		return existing.Clone(), false, nil
	}
	stored := rec.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	r.records[stored.RequestID] = stored
	return stored.Clone(), true, nil
}

func (r *InMemoryRequestRepo) Ping(ctx context.Context) error { return nil }
