package repo

import (
	"context"

	"github.com/avask/reqkey/internal/data"
)

type RequestRepo interface {
	RequestReader
	RequestWriter
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

type RequestReader interface {
	List(ctx context.Context) (data.Records, error)
	Get(ctx context.Context, requestID string) (*data.Record, error)
}

type RequestWriter interface {
	// Add registers a record keyed by its RequestID. When a record with the
	// same RequestID already exists the stored record is returned and
	// created is false.
	Add(ctx context.Context, rec *data.Record) (stored *data.Record, created bool, err error)
}
