package data

import (
	"encoding/json"
	"errors"
	"io"
	"time"
)

// Request is the wire descriptor of a fetch request submitted for keying.
// Payload is carried as a string; its UTF-8 bytes take part in the extended
// unique key.
type Request struct {
	URL                  string            `json:"url"`
	Method               string            `json:"method,omitempty"`
	Payload              string            `json:"payload,omitempty"`
	KeepURLFragment      bool              `json:"keepUrlFragment,omitempty"`
	UseExtendedUniqueKey bool              `json:"useExtendedUniqueKey,omitempty"`
	Headers              map[string]string `json:"headers,omitempty"`
	WhitelistedHeaders   []string          `json:"whitelistedHeaders,omitempty"`
	// RequestIDLength overrides the default of 15 when positive.
	RequestIDLength int `json:"requestIdLength,omitempty"`
}

// Identity is the computed identity of a request. It is derived, never
// stored on its own.
type Identity struct {
	NormalizedURL         string `json:"normalizedUrl"`
	UniqueKey             string `json:"uniqueKey"`
	RequestID             string `json:"requestId"`
	NormalizationFallback bool   `json:"normalizationFallback,omitempty"`
}

// Record is a registered request identity as kept by the seen-set store.
type Record struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"requestId"`
	UniqueKey     string    `json:"uniqueKey"`
	URL           string    `json:"url"`
	NormalizedURL string    `json:"normalizedUrl"`
	Method        string    `json:"method"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Records []*Record

var (
	ErrNotFound    = errors.New("request not found")
	ErrEmptyURL    = errors.New("url is required")
	ErrBadMethod   = errors.New("invalid method")
	ErrBadIDLength = errors.New("invalid requestIdLength")
)

func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func (rs Records) Clone() Records {
	out := make(Records, len(rs))
	for i, r := range rs {
		out[i] = r.Clone()
	}
	return out
}

func (rs *Records) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(rs) }

func (r *Record) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(r) }

func (i *Identity) ToJSON(w io.Writer) error { return json.NewEncoder(w).Encode(i) }

func (r *Request) FromJSON(rd io.Reader) error { return json.NewDecoder(rd).Decode(r) }
