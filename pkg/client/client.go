package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrNotFound is returned by Get when no request with the ID is registered.
var ErrNotFound = errors.New("request not found")

// Request describes a fetch request submitted for keying.
type Request struct {
	URL                  string            `json:"url"`
	Method               string            `json:"method,omitempty"`
	Payload              string            `json:"payload,omitempty"`
	KeepURLFragment      bool              `json:"keepUrlFragment,omitempty"`
	UseExtendedUniqueKey bool              `json:"useExtendedUniqueKey,omitempty"`
	Headers              map[string]string `json:"headers,omitempty"`
	WhitelistedHeaders   []string          `json:"whitelistedHeaders,omitempty"`
	RequestIDLength      int               `json:"requestIdLength,omitempty"`
}

// Identity is the derived identity of a request.
type Identity struct {
	NormalizedURL         string `json:"normalizedUrl"`
	UniqueKey             string `json:"uniqueKey"`
	RequestID             string `json:"requestId"`
	NormalizationFallback bool   `json:"normalizationFallback,omitempty"`
}

// Record is a registered request as stored by the service.
type Record struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"requestId"`
	UniqueKey     string    `json:"uniqueKey"`
	URL           string    `json:"url"`
	NormalizedURL string    `json:"normalizedUrl"`
	Method        string    `json:"method"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Options for the API client.
type Options struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	RetryMax int
}

// Client is a small wrapper around retryablehttp for the keying API. It
// retries transient failures and sends the bearer token on every call.
type Client struct {
	base  string
	token string
	inner *http.Client
}

// New creates a new Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base url is required")
	}

	r := retryablehttp.NewClient()
	r.Logger = nil
	r.RetryMax = 2
	if opts.RetryMax > 0 {
		r.RetryMax = opts.RetryMax
	}
	r.HTTPClient.Timeout = 10 * time.Second
	if opts.Timeout > 0 {
		r.HTTPClient.Timeout = opts.Timeout
	}

	return &Client{
		base:  strings.TrimRight(opts.BaseURL, "/"),
		token: opts.Token,
		inner: r.StandardClient(),
	}, nil
}

// Normalize canonicalizes a URL on the server.
func (c *Client) Normalize(ctx context.Context, rawURL string, keepFragment bool) (string, error) {
	in := map[string]any{"url": rawURL}
	if keepFragment {
		in["keepUrlFragment"] = true
	}
	var out struct {
		NormalizedURL string `json:"normalizedUrl"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/v1/normalize", in, &out); err != nil {
		return "", err
	}
	return out.NormalizedURL, nil
}

// ComputeKey resolves the identity of a request without registering it.
func (c *Client) ComputeKey(ctx context.Context, req Request) (*Identity, error) {
	var out Identity
	if _, err := c.do(ctx, http.MethodPost, "/v1/keys", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register stores the request identity. created reports whether the request
// was new; a replay returns the stored record with created false.
func (c *Client) Register(ctx context.Context, req Request) (rec *Record, created bool, err error) {
	var out Record
	status, err := c.do(ctx, http.MethodPost, "/v1/requests", req, &out)
	if err != nil {
		return nil, false, err
	}
	return &out, status == http.StatusCreated, nil
}

// Get fetches a registered request by its request ID.
func (c *Client) Get(ctx context.Context, requestID string) (*Record, error) {
	var out Record
	if _, err := c.do(ctx, http.MethodGet, "/v1/requests/"+requestID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List fetches every registered request.
func (c *Client) List(ctx context.Context) ([]*Record, error) {
	var out []*Record
	if _, err := c.do(ctx, http.MethodGet, "/v1/requests", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.inner.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
