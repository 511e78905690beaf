package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"nhooyr.io/websocket"
)

// Event is a registration notification pushed by the service.
type Event struct {
	Type   string  `json:"type"`
	Record *Record `json:"record"`
}

// Watch connects to the event stream and delivers registration events as
// they happen. The returned channel is closed when the connection
// terminates or the context is cancelled. Events are not replayed; missed
// ones are recoverable through List.
func (c *Client) Watch(ctx context.Context) (<-chan Event, error) {
	wsURL, err := c.streamURL()
	if err != nil {
		return nil, err
	}

	opts := &websocket.DialOptions{}
	if c.token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + c.token}}
	}
	conn, _, err := websocket.Dial(ctx, wsURL, opts)
	if err != nil {
		return nil, err
	}

	ch := make(chan Event, 8)
	go func() {
		defer close(ch)
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "done") }()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var e Event
			if err := json.Unmarshal(data, &e); err != nil {
				continue
			}
			select {
			case ch <- e:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (c *Client) streamURL() (string, error) {
	u, err := url.Parse(c.base + "/v1/events")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	return u.String(), nil
}
