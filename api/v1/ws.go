package v1

import (
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// StreamEvents upgrades the connection and forwards registration events as
// JSON text messages until the client goes away. Events that fire before
// the subscription is set up are not replayed; the list endpoint is the
// catch-up path.
func (h *KeyHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		markErr(w, ErrEventStream)
		http.Error(w, ErrEventStream.Error(), http.StatusServiceUnavailable)
		return
	}

	// The stream outlives the server's per-request deadlines; lift them
	// before the connection is hijacked.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.l.Error("websocket accept", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusInternalError, "stream closed") }()

	ch, cancel := h.hub.Subscribe()
	defer cancel()

	// The stream is write-only; CloseRead discards inbound frames and ends
	// the context when the client goes away.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "done")
			return
		case e, ok := <-ch:
			if !ok {
				_ = conn.Close(websocket.StatusNormalClosure, "done")
				return
			}
			payload, err := json.Marshal(e)
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				return
			}
		}
	}
}
