package events

import (
	"sync"

	"github.com/avask/reqkey/internal/data"
)

// Event is broadcast whenever a request identity is registered for the
// first time.
type Event struct {
	Type   Type         `json:"type"`
	Record *data.Record `json:"record"`
}

// Type defines the set of events the hub emits.
type Type string

const (
	TypeRegistered Type = "registered"
)

// Publisher publishes registration events. Components take it as an
// optional dependency and skip publishing when it is nil.
type Publisher interface {
	Publish(Event)
}

// Hub fans events out to subscribed clients. Slow subscribers are skipped
// rather than blocking the publisher; a dropped event only costs that
// client a notification, the registration itself is already durable.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
	onSubs func(n int)
}

// NewHub returns a hub whose subscriber channels buffer the given number of
// events. onSubs, when non-nil, observes the subscriber count after every
// subscribe and unsubscribe.
func NewHub(buffer int, onSubs func(n int)) *Hub {
	if buffer < 1 {
		buffer = 8
	}
	return &Hub{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
		onSubs: onSubs,
	}
}

// Subscribe registers a new listener. The returned cancel function must be
// called when the listener goes away; it closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	h.notifySubs(n)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			n := len(h.subs)
			h.mu.Unlock()
			close(ch)
			h.notifySubs(n)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber with room in its buffer.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers reports the current number of listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) notifySubs(n int) {
	if h.onSubs != nil {
		h.onSubs(n)
	}
}
