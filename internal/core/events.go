package core

import (
	"sync"
	"time"
)

// EventType names a change in an import session.
type EventType string

const (
	EventOpened               EventType = "opened"
	EventRecordsUpdated       EventType = "records_updated"
	EventConfirmationRequired EventType = "confirmation_required"
	EventCommitted            EventType = "committed"
	EventAborted              EventType = "aborted"
	EventCommitFailed         EventType = "commit_failed"
	EventCancelled            EventType = "cancelled"
	EventExpired              EventType = "expired"
)

// Event is broadcast to session subscribers after every change.
type Event struct {
	Type      EventType   `json:"type"`
	SessionID string      `json:"sessionId"`
	State     CommitState `json:"state"`
	Total     int         `json:"total"`
	Linked    int         `json:"linked"`
	Indices   []int       `json:"indices,omitempty"`
	Inserted  int         `json:"inserted,omitempty"`
	Unlinked  int         `json:"unlinked,omitempty"`
	Error     string      `json:"error,omitempty"`
	At        time.Time   `json:"at"`
}

// listenerBuffer is the per-subscriber channel capacity.
const listenerBuffer = 16

// eventHub fans events out to subscribers. A slow subscriber misses
// events rather than blocking the publisher.
type eventHub struct {
	mu        sync.Mutex
	listeners map[chan Event]struct{}
	closed    bool
}

func newEventHub() *eventHub {
	return &eventHub{listeners: make(map[chan Event]struct{})}
}

// subscribe registers a listener and queues current as its first event.
// The returned function unsubscribes; the channel is closed on unsubscribe
// or when the hub closes.
func (h *eventHub) subscribe(current Event) (<-chan Event, func()) {
	ch := make(chan Event, listenerBuffer)
	ch <- current

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.listeners[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.listeners[ch]; ok {
				delete(h.listeners, ch)
				close(ch)
			}
		})
	}
}

func (h *eventHub) publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.listeners {
		select {
		case ch <- e:
		default:
			// Listener is slow, skip this update
		}
	}
}

// close closes every listener channel. Later subscribers get a closed channel.
func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.listeners {
		close(ch)
	}
	h.listeners = nil
}

func (h *eventHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}
