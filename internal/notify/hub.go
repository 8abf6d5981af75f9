package notify

import (
	"context"
	"sync"

	"github.com/tastetrail/backend/internal/logging"
	"github.com/tastetrail/backend/internal/metrics"
)

// Subscriber is the hub's handle on one open connection. The connection
// goroutine owns the socket; the hub only writes to the buffered channel.
type Subscriber struct {
	UserID string
	send   chan *Event
}

// Events is closed when the subscriber is unregistered.
func (s *Subscriber) Events() <-chan *Event {
	return s.send
}

// Hub tracks the subscribers connected to this process, keyed by user.
type Hub struct {
	mu      sync.RWMutex
	users   map[string]map[*Subscriber]struct{}
	bufSize int
}

func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{users: make(map[string]map[*Subscriber]struct{}), bufSize: bufSize}
}

func (h *Hub) Register(userID string) *Subscriber {
	s := &Subscriber{UserID: userID, send: make(chan *Event, h.bufSize)}
	h.mu.Lock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[*Subscriber]struct{})
	}
	h.users[userID][s] = struct{}{}
	h.mu.Unlock()
	metrics.LiveConnections.Inc()
	return s
}

// Unregister removes s and closes its channel. Safe to call twice.
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.users[s.UserID]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	if len(subs) == 0 {
		delete(h.users, s.UserID)
	}
	close(s.send)
	metrics.LiveConnections.Dec()
}

// Deliver hands ev to every local subscriber of ev.UserID without blocking.
// It returns how many subscribers accepted the event.
func (h *Hub) Deliver(ev *Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for s := range h.users[ev.UserID] {
		select {
		case s.send <- ev:
			delivered++
		default:
			metrics.LiveDropped.Inc()
		}
	}
	return delivered
}

// Connected reports how many local subscribers userID has.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// Run consumes the bus until ctx is cancelled or the bus closes.
func (h *Hub) Run(ctx context.Context, bus Bus) error {
	events, err := bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	log := logging.Component("notify.hub")
	log.Info().Msg("hub consuming notification bus")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			h.Deliver(ev)
		}
	}
}
