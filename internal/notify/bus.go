// Package notify delivers live notification events. A Bus carries events
// between server instances; each instance runs a Hub that hands events to
// the connections it holds locally.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	EventConnected    = "connected"
	EventNotification = "notification"
	EventUnreadCount  = "unread_count"
)

// Event is one message for one user.
type Event struct {
	Type      string          `json:"type"`
	UserID    string          `json:"user_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewEvent(eventType, userID string, payload interface{}) (*Event, error) {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return &Event{
		Type:      eventType,
		UserID:    userID,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, ev *Event) error
}

type Bus interface {
	Publisher
	// Subscribe returns every event published by any instance until ctx is
	// cancelled.
	Subscribe(ctx context.Context) (<-chan *Event, error)
	Close() error
}

// LocalBus is an in-process Bus for single-instance deployments and tests.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[chan *Event]struct{}
	closed bool
}

func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[chan *Event]struct{})}
}

func (b *LocalBus) Publish(_ context.Context, ev *Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// subscriber is behind; live push is best-effort
		}
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context) (<-chan *Event, error) {
	ch := make(chan *Event, 256)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}()
	return ch, nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	return nil
}
