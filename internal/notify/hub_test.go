package notify

import (
	"context"
	"testing"
	"time"
)

func TestHubDeliversOnlyToTargetUser(t *testing.T) {
	h := NewHub(4)
	alice := h.Register("alice")
	bob := h.Register("bob")
	defer h.Unregister(alice)
	defer h.Unregister(bob)

	ev, _ := NewEvent(EventNotification, "alice", map[string]string{"title": "hi"})
	if n := h.Deliver(ev); n != 1 {
		t.Fatalf("delivered to %d subscribers, want 1", n)
	}

	select {
	case got := <-alice.Events():
		if got.Type != EventNotification {
			t.Fatalf("unexpected event %+v", got)
		}
	default:
		t.Fatal("alice did not receive the event")
	}
	select {
	case got := <-bob.Events():
		t.Fatalf("bob received %+v", got)
	default:
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := NewHub(1)
	s := h.Register("u")
	defer h.Unregister(s)

	ev, _ := NewEvent(EventUnreadCount, "u", nil)
	if h.Deliver(ev) != 1 {
		t.Fatal("first event should fit the buffer")
	}
	if h.Deliver(ev) != 0 {
		t.Fatal("second event should be dropped, not block")
	}
}

func TestHubUnregisterClosesAndIsIdempotent(t *testing.T) {
	h := NewHub(1)
	s := h.Register("u")
	h.Unregister(s)
	h.Unregister(s)

	if _, ok := <-s.Events(); ok {
		t.Fatal("events channel should be closed")
	}
	if h.Connected("u") != 0 {
		t.Fatal("subscriber still registered")
	}
	ev, _ := NewEvent(EventNotification, "u", nil)
	if h.Deliver(ev) != 0 {
		t.Fatal("delivery after unregister must be a no-op")
	}
}

func TestHubRunBridgesLocalBus(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := NewLocalBus()
	h := NewHub(4)
	s := h.Register("u")
	defer h.Unregister(s)

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, bus) }()

	ev, _ := NewEvent(EventNotification, "u", map[string]int{"n": 1})
	deadline := time.After(2 * time.Second)
	for {
		// Publish until the hub goroutine has subscribed.
		_ = bus.Publish(ctx, ev)
		select {
		case got := <-s.Events():
			if got.UserID != "u" {
				t.Fatalf("unexpected event %+v", got)
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Run returned %v", err)
			}
			return
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			t.Fatal("event never reached the subscriber")
		}
	}
}
