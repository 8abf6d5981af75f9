package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type payload struct {
	IDs []string `json:"ids"`
}

func TestMemoryCacheRoundTripAndExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, "trending:reviews:1", payload{IDs: []string{"a", "b"}}, time.Minute); err != nil {
		t.Fatal(err)
	}

	var got payload
	if err := c.Get(ctx, "trending:reviews:1", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.IDs) != 2 || got.IDs[1] != "b" {
		t.Fatalf("unexpected value %+v", got)
	}

	now = now.Add(time.Minute)
	if err := c.Get(ctx, "trending:reviews:1", &got); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired entry should miss, got %v", err)
	}
}

func TestMemoryCacheDeletePrefix(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()
	_ = c.Set(ctx, "trending:reviews:1", payload{}, time.Hour)
	_ = c.Set(ctx, "trending:restaurants:1", payload{}, time.Hour)
	_ = c.Set(ctx, "other", payload{}, time.Hour)

	if err := c.DeletePrefix(ctx, "trending:"); err != nil {
		t.Fatal(err)
	}
	var p payload
	if err := c.Get(ctx, "trending:reviews:1", &p); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("prefixed key should be gone: %v", err)
	}
	if err := c.Get(ctx, "other", &p); err != nil {
		t.Fatalf("unrelated key removed: %v", err)
	}
}
