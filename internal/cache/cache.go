// Package cache memoizes computed responses (trending lists) in Redis or,
// for a single instance, in process memory. Callers treat every error as a
// miss and fall back to the store.
package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache interface {
	// Get decodes the cached value for key into dst or returns ErrCacheMiss.
	Get(ctx context.Context, key string, dst interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// DeletePrefix drops every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// MemoryCache is a TTL map. Values are stored encoded so callers never
// share mutable state with the cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string, dst interface{}) error {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(e.expiresAt) {
		return ErrCacheMiss
	}
	return json.Unmarshal(e.data, dst)
}

func (c *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = memoryEntry{data: data, expiresAt: now.Add(ttl)}
	return nil
}

func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}
