package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/utils"
)

type memoryEntry struct {
	storedAt time.Time
	quote    model.Quote
}

// MemoryCache keeps quotes in process memory. Expired entries stay in the map until PurgeExpired runs.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	timeout time.Duration
	now     func() time.Time
}

type MemoryOption func(*MemoryCache)

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(c *MemoryCache) {
		c.now = now
	}
}

func NewMemoryCache(timeout time.Duration, opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		timeout: timeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *MemoryCache) expired(e memoryEntry, now time.Time) bool {
	return now.Sub(e.storedAt) >= c.timeout
}

func (c *MemoryCache) Get(_ context.Context, key string) (model.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok || c.expired(e, c.now()) {
		return model.Quote{}, ErrMiss
	}

	return e.quote, nil
}

func (c *MemoryCache) Put(_ context.Context, key string, quote model.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryEntry{storedAt: c.now(), quote: quote}
	return nil
}

func (c *MemoryCache) PurgeExpired(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, key)
			removed++
		}
	}

	if removed > 0 {
		slog.Info("quote cache cleanup", slog.String("rqID", utils.GetRequestIDFromCtx(ctx)), slog.Int("removed", removed))
	}

	return removed, nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
