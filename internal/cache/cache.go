// Package cache holds viewer-independent channel aggregates for a short time.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/vidtube/backend/internal/models"
)

// ChannelCache stores channel statistics keyed by username.
type ChannelCache interface {
	Get(ctx context.Context, username string) (models.ChannelStats, bool)
	Set(ctx context.Context, stats models.ChannelStats)
	Invalidate(ctx context.Context, username string)
}

type entry struct {
	stats   models.ChannelStats
	expires time.Time
}

// MemoryCache is a process-local TTL cache.
type MemoryCache struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[string]entry
}

// NewMemoryCache returns a cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MemoryCache{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry),
	}
}

// WithNowFunc allows tests to override the time source.
func (c *MemoryCache) WithNowFunc(now func() time.Time) *MemoryCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

func (c *MemoryCache) Get(_ context.Context, username string) (models.ChannelStats, bool) {
	c.mu.RLock()
	e, ok := c.items[username]
	now := c.now()
	c.mu.RUnlock()
	if !ok || !now.Before(e.expires) {
		return models.ChannelStats{}, false
	}
	return e.stats, true
}

func (c *MemoryCache) Set(_ context.Context, stats models.ChannelStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, key)
		}
	}
	c.items[stats.Username] = entry{stats: stats, expires: now.Add(c.ttl)}
}

func (c *MemoryCache) Invalidate(_ context.Context, username string) {
	c.mu.Lock()
	delete(c.items, username)
	c.mu.Unlock()
}

var _ ChannelCache = (*MemoryCache)(nil)
