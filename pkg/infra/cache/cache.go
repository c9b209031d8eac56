// Package cache provides a small in-memory TTL cache. The engine uses
// it to memoize parsed recipe documents keyed by mirror revision, so
// re-syncing an unchanged revision never re-parses the catalog.
package cache

import (
	"context"
	"sync"
	"time"
)

type Cache[V any] interface {
	Get(ctx context.Context, key string) (V, bool)
	Set(ctx context.Context, key string, value V, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Clear(ctx context.Context)
	Size(ctx context.Context) int
}

type memCache[V any] struct {
	mu    sync.RWMutex
	items map[string]cacheItem[V]
	opts  *options
}

type cacheItem[V any] struct {
	value      V
	expiration time.Time
}

type options struct {
	defaultTTL time.Duration
	maxSize    int
}

type Option func(*options)

func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.defaultTTL = ttl
	}
}

func WithMaxSize(maxSize int) Option {
	return func(o *options) {
		o.maxSize = maxSize
	}
}

func New[V any](opts ...Option) Cache[V] {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return &memCache[V]{
		items: make(map[string]cacheItem[V]),
		opts:  o,
	}
}

func (c *memCache[V]) Get(_ context.Context, key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	item, found := c.items[key]
	if !found {
		return zero, false
	}

	if !item.expiration.IsZero() && time.Now().After(item.expiration) {
		delete(c.items, key)
		return zero, false
	}

	return item.value, true
}

func (c *memCache[V]) Set(_ context.Context, key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.opts.maxSize > 0 && len(c.items) >= c.opts.maxSize {
		c.evictOldest()
	}

	if ttl == 0 {
		ttl = c.opts.defaultTTL
	}

	var expiration time.Time
	if ttl > 0 {
		expiration = time.Now().Add(ttl)
	}

	c.items[key] = cacheItem[V]{
		value:      value,
		expiration: expiration,
	}
}

func (c *memCache[V]) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *memCache[V]) Clear(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]cacheItem[V])
}

func (c *memCache[V]) Size(_ context.Context) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *memCache[V]) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	now := time.Now()

	for key, item := range c.items {
		if item.expiration.IsZero() || now.Before(item.expiration) {
			if oldestTime.IsZero() || item.expiration.Before(oldestTime) {
				oldestKey = key
				oldestTime = item.expiration
			}
		}
	}

	if oldestKey != "" {
		delete(c.items, oldestKey)
	}
}
