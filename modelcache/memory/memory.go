// Package memory provides a process-local modelcache.Cache backed by
// github.com/hashicorp/golang-lru/v2. Entries are never promoted on read so
// the LRU order is the insertion order.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ggoodman/typehierarchy-go/hierarchy"
	"github.com/ggoodman/typehierarchy-go/modelcache"
	lru "github.com/hashicorp/golang-lru/v2"
)

// slot lets a re-put replace the model without touching its position.
type slot struct {
	model *hierarchy.Model
}

// Cache implements modelcache.Cache in memory.
type Cache struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *slot]
	onEvict func(*hierarchy.Model)
}

var _ modelcache.Cache = (*Cache)(nil)

// Option configures a Cache.
type Option func(*Cache)

// WithEvictCallback registers fn to be called with every model dropped to
// make room. It runs while the cache is locked and must not call back into
// the cache.
func WithEvictCallback(fn func(*hierarchy.Model)) Option {
	return func(c *Cache) { c.onEvict = fn }
}

// New creates a cache holding at most capacity models.
func New(capacity int, opts ...Option) (*Cache, error) {
	if capacity < 1 {
		return nil, modelcache.ErrInvalidCapacity
	}
	c := &Cache{}
	for _, o := range opts {
		o(c)
	}
	cache, err := lru.NewWithEvict[string, *slot](capacity, func(_ string, s *slot) {
		if c.onEvict != nil {
			c.onEvict(s.model)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	c.cache = cache
	return c, nil
}

// Put implements modelcache.Cache.
func (c *Cache) Put(ctx context.Context, m *hierarchy.Model) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.cache.Peek(m.ID()); ok {
		s.model = m
		return nil
	}
	c.cache.Add(m.ID(), &slot{model: m})
	return nil
}

// Get implements modelcache.Cache.
func (c *Cache) Get(ctx context.Context, id string) (*hierarchy.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.cache.Peek(id)
	if !ok {
		return nil, nil
	}
	return s.model, nil
}

// Keys implements modelcache.Cache.
func (c *Cache) Keys(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Keys(), nil
}

// Len implements modelcache.Cache.
func (c *Cache) Len(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len(), nil
}

// Close drops every entry without invoking the evict callback.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = nil
	c.cache.Purge()
	return nil
}
