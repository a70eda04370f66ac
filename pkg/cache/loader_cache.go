// Package cache provides a bounded, expiring loader cache that coalesces
// concurrent loads for the same key.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// ErrInvalidSize is returned when the cache is created with a non-positive size.
var ErrInvalidSize = errors.New("cache size must be positive")

// Loader caches values by string key, loading on miss. Entries are evicted by
// recency once maxEntries is reached and expire after ttl (0 disables expiry).
// Concurrent misses for one key run a single load and share its result.
// Failed loads are never cached.
type Loader[V any] struct {
	lru   *expirable.LRU[string, V]
	group singleflight.Group
}

// NewLoader creates a loader cache.
func NewLoader[V any](maxEntries int, ttl time.Duration) (*Loader[V], error) {
	if maxEntries <= 0 {
		return nil, ErrInvalidSize
	}

	return &Loader[V]{
		lru: expirable.NewLRU[string, V](maxEntries, nil, ttl),
	}, nil
}

// Get returns the value for key, loading it via load on a miss. hit reports
// whether the value was served from the cache.
func (c *Loader[V]) Get(ctx context.Context, key string, load func(context.Context, string) (V, error)) (V, bool, error) {
	if v, ok := c.lru.Get(key); ok {
		return v, true, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		loaded, loadErr := load(ctx, key)
		if loadErr != nil {
			return nil, loadErr
		}

		c.lru.Add(key, loaded)

		return loaded, nil
	})
	if err != nil {
		var zero V

		return zero, false, err
	}

	return val.(V), false, nil
}

// Invalidate removes the entry for key.
func (c *Loader[V]) Invalidate(key string) {
	c.lru.Remove(key)
}

// Purge removes all entries.
func (c *Loader[V]) Purge() {
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *Loader[V]) Len() int {
	return c.lru.Len()
}
