package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/matheus3301/relay/internal/metrics"
)

// Cached wraps a Directory with a TTL cache. Only successful lookups are
// cached; errors always reach the inner directory again on the next call.
type Cached struct {
	inner Directory
	cache *ristretto.Cache[string, Profile]
	ttl   time.Duration
}

// NewCached creates a caching directory holding roughly maxEntries profiles.
func NewCached(inner Directory, ttl time.Duration, maxEntries int64) (*Cached, error) {
	if maxEntries <= 0 {
		maxEntries = 10_000
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, Profile]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("profile cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache, ttl: ttl}, nil
}

func (c *Cached) Lookup(ctx context.Context, id string) (*Profile, error) {
	if p, ok := c.cache.Get(id); ok {
		metrics.DirectoryLookups.WithLabelValues("hit").Inc()
		return &p, nil
	}

	p, err := c.inner.Lookup(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		metrics.DirectoryLookups.WithLabelValues("not_found").Inc()
		return nil, err
	case err != nil:
		metrics.DirectoryLookups.WithLabelValues("error").Inc()
		return nil, err
	}
	if p == nil {
		metrics.DirectoryLookups.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}
	metrics.DirectoryLookups.WithLabelValues("miss").Inc()
	if c.cache.SetWithTTL(id, *p, 1, c.ttl) {
		c.cache.Wait()
	}
	return p, nil
}

// Invalidate drops id from the cache.
func (c *Cached) Invalidate(id string) {
	c.cache.Del(id)
}

// Close releases the cache's background goroutines.
func (c *Cached) Close() {
	c.cache.Close()
}
