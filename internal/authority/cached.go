package authority

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL balances caching efficiency against picking up endpoint
// changes in a reasonable time.
const DefaultCacheTTL = 30 * time.Minute

type cacheEntry struct {
	endpoints Endpoints
	fetchedAt time.Time
}

// Cached wraps a Resolver with a TTL cache. Concurrent resolutions of the
// same authority are deduplicated so a burst of flows triggers at most one
// metadata fetch.
type Cached struct {
	inner Resolver
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cacheEntry

	group singleflight.Group
}

// NewCached creates a caching resolver around inner. A non-positive ttl
// uses DefaultCacheTTL.
func NewCached(inner Resolver, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Resolve implements Resolver.
func (c *Cached) Resolve(ctx context.Context, authorityURL string) (Endpoints, error) {
	c.mu.RLock()
	entry, ok := c.entries[authorityURL]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < c.ttl {
		return entry.endpoints, nil
	}

	v, err, _ := c.group.Do(authorityURL, func() (interface{}, error) {
		endpoints, err := c.inner.Resolve(ctx, authorityURL)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[authorityURL] = cacheEntry{endpoints: endpoints, fetchedAt: time.Now()}
		c.mu.Unlock()
		return endpoints, nil
	})
	if err != nil {
		return Endpoints{}, err
	}
	return v.(Endpoints), nil
}
