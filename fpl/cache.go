package fpl

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes upstream responses keyed by request signature. Concurrent
// lookups of the same key are coalesced into a single upstream call: waiters
// share the first call's result instead of issuing redundant fetches. Expired
// entries are evicted lazily on lookup; StartSweeper adds an optional periodic
// sweep for bounded memory.
type Cache struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry

	group singleflight.Group
}

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// CacheOption represents the options for the Cache.
type CacheOption func(*Cache)

// NewCache creates an empty response cache.
func NewCache(options ...CacheOption) *Cache {
	c := &Cache{
		logger:  slog.Default(),
		entries: make(map[string]cacheEntry),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// WithCacheLogger sets the logger for the cache.
func WithCacheLogger(logger *slog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger.With(
			slog.String("component", "cache"),
		)
	}
}

// CacheKey builds the canonical request signature for an endpoint path and its
// query parameters. Encoding sorts the parameters, so equivalent requests map
// to the same key.
func CacheKey(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

// GetOrFetch returns the cached value for key if it is still fresh, otherwise
// calls fn once — no matter how many callers arrive concurrently — stores the
// result with the given ttl, and returns it. A value is never served past its
// expiry; a write after expiry replaces the entry.
//
// fn runs detached from the caller's cancellation: if the requesting client
// disconnects mid-fetch, the fetch completes and populates the cache for the
// other waiters (upstream calls are reads, there is nothing to roll back).
func (c *Cache) GetOrFetch(
	ctx context.Context,
	key string,
	ttl time.Duration,
	fn func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	if v, ok := c.lookup(key); ok {
		return v, nil
	}

	fetchCtx := context.WithoutCancel(ctx)

	v, err, shared := c.group.Do(key, func() (any, error) {
		// A waiter queued behind the previous flight may find the entry
		// already fresh.
		if v, ok := c.lookup(key); ok {
			return v, nil
		}

		value, err := fn(fetchCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
		c.mu.Unlock()

		return value, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		c.logger.Debug("coalesced concurrent fetch", slog.String("key", key))
	}

	return v.([]byte), nil
}

// lookup returns the fresh value for key, lazily evicting it when expired.
func (c *Cache) lookup(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

// StartSweeper evicts expired entries every interval until ctx is cancelled.
// The sweep is not required for correctness, only for bounded memory.
func (c *Cache) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.sweep()
			}
		}
	}()
}

func (c *Cache) sweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
