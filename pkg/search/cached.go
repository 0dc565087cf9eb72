package search

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Cache stores provider results by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]Result, bool, error)
	Set(ctx context.Context, key string, results []Result, ttl time.Duration) error
}

// Cached serves repeated queries from a Cache before falling back to the
// wrapped provider. Cache errors are logged and bypassed.
type Cached struct {
	Provider Provider
	Cache    Cache
	TTL      time.Duration
	Logger   *slog.Logger
}

// NewCached wraps p with c.
func NewCached(p Provider, c Cache, ttl time.Duration, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{Provider: p, Cache: c, TTL: ttl, Logger: logger}
}

// Search implements Provider.
func (c *Cached) Search(ctx context.Context, query string) ([]Result, error) {
	key := CacheKey(query)

	hit, ok, err := c.Cache.Get(ctx, key)
	if err != nil {
		c.Logger.Warn("Search cache read failed", "query", query, "error", err)
	} else if ok {
		c.Logger.Debug("Search cache hit", "query", query)
		return hit, nil
	}

	results, err := c.Provider.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := c.Cache.Set(ctx, key, results, c.TTL); err != nil {
		c.Logger.Warn("Search cache write failed", "query", query, "error", err)
	}
	return results, nil
}

// CacheKey normalises a query into a cache key.
func CacheKey(query string) string {
	return "search:" + strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
