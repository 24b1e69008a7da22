// Package cache keeps search responses in Redis. Keys include the corpus
// version, so a reloaded corpus never serves stale explanations.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/search"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/redis"
)

const keySpace = "search"

// Backend is the subset of the Redis client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	backend Backend
	version string
	ttl     time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a cache for responses computed against the corpus with the
// given version. m may be nil.
func New(backend Backend, version string, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	return &QueryCache{
		backend: backend,
		version: version,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

func (c *QueryCache) Get(ctx context.Context, query string) (*search.Response, bool) {
	key := c.buildKey(query)
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var resp search.Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	c.logger.Debug("cache hit", "query", query, "key", key)
	return &resp, true
}

func (c *QueryCache) Set(ctx context.Context, query string, resp *search.Response) {
	key := c.buildKey(query)
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached response for query, or computes, stores
// and returns it. Concurrent misses for the same query compute once. Partial
// responses are returned but not stored.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	query string,
	computeFn func() *search.Response,
) (*search.Response, bool) {
	if resp, ok := c.Get(ctx, query); ok {
		return resp, true
	}
	key := c.buildKey(query)
	val, _, _ := c.group.Do(key, func() (any, error) {
		resp := computeFn()
		if resp.Partial {
			c.logger.Debug("partial response not cached", "query", query)
			return resp, nil
		}
		c.Set(ctx, query, resp)
		return resp, nil
	})
	return val.(*search.Response), false
}

// Invalidate drops every cached response, for all corpus versions.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	pattern := pkgredis.Key(keySpace, "*")
	deleted, err := c.backend.FlushByPattern(ctx, pattern)
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(keySpace).Inc()
	}
}

func (c *QueryCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(keySpace).Inc()
	}
}

// buildKey hashes the query as given. Case and whitespace both change what
// matches.
func (c *QueryCache) buildKey(query string) string {
	hash := sha256.Sum256([]byte(query))
	return pkgredis.Key(keySpace, c.version, hex.EncodeToString(hash[:16]))
}
