package pagetext

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/redis"
)

// RedisCache keeps fetched page text in Redis so it survives restarts and is
// shared between replicas.
type RedisCache struct {
	client *pkgredis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *pkgredis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "page-text-cache"),
	}
}

func (c *RedisCache) Get(ctx context.Context, src string) (string, bool) {
	key := cacheKey(src)
	text, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return text, true
}

func (c *RedisCache) Set(ctx context.Context, src, text string) {
	key := cacheKey(src)
	if err := c.client.Set(ctx, key, text, c.ttl); err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

func cacheKey(src string) string {
	sum := sha256.Sum256([]byte(src))
	return pkgredis.Key("pagetext", hex.EncodeToString(sum[:16]))
}
