package collector

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"github.com/Adithya-Monish-Kumar-K/review-term-analytics/pkg/redis"
)

const cacheKeyPrefix = "reviewterms:page:"

// PageCache stores raw API responses by request URL.
type PageCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, body []byte) error
}

// RedisCache is a PageCache backed by Redis with a fixed TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// CacheKey hashes the request URL into a bounded Redis key.
func CacheKey(u string) string {
	sum := sha1.Sum([]byte(u))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, err := c.client.Get(ctx, CacheKey(key))
	if redis.IsNilError(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return body, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, body []byte) error {
	return c.client.Set(ctx, CacheKey(key), body, c.ttl)
}

// Invalidate drops every cached page and returns how many were removed.
func (c *RedisCache) Invalidate(ctx context.Context) (int64, error) {
	return c.client.FlushByPattern(ctx, cacheKeyPrefix+"*")
}
