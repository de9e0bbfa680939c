package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores GitHub API response bodies so repeated tool calls within a
// conversation don't burn through the unauthenticated rate limit.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string)
}

const cacheTTL = 5 * time.Minute

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		// Misses and connection errors both fall through to the API.
		return "", false
	}
	return val, true
}

func (c *redisCache) Set(ctx context.Context, key, value string) {
	c.client.Set(ctx, key, value, cacheTTL)
}

type noopCache struct{}

// NewNoopCache is used when REDIS_URL is not configured.
func NewNoopCache() Cache { return noopCache{} }

func (noopCache) Get(ctx context.Context, key string) (string, bool) { return "", false }

func (noopCache) Set(ctx context.Context, key, value string) {}

// cacheKey hashes the request URL together with token presence so responses
// fetched with a token are never served to unauthenticated requests.
func cacheKey(url string, authenticated bool) string {
	suffix := ":anon"
	if authenticated {
		suffix = ":auth"
	}
	sum := sha256.Sum256([]byte(url + suffix))
	return "github_cache:" + hex.EncodeToString(sum[:])
}
