package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a second-tier Cache backed by a shared Redis instance, for
// deployments running multiple reader processes in front of one SQLite or
// Postgres store (SPEC_FULL.md §4.10). It satisfies the same Cache
// interface as LRU so the search engine's postings reads can use either
// one interchangeably.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis wraps client as a Cache, namespacing keys with prefix and
// expiring entries after ttl (0 disables expiry).
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (c *Redis) key(tokenID int64) string {
	return c.prefix + strconv.FormatInt(tokenID, 10)
}

func (c *Redis) Get(key int64, load func() ([]byte, bool, error)) ([]byte, bool, error) {
	ctx := context.Background()
	redisKey := c.key(key)

	data, err := c.client.Get(ctx, redisKey).Bytes()
	if err == nil {
		return data, true, nil
	}
	if err != redis.Nil {
		// Treat a broken cache as a miss rather than a query failure;
		// the caller's load() still has the authoritative store.
		return load()
	}

	value, ok, loadErr := load()
	if loadErr != nil || !ok {
		return value, ok, loadErr
	}
	_ = c.client.Set(ctx, redisKey, value, c.ttl).Err()
	return value, true, nil
}

func (c *Redis) Invalidate(key int64) {
	_ = c.client.Del(context.Background(), c.key(key)).Err()
}
