package presence

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// DefaultHashKey is the Redis hash holding userId -> userName for every
// currently connected, authenticated session.
const DefaultHashKey = "online_users"

// Cache tracks currently-online users. At most one entry exists per user;
// a second connection by the same user overwrites the first (last writer
// wins), and disconnect removes the entry.
type Cache interface {
	Set(ctx context.Context, userID, userName string) error
	All(ctx context.Context) (map[string]string, error)
	Remove(ctx context.Context, userID string) error
}

// RedisCache is a Redis-hash implementation of Cache.
type RedisCache struct {
	client *redis.Client
	key    string
}

// NewRedisCache constructs a RedisCache over an established client.
func NewRedisCache(client *redis.Client, key string) *RedisCache {
	if key == "" {
		key = DefaultHashKey
	}
	return &RedisCache{client: client, key: key}
}

func (c *RedisCache) Set(ctx context.Context, userID, userName string) error {
	return c.client.HSet(ctx, c.key, userID, userName).Err()
}

func (c *RedisCache) All(ctx context.Context) (map[string]string, error) {
	return c.client.HGetAll(ctx, c.key).Result()
}

func (c *RedisCache) Remove(ctx context.Context, userID string) error {
	return c.client.HDel(ctx, c.key, userID).Err()
}

var _ Cache = (*RedisCache)(nil)
