package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

var Ctx = context.Background()
var RedisClient *redis.Client

func InitRedis(address string) {
	RedisClient = redis.NewClient(&redis.Options{
		Addr: address,
	})
	_, err := RedisClient.Ping(Ctx).Result()
	if err != nil {
		log.Println("Redis not available. Running without Redis.")
		RedisClient = nil
		return
	}

	log.Println("Redis connected successfully.")
}

// Cache wraps the shared client with JSON helpers and versioned keys.
// Every method is a no-op (cache miss) when Redis is unavailable, so the
// server keeps serving from Postgres alone.
type Cache struct {
	client *redis.Client
}

func NewCache() *Cache {
	return &Cache{client: RedisClient}
}

func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	if c.client == nil {
		return false, nil
	}
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("cache set marshal failed for %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Printf("cache set failed for %s: %v", key, err)
	}
}

// GetVersion reads a list-cache version counter. Missing keys read as 0.
func (c *Cache) GetVersion(ctx context.Context, key string) int64 {
	if c.client == nil {
		return 0
	}
	v, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		return 0
	}
	return v
}

// IncrementVersion bumps a list-cache version counter so stale entries
// are never read again (they expire on their own TTL).
func (c *Cache) IncrementVersion(ctx context.Context, key string) {
	if c.client == nil {
		return
	}
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		log.Printf("cache version bump failed for %s: %v", key, err)
	}
}

// Throttle returns true when the caller may proceed, and arms the key
// for the given window. Used for typing-indicator rate limiting.
// Without Redis it always allows; the connection-local throttle in the
// realtime client still applies.
func (c *Cache) Throttle(ctx context.Context, key string, window time.Duration) bool {
	if c.client == nil {
		return true
	}
	ok, err := c.client.SetNX(ctx, key, 1, window).Result()
	if err != nil {
		return true
	}
	return ok
}
