package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisLib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func setupCache(t *testing.T) *Cache {
	t.Helper()
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() {
		mini.Close()
		RedisClient = nil
	})
	RedisClient = redisLib.NewClient(&redisLib.Options{Addr: mini.Addr()})
	return NewCache()
}

func TestCache_SetGet(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	cache.Set(ctx, "k", payload{Name: "sessions", Count: 3}, time.Minute)

	var got payload
	found, err := cache.Get(ctx, "k", &got)
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "sessions", got.Name)
	assert.Equal(t, 3, got.Count)

	found, err = cache.Get(ctx, "missing", &got)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestCache_VersionCounter(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	assert.Equal(t, int64(0), cache.GetVersion(ctx, "user:1:sessions:version"))

	cache.IncrementVersion(ctx, "user:1:sessions:version")
	cache.IncrementVersion(ctx, "user:1:sessions:version")
	assert.Equal(t, int64(2), cache.GetVersion(ctx, "user:1:sessions:version"))
}

func TestCache_Throttle(t *testing.T) {
	cache := setupCache(t)
	ctx := context.Background()

	assert.True(t, cache.Throttle(ctx, "typing:s:1:u:42", 2*time.Second))
	// second attempt inside the window is rejected
	assert.False(t, cache.Throttle(ctx, "typing:s:1:u:42", 2*time.Second))
	// a different key is unaffected
	assert.True(t, cache.Throttle(ctx, "typing:s:1:u:7", 2*time.Second))
}

func TestCache_NilClientDegradesGracefully(t *testing.T) {
	RedisClient = nil
	cache := NewCache()
	ctx := context.Background()

	var got string
	found, err := cache.Get(ctx, "k", &got)
	assert.NoError(t, err)
	assert.False(t, found)

	cache.Set(ctx, "k", "v", time.Minute)
	cache.IncrementVersion(ctx, "k")
	assert.Equal(t, int64(0), cache.GetVersion(ctx, "k"))
	assert.True(t, cache.Throttle(ctx, "k", time.Second))
}
