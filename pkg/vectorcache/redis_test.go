package vectorcache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping redis integration test")
	}

	ctx := context.Background()
	cache, err := NewRedisCache(ctx, RedisConfig{Addr: addr, TTL: time.Minute, Namespace: "harmony-test"}, nil)
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.Put(ctx, "I feel nervous", []float32{1, 2, 3}))
	vec, ok, err := cache.Get(ctx, "I feel nervous")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, vec)
}

func TestNewRedisCacheRequiresAddr(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{}, nil)
	assert.Error(t, err)
}
