package vectorcache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerCacheInMemory(t *testing.T) {
	ctx := context.Background()
	cache, err := NewBadgerCache(BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	defer cache.Close()

	_, ok, err := cache.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, "I feel nervous", []float32{0.1, 0.2, 0.3}))

	vec, ok, err := cache.Get(ctx, "I feel nervous")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestBadgerCacheOnDiskSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cache, err := NewBadgerCache(BadgerConfig{Path: dir, Namespace: "test"}, nil)
	require.NoError(t, err)
	require.NoError(t, cache.Put(ctx, "worry", []float32{4, 5}))
	require.NoError(t, cache.Close())

	reopened, err := NewBadgerCache(BadgerConfig{Path: dir, Namespace: "test"}, nil)
	require.NoError(t, err)
	defer reopened.Close()

	vec, ok, err := reopened.Get(ctx, "worry")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float32{4, 5}, vec)
}

func TestBadgerCacheRequiresPath(t *testing.T) {
	_, err := NewBadgerCache(BadgerConfig{}, nil)
	assert.Error(t, err)
}

func TestBadgerCacheWithResolve(t *testing.T) {
	ctx := context.Background()
	cache, err := NewBadgerCache(BadgerConfig{InMemory: true}, nil)
	require.NoError(t, err)
	defer cache.Close()

	rec := &recordingVectoriser{}
	first, err := Resolve(ctx, []string{"a", "bb"}, cache, rec.vectorise)
	require.NoError(t, err)
	require.NoError(t, Store(ctx, cache, first.New))

	second, err := Resolve(ctx, []string{"bb", "a"}, cache, rec.vectorise)
	require.NoError(t, err)

	assert.Len(t, rec.calls, 1, "second resolve should be served from badger")
	assert.Equal(t, first.Vectors[1], second.Vectors[0])
	assert.Equal(t, 2, second.Hits)
}
