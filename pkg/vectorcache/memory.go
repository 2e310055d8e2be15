package vectorcache

import (
	"context"
	"sync"

	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/utils"
)

// MemoryCache is an in-process Cache guarded by a read/write mutex.
type MemoryCache struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewMemoryCache creates a cache pre-populated with the given vectors.
func NewMemoryCache(seed ...types.TextVector) *MemoryCache {
	c := &MemoryCache{vectors: make(map[string][]float32, len(seed))}
	for _, tv := range seed {
		if tv.Text != "" && len(tv.Vector) > 0 {
			c.vectors[tv.Text] = utils.CloneVector(tv.Vector)
		}
	}
	return c
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, text string) ([]float32, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vec, ok := c.vectors[text]
	if !ok {
		return nil, false, nil
	}
	return utils.CloneVector(vec), true, nil
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, text string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vectors[text] = utils.CloneVector(vector)
	return nil
}

// Len returns the number of cached texts.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}
