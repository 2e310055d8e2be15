package vectorcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/soundprediction/harmony/pkg/types"
)

var (
	// ErrVectorCountMismatch is returned when the vectoriser returns a different number
	// of vectors than it was given texts.
	ErrVectorCountMismatch = errors.New("vectoriser returned wrong number of vectors")
	// ErrCorruptVector is returned when a stored vector cannot be decoded.
	ErrCorruptVector = errors.New("corrupt cached vector")
)

// Vectoriser turns texts into vectors, one per text and in the same order.
type Vectoriser func(ctx context.Context, texts []string) ([][]float32, error)

// Cache maps texts to previously computed vectors.
//
// Implementations used by several goroutines must synchronise internally.
type Cache interface {
	Get(ctx context.Context, text string) ([]float32, bool, error)
	Put(ctx context.Context, text string, vector []float32) error
}

// Batch is the result of resolving a list of texts.
type Batch struct {
	// Vectors holds one vector per input text. Empty texts have a nil vector.
	Vectors [][]float32
	// New lists the vectors computed by this call, in first-seen order.
	New []types.TextVector
	// Hits counts the distinct texts served from the cache.
	Hits int
}

// Resolve returns a vector for every text, calling vectorise at most once and only with
// the distinct non-empty texts that are not in cache. A nil cache caches nothing.
// Errors from vectorise are returned unchanged.
func Resolve(ctx context.Context, texts []string, cache Cache, vectorise Vectoriser) (*Batch, error) {
	batch := &Batch{Vectors: make([][]float32, len(texts))}

	known := make(map[string][]float32)
	var pending []string
	queued := make(map[string]struct{})

	for _, text := range texts {
		if text == "" {
			continue
		}
		if _, ok := known[text]; ok {
			continue
		}
		if _, ok := queued[text]; ok {
			continue
		}
		if cache != nil {
			vec, ok, err := cache.Get(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("vector cache lookup: %w", err)
			}
			if ok {
				known[text] = vec
				batch.Hits++
				continue
			}
		}
		queued[text] = struct{}{}
		pending = append(pending, text)
	}

	if len(pending) > 0 {
		if vectorise == nil {
			return nil, errors.New("vectoriser is nil")
		}
		vectors, err := vectorise(ctx, pending)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(pending) {
			return nil, fmt.Errorf("%w: sent %d texts, got %d vectors", ErrVectorCountMismatch, len(pending), len(vectors))
		}
		batch.New = make([]types.TextVector, len(pending))
		for i, text := range pending {
			known[text] = vectors[i]
			batch.New[i] = types.TextVector{Text: text, Vector: vectors[i]}
		}
	}

	for i, text := range texts {
		if text == "" {
			continue
		}
		batch.Vectors[i] = known[text]
	}
	return batch, nil
}

// Store writes vectors into cache, stopping at the first error. A nil cache is a no-op.
func Store(ctx context.Context, cache Cache, vectors []types.TextVector) error {
	if cache == nil {
		return nil
	}
	for _, tv := range vectors {
		if tv.Text == "" || len(tv.Vector) == 0 {
			continue
		}
		if err := cache.Put(ctx, tv.Text, tv.Vector); err != nil {
			return fmt.Errorf("store vector: %w", err)
		}
	}
	return nil
}
