package embedder

import (
	"context"
	"fmt"
	"sync"

	"github.com/soundprediction/go-embedeverything/pkg/embedder"
)

// EmbedEverythingClient implements the Client interface for local models served by EmbedEverything.
type EmbedEverythingClient struct {
	mu     sync.Mutex
	client *embedder.Embedder
	config Config
	closed bool
}

// NewEmbedEverythingClient loads the configured model.
func NewEmbedEverythingClient(config Config) (*EmbedEverythingClient, error) {
	if config.Model == "" {
		config.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	client, err := embedder.NewEmbedder(config.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder for %s: %w", config.Model, err)
	}

	return &EmbedEverythingClient{
		client: client,
		config: config,
	}, nil
}

// Embed generates embeddings for the given texts.
func (e *EmbedEverythingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}

	out := make([][]float32, 0, len(texts))
	for _, batch := range chunk(texts, e.config.BatchSize) {
		// go-embedeverything does not support context yet
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings, err := e.client.Embed(batch)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		out = append(out, embeddings...)
	}
	return out, nil
}

// EmbedSingle generates an embedding for a single text.
func (e *EmbedEverythingClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, e, text)
}

// Dimensions returns the number of dimensions in the embeddings.
func (e *EmbedEverythingClient) Dimensions() int {
	return e.config.Dimensions
}

// Close releases the model.
func (e *EmbedEverythingClient) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.client.Close()
		e.closed = true
	}
	return nil
}
