package embedder

import (
	"context"
	"fmt"

	"github.com/soundprediction/harmony/pkg/vectorcache"
)

// Client turns texts into embedding vectors.
type Client interface {
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedSingle embeds one text.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the length of the produced vectors.
	Dimensions() int
	// Close releases any resources held by the client.
	Close() error
}

// Config holds provider independent embedding settings.
type Config struct {
	Model      string `json:"model"`
	BaseURL    string `json:"base_url,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
	// BatchSize caps the number of texts per provider request. 0 means no cap.
	BatchSize int `json:"batch_size,omitempty"`
}

// VectoriseFunc adapts a Client to the vectoriser signature used by the matching engine.
func VectoriseFunc(client Client) vectorcache.Vectoriser {
	return func(ctx context.Context, texts []string) ([][]float32, error) {
		return client.Embed(ctx, texts)
	}
}

// embedSingle implements EmbedSingle on top of a batch call.
func embedSingle(ctx context.Context, c Client, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return embeddings[0], nil
}

// chunk splits texts into slices of at most size elements. size <= 0 returns one chunk.
func chunk(texts []string, size int) [][]string {
	if size <= 0 || len(texts) <= size {
		return [][]string{texts}
	}
	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}
