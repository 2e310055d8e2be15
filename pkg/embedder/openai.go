package embedder

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder implements Client for OpenAI and OpenAI compatible embedding endpoints.
type OpenAIEmbedder struct {
	client *openai.Client
	config Config
}

// NewOpenAIEmbedder creates a new OpenAI embedding client.
func NewOpenAIEmbedder(apiKey string, config Config) *OpenAIEmbedder {
	clientConfig := openai.DefaultConfig(apiKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Model == "" {
		config.Model = string(openai.SmallEmbedding3)
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}
}

// Embed generates embeddings for the given texts, splitting them into batches.
func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for _, batch := range chunk(texts, o.config.BatchSize) {
		req := openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(o.config.Model),
		}
		if o.config.Dimensions > 0 {
			req.Dimensions = o.config.Dimensions
		}

		resp, err := o.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return nil, wrapOpenAIError(err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmptyResponse, len(resp.Data), len(batch))
		}

		data := resp.Data
		sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })
		for _, d := range data {
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}

// EmbedSingle generates an embedding for a single text.
func (o *OpenAIEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, o, text)
}

// Dimensions returns the configured output dimensionality, or 0 for the model default.
func (o *OpenAIEmbedder) Dimensions() int {
	return o.config.Dimensions
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (o *OpenAIEmbedder) Close() error {
	return nil
}

func wrapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return fmt.Errorf("openai embedding request failed: %w", err)
}
