package embedder

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/soundprediction/harmony/pkg/alert"
	"github.com/soundprediction/harmony/pkg/config"
)

// NewFromConfig builds the configured client and wraps it with the retry and
// circuit breaker policies.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (Client, error) {
	ec := Config{
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		BatchSize:  cfg.Embedding.BatchSize,
	}

	var client Client
	switch cfg.Embedding.Provider {
	case "openai":
		if cfg.Embedding.APIKey == "" && cfg.Embedding.BaseURL == "" {
			return nil, fmt.Errorf("openai embedding provider requires an api key")
		}
		client = NewOpenAIEmbedder(cfg.Embedding.APIKey, ec)
	case "embedeverything", "":
		c, err := NewEmbedEverythingClient(ec)
		if err != nil {
			return nil, err
		}
		client = c
	case "hashing":
		client = NewHashingEmbedder(ec.Dimensions)
		// local and deterministic; no policies needed
		return client, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}

	if cfg.Embedding.MaxRetries > 0 {
		client = NewRetryClient(client, &RetryConfig{
			MaxRetries:        cfg.Embedding.MaxRetries,
			InitialDelay:      time.Second,
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2.0,
		}, logger)
	}
	if cfg.CircuitBreaker.Enabled {
		client = NewCircuitBreakerClient(client, cfg.CircuitBreaker, alert.New(cfg.Alert, logger), cfg.Embedding.Provider, logger)
	}
	return client, nil
}
