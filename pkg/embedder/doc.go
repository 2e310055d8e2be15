// Package embedder provides text embedding clients for the harmony matching engine.
//
// This package defines the Client interface and provides implementations for
// remote and local embedding providers, plus wrappers that add resilience policies.
//
// # Supported Providers
//
// The following embedding providers are supported:
//   - OpenAI (and OpenAI compatible servers): text-embedding-3-small, text-embedding-3-large
//   - EmbedEverything: local sentence-transformer models such as all-MiniLM-L6-v2
//   - Hashing: a deterministic feature-hashing embedder for tests and offline use
//
// # Usage
//
//	client := embedder.NewOpenAIEmbedder(apiKey, embedder.Config{
//	    Model:     "text-embedding-3-small",
//	    BatchSize: 100,
//	})
//	engine := matcher.NewEngine(embedder.VectoriseFunc(client), negator, logger)
//
// # Resilience
//
// The matching engine performs exactly one vectorisation call per batch of unseen texts
// and never retries. Retry and circuit-breaking policies are applied around the client:
//
//	client = embedder.NewRetryClient(client, embedder.DefaultRetryConfig(), logger)
//	client = embedder.NewCircuitBreakerClient(client, cfg.CircuitBreaker, alert.New(cfg.Alert, logger), "openai", logger)
//
// NewFromConfig builds this chain from a config.Config.
package embedder
