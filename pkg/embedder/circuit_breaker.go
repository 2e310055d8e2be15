package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"github.com/soundprediction/harmony/pkg/alert"
	"github.com/soundprediction/harmony/pkg/config"
)

// CircuitBreakerClient wraps a Client with circuit breaking logic
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker
	name   string
}

// NewCircuitBreakerClient creates a new circuit breaker client.
// When the breaker opens, alerter (if non-nil) is notified.
func NewCircuitBreakerClient(client Client, cfg config.CircuitBreakerConfig, alerter alert.Alerter, name string, logger *slog.Logger) *CircuitBreakerClient {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "embedder.breaker", "breaker", name)

	ratio := cfg.ReadyToTripRatio
	if ratio <= 0 {
		ratio = 0.6
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= ratio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
			if to == gobreaker.StateOpen && alerter != nil {
				msg := fmt.Sprintf("Circuit breaker '%s' changed from %s to %s. Too many embedding failures detected.", name, from, to)
				if err := alerter.Alert(fmt.Sprintf("circuit breaker tripped: %s", name), msg); err != nil {
					logger.Error("failed to send alert", "error", err)
				}
			}
		},
	}

	return &CircuitBreakerClient{
		client: client,
		cb:     gobreaker.NewCircuitBreaker(st),
		name:   name,
	}
}

// Embed implements Client
func (c *CircuitBreakerClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.client.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	return resp.([][]float32), nil
}

// EmbedSingle implements Client
func (c *CircuitBreakerClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, c, text)
}

// Dimensions implements Client
func (c *CircuitBreakerClient) Dimensions() int {
	return c.client.Dimensions()
}

// State reports the breaker state.
func (c *CircuitBreakerClient) State() gobreaker.State {
	return c.cb.State()
}

// Close implements Client
func (c *CircuitBreakerClient) Close() error {
	return c.client.Close()
}
