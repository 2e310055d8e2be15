package embedder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parquet-go/parquet-go"

	"github.com/soundprediction/harmony/pkg/types"
)

// UsageRecord is one embedding request as stored in the usage Parquet files.
type UsageRecord struct {
	ID              string    `parquet:"id"`
	Timestamp       time.Time `parquet:"timestamp"`
	Model           string    `parquet:"model"`
	Texts           int       `parquet:"texts"`
	Characters      int       `parquet:"characters"`
	EstimatedTokens int       `parquet:"estimated_tokens"`
	DurationMs      int64     `parquet:"duration_ms"`
	Success         bool      `parquet:"success"`
	RequestID       string    `parquet:"request_id"`
	RequestSource   string    `parquet:"request_source"`
}

// UsageTracker buffers usage records and writes them to Parquet files in batches.
type UsageTracker struct {
	outputDir string
	mu        sync.Mutex
	buffer    []UsageRecord
	batchSize int
}

// NewUsageTracker creates a tracker writing to outputDir.
func NewUsageTracker(outputDir string) (*UsageTracker, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create usage tracking directory: %w", err)
	}
	return &UsageTracker{
		outputDir: outputDir,
		buffer:    make([]UsageRecord, 0, 100),
		batchSize: 100,
	}, nil
}

// Add records one request, filling id, timestamp and the request fields from ctx.
func (t *UsageTracker) Add(ctx context.Context, record UsageRecord) error {
	record.ID = uuid.NewString()
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	if v, ok := ctx.Value(types.ContextKeyRequestID).(string); ok {
		record.RequestID = v
	}
	if v, ok := ctx.Value(types.ContextKeyRequestSource).(string); ok {
		record.RequestSource = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.buffer = append(t.buffer, record)
	if len(t.buffer) >= t.batchSize {
		return t.flush()
	}
	return nil
}

// Flush writes any buffered records.
func (t *UsageTracker) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flush()
}

// flush writes the buffer to a new Parquet file. Caller must hold the lock.
func (t *UsageTracker) flush() error {
	if len(t.buffer) == 0 {
		return nil
	}

	now := time.Now()
	filename := fmt.Sprintf("embedding_usage_%s_%d.parquet", now.Format("20060102_150405"), now.UnixNano())
	if err := parquet.WriteFile(filepath.Join(t.outputDir, filename), t.buffer); err != nil {
		return fmt.Errorf("failed to write usage parquet file: %w", err)
	}

	t.buffer = t.buffer[:0]
	return nil
}

// UsageTrackingClient wraps a Client and records every Embed call.
type UsageTrackingClient struct {
	client  Client
	tracker *UsageTracker
	model   string
}

// NewUsageTrackingClient creates a wrapper client
func NewUsageTrackingClient(client Client, tracker *UsageTracker, model string) *UsageTrackingClient {
	if model == "" {
		model = "unknown"
	}
	return &UsageTrackingClient{
		client:  client,
		tracker: tracker,
		model:   model,
	}
}

// Embed implements Client
func (c *UsageTrackingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vectors, err := c.client.Embed(ctx, texts)

	chars := 0
	for _, t := range texts {
		chars += len([]rune(t))
	}
	// usage is best effort; a failed write never fails the request
	_ = c.tracker.Add(ctx, UsageRecord{
		Model:      c.model,
		Texts:      len(texts),
		Characters: chars,
		// roughly four characters per token for the common tokenizers
		EstimatedTokens: (chars + 3) / 4,
		DurationMs:      time.Since(start).Milliseconds(),
		Success:         err == nil,
	})
	return vectors, err
}

// EmbedSingle implements Client
func (c *UsageTrackingClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return embedSingle(ctx, c, text)
}

// Dimensions implements Client
func (c *UsageTrackingClient) Dimensions() int {
	return c.client.Dimensions()
}

// Close flushes the tracker and closes the wrapped client.
func (c *UsageTrackingClient) Close() error {
	flushErr := c.tracker.Flush()
	if err := c.client.Close(); err != nil {
		return err
	}
	return flushErr
}
