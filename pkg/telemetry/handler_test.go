package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/harmony/pkg/types"
)

func TestParquetHandler(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	h, err := NewParquetHandler(slog.NewTextHandler(&out, nil), dir)
	require.NoError(t, err)

	log := slog.New(h).With("component", "server")
	ctx := context.WithValue(context.Background(), types.ContextKeyRequestID, "req-1")
	ctx = context.WithValue(ctx, types.ContextKeyRequestSource, "server")

	log.InfoContext(ctx, "not recorded")
	log.ErrorContext(ctx, "match failed", "error", errors.New("model offline"))

	assert.Contains(t, out.String(), "not recorded")
	assert.Contains(t, out.String(), "match failed")

	files, _ := filepath.Glob(filepath.Join(dir, "*.parquet"))
	assert.Empty(t, files, "nothing is written before the batch fills or Close")

	require.NoError(t, h.Close())
	files, _ = filepath.Glob(filepath.Join(dir, "*.parquet"))
	require.Len(t, files, 1)

	records, err := parquet.ReadFile[LogRecord](files[0])
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "match failed", records[0].Message)
	assert.Equal(t, "req-1", records[0].RequestID)
	assert.Equal(t, "server", records[0].RequestSource)
	assert.Equal(t, "ERROR", records[0].Level)
	assert.Contains(t, records[0].Attributes, `"error":"model offline"`)
	assert.Contains(t, records[0].Attributes, `"component":"server"`)
	assert.NotEmpty(t, records[0].ID)
}

func TestParquetHandlerBatchFlush(t *testing.T) {
	dir := t.TempDir()
	h, err := NewParquetHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), dir)
	require.NoError(t, err)
	h.sink.batchSize = 2

	log := slog.New(h)
	log.Error("one")
	log.With("k", "v").Error("two")

	files, _ := filepath.Glob(filepath.Join(dir, "*.parquet"))
	assert.Len(t, files, 1, "derived handlers share the buffer")
	require.NoError(t, h.Close())
}

func TestNewParquetHandlerBadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := NewParquetHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), filepath.Join(file, "sub"))
	assert.Error(t, err)
}
