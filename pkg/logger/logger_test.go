package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/soundprediction/harmony/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	log.Error("embedding failed", "provider", "openai")
	assert.Contains(t, buf.String(), colorRed)
	assert.Contains(t, buf.String(), "provider=openai")
	buf.Reset()

	log.Warn("slow request")
	assert.Contains(t, buf.String(), colorYellow)
	buf.Reset()

	log.Info("Stored vectors in cache", "count", 3)
	assert.Contains(t, buf.String(), colorGreen)
	buf.Reset()

	log.Info("plain message")
	assert.NotContains(t, buf.String(), "\033[")
	assert.Contains(t, buf.String(), "msg=\"plain message\"")
}

func TestColorHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, nil)).With("component", "matcher").WithGroup("run")

	log.Info("done", "questions", 5)
	out := buf.String()
	assert.Contains(t, out, "component=matcher")
	assert.Contains(t, out, "run.questions=5")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewHandler(t *testing.T) {
	var buf bytes.Buffer

	h, err := NewHandler(config.LogConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)
	slog.New(h).Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	h, err = NewHandler(config.LogConfig{Format: "color"}, &buf)
	require.NoError(t, err)
	assert.IsType(t, &ColorHandler{}, h)

	_, err = NewHandler(config.LogConfig{Format: "xml"}, &buf)
	assert.Error(t, err)
	_, err = NewHandler(config.LogConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
}
