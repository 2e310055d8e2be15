// Package logger builds the slog loggers used across harmony.
//
// The color handler highlights warnings in yellow, errors in red and cache and
// persistence messages in green so long matching runs are easy to follow in a terminal.
package logger

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/soundprediction/harmony/pkg/config"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

var highlighted = []string{"cache", "persist", "stored", "saved", "wrote"}

// ColorHandler is a text handler that colours whole lines by level.
type ColorHandler struct {
	out   io.Writer
	mu    *sync.Mutex
	buf   *bytes.Buffer
	inner slog.Handler
}

// NewColorHandler creates a ColorHandler writing to w.
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	buf := &bytes.Buffer{}
	return &ColorHandler{
		out:   w,
		mu:    &sync.Mutex{},
		buf:   buf,
		inner: slog.NewTextHandler(buf, opts),
	}
}

func (h *ColorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ColorHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf.Reset()
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	line := strings.TrimRight(h.buf.String(), "\n")

	color := colorFor(r)
	if color == "" {
		_, err := fmt.Fprintln(h.out, line)
		return err
	}
	_, err := fmt.Fprintf(h.out, "%s%s%s\n", color, line, colorReset)
	return err
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ColorHandler{out: h.out, mu: h.mu, buf: h.buf, inner: h.inner.WithAttrs(attrs)}
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	return &ColorHandler{out: h.out, mu: h.mu, buf: h.buf, inner: h.inner.WithGroup(name)}
}

func colorFor(r slog.Record) string {
	switch {
	case r.Level >= slog.LevelError:
		return colorRed
	case r.Level >= slog.LevelWarn:
		return colorYellow
	}
	msg := strings.ToLower(r.Message)
	for _, word := range highlighted {
		if strings.Contains(msg, word) {
			return colorGreen
		}
	}
	return ""
}

// NewDefaultLogger returns a colored logger on stderr.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// ParseLevel parses debug, info, warn or error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewHandler builds the handler selected by cfg.Format: json, text or color.
func NewHandler(cfg config.LogConfig, w io.Writer) (slog.Handler, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	case "text":
		return slog.NewTextHandler(w, opts), nil
	case "", "color":
		return NewColorHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}
