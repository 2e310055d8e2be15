package harmony

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/soundprediction/harmony"
	"github.com/soundprediction/harmony/pkg/cluster"
	"github.com/soundprediction/harmony/pkg/config"
	"github.com/soundprediction/harmony/pkg/crosswalk"
	"github.com/soundprediction/harmony/pkg/embedder"
	"github.com/soundprediction/harmony/pkg/instrument"
	"github.com/soundprediction/harmony/pkg/logger"
	"github.com/soundprediction/harmony/pkg/telemetry"
	"github.com/soundprediction/harmony/pkg/vectorcache"
)

// newLogger builds the process logger. With withTelemetry set and a parquet path
// configured, error records are also persisted; the returned closer flushes them.
func newLogger(cfg *config.Config, w io.Writer, withTelemetry bool) (*slog.Logger, io.Closer, error) {
	handler, err := logger.NewHandler(cfg.Log, w)
	if err != nil {
		return nil, nil, err
	}
	if !withTelemetry || cfg.Telemetry.ParquetPath == "" {
		return slog.New(handler), nopCloser{}, nil
	}

	if err := os.MkdirAll(cfg.Telemetry.ParquetPath, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	ph, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
	if err != nil {
		// error tracking is optional
		l := slog.New(handler)
		l.Warn("failed to initialize error tracking", "error", err)
		return l, nopCloser{}, nil
	}
	return slog.New(ph), ph, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openCache opens the configured vector cache backend.
func openCache(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (vectorcache.Cache, io.Closer, error) {
	switch cfg.Backend {
	case "", "memory":
		return vectorcache.NewMemoryCache(), nopCloser{}, nil
	case "badger":
		c, err := vectorcache.NewBadgerCache(vectorcache.BadgerConfig{
			Path:      cfg.Path,
			Namespace: cfg.Namespace,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	case "redis":
		c, err := vectorcache.NewRedisCache(ctx, vectorcache.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.Password,
			DB:        cfg.DB,
			TTL:       cfg.TTLDuration(),
			Namespace: cfg.Namespace,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

// clientConfig converts the matching section of cfg, loading the catalogue if one is set.
func clientConfig(cfg config.MatchingConfig) (*harmony.Config, error) {
	strategy, err := cluster.ParseStrategy(cfg.ClusterStrategy)
	if err != nil {
		return nil, err
	}
	hc := harmony.NewDefaultConfig()
	hc.ClusterStrategy = strategy
	hc.ClusterThreshold = cfg.ClusterThreshold
	hc.CrosswalkThreshold = cfg.CrosswalkThreshold
	hc.TopicCount = cfg.TopicCount
	hc.CrosswalkOptions = crosswalk.Options{
		ExcludeSameInstrument: cfg.ExcludeSameInstrument,
		OneToOne:              cfg.OneToOne,
	}

	if cfg.CataloguePath != "" {
		entries, err := instrument.LoadCatalogue(cfg.CataloguePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalogue: %w", err)
		}
		hc.Catalogue = entries
	}
	return hc, nil
}

// initializeHarmony wires the embedder, the vector cache and the client. With trackUsage
// set, embedding requests are recorded under the telemetry path. The returned cleanup
// closes everything.
func initializeHarmony(ctx context.Context, cfg *config.Config, logger *slog.Logger, trackUsage bool) (*harmony.Client, func(), error) {
	hc, err := clientConfig(cfg.Matching)
	if err != nil {
		return nil, nil, err
	}

	emb, err := embedder.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if trackUsage && cfg.Telemetry.ParquetPath != "" {
		tracker, err := embedder.NewUsageTracker(filepath.Join(cfg.Telemetry.ParquetPath, "usage"))
		if err != nil {
			logger.Warn("failed to initialize usage tracking", "error", err)
		} else {
			emb = embedder.NewUsageTrackingClient(emb, tracker, cfg.Embedding.Model)
			logger.Info("usage tracking enabled", "path", cfg.Telemetry.ParquetPath)
		}
	}

	cache, cacheCloser, err := openCache(ctx, cfg.Cache, logger)
	if err != nil {
		_ = emb.Close()
		return nil, nil, fmt.Errorf("failed to open vector cache: %w", err)
	}

	client := harmony.NewClient(emb, nil, cache, hc, logger)
	logger.Info("harmony initialized",
		"embedding_provider", cfg.Embedding.Provider,
		"embedding_model", cfg.Embedding.Model,
		"cache", cfg.Cache.Backend,
		"strategy", hc.ClusterStrategy.String(),
		"catalogue_entries", len(hc.Catalogue))

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Warn("failed to close embedder", "error", err)
		}
		if err := cacheCloser.Close(); err != nil {
			logger.Warn("failed to close vector cache", "error", err)
		}
	}
	return client, cleanup, nil
}
