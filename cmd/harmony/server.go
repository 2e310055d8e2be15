package harmony

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/harmony/pkg/config"
	"github.com/soundprediction/harmony/pkg/metrics"
	"github.com/soundprediction/harmony/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the Harmony HTTP server",
	Long: `Start the Harmony HTTP server to provide REST API access to the matching engine.

The server provides endpoints for:
- Matching questions across instruments
- Clustering, alignment and crosswalk tables
- Prometheus metrics
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	// Embedding flags
	serverCmd.Flags().String("embedding-provider", "embedeverything", "Embedding provider (openai, embedeverything, hashing)")
	serverCmd.Flags().String("embedding-model", "", "Embedding model")
	serverCmd.Flags().String("embedding-api-key", "", "Embedding API key")
	serverCmd.Flags().String("embedding-base-url", "", "Embedding base URL")

	// Cache flags
	serverCmd.Flags().String("cache-backend", "memory", "Vector cache backend (memory, badger, redis)")
	serverCmd.Flags().String("cache-path", "", "Badger cache directory")
	serverCmd.Flags().String("redis-addr", "", "Redis address for the redis cache backend")

	// Matching flags
	serverCmd.Flags().String("catalogue", "", "Reference catalogue file for topic propagation")

	// Telemetry flags
	serverCmd.Flags().String("telemetry-parquet-path", "", "Path to directory for error telemetry")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	overrideConfigWithFlags(cmd, cfg)

	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logCloser, err := newLogger(cfg, os.Stderr, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := logCloser.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to flush telemetry: %v\n", err)
		}
	}()

	client, cleanup, err := initializeHarmony(cmd.Context(), cfg, logger, true)
	if err != nil {
		return fmt.Errorf("failed to initialize harmony: %w", err)
	}
	defer cleanup()

	srv := server.New(cfg, client, metrics.New(nil), logger)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.Info("received signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		logger.Info("server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	// Embedding flags
	if cmd.Flags().Changed("embedding-provider") {
		cfg.Embedding.Provider, _ = cmd.Flags().GetString("embedding-provider")
	}
	if cmd.Flags().Changed("embedding-model") {
		cfg.Embedding.Model, _ = cmd.Flags().GetString("embedding-model")
	}
	if cmd.Flags().Changed("embedding-api-key") {
		cfg.Embedding.APIKey, _ = cmd.Flags().GetString("embedding-api-key")
	}
	if cmd.Flags().Changed("embedding-base-url") {
		cfg.Embedding.BaseURL, _ = cmd.Flags().GetString("embedding-base-url")
	}

	// Cache flags
	if cmd.Flags().Changed("cache-backend") {
		cfg.Cache.Backend, _ = cmd.Flags().GetString("cache-backend")
	}
	if cmd.Flags().Changed("cache-path") {
		cfg.Cache.Path, _ = cmd.Flags().GetString("cache-path")
	}
	if cmd.Flags().Changed("redis-addr") {
		cfg.Cache.RedisAddr, _ = cmd.Flags().GetString("redis-addr")
	}

	if cmd.Flags().Changed("catalogue") {
		cfg.Matching.CataloguePath, _ = cmd.Flags().GetString("catalogue")
	}

	// Telemetry flags
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	switch cfg.Cache.Backend {
	case "badger":
		if cfg.Cache.Path == "" {
			return fmt.Errorf("cache path is required for the badger backend")
		}
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	}
	return nil
}
