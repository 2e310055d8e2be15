package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Cache configuration
	Cache CacheConfig `mapstructure:"cache"`

	// Matching configuration
	Matching MatchingConfig `mapstructure:"matching"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`

	// CircuitBreaker configuration
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// AlertConfig holds configuration for alerting
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json, color
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai, embedeverything, hashing
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// CacheConfig holds vector cache configuration
type CacheConfig struct {
	Backend   string `mapstructure:"backend"` // memory, badger, redis
	Path      string `mapstructure:"path"`
	RedisAddr string `mapstructure:"redis_addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	TTL       int    `mapstructure:"ttl"` // in seconds, 0 keeps entries forever
	Namespace string `mapstructure:"namespace"`
}

// TTLDuration returns the cache TTL as a duration.
func (c CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

// MatchingConfig holds defaults for the harmonisation operations
type MatchingConfig struct {
	ClusterThreshold   float64 `mapstructure:"cluster_threshold"`
	CrosswalkThreshold float64 `mapstructure:"crosswalk_threshold"`
	ClusterStrategy    string  `mapstructure:"cluster_strategy"` // deterministic, affinity, label_propagation
	TopicCount         int     `mapstructure:"topic_count"`
	CataloguePath      string  `mapstructure:"catalogue_path"`

	// crosswalk pair selection
	ExcludeSameInstrument bool `mapstructure:"exclude_same_instrument"`
	OneToOne              bool `mapstructure:"one_to_one"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	// Set defaults
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "color")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Embedding defaults
	viper.SetDefault("embedding.provider", "embedeverything")
	viper.SetDefault("embedding.model", "sentence-transformers/all-MiniLM-L6-v2")
	viper.SetDefault("embedding.dimensions", 384)
	viper.SetDefault("embedding.batch_size", 100)
	viper.SetDefault("embedding.max_retries", 3)

	// Cache defaults
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.redis_addr", "localhost:6379")
	viper.SetDefault("cache.namespace", "harmony")

	// Matching defaults
	viper.SetDefault("matching.cluster_threshold", 0.5)
	viper.SetDefault("matching.crosswalk_threshold", 0.6)
	viper.SetDefault("matching.cluster_strategy", "deterministic")
	viper.SetDefault("matching.topic_count", 5)

	// Circuit breaker defaults
	viper.SetDefault("circuit_breaker.enabled", false)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval", 60)
	viper.SetDefault("circuit_breaker.timeout", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("cache.path", fmt.Sprintf("%s/.harmony/vectors", home))
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.harmony/telemetry", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Embedding credentials
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.Embedding.APIKey == "" {
		config.Embedding.APIKey = apiKey
	}
	if provider := os.Getenv("HARMONY_EMBEDDING_PROVIDER"); provider != "" {
		config.Embedding.Provider = provider
	}
	if model := os.Getenv("HARMONY_EMBEDDING_MODEL"); model != "" {
		config.Embedding.Model = model
	}

	// Cache settings
	if backend := os.Getenv("HARMONY_CACHE_BACKEND"); backend != "" {
		config.Cache.Backend = backend
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Cache.RedisAddr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		config.Cache.Password = pass
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}
