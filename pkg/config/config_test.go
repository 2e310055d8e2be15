package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SERVER_PORT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, "deterministic", cfg.Matching.ClusterStrategy)
	assert.InDelta(t, 0.5, cfg.Matching.ClusterThreshold, 1e-9)
	assert.InDelta(t, 0.6, cfg.Matching.CrosswalkThreshold, 1e-9)
	assert.Equal(t, 5, cfg.Matching.TopicCount)
	assert.Equal(t, 100, cfg.Embedding.BatchSize)
	assert.False(t, cfg.CircuitBreaker.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("HARMONY_CACHE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "cache:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "cache:6379", cfg.Cache.RedisAddr)
}

func TestLoadExplicitValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("matching.cluster_strategy", "affinity")
	viper.Set("cache.ttl", 90)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "affinity", cfg.Matching.ClusterStrategy)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTLDuration())
}
