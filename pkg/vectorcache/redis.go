package vectorcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisCache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	Namespace string
}

// RedisCache is a Cache stored in redis, shareable between processes.
type RedisCache struct {
	client    *redis.Client
	ttl       time.Duration
	namespace string
	logger    *slog.Logger
}

// NewRedisCache connects to redis and verifies the connection with a ping.
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "harmony:vec"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	logger.Info("Vector cache opened", "backend", "redis", "addr", cfg.Addr, "ttl", cfg.TTL)

	return &RedisCache{
		client:    client,
		ttl:       cfg.TTL,
		namespace: cfg.Namespace,
		logger:    logger.With("component", "redis-cache"),
	}, nil
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, text string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, hashKey(c.namespace, text)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("Discarding corrupt cached vector", "error", err)
		return nil, false, nil
	}
	return vec, true, nil
}

// Put implements Cache.
func (c *RedisCache) Put(ctx context.Context, text string, vector []float32) error {
	return c.client.Set(ctx, hashKey(c.namespace, text), encodeVector(vector), c.ttl).Err()
}

// Close closes the redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
