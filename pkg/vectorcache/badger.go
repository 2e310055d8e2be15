package vectorcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

// BadgerConfig configures a BadgerCache.
type BadgerConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps the store in memory only.
	InMemory bool
	// Namespace separates vectors of different embedding models.
	Namespace string
}

// BadgerCache is a Cache backed by an embedded badger database.
type BadgerCache struct {
	db        *badger.DB
	namespace string
	logger    *slog.Logger
}

// NewBadgerCache opens (or creates) the badger database described by cfg.
func NewBadgerCache(cfg BadgerConfig, logger *slog.Logger) (*BadgerCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger cache path is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "vec"
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger cache: %w", err)
	}
	logger.Info("Vector cache opened", "backend", "badger", "path", cfg.Path, "in_memory", cfg.InMemory)

	return &BadgerCache{
		db:        db,
		namespace: cfg.Namespace,
		logger:    logger.With("component", "badger-cache"),
	}, nil
}

// Get implements Cache.
func (c *BadgerCache) Get(_ context.Context, text string) ([]float32, bool, error) {
	var vec []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(hashKey(c.namespace, text)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := decodeVector(val)
			if err != nil {
				return err
			}
			vec = decoded
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

// Put implements Cache.
func (c *BadgerCache) Put(_ context.Context, text string, vector []float32) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(hashKey(c.namespace, text)), encodeVector(vector))
	})
}

// Close closes the underlying database.
func (c *BadgerCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}
