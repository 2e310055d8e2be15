package harmony

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundprediction/harmony/pkg/alignment"
	"github.com/soundprediction/harmony/pkg/cluster"
	"github.com/soundprediction/harmony/pkg/crosswalk"
	"github.com/soundprediction/harmony/pkg/embedder"
	"github.com/soundprediction/harmony/pkg/matcher"
	"github.com/soundprediction/harmony/pkg/negation"
	"github.com/soundprediction/harmony/pkg/topics"
	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/vectorcache"
)

// Config holds defaults for the harmonisation steps.
type Config struct {
	// ClusterStrategy selects the clustering algorithm.
	ClusterStrategy cluster.Strategy
	// ClusterThreshold is the deterministic strategy's minimum absolute similarity.
	ClusterThreshold float64
	// CrosswalkThreshold is the minimum (exclusive) similarity of a crosswalk pair.
	CrosswalkThreshold float64
	// CrosswalkOptions refines crosswalk pair selection.
	CrosswalkOptions crosswalk.Options
	// TopicCount is the number of keywords per cluster.
	TopicCount int
	// Catalogue enables topic propagation from a reference catalogue.
	Catalogue []types.CatalogueEntry
}

// NewDefaultConfig returns the default configuration.
func NewDefaultConfig() *Config {
	return &Config{
		ClusterStrategy:    cluster.StrategyDeterministic,
		ClusterThreshold:   cluster.DefaultThreshold,
		CrosswalkThreshold: 0.6,
		TopicCount:         5,
	}
}

// Harmonisation bundles every output of one harmonisation run.
type Harmonisation struct {
	Match      *types.MatchResult                       `json:"match"`
	Clusters   []types.HarmonyCluster                   `json:"clusters"`
	Alignments []types.InstrumentToInstrumentSimilarity `json:"instrument_to_instrument_similarities"`
	Crosswalk  []types.CrosswalkRow                     `json:"crosswalk"`
}

// Client runs harmonisation against an embedding provider and a vector cache.
type Client struct {
	embedder embedder.Client
	engine   *matcher.Engine
	cache    vectorcache.Cache
	keywords cluster.Keyworder
	config   *Config
	logger   *slog.Logger
}

// NewClient creates a client. A nil negator uses the rule based negator, a nil cache an
// in-memory cache and a nil config the defaults.
func NewClient(emb embedder.Client, negator matcher.Negator, cache vectorcache.Cache, config *Config, logger *slog.Logger) *Client {
	if negator == nil {
		negator = negation.NewRuleNegator()
	}
	if cache == nil {
		cache = vectorcache.NewMemoryCache()
	}
	if config == nil {
		config = NewDefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		embedder: emb,
		engine:   matcher.NewEngine(embedder.VectoriseFunc(emb), negator, logger),
		cache:    cache,
		keywords: topics.Default(),
		config:   config,
		logger:   logger,
	}
}

// GetEmbedder returns the embedder client
func (c *Client) GetEmbedder() embedder.Client {
	return c.embedder
}

// GetCache returns the vector cache
func (c *Client) GetCache() vectorcache.Cache {
	return c.cache
}

// GetConfig returns the client configuration
func (c *Client) GetConfig() *Config {
	return c.config
}

// ClusterOptions returns the clustering options derived from the configuration.
func (c *Client) ClusterOptions() cluster.Options {
	threshold := c.config.ClusterThreshold
	return cluster.Options{
		Strategy:   c.config.ClusterStrategy,
		Threshold:  &threshold,
		TopicCount: c.config.TopicCount,
		Keywords:   c.keywords,
		Logger:     c.logger,
	}
}

// Match runs the matching engine and stores newly computed vectors in the cache.
func (c *Client) Match(ctx context.Context, instruments []*types.Instrument, query string) (*types.MatchResult, error) {
	res, err := c.engine.Match(ctx, matcher.MatchRequest{
		Instruments: instruments,
		Query:       query,
		Catalogue:   c.config.Catalogue,
		Cache:       c.cache,
	})
	if err != nil {
		return nil, err
	}

	if len(res.NewVectors) > 0 {
		if err := vectorcache.Store(ctx, c.cache, res.NewVectors); err != nil {
			// the result is still valid; the next run recomputes the vectors
			c.logger.Warn("failed to store vectors in cache", "error", err, "count", len(res.NewVectors))
		} else {
			c.logger.Debug("stored new vectors in cache", "count", len(res.NewVectors))
		}
	}
	return res, nil
}

// Cluster groups the matched questions with the configured strategy.
func (c *Client) Cluster(ctx context.Context, res *types.MatchResult) ([]types.HarmonyCluster, error) {
	return c.ClusterWith(ctx, res, c.ClusterOptions())
}

// ClusterWith groups the matched questions with explicit options.
func (c *Client) ClusterWith(ctx context.Context, res *types.MatchResult, opts cluster.Options) ([]types.HarmonyCluster, error) {
	if res == nil {
		return []types.HarmonyCluster{}, nil
	}
	return cluster.Cluster(ctx, res.Questions, res.Similarity, opts)
}

// Align scores every pair of instruments. instruments must be the ones passed to Match.
func (c *Client) Align(instruments []*types.Instrument, res *types.MatchResult) []types.InstrumentToInstrumentSimilarity {
	if res == nil {
		return []types.InstrumentToInstrumentSimilarity{}
	}
	return alignment.AlignAll(instruments, res.Similarity)
}

// Crosswalk lists the matched question pairs above the configured threshold.
func (c *Client) Crosswalk(res *types.MatchResult) []types.CrosswalkRow {
	return c.CrosswalkWith(res, c.config.CrosswalkThreshold, c.config.CrosswalkOptions)
}

// CrosswalkWith lists the matched question pairs above threshold.
func (c *Client) CrosswalkWith(res *types.MatchResult, threshold float64, opts crosswalk.Options) []types.CrosswalkRow {
	if res == nil {
		return []types.CrosswalkRow{}
	}
	return crosswalk.Build(res.Questions, res.Similarity, threshold, opts)
}

// Harmonise matches the instruments and derives clusters, alignments and the crosswalk.
func (c *Client) Harmonise(ctx context.Context, instruments []*types.Instrument, query string) (*Harmonisation, error) {
	res, err := c.Match(ctx, instruments, query)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	clusters, err := c.Cluster(ctx, res)
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}

	out := &Harmonisation{
		Match:      res,
		Clusters:   clusters,
		Alignments: c.Align(instruments, res),
		Crosswalk:  c.Crosswalk(res),
	}
	c.logger.Info("harmonised instruments",
		"instruments", len(instruments),
		"questions", res.Stats.Questions,
		"clusters", len(clusters),
		"crosswalk_pairs", len(out.Crosswalk))
	return out, nil
}

// Close closes the embedder.
func (c *Client) Close() error {
	if c.embedder == nil {
		return nil
	}
	return c.embedder.Close()
}
