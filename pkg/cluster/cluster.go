// Package cluster groups matched questions into clusters of equivalent items.
//
// Three strategies are available: a deterministic greedy forest over the strongest pairs,
// affinity propagation (an exemplar based method) and label propagation over the
// thresholded similarity graph. All of them operate on the absolute value of the polarity
// corrected similarity matrix, so strongly opposite items cluster together.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/utils"
)

// DefaultThreshold is the deterministic strategy's default minimum absolute similarity.
const DefaultThreshold = 0.5

// ErrShapeMismatch is returned when the similarity matrix does not match the questions.
var ErrShapeMismatch = errors.New("similarity matrix shape does not match the questions")

// Strategy selects the clustering algorithm.
type Strategy int

const (
	StrategyDeterministic Strategy = iota
	StrategyAffinityPropagation
	StrategyLabelPropagation
)

func (s Strategy) String() string {
	switch s {
	case StrategyDeterministic:
		return "deterministic"
	case StrategyAffinityPropagation:
		return "affinity"
	case StrategyLabelPropagation:
		return "label_propagation"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy parses a strategy name. The empty string selects the deterministic strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "deterministic":
		return StrategyDeterministic, nil
	case "affinity", "affinity_propagation", "affinity-propagation", "exemplar":
		return StrategyAffinityPropagation, nil
	case "label_propagation", "label-propagation", "lpa":
		return StrategyLabelPropagation, nil
	default:
		return 0, fmt.Errorf("unknown clustering strategy %q", name)
	}
}

// Keyworder produces one keyword list per cluster.
type Keyworder interface {
	Topics(clusters []types.HarmonyCluster, topK int) [][]string
}

// Options configures Cluster.
type Options struct {
	Strategy Strategy
	// Threshold for the deterministic and label propagation strategies; nil uses DefaultThreshold.
	Threshold *float64
	Affinity  AffinityOptions
	// TopicCount is the number of keywords per cluster; 0 skips keyword generation.
	TopicCount int
	Keywords   Keyworder
	Logger     *slog.Logger
}

// Cluster groups questions with the selected strategy and fills in cluster keywords.
func Cluster(ctx context.Context, questions []*types.Question, sim mat.Matrix, opts Options) ([]types.HarmonyCluster, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := len(questions)
	if n == 0 {
		return []types.HarmonyCluster{}, nil
	}
	if r, c := utils.Dims(sim); r != n || c != n {
		return nil, fmt.Errorf("%w: %d questions, %dx%d matrix", ErrShapeMismatch, n, r, c)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cluster", "strategy", opts.Strategy.String())

	var clusters []types.HarmonyCluster
	threshold := DefaultThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	switch opts.Strategy {
	case StrategyDeterministic:
		clusters = Deterministic(questions, sim, threshold)
	case StrategyLabelPropagation:
		clusters = LabelPropagation(questions, sim, threshold)
	case StrategyAffinityPropagation:
		ap := opts.Affinity
		if ap.Logger == nil {
			ap.Logger = logger
		}
		clusters = AffinityPropagation(questions, sim, ap)
	default:
		return nil, fmt.Errorf("unknown clustering strategy %v", opts.Strategy)
	}

	if opts.TopicCount > 0 && opts.Keywords != nil {
		for i, kw := range opts.Keywords.Topics(clusters, opts.TopicCount) {
			clusters[i].Keywords = kw
		}
	}

	logger.Debug("clustered questions", "questions", n, "clusters", len(clusters))
	return clusters, nil
}
