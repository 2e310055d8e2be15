package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/utils"
	"github.com/soundprediction/harmony/pkg/vectorcache"
)

// PolarityEpsilon is the band around zero in which the polarity sign is forced to +1.
const PolarityEpsilon = 0.001

// Negator turns a statement into its negated form. It must be deterministic.
type Negator interface {
	Negate(text, language string) (string, error)
}

// NegatorFunc adapts a function to the Negator interface.
type NegatorFunc func(text, language string) (string, error)

func (f NegatorFunc) Negate(text, language string) (string, error) { return f(text, language) }

// MatchRequest holds the inputs of one matching run.
type MatchRequest struct {
	Instruments []*types.Instrument
	// Query is scored against every question when non-empty.
	Query string
	// Catalogue enables topic propagation when non-empty. Entries without a vector are
	// vectorised along with the questions.
	Catalogue []types.CatalogueEntry
	// Cache supplies known vectors. It is only read; new vectors are returned in the
	// result for the caller to persist.
	Cache vectorcache.Cache
}

// Engine computes polarity corrected similarity matrices.
type Engine struct {
	vectorise vectorcache.Vectoriser
	negator   Negator
	logger    *slog.Logger
}

// NewEngine creates an engine. A nil negator disables polarity correction.
func NewEngine(vectorise vectorcache.Vectoriser, negator Negator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		vectorise: vectorise,
		negator:   negator,
		logger:    logger.With("component", "matcher"),
	}
}

// Match runs the matching engine. Every instrument needs an id (see types.NewInstrument);
// questions are stamped with their instrument and annotated in place.
func (e *Engine) Match(ctx context.Context, req MatchRequest) (*types.MatchResult, error) {
	result := &types.MatchResult{
		Questions:  []*types.Question{},
		Similarity: &mat.Dense{},
	}
	if len(req.Instruments) == 0 {
		return result, nil
	}

	for _, inst := range req.Instruments {
		if inst == nil {
			continue
		}
		if inst.ID == "" {
			return nil, fmt.Errorf("instrument %q: %w", inst.Name, types.ErrEmptyID)
		}
		inst.Stamp()
	}
	if err := types.CheckUniqueIDs(req.Instruments); err != nil {
		return nil, err
	}

	questions := types.FlattenQuestions(req.Instruments)
	n := len(questions)
	if n == 0 {
		return result, nil
	}
	result.Questions = questions

	positives := make([]string, n)
	negatives := make([]string, n)
	idx := 0
	for _, inst := range req.Instruments {
		if inst == nil {
			continue
		}
		for _, q := range inst.Questions {
			if q == nil {
				continue
			}
			positives[idx] = q.QuestionText
			neg, err := e.negate(q.QuestionText, inst.Language)
			if err != nil {
				return nil, fmt.Errorf("negate question %q of instrument %s: %w", q.QuestionNo, inst.ID, err)
			}
			negatives[idx] = neg
			idx++
		}
	}

	// one batch: positives, negatives, query, catalogue entries lacking vectors
	texts := make([]string, 0, 2*n+1+len(req.Catalogue))
	texts = append(texts, positives...)
	texts = append(texts, negatives...)
	queryAt := -1
	if req.Query != "" {
		queryAt = len(texts)
		texts = append(texts, req.Query)
	}
	catalogueAt := len(texts)
	for _, entry := range req.Catalogue {
		if len(entry.Vector) == 0 {
			texts = append(texts, entry.Text)
		}
	}

	batch, err := vectorcache.Resolve(ctx, texts, req.Cache, e.vectorise)
	if err != nil {
		return nil, fmt.Errorf("vectorise: %w", err)
	}

	posVecs := batch.Vectors[:n]
	negVecs := batch.Vectors[n : 2*n]

	result.Similarity = PolaritySimilarity(posVecs, negVecs)

	if queryAt >= 0 {
		queryVec := batch.Vectors[queryAt]
		result.QuerySimilarity = make([]float64, n)
		for i, v := range posVecs {
			result.QuerySimilarity[i] = utils.CosineSimilarity(queryVec, v)
		}
	}

	if len(req.Catalogue) > 0 {
		catVecs := make([][]float32, len(req.Catalogue))
		next := catalogueAt
		for i, entry := range req.Catalogue {
			if len(entry.Vector) > 0 {
				catVecs[i] = entry.Vector
				continue
			}
			catVecs[i] = batch.Vectors[next]
			next++
		}
		propagateTopics(req.Instruments, questions, posVecs, req.Catalogue, catVecs)
	}

	result.NewVectors = labelNewVectors(batch.New, positives, negatives, req.Query)
	result.Stats = types.MatchStats{
		Questions:  n,
		Texts:      len(texts),
		CacheHits:  batch.Hits,
		Vectorised: len(batch.New),
	}

	e.logger.Debug("match complete",
		"instruments", len(req.Instruments),
		"questions", n,
		"cache_hits", batch.Hits,
		"vectorised", len(batch.New),
		"query", queryAt >= 0,
		"catalogue", len(req.Catalogue))

	return result, nil
}

func (e *Engine) negate(text, language string) (string, error) {
	if e.negator == nil || text == "" {
		return text, nil
	}
	return e.negator.Negate(text, language)
}

// PolaritySimilarity combines positive and negated-anchor vectors into the signed
// similarity matrix.
func PolaritySimilarity(pos, neg [][]float32) *mat.Dense {
	pairwise := utils.CosineMatrix(pos, pos)
	negMean := utils.Mean(utils.CosineMatrix(neg, pos), utils.CosineMatrix(pos, neg))

	r, c := utils.Dims(pairwise)
	if r == 0 || c == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p, m := pairwise.At(i, j), negMean.At(i, j)
			out.Set(i, j, math.Max(p, m)*polarity(p-m))
		}
	}
	return out
}

func polarity(diff float64) float64 {
	if math.Abs(diff) < PolarityEpsilon || diff > 0 {
		return 1
	}
	return -1
}

// labelNewVectors sets the negated and query flags on freshly computed vectors. Only
// negated anchors that are not also question texts are flagged as negated; catalogue texts
// carry neither flag.
func labelNewVectors(fresh []types.TextVector, positives, negatives []string, query string) []types.TextVector {
	if len(fresh) == 0 {
		return nil
	}
	pos := make(map[string]struct{}, len(positives))
	for _, t := range positives {
		pos[t] = struct{}{}
	}
	neg := make(map[string]struct{}, len(negatives))
	for _, t := range negatives {
		if _, ok := pos[t]; !ok {
			neg[t] = struct{}{}
		}
	}
	out := make([]types.TextVector, len(fresh))
	for i, tv := range fresh {
		_, isNeg := neg[tv.Text]
		tv.IsQuery = query != "" && tv.Text == query
		tv.IsNegated = isNeg && !tv.IsQuery
		out[i] = tv
	}
	return out
}

// propagateTopics assigns every question its nearest catalogue entry and tags each
// instrument with the topics that occur in more than half as many nearest matches as
// its most frequent topic.
func propagateTopics(instruments []*types.Instrument, questions []*types.Question, posVecs [][]float32, catalogue []types.CatalogueEntry, catVecs [][]float32) {
	sim := utils.CosineMatrix(posVecs, catVecs)

	nearest := make(map[*types.Question]int, len(questions))
	for i, q := range questions {
		if len(posVecs[i]) == 0 {
			continue
		}
		best, bestScore := 0, math.Inf(-1)
		for j := range catalogue {
			if s := sim.At(i, j); s > bestScore {
				best, bestScore = j, s
			}
		}
		entry := catalogue[best]
		q.NearestCatalogueMatch = &types.CatalogueEntry{
			Text:   entry.Text,
			Topics: append([]string(nil), entry.Topics...),
		}
		q.TopicsStrengths = make(map[string]float64, len(entry.Topics))
		for _, topic := range entry.Topics {
			q.TopicsStrengths[topic] = bestScore
		}
		nearest[q] = best
	}

	for _, inst := range instruments {
		if inst == nil {
			continue
		}
		counts := make(map[string]int)
		maxCount := 0
		for _, q := range inst.Questions {
			j, ok := nearest[q]
			if !ok {
				continue
			}
			for _, topic := range catalogue[j].Topics {
				counts[topic]++
				maxCount = max(maxCount, counts[topic])
			}
		}

		var topics []string
		for topic, c := range counts {
			if float64(c) > float64(maxCount)/2 {
				topics = append(topics, topic)
			}
		}
		sort.Slice(topics, func(a, b int) bool {
			if counts[topics[a]] != counts[topics[b]] {
				return counts[topics[a]] > counts[topics[b]]
			}
			return topics[a] < topics[b]
		})
		inst.Topics = topics
		for _, q := range inst.Questions {
			if q != nil {
				q.TopicsAuto = append([]string(nil), topics...)
			}
		}
	}
}
