package matcher

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/soundprediction/harmony/pkg/embedder"
	"github.com/soundprediction/harmony/pkg/negation"
	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/utils"
	"github.com/soundprediction/harmony/pkg/vectorcache"
)

// lookupVectoriser serves fixed vectors and counts calls.
type lookupVectoriser struct {
	vectors map[string][]float32
	calls   int
	texts   []string
}

func (l *lookupVectoriser) vectorise(_ context.Context, texts []string) ([][]float32, error) {
	l.calls++
	l.texts = append(l.texts, texts...)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := l.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func questions(texts ...string) []*types.Question {
	out := make([]*types.Question, len(texts))
	for i, t := range texts {
		out[i] = &types.Question{QuestionNo: fmt.Sprint(i + 1), QuestionText: t}
	}
	return out
}

func TestMatchEmpty(t *testing.T) {
	e := NewEngine(nil, nil, nil)

	res, err := e.Match(context.Background(), MatchRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.Questions)
	r, c := utils.Dims(res.Similarity)
	assert.Zero(t, r)
	assert.Zero(t, c)
	assert.Nil(t, res.QuerySimilarity)
	assert.Empty(t, res.NewVectors)
}

func TestMatchNegatedPairIsNegative(t *testing.T) {
	lv := &lookupVectoriser{vectors: map[string][]float32{
		"I feel happy":       {1, 0},
		"I don't feel happy": {0.2, 0.98},
	}}
	e := NewEngine(lv.vectorise, negation.NewRuleNegator(), nil)

	inst := types.NewInstrument("a", "A", "en", questions("I feel happy", "I don't feel happy"))
	res, err := e.Match(context.Background(), MatchRequest{Instruments: []*types.Instrument{inst}})
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Similarity.At(0, 1), 0.0)
	assert.InDelta(t, -1.0, res.Similarity.At(0, 1), 1e-6)
	assert.InDelta(t, res.Similarity.At(0, 1), res.Similarity.At(1, 0), 1e-12)
	assert.InDelta(t, 1.0, res.Similarity.At(0, 0), 1e-6)
	assert.InDelta(t, 1.0, res.Similarity.At(1, 1), 1e-6)
	assert.Equal(t, 1, lv.calls)
}

func TestMatchDiagonalIsOne(t *testing.T) {
	client := embedder.NewHashingEmbedder(64)
	e := NewEngine(embedder.VectoriseFunc(client), negation.NewRuleNegator(), nil)

	a := types.NewInstrument("a", "GAD-7", "en", questions(
		"Feeling nervous, anxious or on edge",
		"Not being able to stop or control worrying",
		"Worrying too much about different things",
	))
	b := types.NewInstrument("b", "PHQ-9", "en", questions(
		"Little interest or pleasure in doing things",
		"Feeling down, depressed, or hopeless",
	))

	res, err := e.Match(context.Background(), MatchRequest{Instruments: []*types.Instrument{a, b}})
	require.NoError(t, err)

	r, c := res.Similarity.Dims()
	require.Equal(t, 5, r)
	require.Equal(t, 5, c)
	for i := 0; i < r; i++ {
		assert.InDelta(t, 1.0, res.Similarity.At(i, i), 1e-6)
	}
	assert.Equal(t, "b", res.Questions[4].InstrumentID)
	assert.Equal(t, "PHQ-9", res.Questions[4].InstrumentName)
	assert.Equal(t, 5, res.Stats.Questions)
}

func TestMatchQuerySimilarity(t *testing.T) {
	e := NewEngine(embedder.VectoriseFunc(embedder.NewHashingEmbedder(256)), negation.NewRuleNegator(), nil)
	ctx := context.Background()

	inst := types.NewInstrument("a", "A", "en", questions("I sleep well", "I feel tired", "I worry"))
	res, err := e.Match(ctx, MatchRequest{Instruments: []*types.Instrument{inst}})
	require.NoError(t, err)
	assert.Nil(t, res.QuerySimilarity)

	res, err = e.Match(ctx, MatchRequest{Instruments: []*types.Instrument{inst}, Query: "sleep"})
	require.NoError(t, err)
	require.Len(t, res.QuerySimilarity, 3)
	assert.Greater(t, res.QuerySimilarity[0], res.QuerySimilarity[2])

	var sawQuery bool
	for _, tv := range res.NewVectors {
		if tv.Text == "sleep" {
			sawQuery = tv.IsQuery
		}
	}
	assert.True(t, sawQuery)
}

func TestMatchIdempotent(t *testing.T) {
	e := NewEngine(embedder.VectoriseFunc(embedder.NewHashingEmbedder(48)), negation.NewRuleNegator(), nil)
	build := func() []*types.Instrument {
		return []*types.Instrument{
			types.NewInstrument("a", "A", "en", questions("I am often anxious", "I sleep badly")),
			types.NewInstrument("b", "B", "pt", questions("Eu me sinto ansioso", "Durmo mal")),
		}
	}

	first, err := e.Match(context.Background(), MatchRequest{Instruments: build(), Cache: vectorcache.NewMemoryCache()})
	require.NoError(t, err)
	second, err := e.Match(context.Background(), MatchRequest{Instruments: build(), Cache: vectorcache.NewMemoryCache()})
	require.NoError(t, err)

	assert.True(t, mat.Equal(first.Similarity, second.Similarity))
}

func TestMatchUsesCache(t *testing.T) {
	lv := &lookupVectoriser{vectors: map[string][]float32{
		"I feel happy":       {1, 0},
		"I don't feel happy": {0, 1},
	}}
	e := NewEngine(lv.vectorise, negation.NewRuleNegator(), nil)
	cache := vectorcache.NewMemoryCache()
	ctx := context.Background()
	inst := func() []*types.Instrument {
		return []*types.Instrument{types.NewInstrument("a", "A", "en", questions("I feel happy"))}
	}

	first, err := e.Match(ctx, MatchRequest{Instruments: inst(), Cache: cache})
	require.NoError(t, err)
	assert.Equal(t, 1, lv.calls)
	assert.Equal(t, 2, first.Stats.Vectorised)
	require.Len(t, first.NewVectors, 2)
	assert.False(t, first.NewVectors[0].IsNegated)
	assert.True(t, first.NewVectors[1].IsNegated)
	assert.Zero(t, cache.Len(), "the engine must not write to the cache")

	require.NoError(t, vectorcache.Store(ctx, cache, first.NewVectors))

	second, err := e.Match(ctx, MatchRequest{Instruments: inst(), Cache: cache})
	require.NoError(t, err)
	assert.Equal(t, 1, lv.calls, "everything cached, no vectorise call")
	assert.Equal(t, 2, second.Stats.CacheHits)
	assert.Empty(t, second.NewVectors)
	assert.True(t, mat.Equal(first.Similarity, second.Similarity))
}

func TestMatchDuplicateInstrument(t *testing.T) {
	e := NewEngine(embedder.VectoriseFunc(embedder.NewHashingEmbedder(8)), nil, nil)
	a := types.NewInstrument("same", "A", "en", questions("x"))
	b := types.NewInstrument("same", "B", "en", questions("y"))

	_, err := e.Match(context.Background(), MatchRequest{Instruments: []*types.Instrument{a, b}})
	assert.ErrorIs(t, err, types.ErrDuplicateInstrument)
}

func TestMatchRejectsEmptyID(t *testing.T) {
	e := NewEngine(embedder.VectoriseFunc(embedder.NewHashingEmbedder(8)), nil, nil)
	a := types.NewInstrument("a", "A", "en", questions("x"))
	b := &types.Instrument{Name: "B", Questions: questions("y")}

	_, err := e.Match(context.Background(), MatchRequest{Instruments: []*types.Instrument{a, b}})
	assert.ErrorIs(t, err, types.ErrEmptyID)
	assert.Empty(t, b.ID)
	assert.Empty(t, b.Questions[0].InstrumentID)
}

func TestMatchLabelsCatalogueVectors(t *testing.T) {
	lv := &lookupVectoriser{vectors: map[string][]float32{
		"I worry a lot":     {0.9, 0.1},
		"not I worry a lot": {0.1, 0.9},
		"Feeling anxious":   {1, 0},
		"anxiety":           {0.8, 0.2},
	}}
	prefix := NegatorFunc(func(text, _ string) (string, error) { return "not " + text, nil })
	inst := types.NewInstrument("a", "A", "en", questions("I worry a lot"))

	res, err := NewEngine(lv.vectorise, prefix, nil).Match(context.Background(), MatchRequest{
		Instruments: []*types.Instrument{inst},
		Query:       "anxiety",
		Catalogue:   []types.CatalogueEntry{{Text: "Feeling anxious", Topics: []string{"anxiety"}}},
	})
	require.NoError(t, err)
	require.Len(t, res.NewVectors, 4)

	flags := make(map[string][2]bool, len(res.NewVectors))
	for _, tv := range res.NewVectors {
		flags[tv.Text] = [2]bool{tv.IsNegated, tv.IsQuery}
	}
	assert.Equal(t, [2]bool{false, false}, flags["I worry a lot"])
	assert.Equal(t, [2]bool{true, false}, flags["not I worry a lot"])
	assert.Equal(t, [2]bool{false, true}, flags["anxiety"])
	assert.Equal(t, [2]bool{false, false}, flags["Feeling anxious"])
}

func TestMatchPropagatesErrors(t *testing.T) {
	errVectorise := errors.New("model offline")
	errNegate := errors.New("negation failed")
	inst := func() []*types.Instrument {
		return []*types.Instrument{types.NewInstrument("a", "A", "en", questions("I feel happy"))}
	}

	failing := func(context.Context, []string) ([][]float32, error) { return nil, errVectorise }
	_, err := NewEngine(failing, nil, nil).Match(context.Background(), MatchRequest{Instruments: inst()})
	assert.ErrorIs(t, err, errVectorise)

	badNegator := NegatorFunc(func(string, string) (string, error) { return "", errNegate })
	_, err = NewEngine(embedder.VectoriseFunc(embedder.NewHashingEmbedder(8)), badNegator, nil).
		Match(context.Background(), MatchRequest{Instruments: inst()})
	assert.ErrorIs(t, err, errNegate)
}

func TestMatchEmptyQuestionText(t *testing.T) {
	e := NewEngine(embedder.VectoriseFunc(embedder.NewHashingEmbedder(16)), negation.NewRuleNegator(), nil)
	inst := types.NewInstrument("a", "A", "en", questions("", "I feel happy"))

	res, err := e.Match(context.Background(), MatchRequest{Instruments: []*types.Instrument{inst}})
	require.NoError(t, err)
	assert.Zero(t, res.Similarity.At(0, 1))
	assert.Zero(t, res.Similarity.At(0, 0))
}

func TestMatchCatalogueTopics(t *testing.T) {
	lv := &lookupVectoriser{vectors: map[string][]float32{
		"I worry a lot":    {0.9, 0.1},
		"I feel nervous":   {0.95, 0.05},
		"I sleep badly":    {0.1, 0.9},
		"Trouble sleeping": {0, 1},
	}}
	catalogue := []types.CatalogueEntry{
		{Text: "Feeling anxious", Vector: []float32{1, 0}, Topics: []string{"anxiety"}},
		{Text: "Trouble sleeping", Topics: []string{"sleep"}},
	}
	inst := types.NewInstrument("a", "A", "en", questions("I worry a lot", "I feel nervous", "I sleep badly"))

	res, err := NewEngine(lv.vectorise, nil, nil).Match(context.Background(), MatchRequest{
		Instruments: []*types.Instrument{inst},
		Catalogue:   catalogue,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, lv.calls)

	assert.Equal(t, []string{"anxiety"}, inst.Topics)
	assert.Equal(t, []string{"anxiety"}, res.Questions[2].TopicsAuto)

	nearest := res.Questions[2].NearestCatalogueMatch
	require.NotNil(t, nearest)
	assert.Equal(t, "Trouble sleeping", nearest.Text)
	assert.Nil(t, nearest.Vector)
	assert.InDelta(t, utils.CosineSimilarity([]float32{0.1, 0.9}, []float32{0, 1}), res.Questions[2].TopicsStrengths["sleep"], 1e-9)
	assert.Equal(t, "Feeling anxious", res.Questions[0].NearestCatalogueMatch.Text)
}

func TestPolarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		diff float64
		want float64
	}{
		{0.5, 1},
		{0.0005, 1},
		{0, 1},
		{-0.0005, 1},
		{-0.002, -1},
		{-0.9, -1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, polarity(tt.diff), "diff %v", tt.diff)
	}
}
