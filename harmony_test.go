package harmony

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/harmony/pkg/embedder"
	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/vectorcache"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInstruments() []*types.Instrument {
	a := types.NewInstrument("gad", "GAD-7", "en", []*types.Question{
		{QuestionNo: "1", QuestionText: "Feeling nervous, anxious or on edge"},
		{QuestionNo: "2", QuestionText: "Not being able to stop or control worrying"},
	})
	b := types.NewInstrument("phq", "PHQ-9", "en", []*types.Question{
		{QuestionNo: "1", QuestionText: "Feeling nervous, anxious or on edge"},
		{QuestionNo: "2", QuestionText: "Little interest or pleasure in doing things"},
		{QuestionNo: "3", QuestionText: "Trouble falling or staying asleep"},
	})
	return []*types.Instrument{a, b}
}

type failingCache struct{ vectorcache.Cache }

func (failingCache) Get(context.Context, string) ([]float32, bool, error) { return nil, false, nil }
func (failingCache) Put(context.Context, string, []float32) error {
	return errors.New("disk full")
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(embedder.NewHashingEmbedder(64), nil, nil, nil, nil)
	require.NotNil(t, client)
	assert.NotNil(t, client.GetCache())
	assert.NotNil(t, client.GetEmbedder())
	assert.Equal(t, NewDefaultConfig(), client.config)
	assert.NoError(t, client.Close())
}

func TestMatchStoresNewVectors(t *testing.T) {
	cache := vectorcache.NewMemoryCache()
	client := NewClient(embedder.NewHashingEmbedder(256), nil, cache, nil, testLogger())

	res, err := client.Match(context.Background(), testInstruments(), "anxiety")
	require.NoError(t, err)
	require.Len(t, res.Questions, 5)
	assert.NotEmpty(t, res.NewVectors)
	assert.Equal(t, len(res.NewVectors), cache.Len())

	// second run is served from the cache
	again, err := client.Match(context.Background(), testInstruments(), "anxiety")
	require.NoError(t, err)
	assert.Empty(t, again.NewVectors)
	assert.Equal(t, 0, again.Stats.Vectorised)
	assert.InDeltaSlice(t, res.QuerySimilarity, again.QuerySimilarity, 1e-9)
}

func TestMatchIgnoresCacheWriteFailure(t *testing.T) {
	client := NewClient(embedder.NewHashingEmbedder(64), nil, failingCache{}, nil, testLogger())

	res, err := client.Match(context.Background(), testInstruments(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.NewVectors)
	assert.Nil(t, res.QuerySimilarity)
}

func TestHarmonise(t *testing.T) {
	client := NewClient(embedder.NewHashingEmbedder(256), nil, nil, nil, testLogger())
	instruments := testInstruments()

	out, err := client.Harmonise(context.Background(), instruments, "")
	require.NoError(t, err)
	require.NotNil(t, out.Match)

	// the identical item in both instruments must end up in the same cluster
	var found bool
	for _, c := range out.Clusters {
		ids := map[int]bool{}
		for _, id := range c.ItemIDs {
			ids[id] = true
		}
		if ids[0] && ids[2] {
			found = true
		}
	}
	assert.True(t, found, "identical questions should share a cluster")

	require.Len(t, out.Alignments, 1)
	assert.Equal(t, "gad", out.Alignments[0].InstrumentAID)
	assert.Equal(t, "phq", out.Alignments[0].InstrumentBID)

	var pairs []string
	for _, row := range out.Crosswalk {
		pairs = append(pairs, row.PairID)
	}
	assert.Contains(t, pairs, "0_2")
}

func TestHarmonisationJSON(t *testing.T) {
	client := NewClient(embedder.NewHashingEmbedder(64), nil, nil, nil, testLogger())

	out, err := client.Harmonise(context.Background(), testInstruments(), "")
	require.NoError(t, err)

	data, err := json.Marshal(out)
	require.NoError(t, err)

	var decoded struct {
		Match struct {
			Matches   [][]float64 `json:"matches"`
			Questions []any       `json:"questions"`
		} `json:"match"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Match.Matches, 5)
	assert.Len(t, decoded.Match.Matches[0], 5)
	assert.Len(t, decoded.Match.Questions, 5)
	assert.InDelta(t, out.Match.Similarity.At(0, 2), decoded.Match.Matches[0][2], 1e-12)
}

func TestClusterOptionsKeepsZeroThreshold(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ClusterThreshold = 0
	client := NewClient(embedder.NewHashingEmbedder(16), nil, nil, cfg, testLogger())

	opts := client.ClusterOptions()
	require.NotNil(t, opts.Threshold)
	assert.Zero(t, *opts.Threshold)

	cfg.ClusterThreshold = 0.9
	assert.Zero(t, *opts.Threshold, "options hold a copy of the threshold")
}

func TestNilResultHelpers(t *testing.T) {
	client := NewClient(embedder.NewHashingEmbedder(16), nil, nil, nil, testLogger())

	clusters, err := client.Cluster(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, clusters)
	assert.Empty(t, client.Align(nil, nil))
	assert.Empty(t, client.Crosswalk(nil))
}

func TestHarmoniseDuplicateInstrument(t *testing.T) {
	client := NewClient(embedder.NewHashingEmbedder(16), nil, nil, nil, testLogger())
	instruments := testInstruments()
	instruments[1].ID = instruments[0].ID

	_, err := client.Harmonise(context.Background(), instruments, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrDuplicateInstrument)
}
