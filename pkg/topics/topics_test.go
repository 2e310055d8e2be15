package topics

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/harmony/pkg/types"
)

func cluster(id int, texts ...string) types.HarmonyCluster {
	c := types.HarmonyCluster{ClusterID: id}
	for i, t := range texts {
		c.ItemIDs = append(c.ItemIDs, i)
		c.Items = append(c.Items, &types.Question{QuestionText: t})
	}
	return c
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want []string
	}{
		{"I feel nervous", []string{"feel", "nervous"}},
		{"Não durmo BEM, 2x", []string{"não", "durmo", "bem", "2x"}},
		{"ﬁne", []string{"fine"}},
		{"a b c", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Tokenize(tt.text), tt.text)
	}
}

func TestFeatureLogProb(t *testing.T) {
	lp := featureLogProb([][]int{{0, 0, 1}, {1}}, 2)

	assert.InDelta(t, math.Log(3.0/5.0), lp.At(0, 0), 1e-12)
	assert.InDelta(t, math.Log(2.0/5.0), lp.At(0, 1), 1e-12)
	assert.InDelta(t, math.Log(1.0/3.0), lp.At(1, 0), 1e-12)
	assert.InDelta(t, math.Log(2.0/3.0), lp.At(1, 1), 1e-12)
}

func TestTopics(t *testing.T) {
	g := NewGenerator(nil)
	clusters := []types.HarmonyCluster{
		cluster(0, "I feel nervous and anxious", "Feeling anxious or on edge"),
		cluster(1, "I sleep badly", "Trouble sleeping at night"),
	}

	got := g.Topics(clusters, 3)
	require.Len(t, got, 2)
	require.NotEmpty(t, got[0])
	assert.Equal(t, "anxious", got[0][0])
	assert.LessOrEqual(t, len(got[0]), 3)
	assert.NotContains(t, got[0], "and")
	assert.NotContains(t, got[0], "or")

	text := strings.ToLower("I sleep badly Trouble sleeping at night")
	for _, kw := range got[1] {
		assert.Contains(t, text, kw, "keywords must come from the cluster's own text")
	}
}

func TestTopicsTieBreakByToken(t *testing.T) {
	got := NewGenerator(nil).Topics([]types.HarmonyCluster{cluster(0, "zebra yak xylophone")}, 2)
	assert.Equal(t, [][]string{{"xylophone", "yak"}}, got)
}

func TestTopicsEmpty(t *testing.T) {
	g := NewGenerator(nil)

	assert.Empty(t, g.Topics(nil, 5))
	assert.Equal(t, [][]string{{}}, g.Topics([]types.HarmonyCluster{cluster(0, "anxious")}, 0))
	assert.Equal(t, [][]string{{}}, g.Topics([]types.HarmonyCluster{cluster(0, "")}, 5))
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
