package cluster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/utils"
)

type edge struct {
	i, j int
	sim  float64
}

// Deterministic groups questions by greedily accepting the strongest pairs whose absolute
// similarity is at least threshold. A pair is accepted only while one of its endpoints is
// still unused, which keeps the accepted edges a forest. Items without an accepted edge
// become singletons.
//
// The centroid of a group is the item with the largest summed similarity over its accepted
// edges, the lowest index on ties. Clusters are numbered by their smallest member.
func Deterministic(questions []*types.Question, sim mat.Matrix, threshold float64) []types.HarmonyCluster {
	n := len(questions)
	if n == 0 {
		return []types.HarmonyCluster{}
	}
	abs := utils.Abs(sim)

	// lexicographic pair order, then a stable sort keeps it among equal scores
	var edges []edge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if s := abs.At(i, j); s >= threshold {
				edges = append(edges, edge{i: i, j: j, sim: s})
			}
		}
	}
	sort.SliceStable(edges, func(a, b int) bool { return edges[a].sim > edges[b].sim })

	used := make([]bool, n)
	score := make([]float64, n)
	uf := newUnionFind(n)
	for _, e := range edges {
		if used[e.i] && used[e.j] {
			continue
		}
		used[e.i], used[e.j] = true, true
		score[e.i] += e.sim
		score[e.j] += e.sim
		uf.union(e.i, e.j)
	}

	groups := make(map[int][]int)
	var roots []int
	for i := 0; i < n; i++ {
		r := uf.find(i)
		if _, ok := groups[r]; !ok {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], i)
	}

	clusters := make([]types.HarmonyCluster, 0, len(roots))
	for id, r := range roots {
		members := groups[r]
		centroid := members[0]
		for _, m := range members[1:] {
			if score[m] > score[centroid] {
				centroid = m
			}
		}
		clusters = append(clusters, newCluster(id, centroid, members, questions, abs))
	}
	return clusters
}

func newCluster(id, centroid int, members []int, questions []*types.Question, abs mat.Matrix) types.HarmonyCluster {
	items := make([]*types.Question, len(members))
	for k, m := range members {
		items[k] = questions[m]
	}
	c := types.HarmonyCluster{
		ClusterID:  id,
		CentroidID: centroid,
		Centroid:   questions[centroid],
		ItemIDs:    members,
		Items:      items,
		Score:      cohesion(members, abs),
	}
	if c.Centroid != nil {
		c.TextDescription = c.Centroid.QuestionText
	}
	return c
}

// cohesion is the mean absolute similarity over member pairs, 1 for a singleton.
func cohesion(members []int, abs mat.Matrix) float64 {
	if len(members) < 2 {
		return 1
	}
	var sum float64
	var pairs int
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			sum += math.Abs(abs.At(members[a], members[b]))
			pairs++
		}
	}
	return sum / float64(pairs)
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

// union keeps the smaller index as root.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}
