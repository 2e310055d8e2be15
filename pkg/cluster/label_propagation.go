package cluster

import (
	"gonum.org/v1/gonum/mat"

	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/utils"
)

// maxLabelIterations bounds label propagation on graphs that keep flipping.
const maxLabelIterations = 100

type neighbor struct {
	index  int
	weight float64
}

// LabelPropagation groups questions by label propagation over the graph whose edges are
// the pairs with absolute similarity of at least threshold, weighted by that similarity.
//
// Every item starts with its own label. Items are visited in index order and adopt the
// label with the highest summed edge weight among their neighbours, ties going to the
// larger label, with updates visible to later items of the same sweep. Sweeps stop once no
// label changes. Unlike the deterministic strategy, groups are not limited to a forest of
// pairs: a densely connected set of items ends up sharing one label.
func LabelPropagation(questions []*types.Question, sim mat.Matrix, threshold float64) []types.HarmonyCluster {
	n := len(questions)
	if n == 0 {
		return []types.HarmonyCluster{}
	}
	abs := utils.Abs(sim)

	graph := make([][]neighbor, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if w := abs.At(i, j); w >= threshold {
				graph[i] = append(graph[i], neighbor{index: j, weight: w})
			}
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}

	for iteration := 0; iteration < maxLabelIterations; iteration++ {
		changed := false
		for i := 0; i < n; i++ {
			if len(graph[i]) == 0 {
				continue
			}
			support := make(map[int]float64)
			for _, nb := range graph[i] {
				support[labels[nb.index]] += nb.weight
			}

			best, bestWeight := labels[i], -1.0
			for label, w := range support {
				if w > bestWeight || (w == bestWeight && label > best) {
					best, bestWeight = label, w
				}
			}
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	// number groups by their smallest member
	groups := make(map[int][]int)
	var order []int
	for i, label := range labels {
		if _, ok := groups[label]; !ok {
			order = append(order, label)
		}
		groups[label] = append(groups[label], i)
	}

	clusters := make([]types.HarmonyCluster, 0, len(order))
	for id, label := range order {
		members := groups[label]
		clusters = append(clusters, newCluster(id, medoid(members, abs), members, questions, abs))
	}
	return clusters
}

// medoid returns the member with the largest summed similarity to the other members,
// the lowest index on ties.
func medoid(members []int, abs mat.Matrix) int {
	best, bestSum := members[0], -1.0
	for _, m := range members {
		var sum float64
		for _, o := range members {
			if o != m {
				sum += abs.At(m, o)
			}
		}
		if sum > bestSum {
			best, bestSum = m, sum
		}
	}
	return best
}
