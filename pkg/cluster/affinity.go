package cluster

import (
	"log/slog"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/utils"
)

const (
	machineEpsilon = 2.220446049250313e-16
	smallestNormal = 2.2250738585072014e-308
)

// AffinityOptions configures affinity propagation.
type AffinityOptions struct {
	// Damping in [0.5, 1). Default 0.5.
	Damping float64
	// MaxIter defaults to 200.
	MaxIter int
	// ConvergenceIter is the number of iterations the exemplar set must stay unchanged.
	// Defaults to 15.
	ConvergenceIter int
	// Preference overrides the self-similarity; nil uses the median similarity.
	Preference *float64
	// Seed drives the tie-breaking noise.
	Seed   uint64
	Logger *slog.Logger
}

func (o AffinityOptions) withDefaults() AffinityOptions {
	if o.Damping < 0.5 || o.Damping >= 1 {
		o.Damping = 0.5
	}
	if o.MaxIter <= 0 {
		o.MaxIter = 200
	}
	if o.ConvergenceIter <= 0 {
		o.ConvergenceIter = 15
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// AffinityPropagation clusters questions by exemplar message passing over the absolute
// similarity matrix. Each exemplar is the centroid of the items assigned to it.
func AffinityPropagation(questions []*types.Question, sim mat.Matrix, opts AffinityOptions) []types.HarmonyCluster {
	n := len(questions)
	if n == 0 {
		return []types.HarmonyCluster{}
	}
	abs := utils.Abs(sim)
	labels := affinityPropagation(abs, opts.withDefaults())

	// labels are exemplar indices; number clusters by smallest member
	order := make(map[int]int)
	var exemplars []int
	members := make(map[int][]int)
	for i, ex := range labels {
		if _, ok := order[ex]; !ok {
			order[ex] = len(exemplars)
			exemplars = append(exemplars, ex)
		}
		members[ex] = append(members[ex], i)
	}

	clusters := make([]types.HarmonyCluster, len(exemplars))
	for id, ex := range exemplars {
		clusters[id] = newCluster(id, ex, members[ex], questions, abs)
	}
	return clusters
}

// affinityPropagation returns, for every item, the index of its exemplar.
func affinityPropagation(abs *mat.Dense, opts AffinityOptions) []int {
	n, _ := abs.Dims()
	S := mat.DenseCopyOf(abs)

	preference := 0.0
	if opts.Preference != nil {
		preference = *opts.Preference
	} else {
		preference = utils.Median(S.RawMatrix().Data)
	}

	if n == 1 || equalSimilaritiesAndPreference(S, preference) {
		labels := make([]int, n)
		if n > 1 && preference > S.At(0, 1) {
			for i := range labels {
				labels[i] = i
			}
		}
		return labels
	}

	for i := 0; i < n; i++ {
		S.Set(i, i, preference)
	}

	// remove degeneracies
	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15))
	S.Apply(func(_, _ int, v float64) float64 {
		return v + (machineEpsilon*v+smallestNormal*100)*rng.NormFloat64()
	}, S)

	A := mat.NewDense(n, n, nil)
	R := mat.NewDense(n, n, nil)
	tmp := mat.NewDense(n, n, nil)
	history := make([][]bool, opts.ConvergenceIter)
	for k := range history {
		history[k] = make([]bool, n)
	}
	damp := opts.Damping

	converged := false
	exemplar := make([]bool, n)
	for it := 0; it < opts.MaxIter; it++ {
		// responsibilities
		tmp.Add(A, S)
		firstIdx := make([]int, n)
		first := make([]float64, n)
		second := make([]float64, n)
		for i := 0; i < n; i++ {
			row := tmp.RawRowView(i)
			firstIdx[i] = floats.MaxIdx(row)
			first[i] = row[firstIdx[i]]
			second[i] = math.Inf(-1)
			for k, v := range row {
				if k != firstIdx[i] && v > second[i] {
					second[i] = v
				}
			}
		}
		for i := 0; i < n; i++ {
			for k := 0; k < n; k++ {
				v := S.At(i, k) - first[i]
				if k == firstIdx[i] {
					v = S.At(i, k) - second[i]
				}
				R.Set(i, k, damp*R.At(i, k)+(1-damp)*v)
			}
		}

		// availabilities
		tmp.Apply(func(i, k int, v float64) float64 {
			if i == k {
				return v
			}
			return math.Max(v, 0)
		}, R)
		for k := 0; k < n; k++ {
			var colSum float64
			for i := 0; i < n; i++ {
				colSum += tmp.At(i, k)
			}
			for i := 0; i < n; i++ {
				v := tmp.At(i, k) - colSum
				if i != k {
					v = math.Max(v, 0)
				}
				// A -= (1-damp) * -v
				A.Set(i, k, damp*A.At(i, k)+(1-damp)*(-v))
			}
		}

		count := 0
		slot := history[it%opts.ConvergenceIter]
		for i := 0; i < n; i++ {
			exemplar[i] = A.At(i, i)+R.At(i, i) > 0
			slot[i] = exemplar[i]
			if exemplar[i] {
				count++
			}
		}

		if it >= opts.ConvergenceIter {
			stable := true
			for i := 0; i < n && stable; i++ {
				seen := 0
				for _, h := range history {
					if h[i] {
						seen++
					}
				}
				stable = seen == 0 || seen == opts.ConvergenceIter
			}
			if stable && count > 0 {
				converged = true
				break
			}
		}
	}

	var centers []int
	for i, e := range exemplar {
		if e {
			centers = append(centers, i)
		}
	}
	if len(centers) == 0 {
		opts.Logger.Warn("affinity propagation found no exemplars, every item is its own cluster", "items", n)
		labels := make([]int, n)
		for i := range labels {
			labels[i] = i
		}
		return labels
	}
	if !converged {
		opts.Logger.Warn("affinity propagation did not converge", "iterations", opts.MaxIter, "exemplars", len(centers))
	}

	// assign, refine each exemplar to the member with the largest in-cluster similarity, reassign
	assign := nearestCenter(S, centers)
	for k := range centers {
		var ii []int
		for i, c := range assign {
			if c == k {
				ii = append(ii, i)
			}
		}
		best, bestSum := ii[0], math.Inf(-1)
		for _, j := range ii {
			var sum float64
			for _, i := range ii {
				sum += S.At(i, j)
			}
			if sum > bestSum {
				best, bestSum = j, sum
			}
		}
		centers[k] = best
	}
	assign = nearestCenter(S, centers)

	labels := make([]int, n)
	for i, k := range assign {
		labels[i] = centers[k]
	}
	return labels
}

// nearestCenter returns, per item, the position in centers of its most similar center.
// Centers are assigned to themselves.
func nearestCenter(S *mat.Dense, centers []int) []int {
	n, _ := S.Dims()
	assign := make([]int, n)
	for i := 0; i < n; i++ {
		best, bestVal := 0, math.Inf(-1)
		for k, c := range centers {
			if v := S.At(i, c); v > bestVal {
				best, bestVal = k, v
			}
		}
		assign[i] = best
	}
	for k, c := range centers {
		assign[c] = k
	}
	return assign
}

// equalSimilaritiesAndPreference reports whether all off-diagonal similarities are equal.
// The preference is a single value, so it is trivially uniform.
func equalSimilaritiesAndPreference(S *mat.Dense, _ float64) bool {
	n, _ := S.Dims()
	if n < 2 {
		return true
	}
	ref := S.At(0, 1)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && S.At(i, j) != ref {
				return false
			}
		}
	}
	return true
}
