// Package alignment scores how well whole instruments cover each other.
package alignment

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/utils"
)

type cell struct {
	row, col int
	sim      float64
}

// Align greedily matches the questions of a (rows of sub) to those of b (columns of sub)
// by descending absolute similarity, using every row and column at most once.
//
// Precision is the share of b's questions that were matched, recall the share of a's
// (nil questions are not counted),
// and F1 is their arithmetic mean. An empty instrument scores zero.
func Align(a, b *types.Instrument, sub mat.Matrix) types.InstrumentToInstrumentSimilarity {
	res := types.InstrumentToInstrumentSimilarity{}
	if a != nil {
		res.InstrumentAID, res.InstrumentAName = a.ID, a.Name
	}
	if b != nil {
		res.InstrumentBID, res.InstrumentBName = b.ID, b.Name
	}

	rows, cols := utils.Dims(sub)
	na, nb := types.QuestionCount(a), types.QuestionCount(b)
	if na == 0 || nb == 0 || rows == 0 || cols == 0 {
		return res
	}

	matchedRows, matchedCols := greedyMatch(sub, rows, cols)

	res.Precision = float64(matchedCols) / float64(nb)
	res.Recall = float64(matchedRows) / float64(na)
	res.F1 = (res.Precision + res.Recall) / 2
	return res
}

// greedyMatch returns the number of distinct rows and columns used by the greedy matching.
// Cells are visited in descending order, ties in row-major order.
func greedyMatch(sub mat.Matrix, rows, cols int) (int, int) {
	cells := make([]cell, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			cells = append(cells, cell{row: i, col: j, sim: math.Abs(sub.At(i, j))})
		}
	}
	sort.SliceStable(cells, func(x, y int) bool { return cells[x].sim > cells[y].sim })

	usedRows := make([]bool, rows)
	usedCols := make([]bool, cols)
	var nr, nc int
	for _, c := range cells {
		if usedRows[c.row] || usedCols[c.col] {
			continue
		}
		usedRows[c.row], usedCols[c.col] = true, true
		nr++
		nc++
	}
	return nr, nc
}

// AlignAll aligns every pair of instruments i < j. sim is the matrix over the flattened
// questions of all instruments, in order.
func AlignAll(instruments []*types.Instrument, sim mat.Matrix) []types.InstrumentToInstrumentSimilarity {
	out := []types.InstrumentToInstrumentSimilarity{}
	if len(instruments) < 2 {
		return out
	}

	offsets := make([]int, len(instruments)+1)
	for i, inst := range instruments {
		offsets[i+1] = offsets[i] + types.QuestionCount(inst)
	}
	r, c := utils.Dims(sim)

	for i := 0; i < len(instruments); i++ {
		for j := i + 1; j < len(instruments); j++ {
			var sub mat.Matrix = &mat.Dense{}
			if offsets[i+1] <= r && offsets[j+1] <= c && offsets[i] < offsets[i+1] && offsets[j] < offsets[j+1] {
				sub = slice(sim, offsets[i], offsets[i+1], offsets[j], offsets[j+1])
			}
			res := Align(instruments[i], instruments[j], sub)
			res.InstrumentAIndex, res.InstrumentBIndex = i, j
			out = append(out, res)
		}
	}
	return out
}

// slicer is implemented by *mat.Dense.
type slicer interface {
	Slice(i, k, j, l int) mat.Matrix
}

// slice returns rows [r0, r1) and columns [c0, c1) of m, sharing storage when m supports it.
func slice(m mat.Matrix, r0, r1, c0, c1 int) mat.Matrix {
	if s, ok := m.(slicer); ok {
		return s.Slice(r0, r1, c0, c1)
	}
	out := mat.NewDense(r1-r0, c1-c0, nil)
	for i := r0; i < r1; i++ {
		for j := c0; j < c1; j++ {
			out.Set(i-r0, j-c0, m.At(i, j))
		}
	}
	return out
}
