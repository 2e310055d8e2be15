// Package crosswalk builds tables of matched question pairs.
package crosswalk

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/parquet-go/parquet-go"
	"gonum.org/v1/gonum/mat"

	"github.com/soundprediction/harmony/pkg/types"
	"github.com/soundprediction/harmony/pkg/utils"
)

// Options refines the pair selection. The zero value keeps every pair above the threshold.
type Options struct {
	// ExcludeSameInstrument drops pairs of questions from the same instrument.
	ExcludeSameInstrument bool
	// OneToOne keeps each question in at most one pair, preferring higher scores.
	OneToOne bool
}

// Build returns a row for every pair i < j whose similarity is strictly greater than
// threshold, in row-major order. The pair id is "i_j".
func Build(questions []*types.Question, sim mat.Matrix, threshold float64, opts Options) []types.CrosswalkRow {
	rows := []types.CrosswalkRow{}
	r, c := utils.Dims(sim)
	n := min(len(questions), r, c)

	type pair struct {
		i, j  int
		score float64
	}
	var pairs []pair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			score := sim.At(i, j)
			if score <= threshold {
				continue
			}
			if opts.ExcludeSameInstrument && sameInstrument(questions[i], questions[j]) {
				continue
			}
			pairs = append(pairs, pair{i: i, j: j, score: score})
		}
	}

	if opts.OneToOne {
		sorted := append([]pair(nil), pairs...)
		sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].score > sorted[b].score })
		used := make(map[int]bool)
		kept := make(map[[2]int]bool)
		for _, p := range sorted {
			if used[p.i] || used[p.j] {
				continue
			}
			used[p.i], used[p.j] = true, true
			kept[[2]int{p.i, p.j}] = true
		}
		filtered := pairs[:0]
		for _, p := range pairs {
			if kept[[2]int{p.i, p.j}] {
				filtered = append(filtered, p)
			}
		}
		pairs = filtered
	}

	for _, p := range pairs {
		rows = append(rows, newRow(p.i, p.j, questions[p.i], questions[p.j], p.score))
	}
	return rows
}

func sameInstrument(a, b *types.Question) bool {
	return a != nil && b != nil && a.InstrumentID != "" && a.InstrumentID == b.InstrumentID
}

func newRow(i, j int, a, b *types.Question, score float64) types.CrosswalkRow {
	row := types.CrosswalkRow{
		PairID: fmt.Sprintf("%d_%d", i, j),
		Score:  score,
	}
	if a != nil {
		row.Question1No, row.Question1Text, row.Instrument1ID = a.QuestionNo, a.QuestionText, a.InstrumentID
	}
	if b != nil {
		row.Question2No, row.Question2Text, row.Instrument2ID = b.QuestionNo, b.QuestionText, b.InstrumentID
	}
	return row
}

// WriteParquet writes rows to a parquet file at path.
func WriteParquet(path string, rows []types.CrosswalkRow) error {
	if err := parquet.WriteFile(path, rows); err != nil {
		return fmt.Errorf("failed to write crosswalk parquet file: %w", err)
	}
	return nil
}

// ReadParquet reads rows written by WriteParquet.
func ReadParquet(path string) ([]types.CrosswalkRow, error) {
	rows, err := parquet.ReadFile[types.CrosswalkRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read crosswalk parquet file: %w", err)
	}
	return rows, nil
}

var csvHeader = []string{
	"pair_name", "question1_no", "question1_text", "question2_no", "question2_text",
	"instrument1_id", "instrument2_id", "match_score",
}

// WriteCSV writes rows with a header line.
func WriteCSV(w io.Writer, rows []types.CrosswalkRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.PairID, r.Question1No, r.Question1Text, r.Question2No, r.Question2Text,
			r.Instrument1ID, r.Instrument2ID, strconv.FormatFloat(r.Score, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
