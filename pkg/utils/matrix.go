package utils

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// ParallelCellThreshold is the number of output cells above which CosineMatrix
// splits the work across goroutines.
const ParallelCellThreshold = 1 << 14

// ErrRaggedMatrix is returned when a row-major matrix has rows of different lengths.
var ErrRaggedMatrix = errors.New("matrix rows have different lengths")

// CosineMatrix returns the n×m matrix whose entry (i, j) is the cosine similarity of
// a[i] and b[j]. Entries involving a zero, empty or mismatched vector are 0.
// An empty input yields an empty matrix.
//
// Every cell is computed independently, so the parallel and serial paths produce
// bit-identical results.
func CosineMatrix(a, b [][]float32) *mat.Dense {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return &mat.Dense{}
	}

	normsA := rowNorms(a)
	normsB := rowNorms(b)
	data := make([]float64, n*m)

	fill := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			row := data[i*m : (i+1)*m]
			for j := 0; j < m; j++ {
				row[j] = cosineWithNorms(a[i], b[j], normsA[i], normsB[j])
			}
		}
	}

	if n*m < ParallelCellThreshold {
		fill(0, n)
		return mat.NewDense(n, m, data)
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			fill(lo, hi)
			return nil
		})
	}
	_ = g.Wait()

	return mat.NewDense(n, m, data)
}

func rowNorms(rows [][]float32) []float64 {
	norms := make([]float64, len(rows))
	for i, r := range rows {
		norms[i] = Magnitude(r)
	}
	return norms
}

func cosineWithNorms(a, b []float32, normA, normB float64) float64 {
	if len(a) != len(b) || len(a) == 0 || normA == 0 || normB == 0 {
		return 0
	}
	return DotProduct(a, b) / (normA * normB)
}

// Dims returns the dimensions of m, treating nil as empty.
func Dims(m mat.Matrix) (int, int) {
	if m == nil {
		return 0, 0
	}
	if d, ok := m.(*mat.Dense); ok && (d == nil || d.IsEmpty()) {
		return 0, 0
	}
	return m.Dims()
}

// Abs returns a new matrix holding the absolute value of every entry of m.
func Abs(m mat.Matrix) *mat.Dense {
	r, c := Dims(m)
	if r == 0 || c == 0 {
		return &mat.Dense{}
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, _ int, v float64) float64 { return math.Abs(v) }, m)
	return out
}

// Mean returns the element-wise mean of two matrices of equal shape.
func Mean(a, b mat.Matrix) *mat.Dense {
	r, c := Dims(a)
	if r == 0 || c == 0 {
		return &mat.Dense{}
	}
	var out mat.Dense
	out.Add(a, b)
	out.Scale(0.5, &out)
	return &out
}

// Median returns the median of values, averaging the two middle values for an even
// count. Returns 0 for an empty slice. values is not modified.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// Rows converts m to a row-major slice of slices, e.g. for JSON encoding.
func Rows(m mat.Matrix) [][]float64 {
	r, c := Dims(m)
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([]float64, c)
		for j := 0; j < c; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// FromRows builds a dense matrix from row-major data. An empty input yields an empty matrix.
func FromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return &mat.Dense{}, nil
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, row := range rows {
		if len(row) != c {
			return nil, fmt.Errorf("%w: row %d has %d columns, expected %d", ErrRaggedMatrix, i, len(row), c)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), c, data), nil
}
