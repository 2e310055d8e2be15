package utils

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{1, 0, 0},
			expected: 1.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{-1, 0, 0},
			expected: -1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0, 0},
			b:        []float32{0, 1, 0},
			expected: 0.0,
		},
		{
			name:     "similar vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 1.0,
		},
		{
			name:     "different lengths",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2},
			expected: 0.0,
		},
		{
			name:     "empty vectors",
			a:        []float32{},
			b:        []float32{},
			expected: 0.0,
		},
		{
			name:     "zero vector a",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "zero vector b",
			a:        []float32{1, 2, 3},
			b:        []float32{0, 0, 0},
			expected: 0.0,
		},
		{
			name:     "nil vectors",
			a:        nil,
			b:        nil,
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CosineSimilarity(tt.a, tt.b)
			if math.Abs(result-tt.expected) > 1e-6 {
				t.Errorf("CosineSimilarity(%v, %v) = %v, expected %v", tt.a, tt.b, result, tt.expected)
			}
		})
	}
}

func TestCosineSimilaritySelfIsOne(t *testing.T) {
	t.Parallel()
	vectors := [][]float32{
		{0.3, -1.2, 4.5},
		{1e-3, 2e-3, 0},
		{-7, -7, -7, 1},
	}
	for _, v := range vectors {
		if got := CosineSimilarity(v, v); math.Abs(got-1) > 1e-9 {
			t.Errorf("CosineSimilarity(%v, %v) = %v, expected 1", v, v, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	got := Normalize([]float32{3, 4})
	if len(got) != 2 || math.Abs(float64(got[0])-0.6) > 1e-6 || math.Abs(float64(got[1])-0.8) > 1e-6 {
		t.Errorf("Normalize([3 4]) = %v, expected [0.6 0.8]", got)
	}
	if Normalize([]float32{0, 0}) != nil {
		t.Error("Normalize of a zero vector should be nil")
	}
	if Normalize(nil) != nil {
		t.Error("Normalize(nil) should be nil")
	}
}
