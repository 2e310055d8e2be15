// Package utils provides the numeric helpers shared by the harmony packages.
//
// This package contains:
//   - Vector primitives: cosine similarity, magnitude, normalisation (vector.go)
//   - Matrix helpers built on gonum: pairwise cosine matrices, absolute values,
//     element-wise means and medians (matrix.go)
//
// Zero vectors never cause a division error: any similarity involving a zero,
// empty or mismatched vector is defined as 0.
package utils
