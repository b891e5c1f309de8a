// Package floats provides float32 vector kernels for codebook training and
// projection. Hot-path variants sit on top of Gonum's BLAS implementation,
// which handles SIMD dispatch internally. Callers guarantee equal lengths.
package floats

import "gonum.org/v1/gonum/blas/gonum"

var engine = gonum.Implementation{}

// SquaredL2 returns the squared Euclidean distance between a and b.
//
// The subtraction of identical values is exact, so coincident vectors
// always yield zero.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}

	return sum
}

// SquaredL2Into computes SquaredL2 through BLAS using a caller-provided
// scratch slice with capacity >= len(a), avoiding allocations in per-point
// loops. The exactness guarantee of SquaredL2 holds here too.
func SquaredL2Into(scratch, a, b []float32) float32 {
	n := len(a)
	diff := scratch[:n]
	copy(diff, a)
	engine.Saxpy(n, -1, b, 1, diff, 1)

	return engine.Sdot(n, diff, 1, diff, 1)
}

// Scale multiplies every element of a by alpha in place.
func Scale(alpha float32, a []float32) {
	engine.Sscal(len(a), alpha, a, 1)
}

// Add accumulates x into y in place.
func Add(x, y []float32) {
	engine.Saxpy(len(x), 1, x, 1, y, 1)
}

// Zero clears a in place.
func Zero(a []float32) {
	for i := range a {
		a[i] = 0
	}
}
