package util

import "math/rand"

// RNG wraps a seeded random source so that every stochastic step of the
// engine (codebook initialization, landmark sampling, layout jitter) is
// reproducible from a single seed.
type RNG struct {
	rand *rand.Rand
	seed int64
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), // nolint gosec
		seed: seed,
	}
}

// Seed returns the seed this RNG was created with.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a uniform int in [0, n).
func (r *RNG) Intn(n int) int {
	return r.rand.Intn(n)
}

// Float32 returns a uniform float32 in [0, 1).
func (r *RNG) Float32() float32 {
	return r.rand.Float32()
}

// Float64 returns a uniform float64 in [0, 1).
func (r *RNG) Float64() float64 {
	return r.rand.Float64()
}

// NormFloat64 returns a standard normal float64.
func (r *RNG) NormFloat64() float64 {
	return r.rand.NormFloat64()
}

// Perm returns a random permutation of [0, n).
func (r *RNG) Perm(n int) []int {
	return r.rand.Perm(n)
}

// Shuffle randomizes the order of n elements using swap.
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	r.rand.Shuffle(n, swap)
}

// SampleIndices returns n distinct indices drawn uniformly from [0, total).
// The result order is random. It panics if n > total; callers validate
// counts before sampling.
func (r *RNG) SampleIndices(n, total int) []int {
	if n > total {
		panic("util: sample larger than population")
	}
	return r.rand.Perm(total)[:n]
}

// GenerateRandomVectors generates uniform random vectors in [0,1)^dimensions.
func (r *RNG) GenerateRandomVectors(num int, dimensions int) [][]float32 {
	vectors := make([][]float32, num)
	for i := range vectors {
		vectors[i] = make([]float32, dimensions)
		for j := range vectors[i] {
			vectors[i][j] = r.rand.Float32()
		}
	}

	return vectors
}

// GenerateClusteredVectors generates vectors grouped around `clusters`
// Gaussian centers with the given spread. Vector i belongs to cluster
// i % clusters, which keeps cluster membership trivial to recover in tests.
func (r *RNG) GenerateClusteredVectors(num, dimensions, clusters int, spread float64) [][]float32 {
	centers := r.GenerateRandomVectors(clusters, dimensions)

	vectors := make([][]float32, num)
	for i := range vectors {
		c := centers[i%clusters]
		vectors[i] = make([]float32, dimensions)
		for j := range vectors[i] {
			vectors[i][j] = c[j] + float32(r.rand.NormFloat64()*spread)
		}
	}

	return vectors
}
