package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomVectors(t *testing.T) {
	rng := NewRNG(4711)

	v := rng.GenerateRandomVectors(8, 32)

	assert.Equal(t, 8, len(v))
	assert.Equal(t, 32, len(v[0]))
	assert.LessOrEqual(t, v[0][0], float32(1.0))
	assert.GreaterOrEqual(t, v[1][0], float32(0.0))
}

func TestSampleIndices(t *testing.T) {
	rng := NewRNG(4711)

	idx := rng.SampleIndices(16, 100)
	require.Len(t, idx, 16)

	seen := make(map[int]bool, len(idx))
	for _, i := range idx {
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, 100)
		assert.False(t, seen[i], "index %d sampled twice", i)
		seen[i] = true
	}
}

func TestSampleIndicesDeterministic(t *testing.T) {
	a := NewRNG(7).SampleIndices(10, 50)
	b := NewRNG(7).SampleIndices(10, 50)

	assert.Equal(t, a, b)
}

func TestGenerateClusteredVectors(t *testing.T) {
	rng := NewRNG(23)

	v := rng.GenerateClusteredVectors(100, 8, 4, 0.01)
	require.Len(t, v, 100)

	// Members of the same cluster stay close for a tight spread.
	var d float32
	for j := range v[0] {
		diff := v[0][j] - v[4][j]
		d += diff * diff
	}
	assert.Less(t, d, float32(0.1))
}
