package tsne

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/layout"
	"github.com/scapelab/scape/util"
)

// twoClusterSet builds 2*half landmarks: the first half jittered around the
// origin, the second around a far-away center.
func twoClusterSet(t *testing.T, half, dim int) *landmark.Set {
	t.Helper()

	rng := util.NewRNG(3)
	cb := make([]float32, 0, 2*half*dim)
	for i := 0; i < 2*half; i++ {
		var base float32
		if i >= half {
			base = 50
		}
		for d := 0; d < dim; d++ {
			cb = append(cb, base+rng.Float32())
		}
	}

	set, err := landmark.FromCodebook(cb, dim)
	require.NoError(t, err)
	set.Freeze()

	return set
}

// separation returns the mean within-cluster and between-cluster squared
// layout distance for a two-cluster set.
func separation(set *landmark.Set, half, dims int) (intra, inter float64) {
	var nIntra, nInter int
	for i := 0; i < set.Len(); i++ {
		for j := i + 1; j < set.Len(); j++ {
			var d2 float64
			for d := 0; d < dims; d++ {
				diff := set.Coord(i)[d] - set.Coord(j)[d]
				d2 += diff * diff
			}
			if (i < half) == (j < half) {
				intra += d2
				nIntra++
			} else {
				inter += d2
				nInter++
			}
		}
	}
	return intra / float64(nIntra), inter / float64(nInter)
}

func TestLayout(t *testing.T) {
	ctx := context.Background()
	set := twoClusterSet(t, 10, 5)

	p := New(func(o *Options) {
		o.Iterations = 400
	})
	assert.Equal(t, "tsne", p.Name())
	require.NoError(t, p.Layout(ctx, set, 2))
	require.True(t, set.HasCoords())

	intra, inter := separation(set, 10, 2)
	assert.Greater(t, inter, 4*intra)
}

func TestLayout_Deterministic(t *testing.T) {
	ctx := context.Background()
	set := twoClusterSet(t, 8, 4)

	a := set.Clone()
	b := set.Clone()

	p := New(func(o *Options) { o.Iterations = 120 })
	require.NoError(t, p.Layout(ctx, a, 2))
	require.NoError(t, p.Layout(ctx, b, 2))

	require.Equal(t, a.Coords(), b.Coords())
}

func TestLayout_ThreeDims(t *testing.T) {
	ctx := context.Background()
	set := twoClusterSet(t, 6, 4)

	p := New(func(o *Options) { o.Iterations = 150 })
	require.NoError(t, p.Layout(ctx, set, 3))
	assert.Equal(t, 3, set.LayoutDim())
}

func TestLayout_SingleLandmark(t *testing.T) {
	ctx := context.Background()

	set, err := landmark.FromCodebook([]float32{1, 2, 3}, 3)
	require.NoError(t, err)
	set.Freeze()

	require.NoError(t, New().Layout(ctx, set, 2))
	assert.Equal(t, []float64{0, 0}, set.Coord(0))
}

func TestLayout_PerplexityClamped(t *testing.T) {
	ctx := context.Background()

	// Four landmarks force the default perplexity down to 1; the layout
	// must still come out usable.
	set, err := landmark.FromCodebook([]float32{
		0, 0,
		1, 0,
		0, 1,
		5, 5,
	}, 2)
	require.NoError(t, err)
	set.Freeze()

	p := New(func(o *Options) { o.Iterations = 100 })
	require.NoError(t, p.Layout(ctx, set, 2))
	require.True(t, set.HasCoords())
}

func TestLayout_InvalidOptions(t *testing.T) {
	ctx := context.Background()
	set := twoClusterSet(t, 4, 3)

	tests := []struct {
		name  string
		optFn func(o *Options)
	}{
		{"zero perplexity", func(o *Options) { o.Perplexity = 0 }},
		{"negative iterations", func(o *Options) { o.Iterations = -1 }},
		{"zero learning rate", func(o *Options) { o.LearningRate = 0 }},
		{"sub-unit exaggeration", func(o *Options) { o.Exaggeration = 0.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.optFn).Layout(ctx, set.Clone(), 2)

			var optErr *layout.ErrInvalidOption
			assert.ErrorAs(t, err, &optErr)
		})
	}
}

func TestLayout_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set := twoClusterSet(t, 4, 3)
	err := New().Layout(ctx, set, 2)
	assert.ErrorIs(t, err, context.Canceled)
}
