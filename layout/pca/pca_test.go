package pca

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/layout"
)

func TestLayout(t *testing.T) {
	ctx := context.Background()

	// Variance lives on the first input axis; the second axis wiggles a
	// little so the problem has a well-defined second component.
	set, err := landmark.FromCodebook([]float32{
		0, 0.1, 0,
		1, -0.1, 0,
		2, 0.1, 0,
		3, -0.1, 0,
	}, 3)
	require.NoError(t, err)
	set.Freeze()

	p := New()
	assert.Equal(t, "pca", p.Name())
	require.NoError(t, p.Layout(ctx, set, 2))
	require.True(t, set.HasCoords())

	// The first layout axis carries the dominant spread, up to sign.
	span := math.Abs(set.Coord(0)[0] - set.Coord(3)[0])
	assert.InDelta(t, 3.0, span, 0.05)

	// Scores are centered.
	var mean float64
	for i := 0; i < set.Len(); i++ {
		mean += set.Coord(i)[0]
	}
	assert.InDelta(t, 0, mean/float64(set.Len()), 1e-9)
}

func TestLayout_Degenerate(t *testing.T) {
	ctx := context.Background()

	set, err := landmark.FromCodebook([]float32{
		1, 2, 1, 2, 1, 2,
	}, 2)
	require.NoError(t, err)
	set.Freeze()

	err = New().Layout(ctx, set, 2)
	require.ErrorIs(t, err, layout.ErrFailed)

	var layoutErr *layout.Error
	require.ErrorAs(t, err, &layoutErr)
	assert.Equal(t, "pca", layoutErr.Provider)
}

func TestLayout_SingleLandmark(t *testing.T) {
	ctx := context.Background()

	set, err := landmark.FromCodebook([]float32{5, 5}, 2)
	require.NoError(t, err)
	set.Freeze()

	require.NoError(t, New().Layout(ctx, set, 2))
	assert.Equal(t, []float64{0, 0}, set.Coord(0))
}

func TestCoords_FewAxes(t *testing.T) {
	// Two landmarks span one principal axis; the third layout axis must
	// stay zero instead of reading out of range.
	set, err := landmark.FromCodebook([]float32{
		0, 0, 0, 0,
		4, 0, 0, 0,
	}, 4)
	require.NoError(t, err)
	set.Freeze()

	coords, err := Coords(set, 3)
	require.NoError(t, err)
	require.Len(t, coords, 6)
	assert.Equal(t, 0.0, coords[2])
	assert.Equal(t, 0.0, coords[5])
	assert.InDelta(t, 4.0, math.Abs(coords[0]-coords[3]), 1e-6)
}
