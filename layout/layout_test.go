package layout

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scapelab/scape/landmark"
)

func gridSet(t *testing.T, rows, cols int) *landmark.Set {
	t.Helper()

	set, err := landmark.NewSet(rows*cols, 3)
	require.NoError(t, err)
	grid, err := landmark.NewGrid(rows, cols)
	require.NoError(t, err)
	require.NoError(t, set.AttachTopology(grid))
	set.Freeze()

	return set
}

func TestFromTopology(t *testing.T) {
	ctx := context.Background()
	set := gridSet(t, 2, 3)

	require.NoError(t, FromTopology.Layout(ctx, set, 2))
	require.True(t, set.HasCoords())
	assert.Equal(t, 2, set.LayoutDim())

	grid := set.Topology().(*landmark.Grid)
	for i := 0; i < set.Len(); i++ {
		assert.Equal(t, grid.UnitCoord(i), set.Coord(i))
	}
}

func TestFromTopology_NoTopology(t *testing.T) {
	ctx := context.Background()

	set, err := landmark.NewSet(4, 3)
	require.NoError(t, err)
	set.Freeze()

	err = FromTopology.Layout(ctx, set, 2)
	assert.ErrorIs(t, err, ErrNoTopology)
}

func TestFromTopology_DimsMismatch(t *testing.T) {
	ctx := context.Background()
	set := gridSet(t, 2, 3)

	err := FromTopology.Layout(ctx, set, 3)

	var dimsErr *ErrTopologyDims
	require.ErrorAs(t, err, &dimsErr)
	assert.Equal(t, 2, dimsErr.Topology)
	assert.Equal(t, 3, dimsErr.Requested)
}

func TestFromTopology_NotFrozen(t *testing.T) {
	ctx := context.Background()

	set, err := landmark.NewSet(6, 3)
	require.NoError(t, err)
	grid, err := landmark.NewGrid(2, 3)
	require.NoError(t, err)
	require.NoError(t, set.AttachTopology(grid))

	err = FromTopology.Layout(ctx, set, 2)
	assert.ErrorIs(t, err, landmark.ErrNotFrozen)
}

func TestValidate(t *testing.T) {
	good := []float64{0, 0, 1, 0, 0, 1}
	assert.NoError(t, Validate("test", good, 3, 2))

	// Single landmarks cannot collapse.
	assert.NoError(t, Validate("test", []float64{5, 5}, 1, 2))
}

func TestValidate_NonFinite(t *testing.T) {
	coords := []float64{0, 0, 1, math.NaN(), 0, 1}

	err := Validate("test", coords, 3, 2)
	require.ErrorIs(t, err, ErrFailed)

	var layoutErr *Error
	require.ErrorAs(t, err, &layoutErr)
	assert.Equal(t, "test", layoutErr.Provider)
	assert.Equal(t, 1, layoutErr.Landmark)

	coords = []float64{0, 0, 1, 0, math.Inf(1), 1}
	err = Validate("test", coords, 3, 2)
	require.ErrorAs(t, err, &layoutErr)
	assert.Equal(t, 2, layoutErr.Landmark)
}

func TestValidate_Collapsed(t *testing.T) {
	coords := []float64{3, 4, 3, 4, 3, 4}

	err := Validate("test", coords, 3, 2)
	require.ErrorIs(t, err, ErrFailed)

	var layoutErr *Error
	require.ErrorAs(t, err, &layoutErr)
	assert.Equal(t, -1, layoutErr.Landmark)

	// A single displaced coordinate is enough to count as structure.
	coords[5] = 4.5
	assert.NoError(t, Validate("test", coords, 3, 2))
}
