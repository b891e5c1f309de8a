package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRows(t *testing.T) {
	d, err := FromRows([][]float32{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)

	assert.Equal(t, 3, d.Len())
	assert.Equal(t, 2, d.Dim())
	assert.Equal(t, []float32{3, 4}, d.At(1))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, d.Flat())

	dst := make([]float32, 2)
	assert.Equal(t, []float32{5, 6}, d.Row(2, dst))
}

func TestFromRowsRagged(t *testing.T) {
	_, err := FromRows([][]float32{{1, 2}, {3}})

	var ragged *ErrRaggedRow
	require.ErrorAs(t, err, &ragged)
	assert.Equal(t, 1, ragged.Row)
	assert.Equal(t, 2, ragged.Expected)
	assert.Equal(t, 1, ragged.Actual)
}

func TestFromRowsEmpty(t *testing.T) {
	_, err := FromRows(nil)

	var dim *ErrInvalidDimension
	assert.ErrorAs(t, err, &dim)
}

func TestFromFlat(t *testing.T) {
	d, err := FromFlat([]float32{1, 2, 3, 4, 5, 6}, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Len())
	assert.Equal(t, []float32{4, 5, 6}, d.At(1))

	_, err = FromFlat([]float32{1, 2, 3}, 2)
	var shape *ErrBadShape
	assert.ErrorAs(t, err, &shape)

	_, err = FromFlat([]float32{1, 2, 3}, 0)
	var dim *ErrInvalidDimension
	assert.ErrorAs(t, err, &dim)
}

func TestAll(t *testing.T) {
	d, err := FromRows([][]float32{{1}, {2}, {3}})
	require.NoError(t, err)

	var idx []int
	var vals []float32
	for i, p := range d.All() {
		idx = append(idx, i)
		vals = append(vals, p[0])
	}

	assert.Equal(t, []int{0, 1, 2}, idx)
	assert.Equal(t, []float32{1, 2, 3}, vals)
}

func TestFileRoundTrip(t *testing.T) {
	d, err := FromRows([][]float32{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {10, 11, 12}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "points.scpd")
	require.NoError(t, WriteFile(path, d))

	loaded, err := OpenFile(path)
	require.NoError(t, err)
	defer loaded.Close()

	assert.Equal(t, d.Len(), loaded.Len())
	assert.Equal(t, d.Dim(), loaded.Dim())
	assert.Equal(t, d.Flat(), loaded.Flat())
}

func TestOpenFileRejectsGarbage(t *testing.T) {
	dir := t.TempDir()

	// Truncated header.
	short := filepath.Join(dir, "short.scpd")
	require.NoError(t, os.WriteFile(short, []byte{0x44, 0x50}, 0o644))
	_, err := OpenFile(short)
	assert.Error(t, err)

	// Wrong magic.
	bad := filepath.Join(dir, "bad.scpd")
	require.NoError(t, os.WriteFile(bad, make([]byte, 64), 0o644))
	_, err = OpenFile(bad)
	assert.Error(t, err)
}

func TestStandardize(t *testing.T) {
	d, err := FromRows([][]float32{{0, 10}, {2, 10}, {4, 10}})
	require.NoError(t, err)

	sd, stats := d.Standardize()

	assert.InDelta(t, 2.0, stats.Mean[0], 1e-9)
	assert.InDelta(t, 2.0, stats.Std[0], 1e-9)

	// Column 0 is centered and scaled; constant column 1 is centered only.
	var mean0 float64
	for i := 0; i < sd.Len(); i++ {
		mean0 += float64(sd.At(i)[0])
	}
	assert.InDelta(t, 0, mean0/3, 1e-6)
	assert.Equal(t, float32(0), sd.At(0)[1])

	// Transform maps a new point consistently.
	p := stats.Transform([]float32{2, 10})
	assert.InDelta(t, 0, float64(p[0]), 1e-6)
	assert.False(t, math.IsNaN(float64(p[1])))

	// Original untouched.
	assert.Equal(t, float32(0), d.At(0)[0])
}
