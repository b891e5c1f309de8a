package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scapelab/scape/codec"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/util"
)

type testMeta struct {
	Strategy string  `json:"strategy"`
	Seed     int64   `json:"seed"`
	Epochs   int     `json:"epochs"`
	QE       float64 `json:"qe"`
}

// fittedSet builds a frozen, laid-out set with a grid topology.
func fittedSet(t *testing.T, rows, cols, dim int) *landmark.Set {
	t.Helper()

	m := rows * cols
	rng := util.NewRNG(7)
	cb := make([]float32, m*dim)
	for i := range cb {
		cb[i] = rng.Float32()*20 - 10
	}

	set, err := landmark.FromCodebook(cb, dim)
	require.NoError(t, err)

	grid, err := landmark.NewGrid(rows, cols)
	require.NoError(t, err)
	require.NoError(t, set.AttachTopology(grid))
	set.Freeze()

	coords := make([]float64, m*2)
	for i := range coords {
		coords[i] = rng.Float64() * 100
	}
	require.NoError(t, set.SetCoords(coords, 2))

	return set
}

func TestRoundTrip(t *testing.T) {
	set := fittedSet(t, 4, 5, 8)
	meta := testMeta{Strategy: "som", Seed: 7, Epochs: 10, QE: 0.5}

	for _, comp := range []Compression{CompressionNone, CompressionZstd, CompressionLZ4} {
		t.Run(comp.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, set, meta, func(o *Options) {
				o.Compression = comp
			}))

			var gotMeta testMeta
			got, err := Read(&buf, &gotMeta)
			require.NoError(t, err)

			assert.Equal(t, set.Codebook(), got.Codebook())
			assert.Equal(t, set.Coords(), got.Coords())
			assert.Equal(t, 2, got.LayoutDim())
			assert.True(t, got.Frozen())
			assert.Equal(t, meta, gotMeta)

			grid, ok := got.Topology().(*landmark.Grid)
			require.True(t, ok)
			assert.Equal(t, 4, grid.Rows())
			assert.Equal(t, 5, grid.Cols())
		})
	}
}

func TestRoundTrip_GraphTopology(t *testing.T) {
	rng := util.NewRNG(3)
	cb := make([]float32, 6*4)
	for i := range cb {
		cb[i] = rng.Float32()
	}
	set, err := landmark.FromCodebook(cb, 4)
	require.NoError(t, err)

	adj := [][]int{{1, 2}, {0}, {0, 3}, {2, 4}, {3, 5}, {4}}
	graph, err := landmark.NewGraph(adj)
	require.NoError(t, err)
	require.NoError(t, set.AttachTopology(graph))
	set.Freeze()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, set, nil))

	got, err := Read(&buf, nil)
	require.NoError(t, err)

	restored, ok := got.Topology().(*landmark.Graph)
	require.True(t, ok)
	for i, want := range adj {
		assert.Equal(t, want, restored.Neighbors(i))
	}
}

func TestRoundTrip_Float16Codebook(t *testing.T) {
	set := fittedSet(t, 3, 3, 6)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, set, nil, func(o *Options) {
		o.Float16Codebook = true
	}))

	got, err := Read(&buf, nil)
	require.NoError(t, err)

	// Half precision: ~3 decimal digits over the [-10, 10) range.
	for i, v := range set.Codebook() {
		assert.InDelta(t, v, got.Codebook()[i], 0.01)
	}
	// Layout coordinates stay exact.
	assert.Equal(t, set.Coords(), got.Coords())
}

func TestWrite_RequiresFrozenSet(t *testing.T) {
	raw, err := landmark.NewSet(4, 2)
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.ErrorIs(t, Write(&buf, raw, nil), landmark.ErrNotFrozen)
}

func TestRead_RejectsBadMagic(t *testing.T) {
	_, err := Read(bytes.NewReader(make([]byte, 128)), nil)
	assert.ErrorIs(t, err, ErrInvalidMagic)
}

func TestRead_DetectsCorruption(t *testing.T) {
	set := fittedSet(t, 3, 3, 4)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, set, nil, func(o *Options) {
		o.Compression = CompressionNone
	}))

	data := buf.Bytes()
	data[len(data)-1] ^= 0xff

	_, err := Read(bytes.NewReader(data), nil)
	var mismatch *ErrChecksumMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestRead_Truncated(t *testing.T) {
	set := fittedSet(t, 3, 3, 4)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, set, nil))

	_, err := Read(bytes.NewReader(buf.Bytes()[:buf.Len()-10]), nil)
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestSaveLoadFile(t *testing.T) {
	set := fittedSet(t, 4, 4, 5)
	meta := testMeta{Strategy: "kmeans", Seed: 1}
	path := filepath.Join(t.TempDir(), "model.scap")

	require.NoError(t, SaveFile(path, set, meta, func(o *Options) {
		o.Codec = codec.JSON{}
	}))

	var gotMeta testMeta
	got, err := LoadFile(path, &gotMeta)
	require.NoError(t, err)
	assert.Equal(t, set.Codebook(), got.Codebook())
	assert.Equal(t, meta, gotMeta)
}

func TestWrite_SetWithoutLayout(t *testing.T) {
	rng := util.NewRNG(1)
	cb := make([]float32, 5*3)
	for i := range cb {
		cb[i] = rng.Float32()
	}
	set, err := landmark.FromCodebook(cb, 3)
	require.NoError(t, err)
	set.Freeze()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, set, nil))

	got, err := Read(&buf, nil)
	require.NoError(t, err)
	assert.False(t, got.HasCoords())
	assert.Equal(t, set.Codebook(), got.Codebook())
}
