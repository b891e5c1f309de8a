package force

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

// clusterSeparation returns the mean within-cluster and between-cluster squared
// layout distance for a two-cluster set.
func clusterSeparation(set *landmark.Set, half, dims int) (intra, inter float64) {
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

	p := New()
	assert.Equal(t, "force", p.Name())
	require.NoError(t, p.Layout(ctx, set, 2))
	require.True(t, set.HasCoords())
	assert.Equal(t, 2, set.LayoutDim())

	intra, inter := clusterSeparation(set, 10, 2)
	assert.Greater(t, inter, 2*intra)
}

func TestLayout_3D(t *testing.T) {
	ctx := context.Background()
	set := twoClusterSet(t, 8, 4)

	require.NoError(t, New().Layout(ctx, set, 3))
	assert.Equal(t, 3, set.LayoutDim())
}

func TestLayout_UsesGraphTopology(t *testing.T) {
	ctx := context.Background()
	set := twoClusterSet(t, 6, 4)

	// Chain adjacency inside each cluster, no cross-cluster edges.
	adj := make([][]int, set.Len())
	for i := 0; i < set.Len()-1; i++ {
		if i == 5 {
			continue
		}
		adj[i] = append(adj[i], i+1)
		adj[i+1] = append(adj[i+1], i)
	}
	graph, err := landmark.NewGraph(adj)
	require.NoError(t, err)

	cb := append([]float32(nil), set.Codebook()...)
	linked, err := landmark.FromCodebook(cb, set.Dim())
	require.NoError(t, err)
	require.NoError(t, linked.AttachTopology(graph))
	linked.Freeze()

	require.NoError(t, New().Layout(ctx, linked, 2))

	intra, inter := clusterSeparation(linked, 6, 2)
	assert.Greater(t, inter, intra)
}

func TestLayout_Deterministic(t *testing.T) {
	ctx := context.Background()

	a := twoClusterSet(t, 8, 4)
	b := twoClusterSet(t, 8, 4)

	require.NoError(t, New().Layout(ctx, a, 2))
	require.NoError(t, New().Layout(ctx, b, 2))
	assert.Equal(t, a.Coords(), b.Coords())
}

func TestLayout_SingleLandmark(t *testing.T) {
	ctx := context.Background()

	set, err := landmark.FromCodebook([]float32{1, 2, 3}, 3)
	require.NoError(t, err)
	set.Freeze()

	require.NoError(t, New().Layout(ctx, set, 2))
	assert.Equal(t, []float64{0, 0}, set.Coord(0))
}

func TestLayout_InvalidOptions(t *testing.T) {
	ctx := context.Background()
	set := twoClusterSet(t, 4, 3)

	for name, fn := range map[string]func(o *Options){
		"iterations": func(o *Options) { o.Iterations = -1 },
		"neighbors":  func(o *Options) { o.Neighbors = 0 },
		"size":       func(o *Options) { o.Size = 0 },
	} {
		t.Run(name, func(t *testing.T) {
			err := New(fn).Layout(ctx, set, 2)
			var io *layout.ErrInvalidOption
			assert.ErrorAs(t, err, &io)
		})
	}
}
