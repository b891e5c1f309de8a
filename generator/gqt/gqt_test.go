package gqt

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/generator"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/util"
)

func clusteredData(t *testing.T, num, dim, clusters int, seed int64) *dataset.Dataset {
	t.Helper()

	rows := util.NewRNG(seed).GenerateClusteredVectors(num, dim, clusters, 0.05)
	data, err := dataset.FromRows(rows)
	require.NoError(t, err)

	return data
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()
	data := clusteredData(t, 200, 4, 5, 1)

	g := New(12, func(o *Options) {
		o.Seed = 42
	})
	assert.Equal(t, "gqt", g.Name())

	set, err := g.Generate(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, 12, set.Len())
	assert.Equal(t, 4, set.Dim())
	assert.True(t, set.Frozen())

	stats := g.Stats()
	assert.Greater(t, stats.Epochs, 0)
	assert.Greater(t, stats.QuantizationError, 0.0)

	// The insertion tree plus the root chain keeps every unit reachable.
	graph, ok := set.Topology().(*landmark.Graph)
	require.True(t, ok)
	assert.Equal(t, 12, graph.Units())
	for j := 0; j < graph.Units(); j++ {
		assert.False(t, math.IsInf(graph.SqDist(0, j), 1))
	}

	for _, v := range set.Codebook() {
		require.False(t, math.IsNaN(float64(v)))
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	ctx := context.Background()
	data := clusteredData(t, 250, 6, 4, 2)

	run := func(seed int64) *landmark.Set {
		g := New(10, func(o *Options) {
			o.Seed = seed
			o.Workers = 3
		})
		set, err := g.Generate(ctx, data)
		require.NoError(t, err)
		return set
	}

	a := run(7)
	b := run(7)
	require.Equal(t, a.Codebook(), b.Codebook())

	c := run(8)
	assert.NotEqual(t, a.Codebook(), c.Codebook())
}

func TestGenerate_SeedOnly(t *testing.T) {
	ctx := context.Background()
	data := clusteredData(t, 100, 3, 4, 3)

	// Target equal to the seed size skips growth entirely; zero refine
	// epochs keep the sampled rows untouched.
	g := New(4, func(o *Options) {
		o.SeedUnits = 4
		o.RefineEpochs = 0
		o.Seed = 5
	})
	set, err := g.Generate(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 4, set.Len())
	assert.Equal(t, 0, g.Stats().Epochs)

	rows := util.NewRNG(5).SampleIndices(4, data.Len())
	for i, row := range rows {
		assert.Equal(t, data.At(row), set.Vector(i))
	}

	// Seed units have no insertion edges, so they are chained in order.
	graph, ok := set.Topology().(*landmark.Graph)
	require.True(t, ok)
	assert.Equal(t, 1.0, graph.SqDist(0, 1))
	assert.Equal(t, 4.0, graph.SqDist(0, 2))
	assert.Equal(t, 9.0, graph.SqDist(0, 3))
}

func TestGenerate_RefinementLowersError(t *testing.T) {
	ctx := context.Background()
	data := clusteredData(t, 220, 4, 6, 4)

	grown := New(10, func(o *Options) {
		o.RefineEpochs = 0
		o.Seed = 9
		o.Workers = 2
	})
	_, err := grown.Generate(ctx, data)
	require.NoError(t, err)

	// A zero radius makes every refinement epoch a plain per-unit mean,
	// which cannot raise the quantization error of the grown tree.
	refined := New(10, func(o *Options) {
		o.RefineEpochs = 6
		o.RefineRadius = 0
		o.Seed = 9
		o.Workers = 2
	})
	_, err = refined.Generate(ctx, data)
	require.NoError(t, err)

	assert.LessOrEqual(t, refined.Stats().QuantizationError, grown.Stats().QuantizationError)
}

func TestGenerate_ExactQuantizationStopsGrowth(t *testing.T) {
	ctx := context.Background()

	row := []float32{1, 2, 3}
	rows := make([][]float32, 50)
	for i := range rows {
		rows[i] = row
	}
	data, err := dataset.FromRows(rows)
	require.NoError(t, err)

	// Every unit lands on the duplicate point, the error is exactly zero,
	// and growth stops below the target.
	g := New(5, func(o *Options) {
		o.Seed = 1
	})
	set, err := g.Generate(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 4, set.Len())
	assert.Equal(t, 0.0, g.Stats().QuantizationError)
}

func TestGenerate_Checkpoint(t *testing.T) {
	ctx := context.Background()
	data := clusteredData(t, 150, 3, 4, 6)

	var (
		epochs []int
		topos  []bool
	)
	g := New(8, func(o *Options) {
		o.SeedUnits = 4
		o.RefineEpochs = 3
		o.Seed = 11
		o.Checkpoint = func(epoch int, snapshot *landmark.Set) error {
			epochs = append(epochs, epoch)
			topos = append(topos, snapshot.Topology() != nil)
			return nil
		}
	})
	_, err := g.Generate(ctx, data)
	require.NoError(t, err)

	require.Equal(t, g.Stats().Epochs, len(epochs))
	for i, e := range epochs {
		assert.Equal(t, i+1, e)
	}

	// Growth snapshots carry no topology; refinement snapshots do.
	growth := len(epochs) - 3
	for i, hasTopo := range topos {
		assert.Equal(t, i >= growth, hasTopo)
	}
}

func TestGenerate_CheckpointAbort(t *testing.T) {
	ctx := context.Background()
	data := clusteredData(t, 150, 3, 4, 7)

	errAbort := errors.New("stop here")

	g := New(8, func(o *Options) {
		o.Seed = 11
		o.Checkpoint = func(epoch int, _ *landmark.Set) error {
			if epoch == 3 {
				return errAbort
			}
			return nil
		}
	})
	set, err := g.Generate(ctx, data)
	assert.ErrorIs(t, err, errAbort)
	assert.Nil(t, set)
}

func TestGenerate_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := clusteredData(t, 100, 3, 4, 8)

	g := New(8)
	_, err := g.Generate(ctx, data)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_InvalidOptions(t *testing.T) {
	ctx := context.Background()
	data := clusteredData(t, 100, 3, 4, 9)

	tests := []struct {
		name  string
		optFn func(o *Options)
	}{
		{"zero seed units", func(o *Options) { o.SeedUnits = 0 }},
		{"negative refine epochs", func(o *Options) { o.RefineEpochs = -1 }},
		{"negative refine radius", func(o *Options) { o.RefineRadius = -1 }},
		{"zero split step", func(o *Options) { o.SplitStep = 0 }},
		{"split step above one", func(o *Options) { o.SplitStep = 1.5 }},
		{"negative workers", func(o *Options) { o.Workers = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New(8, tt.optFn)
			_, err := g.Generate(ctx, data)

			var optErr *generator.ErrInvalidOption
			assert.ErrorAs(t, err, &optErr)
		})
	}
}

func TestGenerate_BadTarget(t *testing.T) {
	ctx := context.Background()
	data := clusteredData(t, 50, 3, 4, 10)

	var countErr *landmark.ErrInvalidCount
	_, err := New(0).Generate(ctx, data)
	assert.ErrorAs(t, err, &countErr)

	var sizeErr *generator.ErrTargetExceedsDataset
	_, err = New(51).Generate(ctx, data)
	assert.ErrorAs(t, err, &sizeErr)

	_, err = New(5).Generate(ctx, nil)
	assert.ErrorIs(t, err, generator.ErrEmptyDataset)
}

func TestSigmaSchedule(t *testing.T) {
	r := &refiner{opts: Options{RefineEpochs: 5, RefineRadius: 2}}
	assert.InDelta(t, 2.0, r.sigmaAt(0), 1e-12)
	assert.InDelta(t, 1.0, r.sigmaAt(2), 1e-12)
	assert.InDelta(t, 0.0, r.sigmaAt(4), 1e-12)

	r = &refiner{opts: Options{RefineEpochs: 1, RefineRadius: 2}}
	assert.Equal(t, 0.0, r.sigmaAt(0))
}

func TestBestUnit_TieBreak(t *testing.T) {
	cb := []float32{1, 0, 1, 0}

	idx, d := bestUnit([]float32{1, 0}, cb, 2, 2)
	assert.Equal(t, 0, idx)
	assert.Equal(t, float32(0), d)
}
