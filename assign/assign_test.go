package assign

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/generator/sample"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/util"
)

func fixture(t *testing.T, n, dim, m int) (*dataset.Dataset, *landmark.Set) {
	t.Helper()

	rows := util.NewRNG(5).GenerateClusteredVectors(n, dim, 4, 0.1)
	data, err := dataset.FromRows(rows)
	require.NoError(t, err)

	set, err := sample.New(m, func(o *sample.Options) { o.Seed = 3 }).Generate(context.Background(), data)
	require.NoError(t, err)

	return data, set
}

func TestBuild_PartitionsDataset(t *testing.T) {
	ctx := context.Background()
	data, set := fixture(t, 500, 6, 20)

	table, err := Build(ctx, data, set)
	require.NoError(t, err)
	require.Equal(t, 500, table.Len())
	require.Equal(t, 20, table.Landmarks())

	// Bitmaps are pairwise disjoint and their union covers every point.
	union := roaring.New()
	var total uint64
	for j := 0; j < table.Landmarks(); j++ {
		members := table.Members(j)
		assert.Zero(t, roaring.And(union, members).GetCardinality(), "landmark %d overlaps", j)
		union.Or(members)
		total += members.GetCardinality()
	}
	assert.Equal(t, uint64(500), total)
	assert.Equal(t, uint64(500), union.GetCardinality())

	// Of agrees with the bitmaps.
	for i := 0; i < table.Len(); i++ {
		assert.True(t, table.Members(table.Of(i)).Contains(uint32(i)))
	}
}

func TestBuild_CountsMatchMembers(t *testing.T) {
	ctx := context.Background()
	data, set := fixture(t, 300, 4, 10)

	table, err := Build(ctx, data, set)
	require.NoError(t, err)

	var sum uint64
	for j, c := range table.Counts() {
		assert.Equal(t, table.Members(j).GetCardinality(), c)
		sum += c
	}
	assert.Equal(t, uint64(300), sum)
}

func TestBuild_SampledRowsAssignToThemselves(t *testing.T) {
	ctx := context.Background()
	data, set := fixture(t, 200, 5, 15)

	table, err := Build(ctx, data, set)
	require.NoError(t, err)

	// Every landmark is a dataset row, so no landmark can end up empty:
	// its source row is at distance zero.
	for j, c := range table.Counts() {
		assert.NotZero(t, c, "landmark %d", j)
	}
}

func TestBuild_DeterministicAcrossWorkerCounts(t *testing.T) {
	ctx := context.Background()
	data, set := fixture(t, 400, 6, 12)

	one, err := Build(ctx, data, set, func(o *Options) { o.Workers = 1 })
	require.NoError(t, err)
	many, err := Build(ctx, data, set, func(o *Options) { o.Workers = 5 })
	require.NoError(t, err)

	for i := 0; i < one.Len(); i++ {
		assert.Equal(t, one.Of(i), many.Of(i))
	}
}

func TestBuild_Union(t *testing.T) {
	ctx := context.Background()
	data, set := fixture(t, 250, 4, 8)

	table, err := Build(ctx, data, set)
	require.NoError(t, err)

	combined := table.Union(0, 1, 2)
	want := table.Members(0).GetCardinality() +
		table.Members(1).GetCardinality() +
		table.Members(2).GetCardinality()
	assert.Equal(t, want, combined.GetCardinality())

	// The union is a private copy.
	combined.Add(9999)
	assert.False(t, table.Members(0).Contains(9999))
}

func TestBuild_Validation(t *testing.T) {
	ctx := context.Background()
	data, set := fixture(t, 50, 4, 5)

	t.Run("empty dataset", func(t *testing.T) {
		_, err := Build(ctx, nil, set)
		assert.ErrorIs(t, err, ErrEmptyDataset)
	})

	t.Run("unfrozen set", func(t *testing.T) {
		raw, err := landmark.NewSet(5, 4)
		require.NoError(t, err)
		_, err = Build(ctx, data, raw)
		assert.ErrorIs(t, err, landmark.ErrNotFrozen)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		narrow, err := dataset.FromFlat(make([]float32, 20), 2)
		require.NoError(t, err)
		_, err = Build(ctx, narrow, set)
		var dm *landmark.ErrDimensionMismatch
		assert.ErrorAs(t, err, &dm)
	})

	t.Run("bad workers", func(t *testing.T) {
		_, err := Build(ctx, data, set, func(o *Options) { o.Workers = -2 })
		var io *ErrInvalidOption
		assert.ErrorAs(t, err, &io)
	})
}
