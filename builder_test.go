package scape

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scapelab/scape/layout/force"
	"github.com/scapelab/scape/layout/tsne"
	"github.com/scapelab/scape/resource"
)

func TestBuilder_SOM(t *testing.T) {
	ctx := context.Background()
	data := clusteredDataset(t, 300, 8, 21)

	s, err := SOM(4, 4).
		Hex().
		Epochs(3).
		Seed(7).
		Grid().
		Build()
	require.NoError(t, err)

	m, err := s.Fit(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "som", m.Strategy)
	assert.Equal(t, "topology", m.Provider)
	assert.Equal(t, 16, m.Set.Len())
}

func TestBuilder_SOMWithUMAP(t *testing.T) {
	ctx := context.Background()
	data := clusteredDataset(t, 300, 8, 22)

	s := SOM(4, 4).
		Epochs(2).
		Seed(3).
		UMAP().
		MustBuild()

	m, err := s.Fit(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "umap", m.Provider)
	assert.True(t, m.Set.HasCoords())
}

func TestBuilder_GQT(t *testing.T) {
	ctx := context.Background()
	data := clusteredDataset(t, 400, 6, 5)

	s, err := GQT(20).
		SeedUnits(4).
		RefineEpochs(3).
		Seed(9).
		PCA().
		Build()
	require.NoError(t, err)

	m, err := s.Fit(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "gqt", m.Strategy)
	assert.LessOrEqual(t, m.Set.Len(), 20)
}

func TestBuilder_KMeans(t *testing.T) {
	ctx := context.Background()
	data := clusteredDataset(t, 200, 6, 6)

	s, err := KMeans(8).
		MaxIter(50).
		Tol(1e-3).
		Seed(2).
		TSNE(func(o *tsne.Options) { o.Iterations = 120 }).
		Build()
	require.NoError(t, err)

	m, err := s.Fit(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "kmeans", m.Strategy)
	assert.Equal(t, "tsne", m.Provider)
	assert.Equal(t, 8, m.Set.Len())
}

func TestBuilder_SampleKNNForce(t *testing.T) {
	ctx := context.Background()
	data := clusteredDataset(t, 300, 6, 7)

	s, err := Sample(30).
		Seed(4).
		KNN(5).
		Force(func(o *force.Options) { o.Iterations = 80 }).
		Build()
	require.NoError(t, err)

	m, err := s.Fit(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "sample-knn", m.Strategy)
	assert.Equal(t, "force", m.Provider)
	assert.Equal(t, 30, m.Set.Len())
}

func TestBuilder_Dims3(t *testing.T) {
	ctx := context.Background()
	data := clusteredDataset(t, 200, 8, 13)

	s, err := KMeans(10).PCA().Dims(3).Build()
	require.NoError(t, err)

	m, err := s.Fit(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Set.LayoutDim())

	result, err := s.Project(data).K(3).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Dims)
}

func TestBuilder_Validation(t *testing.T) {
	t.Run("bad grid", func(t *testing.T) {
		_, err := SOM(0, 5).Build()
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("bad target", func(t *testing.T) {
		_, err := GQT(0).PCA().Build()
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("bad dims", func(t *testing.T) {
		_, err := KMeans(5).PCA().Dims(4).Build()
		assert.ErrorIs(t, err, ErrInvalidConfiguration)
	})

	t.Run("must build panics", func(t *testing.T) {
		assert.Panics(t, func() { Sample(0).MustBuild() })
	})
}

func TestBuilder_Immutable(t *testing.T) {
	base := KMeans(8).Seed(1)
	other := base.Seed(2)

	assert.Equal(t, int64(1), base.opts.Seed)
	assert.Equal(t, int64(2), other.opts.Seed)

	eb := base.PCA()
	assert.Equal(t, 3, eb.Dims(3).dims)
	assert.Equal(t, 2, eb.dims)
}

func TestBuilder_AmbientWiring(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	rc := resource.NewController(resource.Config{MaxWorkers: 2})

	s, err := KMeans(5).
		PCA().
		Metrics(metrics).
		Logger(NoopLogger()).
		Resources(rc).
		Build()
	require.NoError(t, err)

	data := clusteredDataset(t, 100, 4, 3)
	_, err = s.Fit(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.GetStats().FitCount)
}

func TestBuilder_ControllerWorkerDefaults(t *testing.T) {
	// An unset worker count inherits the controller's pool size; an
	// explicit one wins.
	sb := SOM(4, 4).defaultWorkers(3).(SOMBuilder)
	assert.Equal(t, 3, sb.opts.Workers)

	sb = SOM(4, 4).Workers(2).defaultWorkers(3).(SOMBuilder)
	assert.Equal(t, 2, sb.opts.Workers)

	gb := GQT(8).defaultWorkers(3).(GQTBuilder)
	assert.Equal(t, 3, gb.opts.Workers)

	rc := resource.NewController(resource.Config{MaxWorkers: 3})
	s, err := SOM(4, 4).Epochs(2).Seed(1).Grid().Resources(rc).Build()
	require.NoError(t, err)

	data := clusteredDataset(t, 120, 4, 5)
	_, err = s.Fit(context.Background(), data)
	require.NoError(t, err)
}
