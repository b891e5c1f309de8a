package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scapelab/scape"
	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/util"
)

const somPipeline = `
dataset:
  path: data.scpd
  standardize: true
generator:
  strategy: som
  rows: 5
  cols: 5
  hex: true
  epochs: 4
  seed: 7
layout:
  provider: grid
projection:
  k: 4
output:
  model_path: model.scape
  compression: lz4
`

func TestParse_SOM(t *testing.T) {
	p, err := Parse([]byte(somPipeline))
	require.NoError(t, err)

	assert.Equal(t, "som", p.Generator.Strategy)
	assert.Equal(t, 5, p.Generator.Rows)
	assert.True(t, p.Generator.Hex)
	assert.Equal(t, "grid", p.Layout.Provider)
	assert.Equal(t, 4, p.Projection.K)
	assert.Equal(t, "lz4", p.Output.Compression)
	assert.True(t, p.Dataset.Standardize)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
generator:
  strategy: kmeans
  k: 8
  clusters: 8
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clusters")
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("SCAPE_MODEL_PATH", "/tmp/model.scape")

	p, err := Parse([]byte(`
generator:
  strategy: kmeans
  k: 8
output:
  model_path: ${SCAPE_MODEL_PATH}
`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/model.scape", p.Output.ModelPath)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown strategy", "generator:\n  strategy: dbscan\n"},
		{"som without grid shape", "generator:\n  strategy: som\n"},
		{"kmeans without k", "generator:\n  strategy: kmeans\n"},
		{"gqt without target", "generator:\n  strategy: gqt\n"},
		{"sample-knn without knn", "generator:\n  strategy: sample-knn\n  n: 10\n"},
		{"unknown provider", "generator:\n  strategy: kmeans\n  k: 4\nlayout:\n  provider: mds\n"},
		{"grid without som", "generator:\n  strategy: kmeans\n  k: 4\nlayout:\n  provider: grid\n"},
		{"bad dims", "generator:\n  strategy: kmeans\n  k: 4\nlayout:\n  dims: 4\n"},
		{"bad kernel", "generator:\n  strategy: kmeans\n  k: 4\nprojection:\n  kernel: cosine\n"},
		{"bad compression", "generator:\n  strategy: kmeans\n  k: 4\noutput:\n  compression: gzip\n"},
		{"bad registry backend", "generator:\n  strategy: kmeans\n  k: 4\noutput:\n  registry:\n    backend: gcs\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)

			var fe *FieldError
			assert.ErrorAs(t, err, &fe)
			assert.ErrorIs(t, err, scape.ErrInvalidConfiguration)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(somPipeline), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "som", p.Generator.Strategy)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPipeline_Engine(t *testing.T) {
	ctx := context.Background()

	rows := util.NewRNG(1).GenerateClusteredVectors(300, 6, 3, 0.05)
	data, err := dataset.FromRows(rows)
	require.NoError(t, err)

	p, err := Parse([]byte(somPipeline))
	require.NoError(t, err)

	s, err := p.Engine()
	require.NoError(t, err)

	m, err := s.Fit(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "som", m.Strategy)
	assert.Equal(t, "topology", m.Provider)
	assert.Equal(t, 25, m.Set.Len())

	result, err := p.Project(s, data).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 300, result.Len())
	assert.Equal(t, 4, result.K)
}

func TestPipeline_EngineKMeansUMAP(t *testing.T) {
	ctx := context.Background()

	rows := util.NewRNG(2).GenerateClusteredVectors(200, 6, 3, 0.05)
	data, err := dataset.FromRows(rows)
	require.NoError(t, err)

	p, err := Parse([]byte(`
generator:
  strategy: kmeans
  k: 10
  seed: 3
layout:
  provider: umap
  neighbors: 5
  epochs: 60
  dims: 3
projection:
  kernel: gaussian
resources:
  max_workers: 2
`))
	require.NoError(t, err)

	s, err := p.Engine()
	require.NoError(t, err)

	m, err := s.Fit(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, "umap", m.Provider)
	assert.Equal(t, 3, m.Set.LayoutDim())
}

func TestPipeline_OpenDataset(t *testing.T) {
	dir := t.TempDir()
	rows := util.NewRNG(3).GenerateRandomVectors(50, 4)
	data, err := dataset.FromRows(rows)
	require.NoError(t, err)

	path := filepath.Join(dir, "data.scpd")
	require.NoError(t, dataset.WriteFile(path, data))

	p := &Pipeline{Dataset: DatasetConfig{Path: path, Standardize: true}}
	opened, err := p.OpenDataset()
	require.NoError(t, err)
	defer opened.Close()

	assert.Equal(t, 50, opened.Len())
	assert.Equal(t, 4, opened.Dim())

	p = &Pipeline{}
	_, err = p.OpenDataset()
	assert.ErrorIs(t, err, scape.ErrInvalidConfiguration)
}

func TestPipeline_Registry(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		p := &Pipeline{}
		reg, err := p.Registry()
		require.NoError(t, err)
		assert.Nil(t, reg)
	})

	t.Run("memory", func(t *testing.T) {
		p := &Pipeline{Output: OutputConfig{Registry: RegistryConfig{Backend: "memory"}}}
		reg, err := p.Registry()
		require.NoError(t, err)
		assert.NotNil(t, reg)
	})

	t.Run("local", func(t *testing.T) {
		p := &Pipeline{Output: OutputConfig{Registry: RegistryConfig{
			Backend: "local",
			Root:    t.TempDir(),
		}}}
		reg, err := p.Registry()
		require.NoError(t, err)
		assert.NotNil(t, reg)
	})
}
