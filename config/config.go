// Package config loads YAML pipeline descriptions for batch and driver use:
// dataset source, generation strategy, layout provider, projection
// parameters, and output destinations. Parsing is strict - unknown fields
// are rejected - and ${ENV} references expand before decoding. The
// programmatic API never requires a config file.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/scapelab/scape"
	"github.com/scapelab/scape/blobstore"
	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/registry"
	"github.com/scapelab/scape/resource"
	"github.com/scapelab/scape/snapshot"
)

// Pipeline is a validated pipeline description.
type Pipeline struct {
	Dataset    DatasetConfig    `yaml:"dataset"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Layout     LayoutConfig     `yaml:"layout"`
	Projection ProjectionConfig `yaml:"projection"`
	Output     OutputConfig     `yaml:"output"`
	Resources  ResourcesConfig  `yaml:"resources"`
}

// DatasetConfig locates the input data.
type DatasetConfig struct {
	// Path is a dataset file written by dataset.WriteFile, memory-mapped
	// on open.
	Path string `yaml:"path"`
	// Standardize scales every feature to zero mean and unit variance
	// before training.
	Standardize bool `yaml:"standardize"`
}

// GeneratorConfig selects and parameterizes the generation strategy.
type GeneratorConfig struct {
	// Strategy is one of som, gqt, kmeans, sample, sample-knn.
	Strategy string `yaml:"strategy"`

	// Rows/Cols/Depth/Hex shape the SOM lattice.
	Rows  int  `yaml:"rows"`
	Cols  int  `yaml:"cols"`
	Depth int  `yaml:"depth"`
	Hex   bool `yaml:"hex"`
	// Epochs is the SOM training pass count. Omitted keeps the strategy
	// default; an explicit 0 keeps the initialization untrained.
	Epochs *int `yaml:"epochs"`

	// Target is the GQT landmark target.
	Target int `yaml:"target"`

	// K is the k-means centroid count.
	K int `yaml:"k"`

	// N is the sample landmark count; KNN attaches a neighbor graph for
	// the sample-knn strategy.
	N   int `yaml:"n"`
	KNN int `yaml:"knn"`

	Seed    int64 `yaml:"seed"`
	Workers int   `yaml:"workers"`
}

// LayoutConfig selects and parameterizes the layout provider.
type LayoutConfig struct {
	// Provider is one of grid, pca, tsne, umap, force. Empty selects grid
	// for the som strategy and pca otherwise.
	Provider string `yaml:"provider"`
	// Dims is the embedding dimensionality, 2 or 3. 0 selects 2.
	Dims int `yaml:"dims"`

	// Perplexity, Iterations and LearningRate parameterize t-SNE;
	// Iterations also bounds the force simulation.
	Perplexity   float64 `yaml:"perplexity"`
	Iterations   int     `yaml:"iterations"`
	LearningRate float64 `yaml:"learning_rate"`

	// Neighbors, MinDist, Spread and Epochs parameterize UMAP; Neighbors
	// also sizes the force repulsion graph.
	Neighbors int     `yaml:"neighbors"`
	MinDist   float64 `yaml:"min_dist"`
	Spread    float64 `yaml:"spread"`
	Epochs    int     `yaml:"epochs"`

	Seed int64 `yaml:"seed"`
}

// ProjectionConfig parameterizes the embedding projector.
type ProjectionConfig struct {
	// K is the number of nearest landmarks blended per point. 0 selects
	// the engine default.
	K int `yaml:"k"`
	// Kernel is inverse (default) or gaussian.
	Kernel string `yaml:"kernel"`
	// Bandwidth is the Gaussian kernel bandwidth. 0 selects a data-driven
	// default.
	Bandwidth float64 `yaml:"bandwidth"`
}

// OutputConfig names the model destinations.
type OutputConfig struct {
	// ModelPath is a snapshot file destination. Empty skips the file save.
	ModelPath string `yaml:"model_path"`
	// Compression is none, zstd (default) or lz4.
	Compression string `yaml:"compression"`
	// Float16 stores codebook vectors in half precision.
	Float16 bool `yaml:"float16"`

	Registry RegistryConfig `yaml:"registry"`
}

// RegistryConfig names a model registry destination.
type RegistryConfig struct {
	// Backend is memory or local. Empty disables the registry. S3 and
	// MinIO registries carry credentials and are assembled in code.
	Backend string `yaml:"backend"`
	// Root is the local backend's directory.
	Root string `yaml:"root"`
	// Name is the model name pushed to the registry.
	Name string `yaml:"name"`
	// Tags are assigned to the model after the push.
	Tags []string `yaml:"tags"`
}

// ResourcesConfig bounds the engine's resource use.
type ResourcesConfig struct {
	MaxWorkers         int64 `yaml:"max_workers"`
	MemoryLimitBytes   int64 `yaml:"memory_limit_bytes"`
	IOLimitBytesPerSec int64 `yaml:"io_limit_bytes_per_sec"`
}

// FieldError reports a config field that failed validation.
type FieldError struct {
	Field string
	Value any
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("config: invalid %s: %v", e.Field, e.Value)
}

// Unwrap unifies config validation with the engine's configuration errors.
func (e *FieldError) Unwrap() error { return scape.ErrInvalidConfiguration }

// Load reads, expands and parses the pipeline file at path.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a pipeline description. ${ENV} references expand first;
// unknown fields are rejected.
func Parse(data []byte) (*Pipeline, error) {
	expanded := os.ExpandEnv(string(data))

	var p Pipeline
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every field before any engine is assembled.
func (p *Pipeline) Validate() error {
	switch p.Generator.Strategy {
	case "som":
		if p.Generator.Rows < 1 || p.Generator.Cols < 1 {
			return &FieldError{Field: "generator.rows/cols", Value: fmt.Sprintf("%dx%d", p.Generator.Rows, p.Generator.Cols)}
		}
	case "gqt":
		if p.Generator.Target < 1 {
			return &FieldError{Field: "generator.target", Value: p.Generator.Target}
		}
	case "kmeans":
		if p.Generator.K < 1 {
			return &FieldError{Field: "generator.k", Value: p.Generator.K}
		}
	case "sample", "sample-knn":
		if p.Generator.N < 1 {
			return &FieldError{Field: "generator.n", Value: p.Generator.N}
		}
		if p.Generator.Strategy == "sample-knn" && p.Generator.KNN < 1 {
			return &FieldError{Field: "generator.knn", Value: p.Generator.KNN}
		}
	default:
		return &FieldError{Field: "generator.strategy", Value: p.Generator.Strategy}
	}

	switch p.Layout.Provider {
	case "", "pca", "tsne", "umap", "force":
	case "grid":
		if p.Generator.Strategy != "som" {
			return &FieldError{Field: "layout.provider", Value: "grid requires the som strategy"}
		}
	default:
		return &FieldError{Field: "layout.provider", Value: p.Layout.Provider}
	}

	if d := p.Layout.Dims; d != 0 && d != 2 && d != 3 {
		return &FieldError{Field: "layout.dims", Value: d}
	}

	switch p.Projection.Kernel {
	case "", "inverse", "gaussian":
	default:
		return &FieldError{Field: "projection.kernel", Value: p.Projection.Kernel}
	}
	if p.Projection.K < 0 {
		return &FieldError{Field: "projection.k", Value: p.Projection.K}
	}

	switch p.Output.Compression {
	case "", "none", "zstd", "lz4":
	default:
		return &FieldError{Field: "output.compression", Value: p.Output.Compression}
	}

	switch p.Output.Registry.Backend {
	case "", "memory", "local":
	default:
		return &FieldError{Field: "output.registry.backend", Value: p.Output.Registry.Backend}
	}
	if p.Output.Registry.Backend == "local" && p.Output.Registry.Root == "" {
		return &FieldError{Field: "output.registry.root", Value: ""}
	}

	return nil
}

// Engine assembles a ready engine from the pipeline description.
func (p *Pipeline) Engine() (*scape.Scape, error) {
	eb, err := p.engineBuilder()
	if err != nil {
		return nil, err
	}

	if p.Layout.Dims != 0 {
		eb = eb.Dims(p.Layout.Dims)
	}

	if p.Resources != (ResourcesConfig{}) {
		eb = eb.Resources(resource.NewController(resource.Config{
			MaxWorkers:         p.Resources.MaxWorkers,
			MemoryLimitBytes:   p.Resources.MemoryLimitBytes,
			IOLimitBytesPerSec: p.Resources.IOLimitBytesPerSec,
		}))
	}

	if p.Output.Compression != "" || p.Output.Float16 {
		compression := p.Output.Compression
		float16 := p.Output.Float16
		eb = eb.Snapshot(func(o *snapshot.Options) {
			switch compression {
			case "none":
				o.Compression = snapshot.CompressionNone
			case "lz4":
				o.Compression = snapshot.CompressionLZ4
			case "zstd":
				o.Compression = snapshot.CompressionZstd
			}
			o.Float16Codebook = float16
		})
	}

	return eb.Build()
}

// OpenDataset loads the configured dataset, standardized when requested.
func (p *Pipeline) OpenDataset() (*dataset.Dataset, error) {
	if p.Dataset.Path == "" {
		return nil, &FieldError{Field: "dataset.path", Value: ""}
	}

	data, err := dataset.OpenFile(p.Dataset.Path)
	if err != nil {
		return nil, fmt.Errorf("config: open dataset: %w", err)
	}

	if p.Dataset.Standardize {
		standardized, _ := data.Standardize()
		_ = data.Close()
		return standardized, nil
	}
	return data, nil
}

// Registry assembles the configured registry backend, or nil when the
// pipeline names none.
func (p *Pipeline) Registry() (*registry.Registry, error) {
	switch p.Output.Registry.Backend {
	case "":
		return nil, nil
	case "memory":
		return registry.New(blobstore.NewMemoryStore()), nil
	case "local":
		store, err := blobstore.NewLocalStore(p.Output.Registry.Root)
		if err != nil {
			return nil, fmt.Errorf("config: registry: %w", err)
		}
		return registry.New(store), nil
	default:
		return nil, &FieldError{Field: "output.registry.backend", Value: p.Output.Registry.Backend}
	}
}

// Project applies the pipeline's projection parameters to a query builder.
func (p *Pipeline) Project(s *scape.Scape, data *dataset.Dataset) *scape.ProjectionBuilder {
	pb := s.Project(data)
	if p.Projection.K > 0 {
		pb = pb.K(p.Projection.K)
	}
	if p.Projection.Kernel == "gaussian" {
		pb = pb.Gaussian()
		if p.Projection.Bandwidth > 0 {
			pb = pb.Bandwidth(p.Projection.Bandwidth)
		}
	}
	return pb
}
