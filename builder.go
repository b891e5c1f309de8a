// Package scape provides a landmark-based embedding engine for
// high-dimensional data.
//
// This file implements strategy-specific fluent builder APIs for creating
// and configuring engines. Builders are immutable - each method returns a
// new builder with the updated configuration.
package scape

import (
	"fmt"

	"github.com/scapelab/scape/codec"
	"github.com/scapelab/scape/generator"
	"github.com/scapelab/scape/generator/gqt"
	"github.com/scapelab/scape/generator/kmeans"
	"github.com/scapelab/scape/generator/sample"
	"github.com/scapelab/scape/generator/som"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/layout"
	"github.com/scapelab/scape/layout/force"
	"github.com/scapelab/scape/layout/pca"
	"github.com/scapelab/scape/layout/tsne"
	"github.com/scapelab/scape/layout/umap"
	"github.com/scapelab/scape/resource"
	"github.com/scapelab/scape/snapshot"
)

// =============================================================================
// SOM Builder (Immutable)
// =============================================================================

// SOM creates a builder for a grid self-organizing map strategy over a
// rows x cols lattice.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration.
//
// Example:
//
//	s, err := scape.SOM(20, 20).
//	    Hex().
//	    Epochs(12).
//	    Seed(7).
//	    UMAP().
//	    Build()
func SOM(rows, cols int) SOMBuilder {
	return SOMBuilder{
		rows: rows,
		cols: cols,
		opts: som.DefaultOptions,
	}
}

// SOMBuilder is an immutable fluent builder for SOM-based engines.
type SOMBuilder struct {
	rows, cols int
	opts       som.Options
}

// Hex switches the lattice to hexagonal packing (planar grids only).
func (b SOMBuilder) Hex() SOMBuilder {
	b.opts.Hex = true
	return b
}

// Depth extends the lattice into a third axis.
func (b SOMBuilder) Depth(d int) SOMBuilder {
	b.opts.Depth = d
	return b
}

// Epochs sets the number of training passes. 0 keeps the initialization.
func (b SOMBuilder) Epochs(n int) SOMBuilder {
	b.opts.Epochs = n
	return b
}

// Online switches to online (per-point) training. Default is batch.
func (b SOMBuilder) Online() SOMBuilder {
	b.opts.Mode = som.ModeOnline
	return b
}

// Radius sets the starting neighborhood radius in grid units.
// 0 selects half the longest grid side.
func (b SOMBuilder) Radius(r float64) SOMBuilder {
	b.opts.Radius = r
	return b
}

// FinalRadius sets the neighborhood radius after the last epoch.
func (b SOMBuilder) FinalRadius(r float64) SOMBuilder {
	b.opts.FinalRadius = r
	return b
}

// LearningRate sets the starting online learning rate.
func (b SOMBuilder) LearningRate(rate float64) SOMBuilder {
	b.opts.LearningRate = rate
	return b
}

// Seed fixes the RNG seed for deterministic training.
func (b SOMBuilder) Seed(seed int64) SOMBuilder {
	b.opts.Seed = seed
	return b
}

// Workers bounds assignment-phase parallelism. Results are deterministic
// for a fixed value.
func (b SOMBuilder) Workers(n int) SOMBuilder {
	b.opts.Workers = n
	return b
}

// Checkpoint registers a per-epoch codebook snapshot hook.
func (b SOMBuilder) Checkpoint(fn generator.Checkpoint) SOMBuilder {
	b.opts.Checkpoint = fn
	return b
}

func (b SOMBuilder) generator() generator.Generator {
	opts := b.opts
	return som.New(b.rows, b.cols, func(o *som.Options) { *o = opts })
}

func (b SOMBuilder) defaultWorkers(n int) strategyBuilder {
	if b.opts.Workers == 0 {
		b.opts.Workers = n
	}
	return b
}

func (b SOMBuilder) validate() error {
	if b.rows < 1 || b.cols < 1 || b.opts.Depth < 1 {
		return fmt.Errorf("%w: som grid %dx%dx%d", ErrInvalidConfiguration, b.rows, b.cols, b.opts.Depth)
	}
	return nil
}

// Grid selects the grid-derived layout: canonical lattice coordinates
// become the embedding verbatim.
func (b SOMBuilder) Grid() EngineBuilder {
	return engineBuilder(b, layout.FromTopology)
}

// PCA selects the PCA layout provider.
func (b SOMBuilder) PCA() EngineBuilder {
	return engineBuilder(b, pca.New())
}

// TSNE selects the t-SNE layout provider.
func (b SOMBuilder) TSNE(optFns ...func(o *tsne.Options)) EngineBuilder {
	return engineBuilder(b, tsne.New(optFns...))
}

// UMAP selects the UMAP layout provider.
func (b SOMBuilder) UMAP(optFns ...func(o *umap.Options)) EngineBuilder {
	return engineBuilder(b, umap.New(optFns...))
}

// Force selects the force-directed layout provider.
func (b SOMBuilder) Force(optFns ...func(o *force.Options)) EngineBuilder {
	return engineBuilder(b, force.New(optFns...))
}

// Build assembles the engine with the grid-derived layout.
func (b SOMBuilder) Build() (*Scape, error) { return b.Grid().Build() }

// MustBuild is Build that panics on error.
func (b SOMBuilder) MustBuild() *Scape { return b.Grid().MustBuild() }

// =============================================================================
// GQT Builder (Immutable)
// =============================================================================

// GQT creates a builder for a growing quantized tree strategy that grows
// toward target landmarks.
func GQT(target int) GQTBuilder {
	return GQTBuilder{
		target: target,
		opts:   gqt.DefaultOptions,
	}
}

// GQTBuilder is an immutable fluent builder for GQT-based engines.
type GQTBuilder struct {
	target int
	opts   gqt.Options
}

// SeedUnits sets the size of the initial sampled codebook.
func (b GQTBuilder) SeedUnits(n int) GQTBuilder {
	b.opts.SeedUnits = n
	return b
}

// RefineEpochs sets the number of smoothing epochs after growth.
func (b GQTBuilder) RefineEpochs(n int) GQTBuilder {
	b.opts.RefineEpochs = n
	return b
}

// SplitStep positions split children between parent and farthest point.
func (b GQTBuilder) SplitStep(step float64) GQTBuilder {
	b.opts.SplitStep = step
	return b
}

// Seed fixes the RNG seed for deterministic growth.
func (b GQTBuilder) Seed(seed int64) GQTBuilder {
	b.opts.Seed = seed
	return b
}

// Workers bounds assignment-phase parallelism.
func (b GQTBuilder) Workers(n int) GQTBuilder {
	b.opts.Workers = n
	return b
}

// Checkpoint registers a per-epoch codebook snapshot hook.
func (b GQTBuilder) Checkpoint(fn generator.Checkpoint) GQTBuilder {
	b.opts.Checkpoint = fn
	return b
}

func (b GQTBuilder) generator() generator.Generator {
	opts := b.opts
	return gqt.New(b.target, func(o *gqt.Options) { *o = opts })
}

func (b GQTBuilder) defaultWorkers(n int) strategyBuilder {
	if b.opts.Workers == 0 {
		b.opts.Workers = n
	}
	return b
}

func (b GQTBuilder) validate() error {
	if b.target < 1 {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, &landmark.ErrInvalidCount{Count: b.target})
	}
	return nil
}

// PCA selects the PCA layout provider.
func (b GQTBuilder) PCA() EngineBuilder {
	return engineBuilder(b, pca.New())
}

// TSNE selects the t-SNE layout provider.
func (b GQTBuilder) TSNE(optFns ...func(o *tsne.Options)) EngineBuilder {
	return engineBuilder(b, tsne.New(optFns...))
}

// UMAP selects the UMAP layout provider.
func (b GQTBuilder) UMAP(optFns ...func(o *umap.Options)) EngineBuilder {
	return engineBuilder(b, umap.New(optFns...))
}

// Force selects the force-directed layout provider. The tree topology
// contributes graph edges when the repulsion graph is derived from it.
func (b GQTBuilder) Force(optFns ...func(o *force.Options)) EngineBuilder {
	return engineBuilder(b, force.New(optFns...))
}

// Build assembles the engine with the PCA layout.
func (b GQTBuilder) Build() (*Scape, error) { return b.PCA().Build() }

// MustBuild is Build that panics on error.
func (b GQTBuilder) MustBuild() *Scape { return b.PCA().MustBuild() }

// =============================================================================
// KMeans Builder (Immutable)
// =============================================================================

// KMeans creates a builder for a k-means centroid strategy with k
// landmarks.
func KMeans(k int) KMeansBuilder {
	return KMeansBuilder{
		k:    k,
		opts: kmeans.DefaultOptions,
	}
}

// KMeansBuilder is an immutable fluent builder for k-means-based engines.
type KMeansBuilder struct {
	k    int
	opts kmeans.Options
}

// MaxIter bounds the number of Lloyd iterations.
func (b KMeansBuilder) MaxIter(n int) KMeansBuilder {
	b.opts.MaxIter = n
	return b
}

// Tol sets the centroid-movement convergence threshold.
func (b KMeansBuilder) Tol(tol float64) KMeansBuilder {
	b.opts.Tol = tol
	return b
}

// Seed fixes the RNG seed for deterministic initialization.
func (b KMeansBuilder) Seed(seed int64) KMeansBuilder {
	b.opts.Seed = seed
	return b
}

// Checkpoint registers a per-iteration codebook snapshot hook.
func (b KMeansBuilder) Checkpoint(fn generator.Checkpoint) KMeansBuilder {
	b.opts.Checkpoint = fn
	return b
}

func (b KMeansBuilder) generator() generator.Generator {
	opts := b.opts
	return kmeans.New(b.k, func(o *kmeans.Options) { *o = opts })
}

// k-means is sequential per iteration; no worker option to default.
func (b KMeansBuilder) defaultWorkers(int) strategyBuilder { return b }

func (b KMeansBuilder) validate() error {
	if b.k < 1 {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, &landmark.ErrInvalidCount{Count: b.k})
	}
	return nil
}

// PCA selects the PCA layout provider.
func (b KMeansBuilder) PCA() EngineBuilder {
	return engineBuilder(b, pca.New())
}

// TSNE selects the t-SNE layout provider.
func (b KMeansBuilder) TSNE(optFns ...func(o *tsne.Options)) EngineBuilder {
	return engineBuilder(b, tsne.New(optFns...))
}

// UMAP selects the UMAP layout provider.
func (b KMeansBuilder) UMAP(optFns ...func(o *umap.Options)) EngineBuilder {
	return engineBuilder(b, umap.New(optFns...))
}

// Force selects the force-directed layout provider.
func (b KMeansBuilder) Force(optFns ...func(o *force.Options)) EngineBuilder {
	return engineBuilder(b, force.New(optFns...))
}

// Build assembles the engine with the PCA layout.
func (b KMeansBuilder) Build() (*Scape, error) { return b.PCA().Build() }

// MustBuild is Build that panics on error.
func (b KMeansBuilder) MustBuild() *Scape { return b.PCA().MustBuild() }

// =============================================================================
// Sample Builder (Immutable)
// =============================================================================

// Sample creates a builder for a random-sample strategy with n landmarks.
// Chaining KNN selects the k-NN-sample variant, which attaches a neighbor
// graph topology usable by the force layout.
func Sample(n int) SampleBuilder {
	return SampleBuilder{
		n:    n,
		opts: sample.DefaultOptions,
	}
}

// SampleBuilder is an immutable fluent builder for sample-based engines.
type SampleBuilder struct {
	n    int
	opts sample.Options
}

// Seed fixes the RNG seed for deterministic selection.
func (b SampleBuilder) Seed(seed int64) SampleBuilder {
	b.opts.Seed = seed
	return b
}

// KNN attaches a k-nearest-neighbor graph over the sampled landmarks.
func (b SampleBuilder) KNN(k int) SampleBuilder {
	b.opts.KNN = k
	return b
}

func (b SampleBuilder) generator() generator.Generator {
	opts := b.opts
	return sample.New(b.n, func(o *sample.Options) { *o = opts })
}

func (b SampleBuilder) defaultWorkers(int) strategyBuilder { return b }

func (b SampleBuilder) validate() error {
	if b.n < 1 {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, &landmark.ErrInvalidCount{Count: b.n})
	}
	return nil
}

// PCA selects the PCA layout provider.
func (b SampleBuilder) PCA() EngineBuilder {
	return engineBuilder(b, pca.New())
}

// TSNE selects the t-SNE layout provider.
func (b SampleBuilder) TSNE(optFns ...func(o *tsne.Options)) EngineBuilder {
	return engineBuilder(b, tsne.New(optFns...))
}

// UMAP selects the UMAP layout provider.
func (b SampleBuilder) UMAP(optFns ...func(o *umap.Options)) EngineBuilder {
	return engineBuilder(b, umap.New(optFns...))
}

// Force selects the force-directed layout provider. With KNN set, the
// sampled neighbor graph drives the attraction edges.
func (b SampleBuilder) Force(optFns ...func(o *force.Options)) EngineBuilder {
	return engineBuilder(b, force.New(optFns...))
}

// Build assembles the engine with the PCA layout.
func (b SampleBuilder) Build() (*Scape, error) { return b.PCA().Build() }

// MustBuild is Build that panics on error.
func (b SampleBuilder) MustBuild() *Scape { return b.PCA().MustBuild() }

// =============================================================================
// Engine Builder (strategy + layout selected)
// =============================================================================

type strategyBuilder interface {
	generator() generator.Generator
	validate() error
	// defaultWorkers fills an unset worker count from the resource
	// controller's pool size. Strategies without one return themselves.
	defaultWorkers(n int) strategyBuilder
}

func engineBuilder(sb strategyBuilder, provider layout.Provider) EngineBuilder {
	return EngineBuilder{
		strategy: sb,
		provider: provider,
		dims:     2,
	}
}

// EngineBuilder finalizes an engine once strategy and layout are chosen.
// It is immutable like the strategy builders.
type EngineBuilder struct {
	strategy strategyBuilder
	provider layout.Provider
	dims     int

	codec           codec.Codec
	logger          *Logger
	metrics         MetricsCollector
	controller      *resource.Controller
	snapshotOptions []func(*snapshot.Options)
}

// Dims sets the embedding dimensionality, 2 or 3. Default: 2.
func (b EngineBuilder) Dims(d int) EngineBuilder {
	b.dims = d
	return b
}

// Logger sets the structured logger for operation tracing.
func (b EngineBuilder) Logger(l *Logger) EngineBuilder {
	b.logger = l
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b EngineBuilder) Metrics(mc MetricsCollector) EngineBuilder {
	b.metrics = mc
	return b
}

// Codec sets the snapshot metadata codec.
func (b EngineBuilder) Codec(c codec.Codec) EngineBuilder {
	b.codec = c
	return b
}

// Resources sets the resource controller bounding workers, memory and IO.
func (b EngineBuilder) Resources(rc *resource.Controller) EngineBuilder {
	b.controller = rc
	return b
}

// Snapshot configures model snapshot encoding.
func (b EngineBuilder) Snapshot(optFns ...func(*snapshot.Options)) EngineBuilder {
	b.snapshotOptions = optFns
	return b
}

// Build validates the configuration and assembles the engine.
func (b EngineBuilder) Build() (*Scape, error) {
	strategy := b.strategy
	if b.controller != nil {
		strategy = strategy.defaultWorkers(b.controller.Workers())
	}

	if err := strategy.validate(); err != nil {
		return nil, err
	}
	if b.dims != 2 && b.dims != 3 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, &landmark.ErrInvalidLayoutDim{Dim: b.dims})
	}

	var opts []Option
	opts = append(opts, WithLayout(b.provider, b.dims))
	if b.codec != nil {
		opts = append(opts, WithCodec(b.codec))
	}
	if b.logger != nil {
		opts = append(opts, WithLogger(b.logger))
	}
	if b.metrics != nil {
		opts = append(opts, WithMetricsCollector(b.metrics))
	}
	if b.controller != nil {
		opts = append(opts, WithResourceController(b.controller))
	}
	if len(b.snapshotOptions) > 0 {
		opts = append(opts, WithSnapshotOptions(b.snapshotOptions...))
	}

	return New(strategy.generator(), opts...), nil
}

// MustBuild is Build that panics on error. Use in tests and examples where
// the configuration is known good.
func (b EngineBuilder) MustBuild() *Scape {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}
