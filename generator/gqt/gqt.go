// Package gqt generates landmarks with a growing quantized tree. Training
// starts from a small sampled codebook and grows it one unit per epoch:
// the unit with the largest accumulated quantization error is split toward
// its dominant residual, starved leaves are culled, and the insertion tree
// becomes the landmark topology. Where the grid SOM imposes a fixed shape,
// the tree spends its unit budget where the data is.
package gqt

import (
	"context"
	"runtime"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/generator"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/util"
)

// Options configures the trainer.
type Options struct {
	// SeedUnits is the size of the initial sampled codebook. Values above
	// the target are clamped to it.
	SeedUnits int
	// RefineEpochs is the number of smoothing epochs run after growth
	// stops. The neighborhood radius decays to zero across them, so the
	// last epochs are plain per-unit means.
	RefineEpochs int
	// RefineRadius is the starting neighborhood radius, in tree hops, of
	// the refinement phase.
	RefineRadius float64
	// SplitStep positions a split child between its parent and the
	// parent's farthest assigned point: 0 is the parent, 1 the point.
	SplitStep float64
	// Seed drives the initial codebook sample.
	Seed int64
	// Workers bounds assignment-phase parallelism. 0 selects GOMAXPROCS.
	// Results are deterministic for a fixed value.
	Workers int
	// Checkpoint, when set, receives a codebook snapshot after every
	// epoch, growth and refinement alike. Growth snapshots carry no
	// topology since the tree is still changing.
	Checkpoint generator.Checkpoint
}

// DefaultOptions returns the default options for the trainer.
var DefaultOptions = Options{
	SeedUnits:    4,
	RefineEpochs: 10,
	RefineRadius: 1,
	SplitStep:    0.5,
	Seed:         1,
}

// Generator grows a quantized tree toward a target landmark count.
type Generator struct {
	target int
	opts   Options
	stats  generator.Stats
}

var _ generator.Generator = (*Generator)(nil)
var _ generator.StatsReporter = (*Generator)(nil)

// New creates a growing quantized tree generator. Growth stops at target
// units, or earlier if quantization is already exact.
func New(target int, optFns ...func(o *Options)) *Generator {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{target: target, opts: opts}
}

// Name implements generator.Generator.
func (g *Generator) Name() string { return "gqt" }

// Stats returns statistics from the last Generate call.
func (g *Generator) Stats() generator.Stats { return g.stats }

// Generate implements generator.Generator.
func (g *Generator) Generate(ctx context.Context, data *dataset.Dataset) (*landmark.Set, error) {
	if err := generator.ValidateTarget(g.target, data); err != nil {
		return nil, err
	}
	if g.opts.SeedUnits <= 0 {
		return nil, &generator.ErrInvalidOption{Name: "SeedUnits", Value: g.opts.SeedUnits}
	}
	if g.opts.RefineEpochs < 0 {
		return nil, &generator.ErrInvalidOption{Name: "RefineEpochs", Value: g.opts.RefineEpochs}
	}
	if g.opts.RefineRadius < 0 {
		return nil, &generator.ErrInvalidOption{Name: "RefineRadius", Value: g.opts.RefineRadius}
	}
	if g.opts.SplitStep <= 0 || g.opts.SplitStep > 1 {
		return nil, &generator.ErrInvalidOption{Name: "SplitStep", Value: g.opts.SplitStep}
	}
	if g.opts.Workers < 0 {
		return nil, &generator.ErrInvalidOption{Name: "Workers", Value: g.opts.Workers}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	workers := g.opts.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > data.Len() {
		workers = data.Len()
	}

	seed := g.opts.SeedUnits
	if seed > g.target {
		seed = g.target
	}

	gr := &grower{
		data:    data,
		target:  g.target,
		opts:    g.opts,
		workers: workers,
	}
	gr.seedCodebook(seed, util.NewRNG(g.opts.Seed))

	epochs, err := gr.grow(ctx)
	if err != nil {
		return nil, err
	}

	set, adj, err := gr.compact()
	if err != nil {
		return nil, err
	}
	graph, err := landmark.NewGraph(adj)
	if err != nil {
		return nil, err
	}
	if err := set.AttachTopology(graph); err != nil {
		return nil, err
	}

	r := &refiner{
		data:    data,
		set:     set,
		topo:    graph,
		opts:    g.opts,
		workers: workers,
	}
	qe, err := r.refine(ctx, epochs)
	if err != nil {
		return nil, err
	}

	g.stats = generator.Stats{
		Epochs:            epochs + g.opts.RefineEpochs,
		QuantizationError: qe,
	}

	set.Freeze()
	return set, nil
}
