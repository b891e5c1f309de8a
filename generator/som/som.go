// Package som generates landmarks with a self-organizing map on a fixed
// 2D/3D grid. Training pulls each grid unit's codebook vector toward the
// data points it wins, smoothed across topological neighbors by a shrinking
// radius, so the grid unfolds over the data while preserving adjacency.
//
// Batch mode (the default) separates each epoch into a read-only,
// data-parallel assignment phase and a sequential update phase fed by
// per-worker partial sums, keeping training deterministic for a fixed seed
// and worker count. Online mode updates the codebook point by point and
// suits small datasets.
package som

import (
	"context"
	"runtime"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/generator"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/util"
)

// Mode selects the training schedule.
type Mode int

const (
	// ModeBatch aggregates assignments per epoch before updating.
	ModeBatch Mode = iota
	// ModeOnline updates the codebook after every point.
	ModeOnline
)

// String implements the fmt.Stringer interface.
func (m Mode) String() string {
	switch m {
	case ModeBatch:
		return "batch"
	case ModeOnline:
		return "online"
	default:
		return "unknown"
	}
}

// Neighborhood selects the update smoothing kernel over grid distance.
type Neighborhood int

const (
	// NeighborhoodGaussian weights neighbors by exp(-d²/2σ²).
	NeighborhoodGaussian Neighborhood = iota
	// NeighborhoodBubble weights all units within the radius equally.
	NeighborhoodBubble
)

// String implements the fmt.Stringer interface.
func (n Neighborhood) String() string {
	switch n {
	case NeighborhoodGaussian:
		return "gaussian"
	case NeighborhoodBubble:
		return "bubble"
	default:
		return "unknown"
	}
}

// Init selects codebook initialization.
type Init int

const (
	// InitSample seeds every unit with a random dataset row.
	InitSample Init = iota
	// InitPCA spreads units across the data's principal plane, which gives
	// the grid a head start on large datasets.
	InitPCA
)

// Options configures the trainer.
type Options struct {
	// Epochs is the number of training passes. 0 keeps the initialization.
	Epochs int
	// Mode selects batch or online training.
	Mode Mode
	// Neighborhood selects the smoothing kernel.
	Neighborhood Neighborhood
	// Init selects codebook initialization.
	Init Init
	// Radius is the starting neighborhood radius σ₀ in grid units.
	// 0 selects half the longest grid side.
	Radius float64
	// FinalRadius is the radius after the last epoch.
	FinalRadius float64
	// LearningRate is the starting online learning rate.
	LearningRate float64
	// FinalLearningRate is the online learning rate after the last epoch.
	FinalLearningRate float64
	// Depth extends the grid into a third axis.
	Depth int
	// Hex uses a hexagonal lattice (planar grids only).
	Hex bool
	// Seed drives initialization and online shuffling.
	Seed int64
	// Workers bounds assignment-phase parallelism in batch mode.
	// 0 selects GOMAXPROCS. Results are deterministic for a fixed value.
	Workers int
	// Checkpoint, when set, receives a snapshot after every epoch.
	Checkpoint generator.Checkpoint
}

// DefaultOptions returns the default options for the trainer.
var DefaultOptions = Options{
	Epochs:            10,
	Mode:              ModeBatch,
	Neighborhood:      NeighborhoodGaussian,
	Init:              InitSample,
	FinalRadius:       1,
	LearningRate:      0.5,
	FinalLearningRate: 0.01,
	Depth:             1,
}

// Generator trains a grid SOM.
type Generator struct {
	rows, cols int
	opts       Options
	stats      generator.Stats
}

var _ generator.Generator = (*Generator)(nil)
var _ generator.StatsReporter = (*Generator)(nil)

// New creates a SOM generator over a rows x cols grid.
func New(rows, cols int, optFns ...func(o *Options)) *Generator {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{rows: rows, cols: cols, opts: opts}
}

// Name implements generator.Generator.
func (g *Generator) Name() string { return "som" }

// Stats returns statistics from the last Generate call.
func (g *Generator) Stats() generator.Stats { return g.stats }

// Generate implements generator.Generator.
func (g *Generator) Generate(ctx context.Context, data *dataset.Dataset) (*landmark.Set, error) {
	grid, err := landmark.NewGrid(g.rows, g.cols, func(o *landmark.GridOptions) {
		o.Depth = g.opts.Depth
		o.Hex = g.opts.Hex
	})
	if err != nil {
		return nil, err
	}
	if err := generator.ValidateTarget(grid.Units(), data); err != nil {
		return nil, err
	}
	if g.opts.Epochs < 0 {
		return nil, &generator.ErrInvalidOption{Name: "Epochs", Value: g.opts.Epochs}
	}
	if g.opts.Radius < 0 || g.opts.FinalRadius < 0 {
		return nil, &generator.ErrInvalidOption{Name: "Radius", Value: g.opts.Radius}
	}
	if g.opts.Mode == ModeOnline && (g.opts.LearningRate <= 0 || g.opts.LearningRate > 1) {
		return nil, &generator.ErrInvalidOption{Name: "LearningRate", Value: g.opts.LearningRate}
	}
	if g.opts.Workers < 0 {
		return nil, &generator.ErrInvalidOption{Name: "Workers", Value: g.opts.Workers}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	set, err := landmark.NewSet(grid.Units(), data.Dim())
	if err != nil {
		return nil, err
	}
	if err := set.AttachTopology(grid); err != nil {
		return nil, err
	}

	rng := util.NewRNG(g.opts.Seed)
	if err := initCodebook(set, grid, data, g.opts.Init, rng); err != nil {
		return nil, err
	}

	tr := &trainer{
		data:    data,
		set:     set,
		topo:    grid,
		opts:    g.opts,
		rng:     rng,
		workers: g.opts.Workers,
	}
	if tr.workers == 0 {
		tr.workers = runtime.GOMAXPROCS(0)
	}

	switch g.opts.Mode {
	case ModeOnline:
		err = tr.trainOnline(ctx)
	default:
		err = tr.trainBatch(ctx)
	}
	if err != nil {
		return nil, err
	}

	g.stats = tr.stats
	set.Freeze()
	return set, nil
}

// radiusAt interpolates the neighborhood radius linearly across epochs.
func (o *Options) radiusAt(epoch int, grid *landmark.Grid) float64 {
	start := o.Radius
	if start == 0 {
		side := grid.Rows()
		if grid.Cols() > side {
			side = grid.Cols()
		}
		if grid.Depth() > side {
			side = grid.Depth()
		}
		start = float64(side) / 2
	}
	if o.Epochs <= 1 {
		return start
	}
	t := float64(epoch) / float64(o.Epochs-1)
	return start + (o.FinalRadius-start)*t
}

// rateAt interpolates the online learning rate linearly across epochs.
func (o *Options) rateAt(epoch int) float64 {
	if o.Epochs <= 1 {
		return o.LearningRate
	}
	t := float64(epoch) / float64(o.Epochs-1)
	return o.LearningRate + (o.FinalLearningRate-o.LearningRate)*t
}
