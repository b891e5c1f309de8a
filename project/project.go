// Package project computes the final embedding: every dataset point gets a
// low-dimensional coordinate interpolated from its nearest landmarks. The
// scan is exact (distances to every landmark; the landmark set is small
// enough that an index would not pay for itself) and embarrassingly
// parallel: points are partitioned into contiguous ranges, each worker
// writes its own disjoint output slots, and the result is identical for any
// worker count.
package project

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/internal/floats"
	"github.com/scapelab/scape/internal/queue"
	"github.com/scapelab/scape/landmark"
)

// Epsilon guards near-zero distances: a point whose nearest squared
// distance is at or below it snaps onto that landmark exactly.
const Epsilon = 1e-12

// ErrEmptyDataset is returned when the dataset has no points.
var ErrEmptyDataset = errors.New("project: empty dataset")

// ErrInvalidK indicates a non-positive neighbor count.
type ErrInvalidK struct {
	K   int
	Max int
}

func (e *ErrInvalidK) Error() string {
	return fmt.Sprintf("project: invalid k %d (want 1..%d)", e.K, e.Max)
}

// ErrInvalidOption indicates an out-of-range option value, caught before
// projection starts.
type ErrInvalidOption struct {
	Name  string
	Value any
}

func (e *ErrInvalidOption) Error() string {
	return fmt.Sprintf("project: invalid option %s: %v", e.Name, e.Value)
}

// Kernel selects the distance-to-weight function.
type Kernel int

const (
	// KernelInverse weights a neighbor by 1/(d²+ε).
	KernelInverse Kernel = iota
	// KernelGaussian weights a neighbor by exp(-d²/2h²) with bandwidth h.
	KernelGaussian
)

// String implements the fmt.Stringer interface.
func (k Kernel) String() string {
	switch k {
	case KernelInverse:
		return "inverse"
	case KernelGaussian:
		return "gaussian"
	default:
		return "unknown"
	}
}

// Options configures a projection.
type Options struct {
	// K is the number of nearest landmarks blended per point. Values above
	// the landmark count clamp down to it.
	K int
	// Kernel selects the weighting function.
	Kernel Kernel
	// Bandwidth is the Gaussian kernel's h. 0 derives it per point from
	// the mean selected distance.
	Bandwidth float64
	// Workers bounds projection parallelism. 0 selects GOMAXPROCS.
	Workers int
	// Diagnostics retains per-point neighbor indices and weights on the
	// Result.
	Diagnostics bool
}

// DefaultOptions returns the default options for a projection.
var DefaultOptions = Options{
	K: 8,
}

// Result is the embedding of a dataset, row-parallel to it.
type Result struct {
	// Coords is the row-major n x Dims coordinate block.
	Coords []float64
	// Dims is the coordinate dimensionality, 2 or 3.
	Dims int
	// K is the effective neighbor count used per point.
	K int

	// Neighbors and Weights are the n x K diagnostics blocks, nil unless
	// requested. Weights rows are normalized to sum to 1.
	Neighbors []uint32
	Weights   []float64
}

// Len returns the number of embedded points.
func (r *Result) Len() int {
	if r.Dims == 0 {
		return 0
	}
	return len(r.Coords) / r.Dims
}

// At returns a view of point i's coordinate.
func (r *Result) At(i int) []float64 {
	return r.Coords[i*r.Dims : (i+1)*r.Dims : (i+1)*r.Dims]
}

// NeighborsOf returns point i's selected landmark indices, nearest first.
// Nil without diagnostics.
func (r *Result) NeighborsOf(i int) []uint32 {
	if r.Neighbors == nil {
		return nil
	}
	return r.Neighbors[i*r.K : (i+1)*r.K : (i+1)*r.K]
}

// WeightsOf returns point i's normalized weights, parallel to NeighborsOf.
// Nil without diagnostics.
func (r *Result) WeightsOf(i int) []float64 {
	if r.Weights == nil {
		return nil
	}
	return r.Weights[i*r.K : (i+1)*r.K : (i+1)*r.K]
}

// Project embeds every dataset point by weighted interpolation over its k
// nearest landmarks. The set must be frozen and laid out. The result is
// deterministic regardless of worker count.
func Project(ctx context.Context, data *dataset.Dataset, set *landmark.Set, optFns ...func(o *Options)) (*Result, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if data == nil || data.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	if set == nil || !set.Frozen() {
		return nil, landmark.ErrNotFrozen
	}
	if !set.HasCoords() {
		return nil, landmark.ErrNoCoords
	}
	if data.Dim() != set.Dim() {
		return nil, &landmark.ErrDimensionMismatch{Expected: set.Dim(), Actual: data.Dim()}
	}
	if opts.K < 1 {
		return nil, &ErrInvalidK{K: opts.K, Max: set.Len()}
	}
	if opts.Workers < 0 {
		return nil, &ErrInvalidOption{Name: "Workers", Value: opts.Workers}
	}
	if opts.Bandwidth < 0 {
		return nil, &ErrInvalidOption{Name: "Bandwidth", Value: opts.Bandwidth}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		n    = data.Len()
		m    = set.Len()
		dims = set.LayoutDim()
	)

	k := opts.K
	if k > m {
		k = m
	}

	res := &Result{
		Coords: make([]float64, n*dims),
		Dims:   dims,
		K:      k,
	}
	if opts.Diagnostics {
		res.Neighbors = make([]uint32, n*k)
		res.Weights = make([]float64, n*k)
	}

	workers := opts.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * n / workers
		hi := (w + 1) * n / workers
		g.Go(func() error {
			p := newPointProjector(set, k, opts)
			for i := lo; i < hi; i++ {
				if i%4096 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				p.project(data.At(i), res.At(i))
				if opts.Diagnostics {
					copy(res.NeighborsOf(i), p.neighbors)
					copy(res.WeightsOf(i), p.weights)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return res, nil
}

// pointProjector holds one worker's scratch state so the per-point loop
// stays allocation-free.
type pointProjector struct {
	set  *landmark.Set
	k    int
	opts Options

	pq        *queue.PriorityQueue
	neighbors []uint32
	weights   []float64
	dists     []float64
	diff      []float32
}

func newPointProjector(set *landmark.Set, k int, opts Options) *pointProjector {
	return &pointProjector{
		set:       set,
		k:         k,
		opts:      opts,
		pq:        queue.NewMax(k),
		neighbors: make([]uint32, k),
		weights:   make([]float64, k),
		dists:     make([]float64, k),
		diff:      make([]float32, set.Dim()),
	}
}

// project embeds one point into out.
func (p *pointProjector) project(vec []float32, out []float64) {
	var (
		set = p.set
		m   = set.Len()
		k   = p.k
	)

	// Bounded max-heap selection over all landmarks. Ties prefer the
	// smaller landmark index, making selection a stable partial order.
	p.pq.Reset()
	for j := 0; j < m; j++ {
		item := queue.Item{Landmark: uint32(j), Dist: floats.SquaredL2Into(p.diff, vec, set.Vector(j))}
		if p.pq.Len() < k {
			p.pq.Push(item)
			continue
		}
		if worst, ok := p.pq.Top(); ok && (item.Dist < worst.Dist ||
			(item.Dist == worst.Dist && item.Landmark < worst.Landmark)) {
			p.pq.Pop()
			p.pq.Push(item)
		}
	}

	// Drain farthest-first into nearest-first order.
	for i := k - 1; i >= 0; i-- {
		item, _ := p.pq.Pop()
		p.neighbors[i] = item.Landmark
		p.dists[i] = float64(item.Dist)
	}

	p.weigh()

	for d := range out {
		out[d] = 0
	}
	for i := 0; i < k; i++ {
		w := p.weights[i]
		if w == 0 {
			continue
		}
		coord := set.Coord(int(p.neighbors[i]))
		for d := range out {
			out[d] += w * coord[d]
		}
	}
}

// weigh converts the selected squared distances into normalized weights.
func (p *pointProjector) weigh() {
	k := p.k

	// Coincident point: the nearest landmark takes the whole weight, so
	// the output equals its coordinate exactly.
	if p.dists[0] <= Epsilon {
		p.weights[0] = 1
		for i := 1; i < k; i++ {
			p.weights[i] = 0
		}
		return
	}

	var sum float64
	switch p.opts.Kernel {
	case KernelGaussian:
		h := p.opts.Bandwidth
		if h == 0 {
			for i := 0; i < k; i++ {
				h += math.Sqrt(p.dists[i])
			}
			h /= float64(k)
		}
		denom := 2 * h * h
		for i := 0; i < k; i++ {
			w := math.Exp(-p.dists[i] / denom)
			p.weights[i] = w
			sum += w
		}
	default:
		for i := 0; i < k; i++ {
			w := 1 / (p.dists[i] + Epsilon)
			p.weights[i] = w
			sum += w
		}
	}

	// A fully underflowed Gaussian row degenerates to nearest-landmark
	// assignment rather than dividing by zero.
	if sum == 0 {
		p.weights[0] = 1
		for i := 1; i < k; i++ {
			p.weights[i] = 0
		}
		return
	}

	for i := 0; i < k; i++ {
		p.weights[i] /= sum
	}
}
