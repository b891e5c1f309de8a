// Package kmeans generates landmarks as the centroids of Lloyd's algorithm.
// Centroids carry no topology; the layout provider gives them structure.
package kmeans

import (
	"context"
	"math"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/generator"
	"github.com/scapelab/scape/internal/floats"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/util"
)

// Options configures the trainer.
type Options struct {
	// MaxIter bounds the number of Lloyd iterations.
	MaxIter int
	// Tol stops training once no centroid moves more than Tol per feature
	// (RMS) in one iteration.
	Tol float64
	// Seed drives centroid initialization.
	Seed int64
	// Checkpoint, when set, receives a snapshot after every iteration.
	Checkpoint generator.Checkpoint
}

// DefaultOptions returns the default options for the trainer.
var DefaultOptions = Options{
	MaxIter: 100,
	Tol:     1e-4,
	Seed:    1,
}

// Generator trains k centroid landmarks.
type Generator struct {
	k     int
	opts  Options
	stats generator.Stats
}

var _ generator.Generator = (*Generator)(nil)
var _ generator.StatsReporter = (*Generator)(nil)

// New creates a k-means generator for k landmarks.
func New(k int, optFns ...func(o *Options)) *Generator {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{k: k, opts: opts}
}

// Name implements generator.Generator.
func (g *Generator) Name() string { return "kmeans" }

// Stats returns statistics from the last Generate call.
func (g *Generator) Stats() generator.Stats { return g.stats }

// Generate implements generator.Generator.
func (g *Generator) Generate(ctx context.Context, data *dataset.Dataset) (*landmark.Set, error) {
	if err := generator.ValidateTarget(g.k, data); err != nil {
		return nil, err
	}
	if g.opts.MaxIter < 0 {
		return nil, &generator.ErrInvalidOption{Name: "MaxIter", Value: g.opts.MaxIter}
	}
	if g.opts.Tol < 0 {
		return nil, &generator.ErrInvalidOption{Name: "Tol", Value: g.opts.Tol}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		n       = data.Len()
		dim     = data.Dim()
		vectors = data.Flat()
		k       = g.k
	)

	set, err := landmark.NewSet(k, dim)
	if err != nil {
		return nil, err
	}
	centroids := set.Codebook()

	// Initialize from distinct data points.
	rng := util.NewRNG(g.opts.Seed)
	for i, idx := range rng.SampleIndices(k, n) {
		copy(centroids[i*dim:(i+1)*dim], vectors[idx*dim:(idx+1)*dim])
	}

	var (
		assignments = make([]int, n)
		bestDists   = make([]float32, n)
		counts      = make([]int, k)
		sums        = make([]float32, k*dim)
		prev        = make([]float32, dim)
	)
	for i := range assignments {
		assignments[i] = -1
	}

	iters := 0
	for iter := 0; iter < g.opts.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Assignment step. Strict less keeps the lowest centroid index on
		// distance ties, so runs are reproducible.
		changed := false
		for i := 0; i < n; i++ {
			vec := vectors[i*dim : (i+1)*dim]
			best := -1
			minDist := float32(math.MaxFloat32)
			for j := 0; j < k; j++ {
				d := floats.SquaredL2(vec, centroids[j*dim:(j+1)*dim])
				if d < minDist {
					minDist = d
					best = j
				}
			}
			bestDists[i] = minDist
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}

		// Update step.
		floats.Zero(sums)
		for j := range counts {
			counts[j] = 0
		}
		for i := 0; i < n; i++ {
			c := assignments[i]
			floats.Add(vectors[i*dim:(i+1)*dim], sums[c*dim:(c+1)*dim])
			counts[c]++
		}

		maxMove := 0.0
		for j := 0; j < k; j++ {
			target := centroids[j*dim : (j+1)*dim]
			copy(prev, target)

			if counts[j] > 0 {
				copy(target, sums[j*dim:(j+1)*dim])
				floats.Scale(1/float32(counts[j]), target)
			} else {
				// Reseed a starved centroid with the farthest point of the
				// largest cluster. Deterministic, unlike random restarts.
				reseedCentroid(target, vectors, dim, assignments, bestDists, counts)
			}

			move := math.Sqrt(float64(floats.SquaredL2(prev, target)) / float64(dim))
			if move > maxMove {
				maxMove = move
			}
		}

		iters = iter + 1
		if g.opts.Checkpoint != nil {
			if err := g.opts.Checkpoint(iters, set.Clone()); err != nil {
				return nil, err
			}
		}
		if maxMove <= g.opts.Tol {
			break
		}
	}

	// Final pass for the quantization error over the settled centroids.
	var qe float64
	for i := 0; i < n; i++ {
		vec := vectors[i*dim : (i+1)*dim]
		minDist := float32(math.MaxFloat32)
		for j := 0; j < k; j++ {
			if d := floats.SquaredL2(vec, centroids[j*dim:(j+1)*dim]); d < minDist {
				minDist = d
			}
		}
		qe += float64(minDist)
	}
	g.stats = generator.Stats{
		Epochs:            iters,
		QuantizationError: qe / float64(n),
	}

	set.Freeze()
	return set, nil
}

// reseedCentroid moves a dead centroid onto the point farthest from its
// assigned centroid within the most populated cluster.
func reseedCentroid(target, vectors []float32, dim int, assignments []int, bestDists []float32, counts []int) {
	biggest := 0
	for j, c := range counts {
		if c > counts[biggest] {
			biggest = j
		}
	}

	farthest := -1
	var far float32 = -1
	for i, a := range assignments {
		if a != biggest {
			continue
		}
		if bestDists[i] > far {
			far = bestDists[i]
			farthest = i
		}
	}
	if farthest >= 0 {
		copy(target, vectors[farthest*dim:(farthest+1)*dim])
	}
}
