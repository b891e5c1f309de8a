package som

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/generator"
	"github.com/scapelab/scape/internal/floats"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/util"
)

type trainer struct {
	data    *dataset.Dataset
	set     *landmark.Set
	topo    *landmark.Grid
	opts    Options
	rng     *util.RNG
	workers int
	stats   generator.Stats
}

// accum holds one worker's per-unit partials for an epoch. Sums are float64
// so merge results do not depend on how many points each worker saw.
type accum struct {
	sums   []float64
	counts []float64
}

func newAccum(m, dim int) *accum {
	return &accum{
		sums:   make([]float64, m*dim),
		counts: make([]float64, m),
	}
}

func (a *accum) reset() {
	for i := range a.sums {
		a.sums[i] = 0
	}
	for i := range a.counts {
		a.counts[i] = 0
	}
}

func (a *accum) merge(b *accum) {
	for i := range a.sums {
		a.sums[i] += b.sums[i]
	}
	for i := range a.counts {
		a.counts[i] += b.counts[i]
	}
}

// trainBatch runs epochs of parallel assignment followed by a sequential
// neighborhood-weighted update. Worker partials merge in worker index order,
// so a fixed seed and worker count reproduce the run bit for bit.
func (t *trainer) trainBatch(ctx context.Context) error {
	var (
		n   = t.data.Len()
		dim = t.data.Dim()
		m   = t.set.Len()
	)

	workers := t.workers
	if workers > n {
		workers = n
	}

	accums := make([]*accum, workers)
	for i := range accums {
		accums[i] = newAccum(m, dim)
	}

	h := make([]float64, m*m)
	num := make([]float64, dim)

	for epoch := 0; epoch < t.opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		// Assignment phase: read-only scan of disjoint row ranges.
		g, _ := errgroup.WithContext(ctx)
		for w := 0; w < workers; w++ {
			acc := accums[w]
			acc.reset()
			lo, hi := splitRange(n, workers, w)
			g.Go(func() error {
				codebook := t.set.Codebook()
				for i := lo; i < hi; i++ {
					vec := t.data.At(i)
					b, _ := bmu(vec, codebook, m, dim)
					addF32(acc.sums[b*dim:(b+1)*dim], vec)
					acc.counts[b]++
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		total := accums[0]
		for w := 1; w < workers; w++ {
			total.merge(accums[w])
		}

		// Update phase: every unit becomes the neighborhood-weighted mean
		// of the accumulated sums. Units with no weighted support keep
		// their previous vector.
		weights(h, t.topo, t.opts.radiusAt(epoch, t.topo), t.opts.Neighborhood)
		for j := 0; j < m; j++ {
			for d := range num {
				num[d] = 0
			}
			var den float64
			for b := 0; b < m; b++ {
				w := h[j*m+b]
				if w == 0 || total.counts[b] == 0 {
					continue
				}
				den += w * total.counts[b]
				sum := total.sums[b*dim : (b+1)*dim]
				for d := range num {
					num[d] += w * sum[d]
				}
			}
			if den == 0 {
				continue
			}
			target := t.set.Vector(j)
			for d := range num {
				target[d] = float32(num[d] / den)
			}
		}

		if t.opts.Checkpoint != nil {
			if err := t.opts.Checkpoint(epoch+1, t.set.Clone()); err != nil {
				return err
			}
		}
	}

	qe, err := t.measureQE(ctx)
	if err != nil {
		return err
	}
	t.stats = generator.Stats{Epochs: t.opts.Epochs, QuantizationError: qe}
	return nil
}

// measureQE computes the mean squared distance from each point to its
// best-matching unit under the current codebook.
func (t *trainer) measureQE(ctx context.Context) (float64, error) {
	var (
		n   = t.data.Len()
		dim = t.data.Dim()
		m   = t.set.Len()
	)

	workers := t.workers
	if workers > n {
		workers = n
	}

	partials := make([]float64, workers)
	g, _ := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo, hi := splitRange(n, workers, w)
		g.Go(func() error {
			codebook := t.set.Codebook()
			var sum float64
			for i := lo; i < hi; i++ {
				_, d := bmu(t.data.At(i), codebook, m, dim)
				sum += float64(d)
			}
			partials[w] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var qe float64
	for _, p := range partials {
		qe += p
	}
	return qe / float64(n), nil
}

// bmu returns the best-matching unit for vec and its squared distance.
// Strict less keeps the lowest unit index on ties.
func bmu(vec, codebook []float32, m, dim int) (int, float32) {
	best := 0
	minDist := float32(math.MaxFloat32)
	for j := 0; j < m; j++ {
		if d := floats.SquaredL2(vec, codebook[j*dim:(j+1)*dim]); d < minDist {
			minDist = d
			best = j
		}
	}
	return best, minDist
}

// weights fills h with the neighborhood weight of every unit pair for the
// given radius. A zero radius degenerates to per-unit means.
func weights(h []float64, topo *landmark.Grid, sigma float64, kind Neighborhood) {
	m := topo.Units()
	if sigma == 0 {
		for j := 0; j < m; j++ {
			for b := 0; b < m; b++ {
				if j == b {
					h[j*m+b] = 1
				} else {
					h[j*m+b] = 0
				}
			}
		}
		return
	}
	switch kind {
	case NeighborhoodBubble:
		r2 := sigma * sigma
		for j := 0; j < m; j++ {
			for b := 0; b < m; b++ {
				if topo.SqDist(j, b) <= r2 {
					h[j*m+b] = 1
				} else {
					h[j*m+b] = 0
				}
			}
		}
	default:
		denom := 2 * sigma * sigma
		for j := 0; j < m; j++ {
			for b := 0; b < m; b++ {
				h[j*m+b] = math.Exp(-topo.SqDist(j, b) / denom)
			}
		}
	}
}

func splitRange(n, workers, w int) (int, int) {
	return w * n / workers, (w + 1) * n / workers
}

func addF32(dst []float64, src []float32) {
	for i := range dst {
		dst[i] += float64(src[i])
	}
}
