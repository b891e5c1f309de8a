package gqt

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/landmark"
)

type refiner struct {
	data    *dataset.Dataset
	set     *landmark.Set
	topo    *landmark.Graph
	opts    Options
	workers int
}

type refineAccum struct {
	sums   []float64
	counts []float64
}

func newRefineAccum(m, dim int) *refineAccum {
	return &refineAccum{
		sums:   make([]float64, m*dim),
		counts: make([]float64, m),
	}
}

func (a *refineAccum) reset() {
	for i := range a.sums {
		a.sums[i] = 0
	}
	for i := range a.counts {
		a.counts[i] = 0
	}
}

func (a *refineAccum) merge(b *refineAccum) {
	for i := range a.sums {
		a.sums[i] += b.sums[i]
	}
	for i := range a.counts {
		a.counts[i] += b.counts[i]
	}
}

// refine smooths the grown codebook over the tree without structural
// change. The hop radius decays linearly to zero, so the final epochs are
// plain per-unit means. epochOffset continues the growth epoch numbering
// for checkpoints. Returns the final quantization error.
func (r *refiner) refine(ctx context.Context, epochOffset int) (float64, error) {
	var (
		n   = r.data.Len()
		dim = r.data.Dim()
		m   = r.set.Len()
	)

	accums := make([]*refineAccum, r.workers)
	for w := range accums {
		accums[w] = newRefineAccum(m, dim)
	}

	h := make([]float64, m*m)
	num := make([]float64, dim)

	for epoch := 0; epoch < r.opts.RefineEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		r.weights(h, r.sigmaAt(epoch))

		eg, _ := errgroup.WithContext(ctx)
		for w := 0; w < r.workers; w++ {
			acc := accums[w]
			acc.reset()
			lo, hi := splitRange(n, r.workers, w)
			eg.Go(func() error {
				cb := r.set.Codebook()
				for i := lo; i < hi; i++ {
					vec := r.data.At(i)
					b, _ := bestUnit(vec, cb, m, dim)
					sum := acc.sums[b*dim : (b+1)*dim]
					for d := range sum {
						sum[d] += float64(vec[d])
					}
					acc.counts[b]++
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return 0, err
		}

		total := accums[0]
		for w := 1; w < r.workers; w++ {
			total.merge(accums[w])
		}

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
			target := r.set.Vector(j)
			for d := range num {
				target[d] = float32(num[d] / den)
			}
		}

		if r.opts.Checkpoint != nil {
			if err := r.opts.Checkpoint(epochOffset+epoch+1, r.set.Clone()); err != nil {
				return 0, err
			}
		}
	}

	return r.measureQE(ctx)
}

// sigmaAt decays the hop radius linearly so the last epoch lands on zero.
func (r *refiner) sigmaAt(epoch int) float64 {
	e := r.opts.RefineEpochs
	if e <= 1 {
		return 0
	}
	return r.opts.RefineRadius * float64(e-1-epoch) / float64(e-1)
}

// weights fills h with the hop-distance neighborhood weight of every unit
// pair. Disconnected pairs sit at infinite distance and get weight zero.
func (r *refiner) weights(h []float64, sigma float64) {
	m := r.topo.Units()
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
	denom := 2 * sigma * sigma
	for j := 0; j < m; j++ {
		for b := 0; b < m; b++ {
			h[j*m+b] = math.Exp(-r.topo.SqDist(j, b) / denom)
		}
	}
}

func (r *refiner) measureQE(ctx context.Context) (float64, error) {
	var (
		n   = r.data.Len()
		dim = r.data.Dim()
		m   = r.set.Len()
	)

	partials := make([]float64, r.workers)
	eg, _ := errgroup.WithContext(ctx)
	for w := 0; w < r.workers; w++ {
		lo, hi := splitRange(n, r.workers, w)
		eg.Go(func() error {
			cb := r.set.Codebook()
			var sum float64
			for i := lo; i < hi; i++ {
				_, d := bestUnit(r.data.At(i), cb, m, dim)
				sum += float64(d)
			}
			partials[w] = sum
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return 0, err
	}

	var qe float64
	for _, p := range partials {
		qe += p
	}
	return qe / float64(n), nil
}
