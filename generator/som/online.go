package som

import (
	"context"
	"math"

	"github.com/scapelab/scape/generator"
)

// onlineCutoff skips neighborhood updates too small to matter, which keeps
// the per-point loop near O(radius²) instead of O(m).
const onlineCutoff = 1e-6

// trainOnline runs sequential per-point updates in seeded shuffled order.
// Inherently single-threaded; meant for small datasets where batch epochs
// cannot amortize their assignment scan.
func (t *trainer) trainOnline(ctx context.Context) error {
	var (
		n   = t.data.Len()
		dim = t.data.Dim()
		m   = t.set.Len()
	)

	codebook := t.set.Codebook()

	for epoch := 0; epoch < t.opts.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		var (
			sigma = t.opts.radiusAt(epoch, t.topo)
			alpha = t.opts.rateAt(epoch)
			denom = 2 * sigma * sigma
			r2    = sigma * sigma
		)

		for _, i := range t.rng.Perm(n) {
			vec := t.data.At(i)
			b, _ := bmu(vec, codebook, m, dim)

			for j := 0; j < m; j++ {
				var h float64
				switch {
				case sigma == 0:
					if j == b {
						h = 1
					}
				case t.opts.Neighborhood == NeighborhoodBubble:
					if t.topo.SqDist(j, b) <= r2 {
						h = 1
					}
				default:
					h = math.Exp(-t.topo.SqDist(j, b) / denom)
				}

				step := float32(alpha * h)
				if step < onlineCutoff {
					continue
				}
				target := codebook[j*dim : (j+1)*dim]
				for d := range target {
					target[d] += step * (vec[d] - target[d])
				}
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
