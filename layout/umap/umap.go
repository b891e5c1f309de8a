// Package umap computes a UMAP layout of the landmark codebook: a fuzzy
// simplicial set over the landmark k-NN graph, optimized by stochastic
// gradient descent with negative sampling. Compared to t-SNE it preserves
// more global structure and runs fewer, cheaper iterations.
package umap

import (
	"context"
	"math"

	"github.com/scapelab/scape/internal/floats"
	"github.com/scapelab/scape/internal/queue"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/layout"
	"github.com/scapelab/scape/layout/pca"
	"github.com/scapelab/scape/util"
)

const (
	smoothIters    = 64
	smoothTol      = 1e-5
	minSigmaScale  = 1e-3
	gradClip       = 4.0
	repulsionFloor = 1e-3
	minAlpha       = 1e-4
	initJitter     = 1e-4
	initSpan       = 10.0
)

// Options configures the optimizer.
type Options struct {
	// Neighbors is the k of the landmark k-NN graph. Values above m-1 are
	// clamped to it.
	Neighbors int
	// MinDist is the tightest allowed packing in the layout.
	MinDist float64
	// Spread scales the layout around MinDist.
	Spread float64
	// Epochs is the number of optimization passes over the edge set.
	Epochs int
	// LearningRate scales each gradient step.
	LearningRate float64
	// NegativeSampleRate is the number of repulsive samples per attractive
	// edge visit.
	NegativeSampleRate int
	// Seed drives initialization jitter and negative sampling.
	Seed int64
}

// DefaultOptions returns the default options for the optimizer.
var DefaultOptions = Options{
	Neighbors:          15,
	MinDist:            0.1,
	Spread:             1.0,
	Epochs:             200,
	LearningRate:       1.0,
	NegativeSampleRate: 5,
}

// Provider is the UMAP layout provider.
type Provider struct {
	opts Options
}

var _ layout.Provider = (*Provider)(nil)

// New creates a UMAP layout provider.
func New(optFns ...func(o *Options)) *Provider {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{opts: opts}
}

// Name implements layout.Provider.
func (p *Provider) Name() string { return "umap" }

// edge is one undirected member of the fuzzy simplicial set.
type edge struct {
	a, b   int
	weight float64
}

// Layout implements layout.Provider.
func (p *Provider) Layout(ctx context.Context, set *landmark.Set, dims int) error {
	if p.opts.Neighbors < 1 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "Neighbors", Value: p.opts.Neighbors}
	}
	if p.opts.MinDist < 0 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "MinDist", Value: p.opts.MinDist}
	}
	if p.opts.Spread <= 0 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "Spread", Value: p.opts.Spread}
	}
	if p.opts.Epochs < 0 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "Epochs", Value: p.opts.Epochs}
	}
	if p.opts.LearningRate <= 0 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "LearningRate", Value: p.opts.LearningRate}
	}
	if p.opts.NegativeSampleRate < 0 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "NegativeSampleRate", Value: p.opts.NegativeSampleRate}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := set.Len()
	if m == 1 {
		return set.SetCoords(make([]float64, dims), dims)
	}

	k := p.opts.Neighbors
	if k > m-1 {
		k = m - 1
	}

	nbrs, dists := knnGraph(set, k)
	sigmas, rhos := smoothKNN(dists, float64(k))
	edges := fuzzyUnion(nbrs, dists, sigmas, rhos, m)
	a, b := fitCurve(p.opts.Spread, p.opts.MinDist)

	rng := util.NewRNG(p.opts.Seed)
	y, err := p.initialize(set, dims, rng)
	if err != nil {
		return err
	}

	if err := p.optimize(ctx, y, edges, m, dims, a, b, rng); err != nil {
		return err
	}

	if err := layout.Validate(p.Name(), y, m, dims); err != nil {
		return err
	}
	return set.SetCoords(y, dims)
}

// knnGraph builds the exact landmark k-NN graph, nearest first, ties broken
// by landmark index.
func knnGraph(set *landmark.Set, k int) ([][]int, [][]float64) {
	var (
		m     = set.Len()
		nbrs  = make([][]int, m)
		dists = make([][]float64, m)
		pq    = queue.NewMax(k)
	)

	for i := 0; i < m; i++ {
		pq.Reset()
		vi := set.Vector(i)
		for j := 0; j < m; j++ {
			if j == i {
				continue
			}
			item := queue.Item{Landmark: uint32(j), Dist: floats.SquaredL2(vi, set.Vector(j))}
			if pq.Len() < k {
				pq.Push(item)
				continue
			}
			if worst, ok := pq.Top(); ok && (item.Dist < worst.Dist ||
				(item.Dist == worst.Dist && item.Landmark < worst.Landmark)) {
				pq.Pop()
				pq.Push(item)
			}
		}

		nbrs[i] = make([]int, pq.Len())
		dists[i] = make([]float64, pq.Len())
		for n := pq.Len() - 1; n >= 0; n-- {
			it, _ := pq.Pop()
			nbrs[i][n] = int(it.Landmark)
			dists[i][n] = math.Sqrt(float64(it.Dist))
		}
	}

	return nbrs, dists
}

// smoothKNN calibrates a bandwidth sigma and connectivity distance rho per
// landmark so each row of memberships sums to log2(k).
func smoothKNN(dists [][]float64, k float64) (sigmas, rhos []float64) {
	n := len(dists)
	sigmas = make([]float64, n)
	rhos = make([]float64, n)
	target := math.Log2(k)

	for i := 0; i < n; i++ {
		row := dists[i]

		var meanDist float64
		for _, d := range row {
			meanDist += d
			if rhos[i] == 0 && d > 0 {
				rhos[i] = d
			}
		}
		if len(row) > 0 {
			meanDist /= float64(len(row))
		}

		lo, hi, mid := 0.0, math.Inf(1), 1.0
		for iter := 0; iter < smoothIters; iter++ {
			var psum float64
			for _, d := range row {
				if shifted := d - rhos[i]; shifted > 0 {
					psum += math.Exp(-shifted / mid)
				} else {
					psum++
				}
			}

			if math.Abs(psum-target) < smoothTol {
				break
			}
			if psum > target {
				hi = mid
			} else {
				lo = mid
			}
			if math.IsInf(hi, 1) {
				mid *= 2
			} else {
				mid = (lo + hi) / 2
			}
		}

		sigmas[i] = mid
		if floor := minSigmaScale * meanDist; sigmas[i] < floor {
			sigmas[i] = floor
		}
	}

	return sigmas, rhos
}

// fuzzyUnion converts directed memberships into one undirected edge list via
// the fuzzy set union a+b-ab. The edge order is deterministic.
func fuzzyUnion(nbrs [][]int, dists [][]float64, sigmas, rhos []float64, m int) []edge {
	weight := make(map[int]float64, m*len(nbrs[0]))
	for i := range nbrs {
		for n, j := range nbrs[i] {
			var v float64
			if shifted := dists[i][n] - rhos[i]; shifted <= 0 || sigmas[i] == 0 {
				v = 1
			} else {
				v = math.Exp(-shifted / sigmas[i])
			}
			weight[i*m+j] = v
		}
	}

	seen := make(map[int]bool, len(weight))
	edges := make([]edge, 0, len(weight))
	for i := range nbrs {
		for _, j := range nbrs[i] {
			lo, hi := i, j
			if lo > hi {
				lo, hi = hi, lo
			}
			key := lo*m + hi
			if seen[key] {
				continue
			}
			seen[key] = true

			v := weight[lo*m+hi]
			vt := weight[hi*m+lo]
			if u := v + vt - v*vt; u > 0 {
				edges = append(edges, edge{a: lo, b: hi, weight: u})
			}
		}
	}

	return edges
}

// fitCurve fits the low-dimensional membership curve 1/(1+a*d^(2b)) to the
// target falloff implied by spread and minDist, by plain grid search.
func fitCurve(spread, minDist float64) (float64, float64) {
	const points = 300

	xs := make([]float64, points)
	ys := make([]float64, points)
	for i := range xs {
		xs[i] = float64(i) / float64(points-1) * spread * 3
		if xs[i] < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(xs[i] - minDist) / spread)
		}
	}

	bestA, bestB := 1.0, 1.0
	bestErr := math.Inf(1)
	for a := 0.1; a <= 10.0; a += 0.1 {
		for b := 0.1; b <= 2.0; b += 0.05 {
			var sse float64
			for i := range xs {
				pred := 1 / (1 + a*math.Pow(xs[i], 2*b))
				diff := pred - ys[i]
				sse += diff * diff
			}
			if sse < bestErr {
				bestErr = sse
				bestA, bestB = a, b
			}
		}
	}
	return bestA, bestB
}

// initialize seeds the embedding with principal-component scores spread
// across a fixed span, plus jitter to break exact ties.
func (p *Provider) initialize(set *landmark.Set, dims int, rng *util.RNG) ([]float64, error) {
	m := set.Len()

	y, err := pca.Coords(set, dims)
	if err != nil {
		return nil, err
	}

	for d := 0; d < dims; d++ {
		lo, hi := y[d], y[d]
		for i := 1; i < m; i++ {
			v := y[i*dims+d]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if span := hi - lo; span > 0 {
			for i := 0; i < m; i++ {
				y[i*dims+d] = (y[i*dims+d]-lo)/span*initSpan - initSpan/2
			}
		}
	}

	for i := range y {
		y[i] += (rng.Float64() - 0.5) * initJitter
	}
	return y, nil
}

// optimize runs SGD over the edge set: attraction along edges sampled by
// weight, repulsion against random landmarks, gradients clipped per
// component.
func (p *Provider) optimize(ctx context.Context, y []float64, edges []edge, m, dims int, a, b float64, rng *util.RNG) error {
	if len(edges) == 0 {
		return nil
	}

	var maxW float64
	for _, e := range edges {
		if e.weight > maxW {
			maxW = e.weight
		}
	}
	if maxW == 0 {
		maxW = 1
	}

	perSample := make([]float64, len(edges))
	nextSample := make([]float64, len(edges))
	for i, e := range edges {
		perSample[i] = maxW / e.weight
		if perSample[i] < 1 {
			perSample[i] = 1
		}
		nextSample[i] = perSample[i]
	}

	epochs := p.opts.Epochs
	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		alpha := p.opts.LearningRate * (1 - float64(epoch)/float64(epochs))
		if alpha < minAlpha {
			alpha = minAlpha
		}

		for i, e := range edges {
			if nextSample[i] > float64(epoch) {
				continue
			}
			nextSample[i] += perSample[i]

			head := y[e.a*dims : (e.a+1)*dims]
			tail := y[e.b*dims : (e.b+1)*dims]

			d2 := sqDist(head, tail)
			if d2 > 0 {
				coeff := -2 * a * b * math.Pow(d2, b-1)
				coeff /= a*math.Pow(d2, b) + 1
				for d := range head {
					g := clip(coeff * (head[d] - tail[d]))
					head[d] += g * alpha
					tail[d] -= g * alpha
				}
			}

			for s := 0; s < p.opts.NegativeSampleRate; s++ {
				neg := rng.Intn(m)
				if neg == e.a {
					continue
				}
				other := y[neg*dims : (neg+1)*dims]

				d2 := sqDist(head, other)
				var coeff float64
				if d2 > repulsionFloor {
					coeff = 2 * b / ((repulsionFloor + d2) * (a*math.Pow(d2, b) + 1))
				}
				if coeff > 0 {
					for d := range head {
						head[d] += clip(coeff*(head[d]-other[d])) * alpha
					}
				}
			}
		}
	}

	return nil
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		diff := a[i] - b[i]
		s += diff * diff
	}
	return s
}

func clip(v float64) float64 {
	if v > gradClip {
		return gradClip
	}
	if v < -gradClip {
		return -gradClip
	}
	return v
}
