// Package tsne computes an exact t-SNE layout of the landmark codebook.
// Landmark counts are small, so the quadratic pairwise formulation is used
// as-is with no Barnes-Hut approximation.
package tsne

import (
	"context"
	"math"

	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/layout"
	"github.com/scapelab/scape/layout/pca"
	"github.com/scapelab/scape/util"
)

const (
	// earlyPhase is the iteration at which exaggeration stops and momentum
	// switches from its initial to its final value.
	earlyPhase = 250

	initialMomentum = 0.5
	finalMomentum   = 0.8
	minGain         = 0.01
	minProb         = 1e-12
	initScale       = 1e-4
)

// Options configures the optimizer.
type Options struct {
	// Perplexity balances local against global structure. Values above
	// (m-1)/3 are clamped to it.
	Perplexity float64
	// Iterations is the number of gradient steps.
	Iterations int
	// LearningRate scales each gradient step.
	LearningRate float64
	// Exaggeration multiplies the input affinities during the early phase,
	// which lets clusters separate before fine structure forms.
	Exaggeration float64
	// Seed drives the fallback initialization jitter.
	Seed int64
}

// DefaultOptions returns the default options for the optimizer.
var DefaultOptions = Options{
	Perplexity:   30,
	Iterations:   1000,
	LearningRate: 200,
	Exaggeration: 12,
}

// Provider is the t-SNE layout provider.
type Provider struct {
	opts Options
}

var _ layout.Provider = (*Provider)(nil)

// New creates a t-SNE layout provider.
func New(optFns ...func(o *Options)) *Provider {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{opts: opts}
}

// Name implements layout.Provider.
func (p *Provider) Name() string { return "tsne" }

// Layout implements layout.Provider.
func (p *Provider) Layout(ctx context.Context, set *landmark.Set, dims int) error {
	if p.opts.Perplexity <= 0 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "Perplexity", Value: p.opts.Perplexity}
	}
	if p.opts.Iterations < 0 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "Iterations", Value: p.opts.Iterations}
	}
	if p.opts.LearningRate <= 0 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "LearningRate", Value: p.opts.LearningRate}
	}
	if p.opts.Exaggeration < 1 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "Exaggeration", Value: p.opts.Exaggeration}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := set.Len()
	if m == 1 {
		return set.SetCoords(make([]float64, dims), dims)
	}

	perp := p.opts.Perplexity
	if limit := float64(m-1) / 3; perp > limit {
		perp = limit
	}
	if perp < 1 {
		perp = 1
	}

	pm := affinities(set, perp)
	y, err := p.initialize(set, dims)
	if err != nil {
		return err
	}

	var (
		grad  = make([]float64, m*dims)
		step  = make([]float64, m*dims)
		gains = make([]float64, m*dims)
		num   = make([]float64, m*m)
	)
	for i := range gains {
		gains[i] = 1
	}

	for iter := 0; iter < p.opts.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		exaggeration := 1.0
		momentum := finalMomentum
		if iter < earlyPhase {
			exaggeration = p.opts.Exaggeration
			momentum = initialMomentum
		}

		gradient(grad, num, y, pm, m, dims, exaggeration)

		for i := range y {
			if (grad[i] > 0) == (step[i] > 0) {
				gains[i] *= 0.8
			} else {
				gains[i] += 0.2
			}
			if gains[i] < minGain {
				gains[i] = minGain
			}
			step[i] = momentum*step[i] - p.opts.LearningRate*gains[i]*grad[i]
			y[i] += step[i]
		}

		center(y, m, dims)
	}

	if err := layout.Validate(p.Name(), y, m, dims); err != nil {
		return err
	}
	return set.SetCoords(y, dims)
}

// initialize seeds the embedding with rescaled principal-component scores,
// falling back to random jitter when the codebook has no variance.
func (p *Provider) initialize(set *landmark.Set, dims int) ([]float64, error) {
	m := set.Len()

	y, err := pca.Coords(set, dims)
	if err != nil {
		return nil, err
	}

	// Rescale so the first axis has tiny standard deviation, per the usual
	// PCA initialization for t-SNE.
	var sum, sqsum float64
	for i := 0; i < m; i++ {
		v := y[i*dims]
		sum += v
		sqsum += v * v
	}
	meanV := sum / float64(m)
	std := math.Sqrt(sqsum/float64(m) - meanV*meanV)

	if std > 0 {
		scale := initScale / std
		for i := range y {
			y[i] *= scale
		}
		return y, nil
	}

	rng := util.NewRNG(p.opts.Seed)
	for i := range y {
		y[i] = rng.NormFloat64() * initScale
	}
	return y, nil
}

// affinities builds the symmetrized input probability matrix. Each row's
// bandwidth comes from a binary search matching the target perplexity.
func affinities(set *landmark.Set, perplexity float64) []float64 {
	var (
		m      = set.Len()
		dim    = set.Dim()
		cb     = set.Codebook()
		d2     = make([]float64, m*m)
		pm     = make([]float64, m*m)
		target = math.Log(perplexity)
	)

	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			var s float64
			for d := 0; d < dim; d++ {
				diff := float64(cb[i*dim+d] - cb[j*dim+d])
				s += diff * diff
			}
			d2[i*m+j] = s
			d2[j*m+i] = s
		}
	}

	row := make([]float64, m)
	for i := 0; i < m; i++ {
		beta := 1.0
		betaMin := math.Inf(-1)
		betaMax := math.Inf(1)

		for iter := 0; iter < 50; iter++ {
			var sum float64
			for j := 0; j < m; j++ {
				if j == i {
					row[j] = 0
					continue
				}
				row[j] = math.Exp(-d2[i*m+j] * beta)
				sum += row[j]
			}

			var entropy float64
			if sum > 0 {
				for j := 0; j < m; j++ {
					if row[j] > 0 {
						pj := row[j] / sum
						entropy -= pj * math.Log(pj)
					}
				}
			}

			diff := entropy - target
			if math.Abs(diff) < 1e-5 {
				break
			}
			if diff > 0 {
				betaMin = beta
				if math.IsInf(betaMax, 1) {
					beta *= 2
				} else {
					beta = (beta + betaMax) / 2
				}
			} else {
				betaMax = beta
				if math.IsInf(betaMin, -1) {
					beta /= 2
				} else {
					beta = (beta + betaMin) / 2
				}
			}
		}

		var sum float64
		for j := 0; j < m; j++ {
			sum += row[j]
		}
		if sum == 0 {
			// All distances identical and huge, or a single landmark pair.
			// Fall back to uniform affinity.
			for j := 0; j < m; j++ {
				if j != i {
					pm[i*m+j] = 1 / float64(m-1)
				}
			}
			continue
		}
		for j := 0; j < m; j++ {
			pm[i*m+j] = row[j] / sum
		}
	}

	// Symmetrize and floor.
	for i := 0; i < m; i++ {
		for j := i + 1; j < m; j++ {
			v := (pm[i*m+j] + pm[j*m+i]) / (2 * float64(m))
			if v < minProb {
				v = minProb
			}
			pm[i*m+j] = v
			pm[j*m+i] = v
		}
		pm[i*m+i] = 0
	}
	return pm
}

// gradient writes the exact KL gradient into grad.
func gradient(grad, num, y, pm []float64, m, dims int, exaggeration float64) {
	var z float64
	for i := 0; i < m; i++ {
		num[i*m+i] = 0
		for j := i + 1; j < m; j++ {
			var s float64
			for d := 0; d < dims; d++ {
				diff := y[i*dims+d] - y[j*dims+d]
				s += diff * diff
			}
			q := 1 / (1 + s)
			num[i*m+j] = q
			num[j*m+i] = q
			z += 2 * q
		}
	}
	if z == 0 {
		z = 1
	}

	for i := range grad {
		grad[i] = 0
	}
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			if i == j {
				continue
			}
			q := num[i*m+j]
			coeff := 4 * (exaggeration*pm[i*m+j] - q/z) * q
			for d := 0; d < dims; d++ {
				grad[i*dims+d] += coeff * (y[i*dims+d] - y[j*dims+d])
			}
		}
	}
}

func center(y []float64, m, dims int) {
	for d := 0; d < dims; d++ {
		var mean float64
		for i := 0; i < m; i++ {
			mean += y[i*dims+d]
		}
		mean /= float64(m)
		for i := 0; i < m; i++ {
			y[i*dims+d] -= mean
		}
	}
}
