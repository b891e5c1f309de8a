// Package force computes a Fruchterman-Reingold style force layout:
// attraction along graph edges, repulsion between all landmark pairs, and a
// linearly cooling displacement cap. It is the cheapest nonlinear provider
// and pairs naturally with Graph topologies from the tree and k-NN
// generators.
package force

import (
	"context"
	"math"

	"github.com/scapelab/scape/internal/floats"
	"github.com/scapelab/scape/internal/queue"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/layout"
	"github.com/scapelab/scape/util"
)

const minSeparation = 1e-9

// Options configures the simulation.
type Options struct {
	// Iterations is the number of force steps.
	Iterations int
	// Neighbors is the k of the fallback k-NN edge set, used when the
	// landmark set carries no graph topology.
	Neighbors int
	// Size is the side length of the layout region.
	Size float64
	// Seed drives the initial placement.
	Seed int64
}

// DefaultOptions returns the default options for the simulation.
var DefaultOptions = Options{
	Iterations: 100,
	Neighbors:  6,
	Size:       10,
}

// Provider is the force layout provider.
type Provider struct {
	opts Options
}

var _ layout.Provider = (*Provider)(nil)

// New creates a force layout provider.
func New(optFns ...func(o *Options)) *Provider {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{opts: opts}
}

// Name implements layout.Provider.
func (p *Provider) Name() string { return "force" }

// Layout implements layout.Provider.
func (p *Provider) Layout(ctx context.Context, set *landmark.Set, dims int) error {
	if p.opts.Iterations < 0 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "Iterations", Value: p.opts.Iterations}
	}
	if p.opts.Neighbors < 1 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "Neighbors", Value: p.opts.Neighbors}
	}
	if p.opts.Size <= 0 {
		return &layout.ErrInvalidOption{Provider: p.Name(), Name: "Size", Value: p.opts.Size}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := set.Len()
	if m == 1 {
		return set.SetCoords(make([]float64, dims), dims)
	}

	edges := p.edges(set)

	rng := util.NewRNG(p.opts.Seed)
	y := make([]float64, m*dims)
	for i := range y {
		y[i] = (rng.Float64() - 0.5) * p.opts.Size
	}

	var (
		ideal = p.opts.Size / math.Sqrt(float64(m))
		disp  = make([]float64, m*dims)
		diff  = make([]float64, dims)
	)

	for iter := 0; iter < p.opts.Iterations; iter++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		for i := range disp {
			disp[i] = 0
		}

		// Repulsion between every pair.
		for i := 0; i < m; i++ {
			for j := i + 1; j < m; j++ {
				d := separation(diff, y, i, j, dims)
				f := ideal * ideal / d
				for k := 0; k < dims; k++ {
					push := diff[k] / d * f
					disp[i*dims+k] += push
					disp[j*dims+k] -= push
				}
			}
		}

		// Attraction along edges.
		for _, e := range edges {
			d := separation(diff, y, e[0], e[1], dims)
			f := d * d / ideal
			for k := 0; k < dims; k++ {
				pull := diff[k] / d * f
				disp[e[0]*dims+k] -= pull
				disp[e[1]*dims+k] += pull
			}
		}

		// Cap displacement by the cooling temperature.
		temp := p.opts.Size / 10 * (1 - float64(iter)/float64(p.opts.Iterations))
		for i := 0; i < m; i++ {
			var norm float64
			for k := 0; k < dims; k++ {
				v := disp[i*dims+k]
				norm += v * v
			}
			norm = math.Sqrt(norm)
			if norm < minSeparation {
				continue
			}
			scale := 1.0
			if norm > temp {
				scale = temp / norm
			}
			for k := 0; k < dims; k++ {
				y[i*dims+k] += disp[i*dims+k] * scale
			}
		}
	}

	center(y, m, dims)

	if err := layout.Validate(p.Name(), y, m, dims); err != nil {
		return err
	}
	return set.SetCoords(y, dims)
}

// edges returns the undirected edge set: the graph topology's adjacency
// when present, otherwise a codebook k-NN graph.
func (p *Provider) edges(set *landmark.Set) [][2]int {
	m := set.Len()

	if graph, ok := set.Topology().(*landmark.Graph); ok {
		var edges [][2]int
		for i := 0; i < m; i++ {
			for _, j := range graph.Neighbors(i) {
				if j > i {
					edges = append(edges, [2]int{i, j})
				} else if j < i {
					edges = append(edges, [2]int{j, i})
				}
			}
		}
		return dedupe(edges)
	}

	k := p.opts.Neighbors
	if k > m-1 {
		k = m - 1
	}

	var (
		edges = make([][2]int, 0, m*k)
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
		for _, it := range pq.Items() {
			j := int(it.Landmark)
			if j > i {
				edges = append(edges, [2]int{i, j})
			} else {
				edges = append(edges, [2]int{j, i})
			}
		}
	}
	return dedupe(edges)
}

// separation writes y[i]-y[j] into diff and returns its norm, floored away
// from zero so coincident points repel instead of dividing by zero.
func separation(diff, y []float64, i, j, dims int) float64 {
	var norm float64
	for k := 0; k < dims; k++ {
		diff[k] = y[i*dims+k] - y[j*dims+k]
		norm += diff[k] * diff[k]
	}
	norm = math.Sqrt(norm)
	if norm < minSeparation {
		norm = minSeparation
	}
	return norm
}

func dedupe(edges [][2]int) [][2]int {
	seen := make(map[[2]int]bool, len(edges))
	out := edges[:0]
	for _, e := range edges {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
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
