// Package sample generates landmarks by uniform random sampling of dataset
// rows. The cheapest strategy: no training, no refinement, structure comes
// entirely from the layout provider. An optional k-nearest-neighbor graph
// over the sampled landmarks feeds graph-based layouts.
package sample

import (
	"context"

	"github.com/bits-and-blooms/bitset"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/generator"
	"github.com/scapelab/scape/internal/floats"
	"github.com/scapelab/scape/internal/queue"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/util"
)

// Options configures the sampler.
type Options struct {
	// Seed drives row selection.
	Seed int64
	// KNN, when > 0, attaches a graph topology connecting every landmark to
	// its KNN nearest fellow landmarks in feature space.
	KNN int
}

// DefaultOptions returns the default options for the sampler.
var DefaultOptions = Options{
	Seed: 1,
}

// Generator samples n landmarks.
type Generator struct {
	n    int
	opts Options
}

var _ generator.Generator = (*Generator)(nil)

// New creates a sampling generator for n landmarks.
func New(n int, optFns ...func(o *Options)) *Generator {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Generator{n: n, opts: opts}
}

// Name implements generator.Generator.
func (g *Generator) Name() string {
	if g.opts.KNN > 0 {
		return "sample-knn"
	}
	return "sample"
}

// Generate implements generator.Generator.
func (g *Generator) Generate(ctx context.Context, data *dataset.Dataset) (*landmark.Set, error) {
	if err := generator.ValidateTarget(g.n, data); err != nil {
		return nil, err
	}
	if g.opts.KNN < 0 || (g.opts.KNN > 0 && g.opts.KNN >= g.n) {
		return nil, &generator.ErrInvalidOption{Name: "KNN", Value: g.opts.KNN}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dim := data.Dim()
	set, err := landmark.NewSet(g.n, dim)
	if err != nil {
		return nil, err
	}

	rng := util.NewRNG(g.opts.Seed)
	for i, row := range pickRows(rng, g.n, data.Len()) {
		copy(set.Vector(i), data.At(row))
	}

	if g.opts.KNN > 0 {
		topo, err := knnGraph(ctx, set, g.opts.KNN)
		if err != nil {
			return nil, err
		}
		if err := set.AttachTopology(topo); err != nil {
			return nil, err
		}
	}

	set.Freeze()
	return set, nil
}

// pickRows selects n distinct row indices. Small samples out of huge
// datasets use seeded rejection sampling over a bitset instead of
// materializing a full permutation.
func pickRows(rng *util.RNG, n, total int) []int {
	if n*8 >= total {
		return rng.SampleIndices(n, total)
	}

	chosen := bitset.New(uint(total))
	rows := make([]int, 0, n)
	for len(rows) < n {
		r := rng.Intn(total)
		if chosen.Test(uint(r)) {
			continue
		}
		chosen.Set(uint(r))
		rows = append(rows, r)
	}
	return rows
}

// knnGraph connects every landmark to its k nearest fellow landmarks by
// squared Euclidean distance, nearest first, ties by landmark index.
func knnGraph(ctx context.Context, set *landmark.Set, k int) (*landmark.Graph, error) {
	m := set.Len()
	adj := make([][]int, m)
	pq := queue.NewMax(k)

	for u := 0; u < m; u++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pq.Reset()
		uv := set.Vector(u)
		for v := 0; v < m; v++ {
			if v == u {
				continue
			}
			item := queue.Item{Landmark: uint32(v), Dist: floats.SquaredL2(uv, set.Vector(v))}
			if pq.Len() < k {
				pq.Push(item)
				continue
			}
			if worst, _ := pq.Top(); item.Dist < worst.Dist || (item.Dist == worst.Dist && item.Landmark < worst.Landmark) {
				pq.Pop()
				pq.Push(item)
			}
		}

		nbrs := make([]int, pq.Len())
		for i := pq.Len() - 1; i >= 0; i-- {
			item, _ := pq.Pop()
			nbrs[i] = int(item.Landmark)
		}
		adj[u] = nbrs
	}

	return landmark.NewGraph(adj)
}
