package gqt

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/internal/floats"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/util"
)

// node is one unit of the insertion tree. Culled nodes stay as tombstones
// so parent references remain stable; only leaves are ever culled, which
// keeps every live node's ancestor chain live.
type node struct {
	vec      []float32
	parent   int
	children int
	alive    bool
}

type grower struct {
	data    *dataset.Dataset
	target  int
	opts    Options
	workers int

	nodes []node
	live  int
}

// growthAccum holds one worker's per-unit assignment partials: winner
// counts, accumulated quantization error, and the farthest assigned point.
type growthAccum struct {
	counts  []int
	qe      []float64
	farIdx  []int
	farDist []float32
}

func newGrowthAccum(m int) *growthAccum {
	a := &growthAccum{
		counts:  make([]int, m),
		qe:      make([]float64, m),
		farIdx:  make([]int, m),
		farDist: make([]float32, m),
	}
	for u := 0; u < m; u++ {
		a.farIdx[u] = -1
		a.farDist[u] = -1
	}
	return a
}

func (a *growthAccum) merge(b *growthAccum) {
	for u := range a.counts {
		a.counts[u] += b.counts[u]
		a.qe[u] += b.qe[u]
		if b.farDist[u] > a.farDist[u] ||
			(b.farDist[u] == a.farDist[u] && b.farIdx[u] >= 0 && b.farIdx[u] < a.farIdx[u]) {
			a.farDist[u] = b.farDist[u]
			a.farIdx[u] = b.farIdx[u]
		}
	}
}

func (g *grower) seedCodebook(seed int, rng *util.RNG) {
	dim := g.data.Dim()
	for _, row := range rng.SampleIndices(seed, g.data.Len()) {
		vec := make([]float32, dim)
		copy(vec, g.data.At(row))
		g.nodes = append(g.nodes, node{vec: vec, parent: -1, alive: true})
	}
	g.live = seed
}

// grow runs structural epochs until the tree reaches the target unit count,
// quantization is exact, or the epoch cap trips on pathological data. It
// returns the number of completed growth epochs.
func (g *grower) grow(ctx context.Context) (int, error) {
	epochs := 0
	limit := 4*g.target + 16

	for g.live < g.target && epochs < limit {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		live, cb := g.packed()
		st, err := g.assign(ctx, cb, len(live))
		if err != nil {
			return 0, err
		}

		worst := 0
		for u := range live {
			if st.qe[u] > st.qe[worst] {
				worst = u
			}
		}
		if st.qe[worst] == 0 {
			break
		}

		g.split(live[worst], st.farIdx[worst])
		g.cull(live, st.counts)

		epochs++
		if g.opts.Checkpoint != nil {
			snap, err := g.packSet()
			if err != nil {
				return 0, err
			}
			if err := g.opts.Checkpoint(epochs, snap); err != nil {
				return 0, err
			}
		}
	}

	return epochs, nil
}

// packed returns the live node ids in id order and their vectors as one
// contiguous codebook.
func (g *grower) packed() ([]int, []float32) {
	dim := g.data.Dim()
	live := make([]int, 0, g.live)
	cb := make([]float32, 0, g.live*dim)
	for id := range g.nodes {
		if !g.nodes[id].alive {
			continue
		}
		live = append(live, id)
		cb = append(cb, g.nodes[id].vec...)
	}
	return live, cb
}

// assign scans the dataset once, in parallel over disjoint row ranges, and
// merges worker partials in worker index order so reruns are bit-identical.
func (g *grower) assign(ctx context.Context, cb []float32, m int) (*growthAccum, error) {
	n := g.data.Len()

	accums := make([]*growthAccum, g.workers)
	for w := range accums {
		accums[w] = newGrowthAccum(m)
	}

	eg, _ := errgroup.WithContext(ctx)
	for w := 0; w < g.workers; w++ {
		acc := accums[w]
		lo, hi := splitRange(n, g.workers, w)
		eg.Go(func() error {
			dim := g.data.Dim()
			for i := lo; i < hi; i++ {
				vec := g.data.At(i)
				b, d := bestUnit(vec, cb, m, dim)
				acc.counts[b]++
				acc.qe[b] += float64(d)
				if d > acc.farDist[b] {
					acc.farDist[b] = d
					acc.farIdx[b] = i
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	total := accums[0]
	for w := 1; w < g.workers; w++ {
		total.merge(accums[w])
	}
	return total, nil
}

// split inserts a child of parentID positioned between the parent and its
// farthest assigned point.
func (g *grower) split(parentID, far int) {
	var (
		pv   = g.nodes[parentID].vec
		fv   = g.data.At(far)
		step = float32(g.opts.SplitStep)
	)

	child := make([]float32, len(pv))
	for d := range child {
		child[d] = pv[d] + step*(fv[d]-pv[d])
	}

	g.nodes = append(g.nodes, node{vec: child, parent: parentID, alive: true})
	g.nodes[parentID].children++
	g.live++
}

// cull removes leaves that won no points this epoch. At least two units
// always survive.
func (g *grower) cull(live []int, counts []int) {
	for u, id := range live {
		if counts[u] != 0 {
			continue
		}
		nd := &g.nodes[id]
		if nd.children != 0 {
			continue
		}
		if g.live <= 2 {
			return
		}
		nd.alive = false
		if nd.parent >= 0 {
			g.nodes[nd.parent].children--
		}
		g.live--
	}
}

// packSet compacts the live codebook into a fresh landmark set without a
// topology.
func (g *grower) packSet() (*landmark.Set, error) {
	dim := g.data.Dim()
	set, err := landmark.NewSet(g.live, dim)
	if err != nil {
		return nil, err
	}
	cb := set.Codebook()
	c := 0
	for id := range g.nodes {
		if !g.nodes[id].alive {
			continue
		}
		copy(cb[c*dim:(c+1)*dim], g.nodes[id].vec)
		c++
	}
	return set, nil
}

// compact produces the final set plus the insertion-tree adjacency over
// compacted indices. Surviving roots are chained so the topology stays
// connected.
func (g *grower) compact() (*landmark.Set, [][]int, error) {
	set, err := g.packSet()
	if err != nil {
		return nil, nil, err
	}

	compactOf := make([]int, len(g.nodes))
	c := 0
	for id := range g.nodes {
		if g.nodes[id].alive {
			compactOf[id] = c
			c++
		} else {
			compactOf[id] = -1
		}
	}

	adj := make([][]int, c)
	prevRoot := -1
	for id := range g.nodes {
		nd := &g.nodes[id]
		if !nd.alive {
			continue
		}
		ci := compactOf[id]
		switch {
		case nd.parent >= 0:
			pi := compactOf[nd.parent]
			adj[pi] = append(adj[pi], ci)
		case prevRoot >= 0:
			adj[prevRoot] = append(adj[prevRoot], ci)
			prevRoot = ci
		default:
			prevRoot = ci
		}
	}

	return set, adj, nil
}

// bestUnit returns the winning unit for vec and its squared distance.
// Strict less keeps the lowest unit index on ties.
func bestUnit(vec, cb []float32, m, dim int) (int, float32) {
	best := 0
	minDist := float32(math.MaxFloat32)
	for j := 0; j < m; j++ {
		if d := floats.SquaredL2(vec, cb[j*dim:(j+1)*dim]); d < minDist {
			minDist = d
			best = j
		}
	}
	return best, minDist
}

func splitRange(n, workers, w int) (int, int) {
	return w * n / workers, (w + 1) * n / workers
}
