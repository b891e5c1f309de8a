package landmark

import (
	"fmt"
	"math"
)

// ErrBadEdge indicates an adjacency entry referencing a unit outside the
// graph.
type ErrBadEdge struct {
	From int
	To   int
}

func (e *ErrBadEdge) Error() string {
	return fmt.Sprintf("landmark: edge %d->%d references unknown unit", e.From, e.To)
}

// Graph is an explicit-adjacency topology. Tree-growing trainers and k-NN
// samplers produce it; topological distance is the hop count of the shortest
// path, squared, with +Inf between disconnected components.
type Graph struct {
	adj  [][]int
	dist []float64 // all-pairs squared hop distance, row-major
}

var _ Topology = (*Graph)(nil)

// NewGraph creates a graph topology from adjacency lists. Edges are treated
// as undirected for distance purposes; self-loops are ignored. All-pairs hop
// distances are precomputed, which is fine at landmark scale.
func NewGraph(adj [][]int) (*Graph, error) {
	n := len(adj)
	if n == 0 {
		return nil, &ErrInvalidCount{Count: 0}
	}
	for u, nbrs := range adj {
		for _, v := range nbrs {
			if v < 0 || v >= n {
				return nil, &ErrBadEdge{From: u, To: v}
			}
		}
	}

	g := &Graph{
		adj:  adj,
		dist: make([]float64, n*n),
	}

	// BFS from every unit. Undirected reachability needs both directions,
	// so build a symmetric view first.
	sym := make([][]int, n)
	for u, nbrs := range adj {
		for _, v := range nbrs {
			if v == u {
				continue
			}
			sym[u] = append(sym[u], v)
			sym[v] = append(sym[v], u)
		}
	}

	hops := make([]int, n)
	queue := make([]int, 0, n)
	for src := 0; src < n; src++ {
		for i := range hops {
			hops[i] = -1
		}
		hops[src] = 0
		queue = append(queue[:0], src)
		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]
			for _, v := range sym[u] {
				if hops[v] < 0 {
					hops[v] = hops[u] + 1
					queue = append(queue, v)
				}
			}
		}
		row := g.dist[src*n : (src+1)*n]
		for v, h := range hops {
			if h < 0 {
				row[v] = math.Inf(1)
			} else {
				row[v] = float64(h) * float64(h)
			}
		}
	}

	return g, nil
}

// Units returns the number of graph units.
func (g *Graph) Units() int { return len(g.adj) }

// Neighbors returns the adjacency list of unit i. Read-only.
func (g *Graph) Neighbors(i int) []int { return g.adj[i] }

// SqDist returns the squared hop distance between units i and j.
func (g *Graph) SqDist(i, j int) float64 {
	return g.dist[i*len(g.adj)+j]
}
