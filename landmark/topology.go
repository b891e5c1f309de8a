package landmark

import (
	"fmt"
	"math"
)

// Topology relates landmarks to each other. Trainers use SqDist to weight
// neighborhood updates; unit order is the landmark index order.
type Topology interface {
	// Units returns the number of units, equal to the landmark count.
	Units() int
	// SqDist returns the squared topological distance between units i and j.
	SqDist(i, j int) float64
}

// Gridded is implemented by topologies that carry canonical low-dimensional
// unit positions. The grid-derived layout provider reads these directly.
type Gridded interface {
	Topology
	// CoordDim returns the dimensionality of canonical positions (2 or 3).
	CoordDim() int
	// UnitCoord returns the canonical position of unit i.
	UnitCoord(i int) []float64
}

// ErrBadGrid indicates non-positive or inconsistent grid dimensions.
type ErrBadGrid struct {
	Rows  int
	Cols  int
	Depth int
}

func (e *ErrBadGrid) Error() string {
	return fmt.Sprintf("landmark: invalid grid %dx%dx%d", e.Rows, e.Cols, e.Depth)
}

// GridOptions configures a Grid topology.
type GridOptions struct {
	// Depth extends the grid into a third axis. 1 keeps it planar.
	Depth int
	// Hex shifts odd rows by half a unit and compresses row spacing, giving
	// every interior unit six equidistant neighbors. Planar grids only.
	Hex bool
}

// DefaultGridOptions returns the default options for a Grid topology.
var DefaultGridOptions = GridOptions{
	Depth: 1,
	Hex:   false,
}

// Grid is a fixed rectangular or hexagonal lattice. Unit index order is
// layer-major, then row-major: index = (layer*rows + row)*cols + col.
type Grid struct {
	rows, cols, depth int
	hex               bool
	coords            []float64
	cdim              int
}

var _ Gridded = (*Grid)(nil)

// NewGrid creates a grid topology with rows*cols*depth units.
func NewGrid(rows, cols int, optFns ...func(o *GridOptions)) (*Grid, error) {
	opts := DefaultGridOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if rows <= 0 || cols <= 0 || opts.Depth <= 0 {
		return nil, &ErrBadGrid{Rows: rows, Cols: cols, Depth: opts.Depth}
	}
	if opts.Hex && opts.Depth != 1 {
		return nil, &ErrBadGrid{Rows: rows, Cols: cols, Depth: opts.Depth}
	}

	g := &Grid{
		rows:  rows,
		cols:  cols,
		depth: opts.Depth,
		hex:   opts.Hex,
	}

	g.cdim = 2
	if g.depth > 1 {
		g.cdim = 3
	}

	g.coords = make([]float64, g.Units()*g.cdim)
	for u := 0; u < g.Units(); u++ {
		layer := u / (rows * cols)
		rem := u % (rows * cols)
		row := rem / cols
		col := rem % cols

		c := g.coords[u*g.cdim:]
		if g.hex {
			c[0] = float64(col) + 0.5*float64(row%2)
			c[1] = float64(row) * math.Sqrt(3) / 2
		} else {
			c[0] = float64(col)
			c[1] = float64(row)
		}
		if g.cdim == 3 {
			c[2] = float64(layer)
		}
	}

	return g, nil
}

// Rows returns the grid row count.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the grid column count.
func (g *Grid) Cols() int { return g.cols }

// Depth returns the grid depth, 1 for planar grids.
func (g *Grid) Depth() int { return g.depth }

// Hex reports whether the grid is hexagonal.
func (g *Grid) Hex() bool { return g.hex }

// Units returns the number of grid units.
func (g *Grid) Units() int { return g.rows * g.cols * g.depth }

// CoordDim returns the canonical coordinate dimensionality.
func (g *Grid) CoordDim() int { return g.cdim }

// UnitCoord returns the canonical position of unit i.
func (g *Grid) UnitCoord(i int) []float64 {
	return g.coords[i*g.cdim : (i+1)*g.cdim : (i+1)*g.cdim]
}

// SqDist returns the squared Euclidean distance between canonical positions,
// which also gives hexagonal lattices their proper six-neighborhoods.
func (g *Grid) SqDist(i, j int) float64 {
	a := g.UnitCoord(i)
	b := g.UnitCoord(j)
	var sum float64
	for d := range a {
		diff := a[d] - b[d]
		sum += diff * diff
	}
	return sum
}
