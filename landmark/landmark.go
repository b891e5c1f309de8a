// Package landmark defines the landmark set produced by generators and
// consumed by layout providers and the projector: a codebook of
// high-dimensional positions with a stable index, an optional topology, and,
// once assigned, low-dimensional coordinates.
package landmark

import (
	"errors"
	"fmt"
)

// ErrFrozen is returned when mutating a frozen set.
var ErrFrozen = errors.New("landmark: set is frozen")

// ErrNotFrozen is returned when an operation requires a frozen set.
var ErrNotFrozen = errors.New("landmark: set is not frozen")

// ErrNoCoords is returned when an operation requires assigned coordinates.
var ErrNoCoords = errors.New("landmark: set has no layout coordinates")

// ErrDimensionMismatch indicates a vector/codebook dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("landmark: dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrInvalidCount indicates a non-positive landmark count.
type ErrInvalidCount struct {
	Count int
}

func (e *ErrInvalidCount) Error() string {
	return fmt.Sprintf("landmark: invalid landmark count: %d", e.Count)
}

// ErrInvalidLayoutDim indicates an output dimensionality outside {2, 3}.
type ErrInvalidLayoutDim struct {
	Dim int
}

func (e *ErrInvalidLayoutDim) Error() string {
	return fmt.Sprintf("landmark: invalid layout dimension: %d (want 2 or 3)", e.Dim)
}

// Set is an ordered collection of landmarks. Generators mutate the codebook
// in place during training, then Freeze it; layout coordinates can only be
// assigned to a frozen set. Index order is stable across the whole pipeline.
type Set struct {
	codebook []float32
	m        int
	dim      int

	topo Topology

	coords []float64
	ldim   int

	frozen bool
}

// NewSet allocates a set of m zero landmarks of the given dimension.
func NewSet(m, dim int) (*Set, error) {
	if m <= 0 {
		return nil, &ErrInvalidCount{Count: m}
	}
	if dim <= 0 {
		return nil, &ErrDimensionMismatch{Expected: 1, Actual: dim}
	}

	return &Set{
		codebook: make([]float32, m*dim),
		m:        m,
		dim:      dim,
	}, nil
}

// FromCodebook wraps an existing row-major codebook without copying.
func FromCodebook(codebook []float32, dim int) (*Set, error) {
	if dim <= 0 {
		return nil, &ErrDimensionMismatch{Expected: 1, Actual: dim}
	}
	if len(codebook) == 0 || len(codebook)%dim != 0 {
		return nil, &ErrInvalidCount{Count: len(codebook) / max(dim, 1)}
	}

	return &Set{
		codebook: codebook,
		m:        len(codebook) / dim,
		dim:      dim,
	}, nil
}

// Len returns the number of landmarks.
func (s *Set) Len() int { return s.m }

// Dim returns the feature dimension.
func (s *Set) Dim() int { return s.dim }

// Vector returns a view of landmark i's high-dimensional position. Before
// Freeze the view may be written by the owning trainer; afterwards it is
// read-only.
func (s *Set) Vector(i int) []float32 {
	return s.codebook[i*s.dim : (i+1)*s.dim : (i+1)*s.dim]
}

// Codebook returns the backing row-major codebook.
func (s *Set) Codebook() []float32 { return s.codebook }

// SetVector copies v into landmark i. Fails on a frozen set.
func (s *Set) SetVector(i int, v []float32) error {
	if s.frozen {
		return ErrFrozen
	}
	if len(v) != s.dim {
		return &ErrDimensionMismatch{Expected: s.dim, Actual: len(v)}
	}
	copy(s.Vector(i), v)
	return nil
}

// AttachTopology associates a topology with the set. The unit count must
// match the landmark count.
func (s *Set) AttachTopology(t Topology) error {
	if s.frozen {
		return ErrFrozen
	}
	if t != nil && t.Units() != s.m {
		return &ErrInvalidCount{Count: t.Units()}
	}
	s.topo = t
	return nil
}

// Topology returns the associated topology, or nil.
func (s *Set) Topology() Topology { return s.topo }

// Freeze marks the high-dimensional positions final. Idempotent.
func (s *Set) Freeze() { s.frozen = true }

// Frozen reports whether the set has been frozen.
func (s *Set) Frozen() bool { return s.frozen }

// SetCoords assigns low-dimensional coordinates, row-major with ldim values
// per landmark. The set must be frozen first so the coordinates cannot drift
// from the positions they were computed for.
func (s *Set) SetCoords(coords []float64, ldim int) error {
	if !s.frozen {
		return ErrNotFrozen
	}
	if ldim != 2 && ldim != 3 {
		return &ErrInvalidLayoutDim{Dim: ldim}
	}
	if len(coords) != s.m*ldim {
		return &ErrInvalidCount{Count: len(coords) / ldim}
	}
	s.coords = coords
	s.ldim = ldim
	return nil
}

// HasCoords reports whether layout coordinates have been assigned.
func (s *Set) HasCoords() bool { return s.coords != nil }

// LayoutDim returns the assigned coordinate dimensionality, 0 before layout.
func (s *Set) LayoutDim() int { return s.ldim }

// Coord returns a read-only view of landmark i's low-dimensional coordinate.
func (s *Set) Coord(i int) []float64 {
	return s.coords[i*s.ldim : (i+1)*s.ldim : (i+1)*s.ldim]
}

// Coords returns the backing row-major coordinate block, nil before layout.
func (s *Set) Coords() []float64 { return s.coords }

// Clone returns a deep copy of the set, preserving topology reference,
// coordinates, and frozen state. Training checkpoints hand clones out so the
// live codebook stays private to the trainer.
func (s *Set) Clone() *Set {
	c := &Set{
		codebook: append([]float32(nil), s.codebook...),
		m:        s.m,
		dim:      s.dim,
		topo:     s.topo,
		ldim:     s.ldim,
		frozen:   s.frozen,
	}
	if s.coords != nil {
		c.coords = append([]float64(nil), s.coords...)
	}
	return c
}
