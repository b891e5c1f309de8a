// Package layout assigns low-dimensional coordinates to landmarks. The
// grid-derived provider copies canonical topology coordinates; the
// subpackages run real embedding algorithms (PCA, t-SNE, UMAP, force) over
// the landmark codebook. All providers validate their output: a non-finite
// or collapsed layout fails loudly instead of leaking NaNs downstream.
package layout

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/scapelab/scape/landmark"
)

// DegenerateEps bounds how close all coordinates may sit to one point
// before a layout counts as collapsed.
const DegenerateEps = 1e-9

// ErrFailed is wrapped by every layout failure. Callers match it with
// errors.Is and inspect the concrete *Error for the provider and landmark.
var ErrFailed = errors.New("layout: failed")

// ErrNoTopology is returned by the grid-derived provider when the landmark
// set carries no coordinate-bearing topology.
var ErrNoTopology = errors.New("layout: set has no gridded topology")

// Error describes a failed layout: which provider, which landmark (or -1
// when the failure is global), and why.
type Error struct {
	Provider string
	Landmark int
	Reason   string
}

func (e *Error) Error() string {
	if e.Landmark < 0 {
		return fmt.Sprintf("layout: %s: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("layout: %s: landmark %d: %s", e.Provider, e.Landmark, e.Reason)
}

// Unwrap implements the errors.Is contract against ErrFailed.
func (e *Error) Unwrap() error { return ErrFailed }

// ErrTopologyDims indicates a grid-derived layout request whose
// dimensionality differs from the topology's.
type ErrTopologyDims struct {
	Topology  int
	Requested int
}

func (e *ErrTopologyDims) Error() string {
	return fmt.Sprintf("layout: topology is %dD, requested %dD", e.Topology, e.Requested)
}

// ErrInvalidOption indicates an out-of-range provider option, caught before
// any computation.
type ErrInvalidOption struct {
	Provider string
	Name     string
	Value    any
}

func (e *ErrInvalidOption) Error() string {
	return fmt.Sprintf("layout: %s: invalid option %s: %v", e.Provider, e.Name, e.Value)
}

// Provider computes landmark coordinates and stores them on the set.
type Provider interface {
	// Name identifies the provider in logs, errors and model metadata.
	Name() string

	// Layout assigns every landmark a dims-dimensional coordinate via
	// set.SetCoords. The set must be frozen. dims is 2 or 3.
	Layout(ctx context.Context, set *landmark.Set, dims int) error
}

// FromTopology is the grid-derived provider: canonical topology coordinates
// become the layout verbatim. Zero training epochs plus this provider give
// a pristine grid embedding.
var FromTopology Provider = topologyProvider{}

type topologyProvider struct{}

func (topologyProvider) Name() string { return "topology" }

func (topologyProvider) Layout(_ context.Context, set *landmark.Set, dims int) error {
	topo, ok := set.Topology().(landmark.Gridded)
	if !ok {
		return ErrNoTopology
	}
	if topo.CoordDim() != dims {
		return &ErrTopologyDims{Topology: topo.CoordDim(), Requested: dims}
	}

	coords := make([]float64, set.Len()*dims)
	for i := 0; i < set.Len(); i++ {
		copy(coords[i*dims:(i+1)*dims], topo.UnitCoord(i))
	}
	return set.SetCoords(coords, dims)
}

// Validate rejects coordinate blocks that would poison downstream
// projection: any NaN or Inf, or every landmark collapsed onto one point.
// provider names the algorithm for the error message.
func Validate(provider string, coords []float64, m, dims int) error {
	for i := 0; i < m; i++ {
		for d := 0; d < dims; d++ {
			v := coords[i*dims+d]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &Error{Provider: provider, Landmark: i, Reason: "non-finite coordinate"}
			}
		}
	}

	if m < 2 {
		return nil
	}
	for i := 1; i < m; i++ {
		for d := 0; d < dims; d++ {
			if math.Abs(coords[i*dims+d]-coords[d]) > DegenerateEps {
				return nil
			}
		}
	}
	return &Error{Provider: provider, Landmark: -1, Reason: "degenerate layout, all landmarks collapsed"}
}
