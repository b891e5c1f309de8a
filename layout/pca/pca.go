// Package pca computes the linear baseline layout: landmark coordinates are
// the top principal-component scores of the codebook. The nonlinear
// providers also use it to initialize their optimizations.
package pca

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/layout"
)

// Provider is the PCA layout provider.
type Provider struct{}

var _ layout.Provider = (*Provider)(nil)

// New creates a PCA layout provider.
func New() *Provider { return &Provider{} }

// Name implements layout.Provider.
func (p *Provider) Name() string { return "pca" }

// Layout implements layout.Provider.
func (p *Provider) Layout(ctx context.Context, set *landmark.Set, dims int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	coords, err := Coords(set, dims)
	if err != nil {
		return err
	}
	if err := layout.Validate(p.Name(), coords, set.Len(), dims); err != nil {
		return err
	}
	return set.SetCoords(coords, dims)
}

// Coords returns the raw principal-component scores of the codebook as a
// row-major m x dims block, without validation. When the codebook has fewer
// principal axes than dims, the trailing coordinates are zero.
func Coords(set *landmark.Set, dims int) ([]float64, error) {
	var (
		m   = set.Len()
		dim = set.Dim()
		cb  = set.Codebook()
	)

	x := mat.NewDense(m, dim, nil)
	mean := make([]float64, dim)
	for i := 0; i < m; i++ {
		for d := 0; d < dim; d++ {
			v := float64(cb[i*dim+d])
			x.Set(i, d, v)
			mean[d] += v
		}
	}
	for d := range mean {
		mean[d] /= float64(m)
	}
	for i := 0; i < m; i++ {
		for d := 0; d < dim; d++ {
			x.Set(i, d, x.At(i, d)-mean[d])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, &layout.Error{Provider: "pca", Landmark: -1, Reason: "svd did not converge"}
	}
	var v mat.Dense
	svd.VTo(&v)

	axes := dims
	if _, c := v.Dims(); c < axes {
		axes = c
	}

	// scores = centered codebook x top right singular vectors.
	components := mat.NewDense(dim, axes, nil)
	for d := 0; d < dim; d++ {
		for a := 0; a < axes; a++ {
			components.Set(d, a, v.At(d, a))
		}
	}
	var scores mat.Dense
	scores.Mul(x, components)

	coords := make([]float64, m*dims)
	for i := 0; i < m; i++ {
		for a := 0; a < axes; a++ {
			coords[i*dims+a] = scores.At(i, a)
		}
	}
	return coords, nil
}
