package som

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/util"
)

// pcaSubsample caps the rows fed into the initialization SVD.
const pcaSubsample = 1024

func initCodebook(set *landmark.Set, grid *landmark.Grid, data *dataset.Dataset, kind Init, rng *util.RNG) error {
	switch kind {
	case InitPCA:
		return initPCA(set, grid, data, rng)
	default:
		for i, row := range rng.SampleIndices(set.Len(), data.Len()) {
			copy(set.Vector(i), data.At(row))
		}
		return nil
	}
}

// initPCA spreads the grid across the data's principal plane: each unit
// starts at the subsample mean plus its normalized grid position scaled
// along the top principal axes. The SVD runs on a seeded subsample, so
// initialization stays deterministic and cheap on large datasets.
func initPCA(set *landmark.Set, grid *landmark.Grid, data *dataset.Dataset, rng *util.RNG) error {
	var (
		n    = data.Len()
		dim  = data.Dim()
		axes = grid.CoordDim()
	)

	s := n
	if s > pcaSubsample {
		s = pcaSubsample
	}
	rows := rng.SampleIndices(s, n)

	// Column-centered subsample matrix.
	mean := make([]float64, dim)
	x := mat.NewDense(s, dim, nil)
	for r, i := range rows {
		p := data.At(i)
		for c := 0; c < dim; c++ {
			v := float64(p[c])
			x.Set(r, c, v)
			mean[c] += v
		}
	}
	for c := range mean {
		mean[c] /= float64(s)
	}
	for r := 0; r < s; r++ {
		for c := 0; c < dim; c++ {
			x.Set(r, c, x.At(r, c)-mean[c])
		}
	}

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return fmt.Errorf("som: initialization SVD did not converge")
	}
	var v mat.Dense
	svd.VTo(&v)
	values := svd.Values(nil)

	if len(values) < axes {
		axes = len(values)
	}

	// Scale each axis by the component standard deviation.
	denom := math.Sqrt(math.Max(1, float64(s-1)))
	scale := make([]float64, axes)
	for a := 0; a < axes; a++ {
		scale[a] = values[a] / denom
	}

	// Normalize canonical grid positions to [-1, 1] per axis.
	lo := make([]float64, axes)
	hi := make([]float64, axes)
	for a := 0; a < axes; a++ {
		lo[a] = grid.UnitCoord(0)[a]
		hi[a] = lo[a]
	}
	for u := 1; u < grid.Units(); u++ {
		c := grid.UnitCoord(u)
		for a := 0; a < axes; a++ {
			if c[a] < lo[a] {
				lo[a] = c[a]
			}
			if c[a] > hi[a] {
				hi[a] = c[a]
			}
		}
	}

	for u := 0; u < set.Len(); u++ {
		c := grid.UnitCoord(u)
		target := set.Vector(u)
		for d := 0; d < dim; d++ {
			target[d] = float32(mean[d])
		}
		for a := 0; a < axes; a++ {
			span := hi[a] - lo[a]
			if span == 0 {
				continue
			}
			pos := 2*(c[a]-lo[a])/span - 1
			for d := 0; d < dim; d++ {
				target[d] += float32(pos * scale[a] * v.At(d, a))
			}
		}
	}

	return nil
}
