// Package cluster groups landmarks into metaclusters by k-means over their
// codebook vectors, the standard downstream analysis step for landmark
// pipelines: hundreds of landmarks collapse into a handful of labeled
// regions, and an assignment table extends the labels to every dataset
// point.
package cluster

import (
	"context"
	"errors"
	"math"

	"github.com/scapelab/scape/assign"
	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/generator/kmeans"
	"github.com/scapelab/scape/internal/floats"
	"github.com/scapelab/scape/landmark"
)

// ErrTableMismatch is returned when an assignment table was built against a
// different landmark count than the labels.
var ErrTableMismatch = errors.New("cluster: assignment table does not match label count")

// Options configures metaclustering.
type Options struct {
	// Seed drives centroid initialization.
	Seed int64
	// MaxIter bounds the number of k-means iterations.
	MaxIter int
}

// DefaultOptions returns the default options for metaclustering.
var DefaultOptions = Options{
	Seed:    1,
	MaxIter: 100,
}

// Landmarks clusters the set's codebook into c metaclusters and returns one
// label in [0, c) per landmark. The set must be frozen. Deterministic for a
// fixed seed.
func Landmarks(ctx context.Context, set *landmark.Set, c int, optFns ...func(o *Options)) ([]int, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if set == nil || !set.Frozen() {
		return nil, landmark.ErrNotFrozen
	}

	// The codebook doubles as a dataset: k-means over landmarks is the
	// same computation as k-means over points.
	data, err := dataset.FromFlat(set.Codebook(), set.Dim())
	if err != nil {
		return nil, err
	}

	gen := kmeans.New(c, func(o *kmeans.Options) {
		o.Seed = opts.Seed
		o.MaxIter = opts.MaxIter
	})
	centers, err := gen.Generate(ctx, data)
	if err != nil {
		return nil, err
	}

	var (
		m   = set.Len()
		dim = set.Dim()
		cb  = centers.Codebook()
	)

	labels := make([]int, m)
	for i := 0; i < m; i++ {
		vec := set.Vector(i)
		best := 0
		minDist := float32(math.MaxFloat32)
		for j := 0; j < centers.Len(); j++ {
			if d := floats.SquaredL2(vec, cb[j*dim:(j+1)*dim]); d < minDist {
				minDist = d
				best = j
			}
		}
		labels[i] = best
	}

	return labels, nil
}

// Points extends per-landmark labels to every dataset point through an
// assignment table: a point inherits the label of its landmark.
func Points(labels []int, table *assign.Table) ([]int, error) {
	if table.Landmarks() != len(labels) {
		return nil, ErrTableMismatch
	}

	out := make([]int, table.Len())
	for i := range out {
		out[i] = labels[table.Of(i)]
	}
	return out, nil
}
