// Package assign builds landmark membership tables: every dataset point is
// assigned to its best-matching landmark, and each landmark's members are
// kept as a roaring bitmap over point indices. Tables feed metaclustering
// and give callers the per-landmark population counts that density
// diagnostics are built from.
package assign

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/internal/floats"
	"github.com/scapelab/scape/landmark"
)

// ErrEmptyDataset is returned when the dataset has no points.
var ErrEmptyDataset = errors.New("assign: empty dataset")

// ErrInvalidOption indicates an out-of-range option value.
type ErrInvalidOption struct {
	Name  string
	Value any
}

func (e *ErrInvalidOption) Error() string {
	return fmt.Sprintf("assign: invalid option %s: %v", e.Name, e.Value)
}

// Options configures table construction.
type Options struct {
	// Workers bounds assignment parallelism. 0 selects GOMAXPROCS.
	Workers int
}

// DefaultOptions returns the default options for table construction.
var DefaultOptions = Options{}

// Table maps points to landmarks and back. Immutable once built.
type Table struct {
	of      []uint32
	members []*roaring.Bitmap
}

// Build assigns every point of data to its nearest landmark in set. The set
// must be frozen; layout coordinates are not required. Ties prefer the
// smaller landmark index, so the table is deterministic for any worker
// count.
func Build(ctx context.Context, data *dataset.Dataset, set *landmark.Set, optFns ...func(o *Options)) (*Table, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if data == nil || data.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	if set == nil || !set.Frozen() {
		return nil, landmark.ErrNotFrozen
	}
	if data.Dim() != set.Dim() {
		return nil, &landmark.ErrDimensionMismatch{Expected: set.Dim(), Actual: data.Dim()}
	}
	if opts.Workers < 0 {
		return nil, &ErrInvalidOption{Name: "Workers", Value: opts.Workers}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		n   = data.Len()
		m   = set.Len()
		dim = set.Dim()
	)

	of := make([]uint32, n)

	workers := opts.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * n / workers
		hi := (w + 1) * n / workers
		g.Go(func() error {
			codebook := set.Codebook()
			for i := lo; i < hi; i++ {
				if i%4096 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				best := 0
				minDist := float32(math.MaxFloat32)
				vec := data.At(i)
				for j := 0; j < m; j++ {
					if d := floats.SquaredL2(vec, codebook[j*dim:(j+1)*dim]); d < minDist {
						minDist = d
						best = j
					}
				}
				of[i] = uint32(best)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	members := make([]*roaring.Bitmap, m)
	for j := range members {
		members[j] = roaring.New()
	}
	for i, j := range of {
		members[j].Add(uint32(i))
	}

	return &Table{of: of, members: members}, nil
}

// Len returns the number of assigned points.
func (t *Table) Len() int { return len(t.of) }

// Landmarks returns the number of landmarks the table was built against.
func (t *Table) Landmarks() int { return len(t.members) }

// Of returns the landmark index point i is assigned to.
func (t *Table) Of(i int) int { return int(t.of[i]) }

// Members returns the bitmap of point indices assigned to landmark j.
// The bitmap is shared; callers that mutate it must Clone first.
func (t *Table) Members(j int) *roaring.Bitmap { return t.members[j] }

// Counts returns the per-landmark member counts, indexed by landmark.
func (t *Table) Counts() []uint64 {
	counts := make([]uint64, len(t.members))
	for j, bm := range t.members {
		counts[j] = bm.GetCardinality()
	}
	return counts
}

// Union returns the combined membership of the given landmarks as a fresh
// bitmap the caller owns.
func (t *Table) Union(landmarks ...int) *roaring.Bitmap {
	out := roaring.New()
	for _, j := range landmarks {
		out.Or(t.members[j])
	}
	return out
}
