package scape

import (
	"errors"
	"fmt"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/generator"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/layout"
	"github.com/scapelab/scape/project"
)

var (
	// ErrInvalidConfiguration is wrapped by every parameter error detected
	// before work starts: bad grid shapes, landmark targets exceeding the
	// dataset, out-of-range hyperparameters, dimension mismatches. The
	// typed detail (e.g. *generator.ErrTargetExceedsDataset) stays
	// reachable via errors.As.
	ErrInvalidConfiguration = errors.New("scape: invalid configuration")

	// ErrLayoutFailure is wrapped by every layout provider failure. The
	// landmark set's high-dimensional state is untouched when it fires.
	ErrLayoutFailure = errors.New("scape: layout failure")

	// ErrNoModel is returned by projection on an engine that has not been
	// fitted and holds no restored model.
	ErrNoModel = errors.New("scape: no fitted model")
)

// translateError maps package-level errors onto the facade's sentinels so
// callers can branch on errors.Is(err, scape.ErrInvalidConfiguration)
// without importing every subpackage. The original error stays wrapped.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Configuration errors, all detected before any work.
	var (
		target  *generator.ErrTargetExceedsDataset
		genOpt  *generator.ErrInvalidOption
		count   *landmark.ErrInvalidCount
		dim     *landmark.ErrDimensionMismatch
		ldim    *landmark.ErrInvalidLayoutDim
		shape   *dataset.ErrBadShape
		badK    *project.ErrInvalidK
		projOpt *project.ErrInvalidOption
		layOpt  *layout.ErrInvalidOption
		topoDim *layout.ErrTopologyDims
	)
	switch {
	case errors.As(err, &target),
		errors.As(err, &genOpt),
		errors.As(err, &count),
		errors.As(err, &dim),
		errors.As(err, &ldim),
		errors.As(err, &shape),
		errors.As(err, &badK),
		errors.As(err, &projOpt),
		errors.As(err, &layOpt),
		errors.As(err, &topoDim):
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	case errors.Is(err, generator.ErrEmptyDataset),
		errors.Is(err, project.ErrEmptyDataset),
		errors.Is(err, layout.ErrNoTopology):
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	case errors.Is(err, layout.ErrFailed):
		return fmt.Errorf("%w: %w", ErrLayoutFailure, err)
	}

	return err
}
