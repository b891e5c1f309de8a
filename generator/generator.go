// Package generator defines the contract shared by the landmark generation
// strategies: grid SOM, growing quantized tree, k-means, and sampling.
package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/landmark"
)

// Generator produces a landmark set from a dataset.
type Generator interface {
	// Name identifies the strategy in logs and model metadata.
	Name() string

	// Generate produces the landmark set, frozen and ready for layout.
	// Implementations are deterministic for a fixed seed and fixed worker
	// count, and honor ctx cancellation at epoch boundaries.
	Generate(ctx context.Context, data *dataset.Dataset) (*landmark.Set, error)
}

// Checkpoint receives a codebook snapshot at an epoch boundary. epoch counts
// completed epochs starting at 1. Returning a non-nil error aborts training
// with that error; the snapshot is a private copy the hook may retain.
type Checkpoint func(epoch int, snapshot *landmark.Set) error

// Stats describes a finished training run.
type Stats struct {
	// Epochs is the number of completed training epochs.
	Epochs int
	// QuantizationError is the mean squared distance from each point to its
	// best-matching landmark after the final epoch.
	QuantizationError float64
}

// StatsReporter is implemented by trainers that track training statistics.
// Callers type-assert after Generate.
type StatsReporter interface {
	Stats() Stats
}

// ErrEmptyDataset is returned when the dataset has no points.
var ErrEmptyDataset = errors.New("generator: empty dataset")

// ErrTargetExceedsDataset indicates a landmark count larger than the
// dataset.
type ErrTargetExceedsDataset struct {
	Target int
	Size   int
}

func (e *ErrTargetExceedsDataset) Error() string {
	return fmt.Sprintf("generator: target landmark count %d exceeds dataset size %d", e.Target, e.Size)
}

// ErrInvalidOption indicates an out-of-range option value, caught before
// training starts.
type ErrInvalidOption struct {
	Name  string
	Value any
}

func (e *ErrInvalidOption) Error() string {
	return fmt.Sprintf("generator: invalid option %s: %v", e.Name, e.Value)
}

// ValidateTarget checks a requested landmark count against the dataset.
// Every strategy runs this before touching any data.
func ValidateTarget(target int, data *dataset.Dataset) error {
	if data == nil || data.Len() == 0 {
		return ErrEmptyDataset
	}
	if target <= 0 {
		return &landmark.ErrInvalidCount{Count: target}
	}
	if target > data.Len() {
		return &ErrTargetExceedsDataset{Target: target, Size: data.Len()}
	}
	return nil
}
