package scape

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/project"
)

// Project creates a fluent projection builder for the dataset, evaluated
// against the engine's current model.
//
// Example:
//
//	result, err := s.Project(data).
//	    K(5).
//	    Gaussian().
//	    Execute(ctx)
//
//	// Or with streaming:
//	for point, err := range s.Project(data).K(5).Stream(ctx) {
//	    if err != nil { break }
//	    plot(point.Coords)
//	}
func (s *Scape) Project(data *dataset.Dataset) *ProjectionBuilder {
	return &ProjectionBuilder{
		s:    s,
		data: data,
		k:    project.DefaultOptions.K,
	}
}

// Point is one embedded dataset row, yielded by Stream.
type Point struct {
	// Index is the dataset row index.
	Index int
	// Coords is the embedded position, LayoutDim values.
	Coords []float64
}

// ProjectionBuilder is a fluent builder for projection queries.
type ProjectionBuilder struct {
	s    *Scape
	data *dataset.Dataset

	k           int
	kernel      project.Kernel
	bandwidth   float64
	diagnostics bool
}

// K sets the number of nearest landmarks blended per point.
func (pb *ProjectionBuilder) K(k int) *ProjectionBuilder {
	pb.k = k
	return pb
}

// Inverse selects the inverse squared-distance weight kernel (the default).
func (pb *ProjectionBuilder) Inverse() *ProjectionBuilder {
	pb.kernel = project.KernelInverse
	return pb
}

// Gaussian selects the Gaussian weight kernel.
func (pb *ProjectionBuilder) Gaussian() *ProjectionBuilder {
	pb.kernel = project.KernelGaussian
	return pb
}

// Bandwidth sets the Gaussian kernel bandwidth. 0 selects a data-driven
// default.
func (pb *ProjectionBuilder) Bandwidth(h float64) *ProjectionBuilder {
	pb.bandwidth = h
	return pb
}

// Diagnostics retains per-point neighbor indices and weights on the result.
func (pb *ProjectionBuilder) Diagnostics() *ProjectionBuilder {
	pb.diagnostics = true
	return pb
}

// Execute runs the projection and returns the full result.
func (pb *ProjectionBuilder) Execute(ctx context.Context) (*project.Result, error) {
	m := pb.s.Model()
	if m == nil {
		return nil, fmt.Errorf("scape: project: %w", ErrNoModel)
	}

	points := 0
	if pb.data != nil {
		points = pb.data.Len()
	}

	rc := pb.s.opts.controller
	workers := rc.Workers()
	if err := rc.AcquireWorkers(ctx, workers); err != nil {
		return nil, fmt.Errorf("scape: project: %w", err)
	}
	defer rc.ReleaseWorkers(workers)

	start := time.Now()
	result, err := project.Project(ctx, pb.data, m.Set, func(o *project.Options) {
		o.K = pb.k
		o.Kernel = pb.kernel
		o.Bandwidth = pb.bandwidth
		o.Diagnostics = pb.diagnostics
		o.Workers = workers
	})
	duration := time.Since(start)

	pb.s.opts.logger.LogProject(ctx, points, pb.k, duration, err)
	pb.s.opts.metricsCollector.RecordProject(points, pb.k, duration, err)
	if err != nil {
		return nil, translateError(fmt.Errorf("scape: project: %w", err))
	}
	return result, nil
}

// Stream runs the projection and yields embedded points in dataset order.
// A projection error is yielded once with a zero Point, then the sequence
// ends.
func (pb *ProjectionBuilder) Stream(ctx context.Context) iter.Seq2[Point, error] {
	return func(yield func(Point, error) bool) {
		result, err := pb.Execute(ctx)
		if err != nil {
			yield(Point{}, err)
			return
		}
		for i := 0; i < result.Len(); i++ {
			if !yield(Point{Index: i, Coords: result.At(i)}, nil) {
				return
			}
		}
	}
}

// First runs the projection and returns the first embedded point.
// Convenient for single-point spot checks.
func (pb *ProjectionBuilder) First(ctx context.Context) ([]float64, error) {
	result, err := pb.Execute(ctx)
	if err != nil {
		return nil, err
	}
	if result.Len() == 0 {
		return nil, fmt.Errorf("scape: project: %w", project.ErrEmptyDataset)
	}
	return result.At(0), nil
}
