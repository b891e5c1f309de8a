package scape

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// scapeprom package ships a Prometheus adapter.
type MetricsCollector interface {
	// RecordFit is called after each landmark training run.
	// strategy names the generator, points and landmarks size the run,
	// duration is the total time taken, err is nil if successful.
	RecordFit(strategy string, points, landmarks int, duration time.Duration, err error)

	// RecordLayout is called after each layout run.
	RecordLayout(provider string, duration time.Duration, err error)

	// RecordProject is called after each projection.
	// points is the dataset size, k the neighbor count.
	RecordProject(points, k int, duration time.Duration, err error)

	// RecordSnapshotSave is called after each model save.
	// bytes is the encoded size, 0 on error.
	RecordSnapshotSave(bytes int64, duration time.Duration, err error)

	// RecordSnapshotLoad is called after each model load.
	RecordSnapshotLoad(bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFit(string, int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordLayout(string, time.Duration, error)        {}
func (NoopMetricsCollector) RecordProject(int, int, time.Duration, error)     {}
func (NoopMetricsCollector) RecordSnapshotSave(int64, time.Duration, error)   {}
func (NoopMetricsCollector) RecordSnapshotLoad(int64, time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	FitCount          atomic.Int64
	FitErrors         atomic.Int64
	FitTotalNanos     atomic.Int64
	FitPoints         atomic.Int64
	LayoutCount       atomic.Int64
	LayoutErrors      atomic.Int64
	LayoutTotalNanos  atomic.Int64
	ProjectCount      atomic.Int64
	ProjectErrors     atomic.Int64
	ProjectTotalNanos atomic.Int64
	ProjectPoints     atomic.Int64
	SaveCount         atomic.Int64
	SaveErrors        atomic.Int64
	SaveBytes         atomic.Int64
	LoadCount         atomic.Int64
	LoadErrors        atomic.Int64
	LoadBytes         atomic.Int64
}

// RecordFit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFit(strategy string, points, landmarks int, duration time.Duration, err error) {
	b.FitCount.Add(1)
	b.FitTotalNanos.Add(duration.Nanoseconds())
	b.FitPoints.Add(int64(points))
	if err != nil {
		b.FitErrors.Add(1)
	}
}

// RecordLayout implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLayout(provider string, duration time.Duration, err error) {
	b.LayoutCount.Add(1)
	b.LayoutTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LayoutErrors.Add(1)
	}
}

// RecordProject implements MetricsCollector.
func (b *BasicMetricsCollector) RecordProject(points, k int, duration time.Duration, err error) {
	b.ProjectCount.Add(1)
	b.ProjectTotalNanos.Add(duration.Nanoseconds())
	b.ProjectPoints.Add(int64(points))
	if err != nil {
		b.ProjectErrors.Add(1)
	}
}

// RecordSnapshotSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshotSave(bytes int64, duration time.Duration, err error) {
	b.SaveCount.Add(1)
	b.SaveBytes.Add(bytes)
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordSnapshotLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshotLoad(bytes int64, duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadBytes.Add(bytes)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		FitCount:         b.FitCount.Load(),
		FitErrors:        b.FitErrors.Load(),
		FitAvgNanos:      avg(b.FitTotalNanos.Load(), b.FitCount.Load()),
		FitPoints:        b.FitPoints.Load(),
		LayoutCount:      b.LayoutCount.Load(),
		LayoutErrors:     b.LayoutErrors.Load(),
		LayoutAvgNanos:   avg(b.LayoutTotalNanos.Load(), b.LayoutCount.Load()),
		ProjectCount:     b.ProjectCount.Load(),
		ProjectErrors:    b.ProjectErrors.Load(),
		ProjectAvgNanos:  avg(b.ProjectTotalNanos.Load(), b.ProjectCount.Load()),
		ProjectPoints:    b.ProjectPoints.Load(),
		SaveCount:        b.SaveCount.Load(),
		SaveErrors:       b.SaveErrors.Load(),
		SaveBytes:        b.SaveBytes.Load(),
		LoadCount:        b.LoadCount.Load(),
		LoadErrors:       b.LoadErrors.Load(),
		LoadBytes:        b.LoadBytes.Load(),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	FitCount        int64
	FitErrors       int64
	FitAvgNanos     int64
	FitPoints       int64
	LayoutCount     int64
	LayoutErrors    int64
	LayoutAvgNanos  int64
	ProjectCount    int64
	ProjectErrors   int64
	ProjectAvgNanos int64
	ProjectPoints   int64
	SaveCount       int64
	SaveErrors      int64
	SaveBytes       int64
	LoadCount       int64
	LoadErrors      int64
	LoadBytes       int64
}
