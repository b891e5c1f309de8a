package dataset

import (
	"gonum.org/v1/gonum/stat"
)

// ColumnStats holds the per-feature statistics captured by Standardize, so
// later points (query data, holdout sets) can be transformed consistently.
type ColumnStats struct {
	Mean []float64
	Std  []float64
}

// Transform standardizes a single point in place using the captured
// statistics and returns it.
func (s *ColumnStats) Transform(p []float32) []float32 {
	for j := range p {
		p[j] = float32((float64(p[j]) - s.Mean[j]) / s.Std[j])
	}
	return p
}

// Standardize returns a copy of the dataset with every feature scaled to
// zero mean and unit variance, plus the statistics used. Constant columns
// keep their values centered (the divisor is clamped to 1 to avoid blowing
// up on zero variance).
func (d *Dataset) Standardize() (*Dataset, *ColumnStats) {
	stats := &ColumnStats{
		Mean: make([]float64, d.dim),
		Std:  make([]float64, d.dim),
	}

	col := make([]float64, d.n)
	for j := 0; j < d.dim; j++ {
		for i := 0; i < d.n; i++ {
			col[i] = float64(d.data[i*d.dim+j])
		}
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || d.n < 2 {
			std = 1
		}
		stats.Mean[j] = mean
		stats.Std[j] = std
	}

	data := make([]float32, len(d.data))
	for i := 0; i < d.n; i++ {
		for j := 0; j < d.dim; j++ {
			v := float64(d.data[i*d.dim+j])
			data[i*d.dim+j] = float32((v - stats.Mean[j]) / stats.Std[j])
		}
	}

	return &Dataset{data: data, n: d.n, dim: d.dim}, stats
}
