// Package dataset provides the immutable high-dimensional point matrix the
// engine consumes. Points are stored row-major in one contiguous float32
// slice; accessors hand out views into it, never copies, so a Dataset can be
// shared freely across worker goroutines.
package dataset

import (
	"fmt"
	"iter"
)

// Dataset is an ordered, immutable sequence of fixed-dimension points.
type Dataset struct {
	data []float32
	n    int
	dim  int

	closer func() error // set for file-backed datasets
}

// ErrInvalidDimension indicates a non-positive feature dimension.
type ErrInvalidDimension struct {
	Dimension int
}

func (e *ErrInvalidDimension) Error() string {
	return fmt.Sprintf("dataset: invalid dimension: %d", e.Dimension)
}

// ErrRaggedRow indicates a row whose length differs from the dataset
// dimension.
type ErrRaggedRow struct {
	Row      int
	Expected int
	Actual   int
}

func (e *ErrRaggedRow) Error() string {
	return fmt.Sprintf("dataset: row %d has %d features, expected %d", e.Row, e.Actual, e.Expected)
}

// ErrBadShape indicates a flat buffer whose length is not a multiple of the
// dimension.
type ErrBadShape struct {
	Len int
	Dim int
}

func (e *ErrBadShape) Error() string {
	return fmt.Sprintf("dataset: buffer length %d is not a multiple of dimension %d", e.Len, e.Dim)
}

// FromRows builds a Dataset by copying rows into contiguous storage.
// Every row must have the same length.
func FromRows(rows [][]float32) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, &ErrInvalidDimension{Dimension: 0}
	}

	dim := len(rows[0])
	if dim <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dim}
	}

	data := make([]float32, 0, len(rows)*dim)
	for i, row := range rows {
		if len(row) != dim {
			return nil, &ErrRaggedRow{Row: i, Expected: dim, Actual: len(row)}
		}
		data = append(data, row...)
	}

	return &Dataset{data: data, n: len(rows), dim: dim}, nil
}

// FromFlat wraps an existing row-major buffer without copying. The caller
// must not mutate data afterwards.
func FromFlat(data []float32, dim int) (*Dataset, error) {
	if dim <= 0 {
		return nil, &ErrInvalidDimension{Dimension: dim}
	}
	if len(data)%dim != 0 {
		return nil, &ErrBadShape{Len: len(data), Dim: dim}
	}

	return &Dataset{data: data, n: len(data) / dim, dim: dim}, nil
}

// Len returns the number of points.
func (d *Dataset) Len() int { return d.n }

// Dim returns the feature dimension.
func (d *Dataset) Dim() int { return d.dim }

// At returns a read-only view of point i. The slice aliases the backing
// storage and must not be modified.
func (d *Dataset) At(i int) []float32 {
	return d.data[i*d.dim : (i+1)*d.dim : (i+1)*d.dim]
}

// Row copies point i into dst, which must have length Dim, and returns dst.
func (d *Dataset) Row(i int, dst []float32) []float32 {
	copy(dst, d.At(i))
	return dst
}

// Flat returns the backing row-major buffer. Read-only.
func (d *Dataset) Flat() []float32 { return d.data }

// All iterates over (index, point view) pairs in order.
func (d *Dataset) All() iter.Seq2[int, []float32] {
	return func(yield func(int, []float32) bool) {
		for i := 0; i < d.n; i++ {
			if !yield(i, d.At(i)) {
				return
			}
		}
	}
}

// Close releases file-backed storage. In-memory datasets return nil.
// The Dataset must not be used after Close.
func (d *Dataset) Close() error {
	if d == nil || d.closer == nil {
		return nil
	}
	err := d.closer()
	d.closer = nil
	d.data = nil
	d.n = 0
	return err
}
