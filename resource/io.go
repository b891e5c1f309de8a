package resource

import (
	"context"
	"io"
)

// ThrottledWriter wraps an io.Writer with the controller's IO limit.
// Snapshot saves and blob uploads pass their streams through it so a
// background export cannot saturate disk or network.
type ThrottledWriter struct {
	w   io.Writer
	rc  *Controller
	ctx context.Context
}

// NewThrottledWriter creates a ThrottledWriter.
func NewThrottledWriter(ctx context.Context, w io.Writer, rc *Controller) *ThrottledWriter {
	return &ThrottledWriter{w: w, rc: rc, ctx: ctx}
}

func (w *ThrottledWriter) Write(p []byte) (n int, err error) {
	if err := w.rc.AcquireIO(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}

// ThrottledReader wraps an io.Reader with the controller's IO limit.
type ThrottledReader struct {
	r   io.Reader
	rc  *Controller
	ctx context.Context
}

// NewThrottledReader creates a ThrottledReader.
func NewThrottledReader(ctx context.Context, r io.Reader, rc *Controller) *ThrottledReader {
	return &ThrottledReader{r: r, rc: rc, ctx: ctx}
}

func (r *ThrottledReader) Read(p []byte) (n int, err error) {
	// Waits for len(p) up front; the actual read may be shorter, which
	// over-throttles slightly but never under-throttles.
	if err := r.rc.AcquireIO(r.ctx, len(p)); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
