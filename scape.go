package scape

import (
	"bytes"
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"sync"
	"time"
	"unsafe"

	"github.com/google/uuid"

	"github.com/scapelab/scape/dataset"
	"github.com/scapelab/scape/generator"
	"github.com/scapelab/scape/landmark"
	"github.com/scapelab/scape/project"
	"github.com/scapelab/scape/registry"
	"github.com/scapelab/scape/resource"
	"github.com/scapelab/scape/snapshot"
)

// Scape is the engine facade: one generation strategy, one layout provider,
// and the model they produce. Safe for concurrent use; Fit replaces the
// model atomically, projections read it under a shared lock.
type Scape struct {
	gen  generator.Generator
	opts options

	mu    sync.RWMutex
	model *Model

	closersMu sync.Mutex
	closers   []io.Closer
}

// Model is a fitted landmark model: the frozen, laid-out landmark set plus
// generation metadata.
type Model struct {
	// ID is the model's UUID, assigned at fit time.
	ID string `json:"id"`
	// Strategy names the generator that produced the landmarks.
	Strategy string `json:"strategy"`
	// Provider names the layout provider.
	Provider string `json:"provider"`
	// Epochs is the number of completed training epochs.
	Epochs int `json:"epochs"`
	// QuantizationError is the mean squared point-to-landmark distance
	// after the final epoch. 0 for strategies that do not track it.
	QuantizationError float64 `json:"quantization_error"`
	// Fingerprint identifies the dataset the model was fitted on.
	Fingerprint string `json:"fingerprint"`
	// FitDuration is the wall time of landmark generation.
	FitDuration time.Duration `json:"fit_duration"`
	// LayoutDuration is the wall time of the layout phase.
	LayoutDuration time.Duration `json:"layout_duration"`
	// CreatedAt is the fit time, UTC.
	CreatedAt time.Time `json:"created_at"`

	// Set is the frozen landmark set with layout coordinates.
	Set *landmark.Set `json:"-"`
}

// New creates an engine around a generation strategy. The layout provider
// defaults to the grid-derived one in 2D; select others via WithLayout or
// the fluent builders.
func New(gen generator.Generator, optFns ...Option) *Scape {
	return &Scape{
		gen:  gen,
		opts: applyOptions(optFns),
	}
}

// Fit trains landmarks on the dataset, lays them out, and installs the
// resulting model on the engine. The previous model, if any, is replaced.
func (s *Scape) Fit(ctx context.Context, data *dataset.Dataset) (*Model, error) {
	// Training takes the whole worker pool, so concurrent fits on a shared
	// controller serialize instead of oversubscribing it.
	rc := s.opts.controller
	if err := rc.AcquireWorkers(ctx, rc.Workers()); err != nil {
		return nil, fmt.Errorf("scape: fit: %w", err)
	}
	defer rc.ReleaseWorkers(rc.Workers())

	start := time.Now()
	set, err := s.gen.Generate(ctx, data)
	fitDur := time.Since(start)

	points := 0
	if data != nil {
		points = data.Len()
	}
	landmarks := 0
	if set != nil {
		landmarks = set.Len()
	}
	s.opts.logger.LogFit(ctx, s.gen.Name(), points, landmarks, fitDur, err)
	s.opts.metricsCollector.RecordFit(s.gen.Name(), points, landmarks, fitDur, err)
	if err != nil {
		return nil, translateError(fmt.Errorf("scape: fit: %w", err))
	}

	start = time.Now()
	err = s.opts.provider.Layout(ctx, set, s.opts.dims)
	layoutDur := time.Since(start)

	s.opts.logger.LogLayout(ctx, s.opts.provider.Name(), s.opts.dims, layoutDur, err)
	s.opts.metricsCollector.RecordLayout(s.opts.provider.Name(), layoutDur, err)
	if err != nil {
		return nil, translateError(fmt.Errorf("scape: layout: %w", err))
	}

	m := &Model{
		ID:             uuid.NewString(),
		Strategy:       s.gen.Name(),
		Provider:       s.opts.provider.Name(),
		Fingerprint:    Fingerprint(data),
		FitDuration:    fitDur,
		LayoutDuration: layoutDur,
		CreatedAt:      time.Now().UTC(),
		Set:            set,
	}
	if sr, ok := s.gen.(generator.StatsReporter); ok {
		stats := sr.Stats()
		m.Epochs = stats.Epochs
		m.QuantizationError = stats.QuantizationError
	}

	s.mu.Lock()
	s.model = m
	s.mu.Unlock()

	return m, nil
}

// Embed runs the full pipeline: fits a model if the engine has none, then
// projects every dataset point into the landmark layout.
func (s *Scape) Embed(ctx context.Context, data *dataset.Dataset) (*project.Result, error) {
	s.mu.RLock()
	m := s.model
	s.mu.RUnlock()

	if m == nil {
		var err error
		if m, err = s.Fit(ctx, data); err != nil {
			return nil, err
		}
	}

	return s.Project(data).Execute(ctx)
}

// Model returns the engine's current model, or nil before the first Fit.
func (s *Scape) Model() *Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Restore installs a previously fitted model (e.g. from LoadModel) so the
// engine can project without refitting.
func (s *Scape) Restore(m *Model) {
	s.mu.Lock()
	s.model = m
	s.mu.Unlock()
}

// SaveModel writes the model as a snapshot to w. The stream honors the
// resource controller's IO limit when one is configured.
func (s *Scape) SaveModel(ctx context.Context, w io.Writer, m *Model) error {
	if m == nil || m.Set == nil {
		return fmt.Errorf("scape: save model: %w", ErrNoModel)
	}

	start := time.Now()
	cw := &countingWriter{w: w}
	tw := resource.NewThrottledWriter(ctx, cw, s.opts.controller)
	optFns := append([]func(*snapshot.Options){func(o *snapshot.Options) {
		o.Codec = s.opts.codec
	}}, s.opts.snapshotOptions...)
	err := snapshot.Write(tw, m.Set, modelMeta(m), optFns...)

	s.opts.logger.LogSnapshot(ctx, "save", m.ID, err)
	s.opts.metricsCollector.RecordSnapshotSave(cw.n, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("scape: save model: %w", err)
	}
	return nil
}

// LoadModel reads a model snapshot from r.
func (s *Scape) LoadModel(ctx context.Context, r io.Reader) (*Model, error) {
	start := time.Now()
	cr := &countingReader{r: r}
	tr := resource.NewThrottledReader(ctx, cr, s.opts.controller)

	var meta Model
	set, err := snapshot.Read(tr, &meta)

	s.opts.logger.LogSnapshot(ctx, "load", meta.ID, err)
	s.opts.metricsCollector.RecordSnapshotLoad(cr.n, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("scape: load model: %w", err)
	}

	meta.Set = set
	return &meta, nil
}

// SaveModelFile writes the model snapshot to path atomically.
func (s *Scape) SaveModelFile(ctx context.Context, path string, m *Model) error {
	if m == nil || m.Set == nil {
		return fmt.Errorf("scape: save model: %w", ErrNoModel)
	}

	start := time.Now()
	optFns := append([]func(*snapshot.Options){func(o *snapshot.Options) {
		o.Codec = s.opts.codec
	}}, s.opts.snapshotOptions...)
	err := snapshot.SaveFile(path, m.Set, modelMeta(m), optFns...)

	s.opts.logger.LogSnapshot(ctx, "save", path, err)
	s.opts.metricsCollector.RecordSnapshotSave(0, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("scape: save model: %w", err)
	}
	return nil
}

// LoadModelFile reads a model snapshot from path.
func (s *Scape) LoadModelFile(ctx context.Context, path string) (*Model, error) {
	start := time.Now()

	var meta Model
	set, err := snapshot.LoadFile(path, &meta)

	s.opts.logger.LogSnapshot(ctx, "load", path, err)
	s.opts.metricsCollector.RecordSnapshotLoad(0, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("scape: load model: %w", err)
	}

	meta.Set = set
	return &meta, nil
}

// PushModel encodes the model and pushes it to a registry under its name,
// carrying the dataset fingerprint and any tags on the manifest.
func (s *Scape) PushModel(ctx context.Context, reg *registry.Registry, m *Model, name string, tags ...string) (*registry.Manifest, error) {
	var buf bytes.Buffer
	if err := s.SaveModel(ctx, &buf, m); err != nil {
		return nil, err
	}

	manifest, err := reg.Push(ctx, name, buf.Bytes(), func(o *registry.PushOptions) {
		o.Fingerprint = m.Fingerprint
		o.Tags = tags
	})
	if err != nil {
		return nil, fmt.Errorf("scape: push model: %w", err)
	}
	return manifest, nil
}

// PullModel pulls a model snapshot from a registry by ID or tag, decodes it
// and installs it on the engine.
func (s *Scape) PullModel(ctx context.Context, reg *registry.Registry, ref string) (*Model, error) {
	payload, _, err := reg.Pull(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("scape: pull model: %w", err)
	}

	m, err := s.LoadModel(ctx, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	s.Restore(m)
	return m, nil
}

// OpenDataset memory-maps a dataset file and registers it for Close. The
// mapping counts against the controller's memory limit; opening fails
// rather than blocks when the limit would be exceeded.
func (s *Scape) OpenDataset(path string) (*dataset.Dataset, error) {
	d, err := dataset.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("scape: open dataset: %w", err)
	}

	size := int64(d.Len()) * int64(d.Dim()) * 4
	if !s.opts.controller.TryAcquireMemory(size) {
		_ = d.Close()
		return nil, fmt.Errorf("scape: open dataset %s (%d bytes): %w", path, size, resource.ErrMemoryLimit)
	}

	s.closersMu.Lock()
	s.closers = append(s.closers, &datasetHandle{d: d, rc: s.opts.controller, size: size})
	s.closersMu.Unlock()

	return d, nil
}

// datasetHandle ties a mapped dataset to its memory reservation.
type datasetHandle struct {
	d    *dataset.Dataset
	rc   *resource.Controller
	size int64
}

func (h *datasetHandle) Close() error {
	err := h.d.Close()
	h.rc.ReleaseMemory(h.size)
	return err
}

// Close releases mmap-backed datasets opened through the engine.
func (s *Scape) Close() error {
	s.closersMu.Lock()
	closers := s.closers
	s.closers = nil
	s.closersMu.Unlock()

	var firstErr error
	for _, c := range closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Fingerprint identifies a dataset by shape and content checksum, recorded
// on models and registry manifests to tie artifacts back to their source.
func Fingerprint(data *dataset.Dataset) string {
	if data == nil || data.Len() == 0 {
		return ""
	}
	flat := data.Flat()
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&flat[0])), len(flat)*4)
	return fmt.Sprintf("%dx%d-%08x", data.Len(), data.Dim(), crc32.ChecksumIEEE(raw))
}

// modelMeta strips the landmark set before metadata encoding; the snapshot
// stores the set in its own sections.
func modelMeta(m *Model) *Model {
	meta := *m
	meta.Set = nil
	return &meta
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
