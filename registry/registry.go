// Package registry stores model snapshots in a BlobStore with JSON
// manifests and human-readable tags. Snapshot bytes are content-addressed
// by CRC32 checksum, so pushing the same model under two names uploads the
// payload once.
//
// Key layout:
//
//	models/<uuid>   manifest (JSON via the configured codec)
//	blobs/<crc32>   snapshot payload
//	tags/<tag>      manifest ID
package registry

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/scapelab/scape/blobstore"
	"github.com/scapelab/scape/codec"
)

const (
	modelPrefix = "models/"
	blobPrefix  = "blobs/"
	tagPrefix   = "tags/"
)

// ErrNotFound is returned when a model or tag does not exist.
var ErrNotFound = blobstore.ErrNotFound

// ErrCorrupted is returned when a pulled snapshot fails its manifest
// checksum.
var ErrCorrupted = errors.New("registry: snapshot checksum mismatch")

// Manifest describes one stored model.
type Manifest struct {
	// ID is the registry-assigned model UUID.
	ID string `json:"id"`
	// Name is the caller-supplied model name, informational only.
	Name string `json:"name"`
	// Checksum is the CRC32 of the snapshot payload and its blob address.
	Checksum uint32 `json:"checksum"`
	// Size is the snapshot payload size in bytes.
	Size int64 `json:"size"`
	// Fingerprint identifies the dataset the model was fitted on.
	Fingerprint string `json:"fingerprint,omitempty"`
	// Tags are the tag names pointing at this model when it was pushed.
	Tags []string `json:"tags,omitempty"`
	// CreatedAt is the push time, UTC.
	CreatedAt time.Time `json:"created_at"`
}

// Options configures a registry.
type Options struct {
	// Codec encodes manifests. Nil selects codec.Default.
	Codec codec.Codec
	// Concurrency bounds parallel blob transfers per call.
	Concurrency int
}

// DefaultOptions returns the default registry options.
var DefaultOptions = Options{
	Concurrency: 4,
}

// Registry is a model store over any BlobStore backend.
type Registry struct {
	store blobstore.BlobStore
	codec codec.Codec
	limit int
}

// New creates a registry over the given blob store.
func New(store blobstore.BlobStore, optFns ...func(o *Options)) *Registry {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	return &Registry{
		store: store,
		codec: opts.Codec,
		limit: opts.Concurrency,
	}
}

// PushOptions configures a single push.
type PushOptions struct {
	// Fingerprint records the source dataset identity on the manifest.
	Fingerprint string
	// Tags are assigned to the model after the push.
	Tags []string
}

// Push stores a snapshot payload and returns its manifest. The payload and
// the manifest upload concurrently; the blob upload is skipped when an
// identical payload is already stored.
func (r *Registry) Push(ctx context.Context, name string, snapshot []byte, optFns ...func(o *PushOptions)) (*Manifest, error) {
	var opts PushOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	m := &Manifest{
		ID:          uuid.NewString(),
		Name:        name,
		Checksum:    crc32.ChecksumIEEE(snapshot),
		Size:        int64(len(snapshot)),
		Fingerprint: opts.Fingerprint,
		Tags:        opts.Tags,
		CreatedAt:   time.Now().UTC(),
	}

	encoded, err := r.codec.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("registry: encode manifest: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	g.Go(func() error {
		ok, err := r.store.Exists(gctx, blobKey(m.Checksum))
		if err != nil {
			return err
		}
		if ok {
			// Content-addressed: identical payload already stored.
			return nil
		}
		return r.store.Put(gctx, blobKey(m.Checksum), snapshot)
	})
	g.Go(func() error {
		return r.store.Put(gctx, modelPrefix+m.ID, encoded)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("registry: push %s: %w", name, err)
	}

	for _, tag := range opts.Tags {
		if err := r.Tag(ctx, m.ID, tag); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Pull returns the snapshot payload and manifest for a model ID or tag.
func (r *Registry) Pull(ctx context.Context, ref string) ([]byte, *Manifest, error) {
	m, err := r.Resolve(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	snapshot, err := r.store.Get(ctx, blobKey(m.Checksum))
	if err != nil {
		return nil, nil, fmt.Errorf("registry: pull %s: %w", ref, err)
	}
	if crc32.ChecksumIEEE(snapshot) != m.Checksum {
		return nil, nil, ErrCorrupted
	}

	return snapshot, m, nil
}

// Resolve returns the manifest for a model ID or tag without transferring
// the snapshot.
func (r *Registry) Resolve(ctx context.Context, ref string) (*Manifest, error) {
	encoded, err := r.store.Get(ctx, modelPrefix+ref)
	if errors.Is(err, blobstore.ErrNotFound) {
		// Not an ID: try tags.
		id, terr := r.store.Get(ctx, tagPrefix+ref)
		if terr != nil {
			return nil, fmt.Errorf("registry: resolve %s: %w", ref, ErrNotFound)
		}
		encoded, err = r.store.Get(ctx, modelPrefix+string(id))
	}
	if err != nil {
		return nil, fmt.Errorf("registry: resolve %s: %w", ref, err)
	}

	var m Manifest
	if err := r.codec.Unmarshal(encoded, &m); err != nil {
		return nil, fmt.Errorf("registry: decode manifest: %w", err)
	}
	return &m, nil
}

// Tag points a tag name at a model ID, replacing any previous target.
func (r *Registry) Tag(ctx context.Context, id, tag string) error {
	ok, err := r.store.Exists(ctx, modelPrefix+id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("registry: tag %s: %w", id, ErrNotFound)
	}
	return r.store.Put(ctx, tagPrefix+tag, []byte(id))
}

// List returns every stored manifest, newest first.
func (r *Registry) List(ctx context.Context) ([]*Manifest, error) {
	names, err := r.store.List(ctx, modelPrefix)
	if err != nil {
		return nil, err
	}

	manifests := make([]*Manifest, 0, len(names))
	for _, name := range names {
		m, err := r.Resolve(ctx, strings.TrimPrefix(name, modelPrefix))
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		if !manifests[i].CreatedAt.Equal(manifests[j].CreatedAt) {
			return manifests[i].CreatedAt.After(manifests[j].CreatedAt)
		}
		return manifests[i].ID < manifests[j].ID
	})
	return manifests, nil
}

// Delete removes a model's manifest and any tags pointing at it. The
// snapshot payload is removed only when no remaining manifest references
// its checksum.
func (r *Registry) Delete(ctx context.Context, id string) error {
	m, err := r.Resolve(ctx, id)
	if err != nil {
		return err
	}

	if err := r.store.Delete(ctx, modelPrefix+m.ID); err != nil {
		return err
	}

	tags, err := r.store.List(ctx, tagPrefix)
	if err != nil {
		return err
	}
	for _, tag := range tags {
		target, err := r.store.Get(ctx, tag)
		if err != nil {
			continue
		}
		if string(target) == m.ID {
			if err := r.store.Delete(ctx, tag); err != nil {
				return err
			}
		}
	}

	remaining, err := r.List(ctx)
	if err != nil {
		return err
	}
	for _, other := range remaining {
		if other.Checksum == m.Checksum {
			return nil
		}
	}
	return r.store.Delete(ctx, blobKey(m.Checksum))
}

func blobKey(checksum uint32) string {
	return fmt.Sprintf("%s%08x", blobPrefix, checksum)
}
