// Package blobstore abstracts the storage that model snapshots and registry
// manifests live in. Blobs are immutable byte objects under flat string
// keys; implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory, for tests and ephemeral pipelines
//   - LocalStore: local filesystem with atomic writes
//   - s3.Store: Amazon S3 via the AWS SDK transfer manager
//   - minio.Store: MinIO and other S3-compatible object stores
package blobstore

import (
	"context"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore stores immutable blobs under string keys.
type BlobStore interface {
	// Put writes a blob atomically, replacing any existing blob.
	Put(ctx context.Context, name string, data []byte) error

	// Get returns the blob's contents. The returned slice is owned by the
	// caller.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// List returns the names of all blobs with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Exists reports whether a blob is present.
	Exists(ctx context.Context, name string) (bool, error)
}
