package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stores returns every in-process BlobStore implementation under test.
func stores(t *testing.T) map[string]BlobStore {
	t.Helper()

	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	return map[string]BlobStore{
		"memory": NewMemoryStore(),
		"local":  local,
	}
}

func TestBlobStore_PutGet(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "models/a", []byte("alpha")))

			got, err := store.Get(ctx, "models/a")
			require.NoError(t, err)
			assert.Equal(t, []byte("alpha"), got)

			// Overwrite replaces.
			require.NoError(t, store.Put(ctx, "models/a", []byte("beta")))
			got, err = store.Get(ctx, "models/a")
			require.NoError(t, err)
			assert.Equal(t, []byte("beta"), got)
		})
	}
}

func TestBlobStore_GetMissing(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "does/not/exist")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBlobStore_Delete(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "x", []byte("data")))
			require.NoError(t, store.Delete(ctx, "x"))

			_, err := store.Get(ctx, "x")
			assert.ErrorIs(t, err, ErrNotFound)

			// Deleting again is not an error.
			assert.NoError(t, store.Delete(ctx, "x"))
		})
	}
}

func TestBlobStore_ListAndExists(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "models/a", []byte("1")))
			require.NoError(t, store.Put(ctx, "models/b", []byte("2")))
			require.NoError(t, store.Put(ctx, "manifests/a", []byte("3")))

			names, err := store.List(ctx, "models/")
			require.NoError(t, err)
			assert.Equal(t, []string{"models/a", "models/b"}, names)

			all, err := store.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)

			ok, err := store.Exists(ctx, "models/a")
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = store.Exists(ctx, "models/zzz")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "k", []byte("abc")))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	got[0] = 'z'

	again, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again)
}

func TestLocalStore_CanceledContext(t *testing.T) {
	local, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, local.Put(ctx, "k", nil), context.Canceled)
	_, err = local.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}
