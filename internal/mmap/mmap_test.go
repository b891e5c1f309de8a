package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestOpenReadClose(t *testing.T) {
	content := []byte("landmark codebook bytes")
	m, err := Open(writeTemp(t, content))
	require.NoError(t, err)

	assert.Equal(t, content, m.Data)

	buf := make([]byte, 8)
	n, err := m.ReadAt(buf, 9)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, "codebook", string(buf))

	// Out of bounds.
	n, err = m.ReadAt(buf, 1000)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	// Partial read at the tail.
	tail := make([]byte, 16)
	n, err = m.ReadAt(tail, int64(len(content)-5))
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)

	require.NoError(t, m.Close())
	assert.Nil(t, m.Data)
	require.NoError(t, m.Close()) // idempotent
}

func TestOpenEmptyFile(t *testing.T) {
	m, err := Open(writeTemp(t, nil))
	require.NoError(t, err)
	defer m.Close()

	assert.Nil(t, m.Data)

	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.Equal(t, io.EOF, err)
}

func TestAdvise(t *testing.T) {
	m, err := Open(writeTemp(t, []byte("0123456789")))
	require.NoError(t, err)
	defer m.Close()

	assert.NoError(t, m.Advise(AccessSequential))
	assert.NoError(t, m.Advise(AccessRandom))

	var nilFile *File
	assert.NoError(t, nilFile.Advise(AccessSequential))
}
