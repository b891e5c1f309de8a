// Package mmap provides read-only memory-mapped file access.
//
// Dataset files can reach many gigabytes; mapping them avoids copying the
// whole matrix through kernel buffers and lets training scan rows straight
// from the page cache. Unix uses mmap(2) with madvise(2) hints; Windows
// uses CreateFileMapping/MapViewOfFile and treats hints as no-ops.
package mmap

import (
	"errors"
	"io"
	"os"
)

// AccessPattern provides hints to the kernel about how the data will be
// accessed.
type AccessPattern int

const (
	// AccessDefault is the default access pattern (no specific advice).
	AccessDefault AccessPattern = iota
	// AccessSequential expects data to be accessed sequentially.
	AccessSequential
	// AccessRandom expects data to be accessed randomly.
	AccessRandom
)

// ErrInvalidSize is returned when the file size is invalid.
var ErrInvalidSize = errors.New("mmap: invalid file size")

// File represents a memory-mapped file.
type File struct {
	Data []byte
	f    *os.File
}

// Open maps the file at path into memory as read-only.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &File{Data: nil, f: f}, nil
	}
	if size < 0 || size != int64(int(size)) {
		f.Close()
		return nil, ErrInvalidSize
	}

	data, err := mmap(f, int(size))
	if err != nil {
		f.Close()
		return nil, err
	}

	return &File{Data: data, f: f}, nil
}

// Close unmaps the memory and closes the underlying file. It is safe to
// call on a nil File and idempotent; no goroutine may touch Data afterward.
func (m *File) Close() error {
	if m == nil {
		return nil
	}
	var err error
	if m.Data != nil {
		err = munmap(m.Data)
		m.Data = nil
	}
	if m.f != nil {
		if closeErr := m.f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		m.f = nil
	}
	return err
}

// Advise hints the kernel about the expected access pattern.
// Advisory only; failures other than unsupported hints are returned.
func (m *File) Advise(pattern AccessPattern) error {
	if m == nil || m.Data == nil {
		return nil
	}
	return madvise(m.Data, pattern)
}

// ReadAt implements io.ReaderAt on the mapped contents.
func (m *File) ReadAt(p []byte, off int64) (n int, err error) {
	if m.Data == nil {
		return 0, io.EOF
	}
	if off < 0 || off >= int64(len(m.Data)) {
		return 0, io.EOF
	}
	n = copy(p, m.Data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
