package dataset

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/scapelab/scape/internal/mmap"
)

// File format: a fixed little-endian header followed by the raw row-major
// float32 block. The header is 24 bytes so the block stays 4-byte aligned
// for the zero-copy view.
const (
	fileMagic   uint32 = 0x53435044 // "SCPD"
	fileVersion uint32 = 0x00010000

	headerSize = 24
)

type fileHeader struct {
	Magic    uint32
	Version  uint32
	Count    uint64
	Dim      uint32
	Reserved uint32
}

// WriteFile writes the dataset to path in the native binary layout,
// readable back with OpenFile.
func WriteFile(path string, d *Dataset) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("dataset: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, 256*1024)
	header := fileHeader{
		Magic:   fileMagic,
		Version: fileVersion,
		Count:   uint64(d.n),
		Dim:     uint32(d.dim),
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("dataset: write header: %w", err)
	}

	if len(d.data) > 0 {
		raw := unsafe.Slice((*byte)(unsafe.Pointer(&d.data[0])), len(d.data)*4)
		if _, err := w.Write(raw); err != nil {
			return fmt.Errorf("dataset: write rows: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return err
	}
	return f.Sync()
}

// OpenFile memory-maps a dataset file written by WriteFile. The returned
// Dataset reads rows straight from the page cache; Close unmaps it.
func OpenFile(path string) (*Dataset, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}

	d, err := fromMapped(m.Data)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	d.closer = m.Close

	// Training sweeps rows in order.
	_ = m.Advise(mmap.AccessSequential)

	return d, nil
}

func fromMapped(raw []byte) (*Dataset, error) {
	if len(raw) < headerSize {
		return nil, io.ErrUnexpectedEOF
	}

	var header fileHeader
	if _, err := binary.Decode(raw[:headerSize], binary.LittleEndian, &header); err != nil {
		return nil, err
	}
	if header.Magic != fileMagic {
		return nil, fmt.Errorf("bad magic 0x%08x", header.Magic)
	}
	if header.Version != fileVersion {
		return nil, fmt.Errorf("unsupported version 0x%08x", header.Version)
	}
	if header.Dim == 0 {
		return nil, &ErrInvalidDimension{Dimension: 0}
	}

	want := int(header.Count) * int(header.Dim) * 4
	block := raw[headerSize:]
	if len(block) < want {
		return nil, io.ErrUnexpectedEOF
	}
	if uintptr(unsafe.Pointer(&raw[0]))%4 != 0 {
		return nil, fmt.Errorf("mapping is not 4-byte aligned")
	}

	var data []float32
	if want > 0 {
		data = unsafe.Slice((*float32)(unsafe.Pointer(&block[0])), want/4)
	}

	return &Dataset{data: data, n: int(header.Count), dim: int(header.Dim)}, nil
}
