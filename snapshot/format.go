package snapshot

import (
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies scape snapshot files (ASCII: "SCAP").
	MagicNumber = 0x53434150
	// Version is the current file format version (v1.0.0).
	Version = 0x00010000

	// Section types.
	sectionCodebook = 1
	sectionCoords   = 2
	sectionTopology = 3
	sectionMeta     = 4
)

// Flags recorded in the file header.
const (
	flagFloat16Codebook uint32 = 1 << 0
)

var (
	// ErrInvalidMagic is returned when a file does not start with the
	// snapshot magic number.
	ErrInvalidMagic = errors.New("snapshot: invalid magic number")
	// ErrInvalidVersion is returned for format versions this build cannot
	// read.
	ErrInvalidVersion = errors.New("snapshot: unsupported version")
	// ErrTruncated is returned when a file ends before its section table
	// says it should.
	ErrTruncated = errors.New("snapshot: truncated file")
)

// ErrUnknownCodec is returned when the codec recorded in a snapshot header
// is not registered.
type ErrUnknownCodec struct {
	Name string
}

func (e *ErrUnknownCodec) Error() string {
	return fmt.Sprintf("snapshot: unknown codec %q", e.Name)
}

// ErrChecksumMismatch is returned when a section fails CRC verification.
type ErrChecksumMismatch struct {
	Section  uint32
	Expected uint32
	Actual   uint32
}

func (e *ErrChecksumMismatch) Error() string {
	return fmt.Sprintf("snapshot: section %d checksum mismatch: expected 0x%08x, got 0x%08x",
		e.Section, e.Expected, e.Actual)
}

// fileHeader is the fixed-size little-endian header at the start of every
// snapshot. The codec name is stored inline so files stay self-describing.
type fileHeader struct {
	Magic     uint32
	Version   uint32
	Flags     uint32
	Sections  uint32
	Landmarks uint64
	Dim       uint32
	LayoutDim uint32
	Codec     [8]byte
	Reserved  [16]byte
}

// sectionHeader precedes each section payload. Checksum covers the stored
// (possibly compressed) bytes.
type sectionHeader struct {
	Type        uint32
	Compression uint32
	RawLen      uint64
	StoredLen   uint64
	Checksum    uint32
	Reserved    uint32
}

func codecName(b [8]byte) string {
	n := 0
	for n < len(b) && b[n] != 0 {
		n++
	}
	return string(b[:n])
}

func packCodecName(name string) ([8]byte, error) {
	var out [8]byte
	if len(name) > len(out) {
		return out, &ErrUnknownCodec{Name: name}
	}
	copy(out[:], name)
	return out, nil
}
