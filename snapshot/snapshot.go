// Package snapshot persists fitted landmark sets as a sectioned binary
// container: codebook, layout coordinates, topology, and structured
// metadata, each section individually compressed and CRC32-checksummed.
// Files are little-endian and self-describing; the header records the
// metadata codec by name so older files always decode.
package snapshot

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/x448/float16"

	"github.com/scapelab/scape/codec"
	"github.com/scapelab/scape/landmark"
)

// Options configures snapshot encoding. Decoding needs no options: every
// choice is recorded in the file.
type Options struct {
	// Compression is the per-section compression scheme.
	Compression Compression
	// Codec encodes the metadata section. Nil selects codec.Default.
	Codec codec.Codec
	// Float16Codebook stores codebook vectors in half precision, halving
	// snapshot size. Lossy; layout coordinates stay float64.
	Float16Codebook bool
}

// DefaultOptions returns the default encoding options.
var DefaultOptions = Options{
	Compression: CompressionZstd,
}

type section struct {
	typ uint32
	raw []byte
}

// Write encodes the set and its metadata to w. The set must be frozen;
// layout coordinates and topology are included when present. meta may be
// nil.
func Write(w io.Writer, set *landmark.Set, meta any, optFns ...func(o *Options)) error {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	if set == nil || !set.Frozen() {
		return landmark.ErrNotFrozen
	}

	name, err := packCodecName(opts.Codec.Name())
	if err != nil {
		return err
	}

	var sections []section

	cb, flags := encodeCodebook(set.Codebook(), opts.Float16Codebook)
	sections = append(sections, section{typ: sectionCodebook, raw: cb})

	if set.HasCoords() {
		sections = append(sections, section{typ: sectionCoords, raw: encodeFloat64s(set.Coords())})
	}

	if set.Topology() != nil {
		rec, err := topologyToRecord(set.Topology())
		if err != nil {
			return err
		}
		raw, err := opts.Codec.Marshal(rec)
		if err != nil {
			return fmt.Errorf("snapshot: encode topology: %w", err)
		}
		sections = append(sections, section{typ: sectionTopology, raw: raw})
	}

	if meta != nil {
		raw, err := opts.Codec.Marshal(meta)
		if err != nil {
			return fmt.Errorf("snapshot: encode meta: %w", err)
		}
		sections = append(sections, section{typ: sectionMeta, raw: raw})
	}

	header := fileHeader{
		Magic:     MagicNumber,
		Version:   Version,
		Flags:     flags,
		Sections:  uint32(len(sections)),
		Landmarks: uint64(set.Len()),
		Dim:       uint32(set.Dim()),
		LayoutDim: uint32(set.LayoutDim()),
		Codec:     name,
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("snapshot: write header: %w", err)
	}

	for _, s := range sections {
		stored, err := compress(opts.Compression, s.raw)
		if err != nil {
			return fmt.Errorf("snapshot: compress section %d: %w", s.typ, err)
		}
		sh := sectionHeader{
			Type:        s.typ,
			Compression: uint32(opts.Compression),
			RawLen:      uint64(len(s.raw)),
			StoredLen:   uint64(len(stored)),
			Checksum:    crc32.ChecksumIEEE(stored),
		}
		if err := binary.Write(w, binary.LittleEndian, &sh); err != nil {
			return fmt.Errorf("snapshot: write section header: %w", err)
		}
		if _, err := w.Write(stored); err != nil {
			return fmt.Errorf("snapshot: write section %d: %w", s.typ, err)
		}
	}

	return nil
}

// Read decodes a snapshot written by Write. The returned set is frozen,
// with topology and layout coordinates restored when the file carries them.
// When meta is non-nil the metadata section is decoded into it with the
// codec named in the header.
func Read(r io.Reader, meta any) (*landmark.Set, error) {
	var header fileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("snapshot: read header: %w", err)
	}
	if header.Magic != MagicNumber {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidMagic, header.Magic)
	}
	if header.Version != Version {
		return nil, fmt.Errorf("%w: got 0x%08x", ErrInvalidVersion, header.Version)
	}

	c, ok := codec.ByName(codecName(header.Codec))
	if !ok {
		return nil, &ErrUnknownCodec{Name: codecName(header.Codec)}
	}

	var (
		codebook []float32
		coords   []float64
		topo     landmark.Topology
		metaRaw  []byte
	)

	for i := uint32(0); i < header.Sections; i++ {
		var sh sectionHeader
		if err := binary.Read(r, binary.LittleEndian, &sh); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, ErrTruncated
			}
			return nil, fmt.Errorf("snapshot: read section header: %w", err)
		}

		stored := make([]byte, sh.StoredLen)
		if _, err := io.ReadFull(r, stored); err != nil {
			return nil, ErrTruncated
		}
		if sum := crc32.ChecksumIEEE(stored); sum != sh.Checksum {
			return nil, &ErrChecksumMismatch{Section: sh.Type, Expected: sh.Checksum, Actual: sum}
		}

		raw, err := decompress(Compression(sh.Compression), stored, sh.RawLen)
		if err != nil {
			return nil, fmt.Errorf("snapshot: decompress section %d: %w", sh.Type, err)
		}
		if uint64(len(raw)) != sh.RawLen {
			return nil, ErrTruncated
		}

		switch sh.Type {
		case sectionCodebook:
			codebook, err = decodeCodebook(raw, header.Flags, int(header.Landmarks)*int(header.Dim))
			if err != nil {
				return nil, err
			}
		case sectionCoords:
			coords, err = decodeFloat64s(raw, int(header.Landmarks)*int(header.LayoutDim))
			if err != nil {
				return nil, err
			}
		case sectionTopology:
			var rec topologyRecord
			if err := c.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("snapshot: decode topology: %w", err)
			}
			if topo, err = rec.topology(); err != nil {
				return nil, err
			}
		case sectionMeta:
			metaRaw = raw
		default:
			// Skip sections written by newer builds.
		}
	}

	if codebook == nil {
		return nil, ErrTruncated
	}

	set, err := landmark.FromCodebook(codebook, int(header.Dim))
	if err != nil {
		return nil, fmt.Errorf("snapshot: restore codebook: %w", err)
	}
	if topo != nil {
		if err := set.AttachTopology(topo); err != nil {
			return nil, fmt.Errorf("snapshot: restore topology: %w", err)
		}
	}
	set.Freeze()
	if coords != nil {
		if err := set.SetCoords(coords, int(header.LayoutDim)); err != nil {
			return nil, fmt.Errorf("snapshot: restore coords: %w", err)
		}
	}

	if meta != nil && metaRaw != nil {
		if err := c.Unmarshal(metaRaw, meta); err != nil {
			return nil, fmt.Errorf("snapshot: decode meta: %w", err)
		}
	}

	return set, nil
}

// SaveFile writes the snapshot to path atomically: temp file, fsync,
// rename, directory fsync.
func SaveFile(path string, set *landmark.Set, meta any, optFns ...func(o *Options)) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0o644)

	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := Write(buf, set, meta, optFns...); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	tmpName = ""

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// LoadFile reads a snapshot file written by SaveFile.
func LoadFile(path string, meta any) (*landmark.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(bufio.NewReaderSize(f, 256*1024), meta)
}

// topologyRecord is the codec-encoded form of a topology.
type topologyRecord struct {
	Kind  string  `json:"kind"`
	Rows  int     `json:"rows,omitempty"`
	Cols  int     `json:"cols,omitempty"`
	Depth int     `json:"depth,omitempty"`
	Hex   bool    `json:"hex,omitempty"`
	Adj   [][]int `json:"adj,omitempty"`
}

// ErrUnknownTopology is returned when a snapshot carries a topology kind
// this build cannot restore.
type ErrUnknownTopology struct {
	Kind string
}

func (e *ErrUnknownTopology) Error() string {
	return fmt.Sprintf("snapshot: unknown topology kind %q", e.Kind)
}

func topologyToRecord(t landmark.Topology) (*topologyRecord, error) {
	switch topo := t.(type) {
	case *landmark.Grid:
		return &topologyRecord{
			Kind:  "grid",
			Rows:  topo.Rows(),
			Cols:  topo.Cols(),
			Depth: topo.Depth(),
			Hex:   topo.Hex(),
		}, nil
	case *landmark.Graph:
		adj := make([][]int, topo.Units())
		for i := range adj {
			adj[i] = topo.Neighbors(i)
		}
		return &topologyRecord{Kind: "graph", Adj: adj}, nil
	default:
		return nil, &ErrUnknownTopology{Kind: fmt.Sprintf("%T", t)}
	}
}

func (rec *topologyRecord) topology() (landmark.Topology, error) {
	switch rec.Kind {
	case "grid":
		return landmark.NewGrid(rec.Rows, rec.Cols, func(o *landmark.GridOptions) {
			o.Depth = rec.Depth
			o.Hex = rec.Hex
		})
	case "graph":
		return landmark.NewGraph(rec.Adj)
	default:
		return nil, &ErrUnknownTopology{Kind: rec.Kind}
	}
}

func encodeCodebook(cb []float32, half bool) ([]byte, uint32) {
	if !half {
		return encodeFloat32s(cb), 0
	}
	out := make([]byte, len(cb)*2)
	for i, v := range cb {
		binary.LittleEndian.PutUint16(out[i*2:], float16.Fromfloat32(v).Bits())
	}
	return out, flagFloat16Codebook
}

func decodeCodebook(raw []byte, flags uint32, count int) ([]float32, error) {
	if flags&flagFloat16Codebook != 0 {
		if len(raw) != count*2 {
			return nil, ErrTruncated
		}
		out := make([]float32, count)
		for i := range out {
			out[i] = float16.Frombits(binary.LittleEndian.Uint16(raw[i*2:])).Float32()
		}
		return out, nil
	}
	return decodeFloat32s(raw, count)
}

func encodeFloat32s(vals []float32) []byte {
	if len(vals) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*4)
}

func decodeFloat32s(raw []byte, count int) ([]float32, error) {
	if count == 0 || len(raw) != count*4 {
		return nil, ErrTruncated
	}
	out := make([]float32, count)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), count*4), raw)
	return out, nil
}

func encodeFloat64s(vals []float64) []byte {
	if len(vals) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vals[0])), len(vals)*8)
}

func decodeFloat64s(raw []byte, count int) ([]float64, error) {
	if count == 0 || len(raw) != count*8 {
		return nil, ErrTruncated
	}
	out := make([]float64, count)
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), count*8), raw)
	return out, nil
}
