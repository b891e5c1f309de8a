package snapshot

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the per-section compression scheme.
type Compression uint32

const (
	// CompressionNone stores sections raw.
	CompressionNone Compression = iota
	// CompressionZstd compresses sections with zstd.
	CompressionZstd
	// CompressionLZ4 compresses sections with the LZ4 frame format.
	CompressionLZ4
)

// String implements the fmt.Stringer interface.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// ErrUnknownCompression is returned when a section records a compression
// scheme this build cannot decode.
type ErrUnknownCompression struct {
	Compression uint32
}

func (e *ErrUnknownCompression) Error() string {
	return fmt.Sprintf("snapshot: unknown compression scheme %d", e.Compression)
}

// Stateless zstd coders, shared across snapshots. EncodeAll/DecodeAll are
// safe for concurrent use.
var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	zstdDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
)

func compress(scheme Compression, raw []byte) ([]byte, error) {
	switch scheme {
	case CompressionNone:
		return raw, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/2)), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(raw); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, &ErrUnknownCompression{Compression: uint32(scheme)}
	}
}

func decompress(scheme Compression, stored []byte, rawLen uint64) ([]byte, error) {
	switch scheme {
	case CompressionNone:
		return stored, nil
	case CompressionZstd:
		return zstdDecoder.DecodeAll(stored, make([]byte, 0, rawLen))
	case CompressionLZ4:
		out := make([]byte, 0, rawLen)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, lz4.NewReader(bytes.NewReader(stored))); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, &ErrUnknownCompression{Compression: uint32(scheme)}
	}
}
