// Package compress encodes spilled partition indexes as single compressed blocks.
//
// Block format: [UncompressedSize uint32][CompressedSize uint32][Data...].
// CompressedSize == 0 marks a block stored raw.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type selects the block compression algorithm.
type Type uint8

const (
	// None stores blocks raw.
	None Type = iota
	// LZ4 favors speed.
	LZ4
	// ZSTD favors ratio.
	ZSTD
)

const headerSize = 8

var (
	// ErrShortBlock is returned for blocks smaller than their header claims.
	ErrShortBlock = errors.New("compress: short block")
	// ErrSizeMismatch is returned when a block decodes to an unexpected length.
	ErrSizeMismatch = errors.New("compress: decompressed size mismatch")
	// ErrUnknownType is returned by ParseType.
	ErrUnknownType = errors.New("compress: unknown type")
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ParseType parses "none", "lz4" or "zstd".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode compresses data into a block. Data that does not shrink below 90%
// of its size is stored raw.
func Encode(data []byte, t Type) ([]byte, error) {
	var compressed []byte
	switch t {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4: %w", err)
		}
		compressed = buf[:n]
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	}

	raw := len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9
	if raw {
		compressed = data
	}
	out := make([]byte, headerSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	if !raw {
		binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	}
	copy(out[headerSize:], compressed)
	return out, nil
}

// Decode restores the data of a block written by Encode with the same type.
func Decode(block []byte, t Type) ([]byte, error) {
	if len(block) < headerSize {
		return nil, ErrShortBlock
	}
	uncompressedSize := int(binary.LittleEndian.Uint32(block[0:]))
	compressedSize := int(binary.LittleEndian.Uint32(block[4:]))

	if compressedSize == 0 {
		if len(block) < headerSize+uncompressedSize {
			return nil, ErrShortBlock
		}
		return block[headerSize : headerSize+uncompressedSize], nil
	}
	if len(block) < headerSize+compressedSize {
		return nil, ErrShortBlock
	}
	payload := block[headerSize : headerSize+compressedSize]
	result := make([]byte, uncompressedSize)

	switch t {
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		decoded, err := dec.DecodeAll(payload, result[:0])
		if err != nil {
			return nil, fmt.Errorf("compress: zstd: %w", err)
		}
		if len(decoded) != uncompressedSize {
			return nil, ErrSizeMismatch
		}
		return decoded, nil
	case LZ4:
		n, err := lz4.UncompressBlock(payload, result)
		if err != nil {
			return nil, fmt.Errorf("compress: lz4: %w", err)
		}
		if n != uncompressedSize {
			return nil, ErrSizeMismatch
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: compressed block for %s", ErrUnknownType, t)
	}
}
