// Package compress frames and compresses spilled slab blocks.
//
// Block format: [RawSize uint32][StoredSize uint32][payload...]
// StoredSize == 0 means the payload is stored uncompressed.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/hupe1980/slabtape/internal/conv"
)

// Type selects the compression algorithm for spilled slabs.
type Type uint8

const (
	// None writes raw slab bytes with no framing.
	None Type = 0
	// LZ4 uses LZ4 block compression (fast, modest ratio).
	LZ4 Type = 1
	// ZSTD uses zstd (slower, better ratio for cold slabs).
	ZSTD Type = 2
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
		return fmt.Sprintf("compress.Type(%d)", uint8(t))
	}
}

// Valid reports whether t is a known algorithm.
func (t Type) Valid() bool {
	return t <= ZSTD
}

// HeaderSize is the size of the block header.
const HeaderSize = 8

var (
	// ErrCorrupt is returned when a block cannot be decoded.
	ErrCorrupt = errors.New("compress: corrupt block")
	// ErrSizeMismatch is returned when a block decodes to an unexpected size.
	ErrSizeMismatch = errors.New("compress: decompressed size mismatch")
)

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode returns the stored form of raw. For None it returns raw itself.
// Blocks whose compressed form is not at least 10% smaller are stored raw
// behind a header.
func Encode(t Type, raw []byte) ([]byte, error) {
	if t == None || len(raw) == 0 {
		return raw, nil
	}

	var (
		payload []byte
		err     error
	)
	switch t {
	case LZ4:
		payload, err = encodeLZ4(raw)
	case ZSTD:
		enc := getZstdEncoder()
		payload = enc.EncodeAll(raw, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("compress: unknown type %d", t)
	}
	if err != nil {
		return nil, err
	}

	rawSize, err := conv.IntToUint32(len(raw))
	if err != nil {
		return nil, fmt.Errorf("compress: block too large: %w", err)
	}

	if len(payload) == 0 || float64(len(payload)) > float64(len(raw))*0.9 {
		out := make([]byte, HeaderSize+len(raw))
		binary.LittleEndian.PutUint32(out[0:], rawSize)
		binary.LittleEndian.PutUint32(out[4:], 0)
		copy(out[HeaderSize:], raw)
		return out, nil
	}

	storedSize, err := conv.IntToUint32(len(payload))
	if err != nil {
		return nil, fmt.Errorf("compress: block too large: %w", err)
	}
	out := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:], rawSize)
	binary.LittleEndian.PutUint32(out[4:], storedSize)
	copy(out[HeaderSize:], payload)
	return out, nil
}

func encodeLZ4(raw []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, dst, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return dst[:n], nil
}

// Decode decodes a stored block into dst, which must be exactly the raw size.
func Decode(t Type, stored, dst []byte) error {
	if t == None {
		if len(stored) != len(dst) {
			return ErrSizeMismatch
		}
		copy(dst, stored)
		return nil
	}
	if len(stored) < HeaderSize {
		return ErrCorrupt
	}

	rawSize, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(stored[0:]))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	storedSize, err := conv.Uint32ToInt(binary.LittleEndian.Uint32(stored[4:]))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if rawSize != len(dst) {
		return ErrSizeMismatch
	}

	if storedSize == 0 {
		if len(stored)-HeaderSize < rawSize {
			return ErrCorrupt
		}
		copy(dst, stored[HeaderSize:HeaderSize+rawSize])
		return nil
	}

	if len(stored)-HeaderSize < storedSize {
		return ErrCorrupt
	}
	payload := stored[HeaderSize : HeaderSize+storedSize]

	switch t {
	case LZ4:
		n, err := lz4.UncompressBlock(payload, dst)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if n != len(dst) {
			return ErrSizeMismatch
		}
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(payload, dst[:0])
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if len(out) != len(dst) {
			return ErrSizeMismatch
		}
	default:
		return fmt.Errorf("compress: unknown type %d", t)
	}
	return nil
}
