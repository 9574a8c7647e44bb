// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package codec compresses individual vector buffers for the frame format.
//
// Each block is written as
//
//	[uncompressed size u32][compressed size u32][payload]
//
// A compressed size of zero means the payload is stored raw, which happens
// whenever compression would not shrink the block below 90% of its size.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type selects the block compression algorithm.
type Type uint8

const (
	None Type = 0
	LZ4  Type = 1
	ZSTD Type = 2
)

// HeaderSize is the byte length of a block header.
const HeaderSize = 8

var (
	ErrShortBlock   = errors.New("codec: block too small")
	ErrUnknownCodec = errors.New("codec: unknown compression type")
	ErrSizeMismatch = errors.New("codec: decompressed size mismatch")
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
		return fmt.Sprintf("codec(%d)", uint8(t))
	}
}

// Parse maps a codec name to its Type.
func Parse(name string) (Type, error) {
	switch name {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return ZSTD, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
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

// CompressBlock returns data framed with a block header, compressed with t
// when that helps.
func CompressBlock(data []byte, t Type) ([]byte, error) {
	var compressed []byte
	switch t {
	case None:
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		compressed = buf[:n]
	case ZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, t)
	}

	if len(compressed) == 0 || float64(len(compressed)) > float64(len(data))*0.9 {
		out := make([]byte, HeaderSize+len(data))
		binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
		copy(out[HeaderSize:], data)
		return out, nil
	}

	out := make([]byte, HeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[4:], uint32(len(compressed)))
	copy(out[HeaderSize:], compressed)
	return out, nil
}

// BlockSize reports the total framed length of the block starting at
// header, which must hold at least HeaderSize bytes.
func BlockSize(header []byte) (int, error) {
	if len(header) < HeaderSize {
		return 0, ErrShortBlock
	}
	raw := binary.LittleEndian.Uint32(header[0:])
	comp := binary.LittleEndian.Uint32(header[4:])
	if comp == 0 {
		return HeaderSize + int(raw), nil
	}
	return HeaderSize + int(comp), nil
}

// RawSize reports the uncompressed payload length of the block starting at
// header.
func RawSize(header []byte) (int, error) {
	if len(header) < HeaderSize {
		return 0, ErrShortBlock
	}
	return int(binary.LittleEndian.Uint32(header[0:])), nil
}

// DecompressBlock decodes a block produced by CompressBlock into dst, which
// must have room for the uncompressed size. It returns the number of bytes
// written.
func DecompressBlock(block, dst []byte, t Type) (int, error) {
	if len(block) < HeaderSize {
		return 0, ErrShortBlock
	}
	raw := int(binary.LittleEndian.Uint32(block[0:]))
	comp := int(binary.LittleEndian.Uint32(block[4:]))
	if len(dst) < raw {
		return 0, fmt.Errorf("%w: need %d bytes, have %d", ErrSizeMismatch, raw, len(dst))
	}

	if comp == 0 {
		if len(block) < HeaderSize+raw {
			return 0, ErrShortBlock
		}
		return copy(dst, block[HeaderSize:HeaderSize+raw]), nil
	}
	if len(block) < HeaderSize+comp {
		return 0, ErrShortBlock
	}
	payload := block[HeaderSize : HeaderSize+comp]

	switch t {
	case LZ4:
		n, err := lz4.UncompressBlock(payload, dst[:raw])
		if err != nil {
			return 0, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != raw {
			return 0, ErrSizeMismatch
		}
		return n, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		out, err := dec.DecodeAll(payload, dst[:0:raw])
		if err != nil {
			return 0, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != raw {
			return 0, ErrSizeMismatch
		}
		return raw, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownCodec, t)
	}
}
