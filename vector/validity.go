// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
)

// Validity bitmaps use one bit per slot, least significant bit first. A set
// bit marks a present value.

// validitySize returns the bytes needed to hold n validity bits.
func validitySize(n int) int {
	return int(bitutil.BytesForBits(int64(n)))
}

func isValid(b *Buffer, i int) bool {
	return bitutil.BitIsSet(b.Bytes(), i)
}

func setValid(b *Buffer, i int) {
	bitutil.SetBit(b.Bytes(), i)
}

func setInvalid(b *Buffer, i int) {
	bitutil.ClearBit(b.Bytes(), i)
}

func setValidity(b *Buffer, i int, valid bool) {
	bitutil.SetBitTo(b.Bytes(), i, valid)
}

// nullCount counts cleared bits in [0, n).
func nullCount(b *Buffer, n int) int {
	if n == 0 {
		return 0
	}
	if b.Capacity() == 0 {
		return n
	}
	return n - bitutil.CountSetBits(b.Bytes(), 0, n)
}

// nullPositions returns the indices of cleared bits in [0, n).
func nullPositions(b *Buffer, n int) *roaring.Bitmap {
	rb := roaring.New()
	if b.Capacity() == 0 {
		rb.AddRange(0, uint64(n))
		return rb
	}
	bits := b.Bytes()
	for i := 0; i < n; i++ {
		if !bitutil.BitIsSet(bits, i) {
			rb.Add(uint32(i))
		}
	}
	return rb
}

// splitValidity produces the validity for slots [start, start+length) of
// src as a bitmap starting at bit 0, owned by alloc. A byte-aligned start
// is served by a zero-copy slice whose whole allocation moves to alloc;
// otherwise the bits are copied into a fresh buffer.
func splitValidity(src *Buffer, start, length int, alloc *Allocator) (*Buffer, error) {
	size := validitySize(length)
	if length == 0 {
		return alloc.Empty(), nil
	}
	if start%8 == 0 {
		off := start / 8
		if off+size <= src.Capacity() {
			return transferBuffer(src.Slice(off, size), alloc), nil
		}
	}
	dst, err := alloc.Buffer(size)
	if err != nil {
		return nil, err
	}
	bitutil.CopyBitmap(src.Bytes(), start, length, dst.Bytes(), 0)
	return dst, nil
}
