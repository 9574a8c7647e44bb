// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"encoding/binary"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Buffer is a reference-counted handle onto a region of allocator memory.
// Several handles may share one allocation through Slice or
// TransferOwnership; the memory is returned when the last of them is
// released.
type Buffer struct {
	buf    *memory.Buffer
	ledger *ledger
	refs   int

	readerIndex int
	writerIndex int
}

// wrapArrowBuffer adopts an existing arrow buffer without copying. The
// bytes stay accounted to whichever allocator produced them.
func wrapArrowBuffer(b *memory.Buffer) *Buffer {
	if b == nil || b.Len() == 0 {
		return &Buffer{refs: 1}
	}
	b.Retain()
	return &Buffer{buf: b, refs: 1}
}

// Capacity returns the usable size of the buffer in bytes.
func (b *Buffer) Capacity() int {
	if b == nil || b.buf == nil {
		return 0
	}
	return b.buf.Len()
}

// Bytes returns the whole buffer. The slice aliases the buffer memory.
func (b *Buffer) Bytes() []byte {
	if b == nil || b.buf == nil {
		return nil
	}
	return b.buf.Bytes()
}

func (b *Buffer) ReaderIndex() int     { return b.readerIndex }
func (b *Buffer) SetReaderIndex(i int) { b.readerIndex = i }
func (b *Buffer) WriterIndex() int     { return b.writerIndex }
func (b *Buffer) SetWriterIndex(i int) { b.writerIndex = i }

// Readable returns the bytes between the reader and writer indices.
func (b *Buffer) Readable() []byte {
	if b.writerIndex <= b.readerIndex {
		return nil
	}
	return b.Bytes()[b.readerIndex:b.writerIndex]
}

func (b *Buffer) Byte(off int) byte { return b.Bytes()[off] }

func (b *Buffer) SetByte(off int, v byte) { b.Bytes()[off] = v }

// Int32 reads a little-endian int32 at byte offset off.
func (b *Buffer) Int32(off int) int32 {
	return int32(binary.LittleEndian.Uint32(b.Bytes()[off : off+4]))
}

// SetInt32 writes a little-endian int32 at byte offset off.
func (b *Buffer) SetInt32(off int, v int32) {
	binary.LittleEndian.PutUint32(b.Bytes()[off:off+4], uint32(v))
}

// SetZero clears n bytes starting at off.
func (b *Buffer) SetZero(off, n int) {
	clear(b.Bytes()[off : off+n])
}

// Retain adds a reference.
func (b *Buffer) Retain() {
	b.refs++
}

// Retained is Retain returning the receiver, for use in expressions.
func (b *Buffer) Retained() *Buffer {
	b.Retain()
	return b
}

// Release drops a reference and frees the memory when none remain.
func (b *Buffer) Release() {
	if b == nil {
		return
	}
	if b.refs <= 0 {
		panic("vector: buffer released too many times")
	}
	b.refs--
	if b.refs == 0 && b.buf != nil {
		b.buf.Release()
		b.buf = nil
		b.ledger = nil
	}
}

// RefCount returns the number of outstanding references on this handle.
func (b *Buffer) RefCount() int { return b.refs }

// Allocator returns the allocator currently accounting for the memory,
// or nil for empty and imported buffers.
func (b *Buffer) Allocator() *Allocator {
	if b.ledger == nil {
		return nil
	}
	b.ledger.mu.Lock()
	defer b.ledger.mu.Unlock()
	return b.ledger.owner
}

// Slice returns a new handle onto [off, off+n) sharing the same memory.
func (b *Buffer) Slice(off, n int) *Buffer {
	if off < 0 || n < 0 || off+n > b.Capacity() {
		panic(fmt.Sprintf("vector: slice [%d:%d] out of range for buffer of %d bytes", off, off+n, b.Capacity()))
	}
	if n == 0 || b.buf == nil {
		return &Buffer{refs: 1}
	}
	return &Buffer{buf: memory.SliceBuffer(b.buf, off, n), ledger: b.ledger, refs: 1}
}

// TransferOwnership moves the accounting for the underlying allocation to
// target and returns a new handle onto the same bytes. The receiver keeps
// its reference and must still be released by the caller.
func (b *Buffer) TransferOwnership(target *Allocator) *Buffer {
	if b.buf == nil {
		return target.Empty()
	}
	if b.ledger != nil {
		b.ledger.transfer(target)
	}
	b.buf.Retain()
	return &Buffer{buf: b.buf, ledger: b.ledger, refs: 1}
}

// arrowBuffer exposes the underlying arrow buffer for zero-copy export.
func (b *Buffer) arrowBuffer() *memory.Buffer {
	if b == nil {
		return nil
	}
	return b.buf
}

// transferBuffer hands b to target and drops the caller's reference.
func transferBuffer(b *Buffer, target *Allocator) *Buffer {
	out := b.TransferOwnership(target)
	b.Release()
	return out
}
