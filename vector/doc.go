// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package vector implements writable Apache Arrow columnar vectors built
// around a variable-length [ListVector].
//
// A list vector stores N slots in three parts: a validity bitmap with one
// bit per slot, an offset buffer of N+1 int32 entries and a single child
// vector that holds the elements of every list back to back. Slot i is the
// child range [offset[i], offset[i+1]). A slot is null (bit clear), an
// empty list (bit set, equal offsets) or a non-empty list.
//
// # Writing
//
// Slots are written in increasing order:
//
//	start, _ := v.StartNewValue(i)
//	// write k elements to v.DataVector() at start, start+1, ...
//	v.EndValue(i, k)
//	v.SetValueCount(n)
//
// Skipped slots stay null and become empty extents in the offset table.
// [ListWriter] wraps the same protocol and creates the child on first use.
// Writing a second element type through a writer promotes the child to a
// sparse [UnionVector] and fires the list's [CallBack] so that owners such
// as [Root] can resync their schema.
//
// # Memory
//
// Buffers come from an [Allocator], which wraps an arrow
// memory.Allocator, enforces an optional limit and tracks outstanding
// bytes. Growth doubles a buffer and rounds its size up to a power of two.
// Requests above [Config].MaxAllocationBytes fail with
// [ErrOversizedAllocation]; requests the limit cannot satisfy fail with
// [ErrOutOfMemory], which AllocateNewSafe reports as false.
//
// # Transfer
//
// A [TransferPair] moves buffers between vectors and allocators without
// copying. SplitAndTransfer moves a slot range: offsets are rebased into a
// new buffer, the validity bitmap is sliced when the start is byte aligned
// and bit-copied otherwise, and the child range is split recursively.
// Buffers shared with the source through a slice are accounted to the
// target allocator afterwards, so the source allocator can be closed while
// the target still holds them.
//
// # Interchange
//
// [ExportArray] and [ImportArray] convert to and from arrow arrays,
// [WriteRoot] and [ReadRoots] speak the arrow IPC stream format and
// [WriteVector] writes a compact single-vector frame whose buffers can be
// compressed with the codec package.
//
// # Errors
//
// Every error returned by this package wraps a [VectorError] whose Type
// matches one of [ErrIllegalArgument], [ErrOversizedAllocation],
// [ErrOutOfMemory], [ErrUnsupportedOperation] or [ErrIllegalState], so
// callers can test with errors.Is.
//
// Vectors are not safe for concurrent use. Allocator accounting is.
package vector
