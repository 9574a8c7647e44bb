// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"encoding/binary"
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/cespare/xxhash/v2"
)

type fixedValue interface {
	~int32 | ~int64 | ~float64
}

// fixedLayout describes how one element type is stored.
type fixedLayout[T fixedValue] struct {
	minor MinorType
	dtype arrow.DataType
	width int
	get   func(b []byte) T
	put   func(b []byte, v T)
}

var int32Layout = fixedLayout[int32]{
	minor: MinorInt32,
	dtype: arrow.PrimitiveTypes.Int32,
	width: 4,
	get:   func(b []byte) int32 { return int32(binary.LittleEndian.Uint32(b)) },
	put:   func(b []byte, v int32) { binary.LittleEndian.PutUint32(b, uint32(v)) },
}

var int64Layout = fixedLayout[int64]{
	minor: MinorInt64,
	dtype: arrow.PrimitiveTypes.Int64,
	width: 8,
	get:   func(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) },
	put:   func(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) },
}

var float64Layout = fixedLayout[float64]{
	minor: MinorFloat64,
	dtype: arrow.PrimitiveTypes.Float64,
	width: 8,
	get:   func(b []byte) float64 { return math.Float64frombits(binary.LittleEndian.Uint64(b)) },
	put:   func(b []byte, v float64) { binary.LittleEndian.PutUint64(b, math.Float64bits(v)) },
}

// FixedWidthVector stores nullable fixed-width values in a validity bitmap
// and a data buffer.
type FixedWidthVector[T fixedValue] struct {
	name   string
	alloc  *Allocator
	layout fixedLayout[T]

	validity *Buffer
	data     *Buffer

	valueCount      int
	initialCapacity int
}

type (
	Int32Vector   = FixedWidthVector[int32]
	Int64Vector   = FixedWidthVector[int64]
	Float64Vector = FixedWidthVector[float64]
)

func NewInt32Vector(name string, alloc *Allocator) *Int32Vector {
	return newFixedWidthVector(name, alloc, int32Layout)
}

func NewInt64Vector(name string, alloc *Allocator) *Int64Vector {
	return newFixedWidthVector(name, alloc, int64Layout)
}

func NewFloat64Vector(name string, alloc *Allocator) *Float64Vector {
	return newFixedWidthVector(name, alloc, float64Layout)
}

func newFixedWidthVector[T fixedValue](name string, alloc *Allocator, layout fixedLayout[T]) *FixedWidthVector[T] {
	return &FixedWidthVector[T]{
		name:            name,
		alloc:           alloc,
		layout:          layout,
		validity:        alloc.Empty(),
		data:            alloc.Empty(),
		initialCapacity: alloc.cfg.InitialValueAllocation,
	}
}

func (v *FixedWidthVector[T]) Name() string          { return v.name }
func (v *FixedWidthVector[T]) MinorType() MinorType  { return v.layout.minor }
func (v *FixedWidthVector[T]) Allocator() *Allocator { return v.alloc }
func (v *FixedWidthVector[T]) ValueCount() int       { return v.valueCount }
func (v *FixedWidthVector[T]) Children() []Vector    { return nil }

func (v *FixedWidthVector[T]) Field() arrow.Field {
	return arrow.Field{Name: v.name, Type: v.layout.dtype, Nullable: true}
}

// DataBuffer returns the value buffer.
func (v *FixedWidthVector[T]) DataBuffer() *Buffer { return v.data }

// ValidityBuffer returns the validity bitmap.
func (v *FixedWidthVector[T]) ValidityBuffer() *Buffer { return v.validity }

func (v *FixedWidthVector[T]) ValueCapacity() int {
	return min(v.data.Capacity()/v.layout.width, v.validity.Capacity()*8)
}

func (v *FixedWidthVector[T]) SetInitialCapacity(n int) {
	v.initialCapacity = n
}

func (v *FixedWidthVector[T]) AllocateNew() error {
	v.Clear()
	n := max(v.initialCapacity, 1)
	validity, err := v.alloc.allocate(validitySize(n), v.name, "validity")
	if err != nil {
		return err
	}
	data, err := v.alloc.allocate(n*v.layout.width, v.name, "data")
	if err != nil {
		validity.Release()
		return err
	}
	v.validity.Release()
	v.data.Release()
	v.validity, v.data = validity, data
	return nil
}

func (v *FixedWidthVector[T]) AllocateNewSafe() bool {
	if err := v.AllocateNew(); err != nil {
		v.Clear()
		return false
	}
	return true
}

// ReAlloc doubles the value capacity. Data and validity are replaced
// together or not at all.
func (v *FixedWidthVector[T]) ReAlloc() error {
	target := v.ValueCapacity() * 2
	if target == 0 {
		target = max(v.initialCapacity, 1)
	}
	var data, validity *Buffer
	if v.data.Capacity() < target*v.layout.width {
		nb, err := v.alloc.expand(v.data, target*v.layout.width/2, v.name, "data")
		if err != nil {
			return err
		}
		data = nb
	}
	if v.validity.Capacity() < validitySize(target) {
		nb, err := v.alloc.expand(v.validity, validitySize(target)/2, v.name, "validity")
		if err != nil {
			data.Release()
			return err
		}
		validity = nb
	}
	if data != nil {
		v.alloc.commitGrowth(v.data, data, v.name, "data")
		v.data = data
	}
	if validity != nil {
		v.alloc.commitGrowth(v.validity, validity, v.name, "validity")
		v.validity = validity
	}
	return nil
}

func (v *FixedWidthVector[T]) ensure(i int) error {
	for i >= v.ValueCapacity() {
		if err := v.ReAlloc(); err != nil {
			return err
		}
	}
	return nil
}

func (v *FixedWidthVector[T]) SetValueCount(n int) error {
	if err := v.ensure(n - 1); err != nil {
		return err
	}
	v.valueCount = n
	return nil
}

// Set stores x at i. The slot must be within capacity.
func (v *FixedWidthVector[T]) Set(i int, x T) {
	setValid(v.validity, i)
	w := v.layout.width
	v.layout.put(v.data.Bytes()[i*w:(i+1)*w], x)
}

// SetSafe stores x at i, growing the buffers as needed.
func (v *FixedWidthVector[T]) SetSafe(i int, x T) error {
	if err := v.ensure(i); err != nil {
		return err
	}
	v.Set(i, x)
	return nil
}

// SetNull marks slot i null.
func (v *FixedWidthVector[T]) SetNull(i int) {
	setInvalid(v.validity, i)
}

// SetNullSafe marks slot i null, growing the buffers as needed.
func (v *FixedWidthVector[T]) SetNullSafe(i int) error {
	if err := v.ensure(i); err != nil {
		return err
	}
	v.SetNull(i)
	return nil
}

// Get returns the value at i regardless of validity.
func (v *FixedWidthVector[T]) Get(i int) T {
	w := v.layout.width
	return v.layout.get(v.data.Bytes()[i*w : (i+1)*w])
}

func (v *FixedWidthVector[T]) IsNull(i int) bool {
	return !isValid(v.validity, i)
}

func (v *FixedWidthVector[T]) NullCount() int {
	return nullCount(v.validity, v.valueCount)
}

func (v *FixedWidthVector[T]) NullPositions() *roaring.Bitmap {
	return nullPositions(v.validity, v.valueCount)
}

func (v *FixedWidthVector[T]) GetObject(i int) any {
	if v.IsNull(i) {
		return nil
	}
	return v.Get(i)
}

// HashCode hashes the raw element bytes; null slots hash to 0.
func (v *FixedWidthVector[T]) HashCode(i int) uint64 {
	if v.IsNull(i) {
		return 0
	}
	w := v.layout.width
	return xxhash.Sum64(v.data.Bytes()[i*w : (i+1)*w])
}

func (v *FixedWidthVector[T]) BufferSize() int {
	return v.BufferSizeFor(v.valueCount)
}

func (v *FixedWidthVector[T]) BufferSizeFor(n int) int {
	if n == 0 {
		return 0
	}
	return validitySize(n) + n*v.layout.width
}

func (v *FixedWidthVector[T]) FieldBuffers() []*Buffer {
	v.validity.SetReaderIndex(0)
	v.data.SetReaderIndex(0)
	if v.valueCount == 0 {
		v.validity.SetWriterIndex(0)
		v.data.SetWriterIndex(0)
	} else {
		v.validity.SetWriterIndex(validitySize(v.valueCount))
		v.data.SetWriterIndex(v.valueCount * v.layout.width)
	}
	return []*Buffer{v.validity, v.data}
}

func (v *FixedWidthVector[T]) LoadFieldBuffers(node FieldNode, buffers []*Buffer) error {
	if len(buffers) != 2 {
		return illegalArgument("illegal buffer count for %q, expected 2, got %d", v.name, len(buffers))
	}
	if n := node.Length; n > 0 && (buffers[0].Capacity() < validitySize(n) || buffers[1].Capacity() < n*v.layout.width) {
		return illegalArgument("buffers of %d and %d bytes cannot hold %d values of %q", buffers[0].Capacity(), buffers[1].Capacity(), n, v.name)
	}
	buffers[0].Retain()
	buffers[1].Retain()
	v.validity.Release()
	v.data.Release()
	v.validity, v.data = buffers[0], buffers[1]
	v.valueCount = node.Length
	return nil
}

func (v *FixedWidthVector[T]) Buffers(clear bool) []*Buffer {
	if v.BufferSize() == 0 {
		if clear {
			v.Clear()
		}
		return nil
	}
	out := v.FieldBuffers()
	if clear {
		for _, b := range out {
			b.Retain()
		}
		v.Clear()
	}
	return out
}

func (v *FixedWidthVector[T]) TransferPair(name string, alloc *Allocator, _ CallBack) TransferPair {
	return &fixedTransferPair[T]{from: v, to: newFixedWidthVector(name, alloc, v.layout)}
}

func (v *FixedWidthVector[T]) MakeTransferPair(target Vector) (TransferPair, error) {
	to, ok := target.(*FixedWidthVector[T])
	if !ok || to.layout.minor != v.layout.minor {
		return nil, illegalArgument("cannot transfer %s vector %q to %s vector", v.layout.minor, v.name, target.MinorType())
	}
	return &fixedTransferPair[T]{from: v, to: to}, nil
}

func (v *FixedWidthVector[T]) CopyFromSafe(from, to int, src Vector) error {
	in, ok := src.(*FixedWidthVector[T])
	if !ok || in.layout.minor != v.layout.minor {
		return illegalArgument("cannot copy %s into %s vector %q", src.MinorType(), v.layout.minor, v.name)
	}
	if in.IsNull(from) {
		return v.SetNullSafe(to)
	}
	return v.SetSafe(to, in.Get(from))
}

func (v *FixedWidthVector[T]) Clear() {
	v.validity.Release()
	v.data.Release()
	v.validity = v.alloc.Empty()
	v.data = v.alloc.Empty()
	v.valueCount = 0
}

// Reset zeroes the buffers but keeps them allocated.
func (v *FixedWidthVector[T]) Reset() {
	v.validity.SetZero(0, v.validity.Capacity())
	v.data.SetZero(0, v.data.Capacity())
	v.valueCount = 0
}

func (v *FixedWidthVector[T]) Close() { v.Clear() }

type fixedTransferPair[T fixedValue] struct {
	from, to *FixedWidthVector[T]
}

func (p *fixedTransferPair[T]) To() Vector { return p.to }

func (p *fixedTransferPair[T]) Transfer() error {
	to, from := p.to, p.from
	to.Clear()
	to.validity.Release()
	to.data.Release()
	to.validity = transferBuffer(from.validity, to.alloc)
	to.data = transferBuffer(from.data, to.alloc)
	to.valueCount = from.valueCount
	from.validity = from.alloc.Empty()
	from.data = from.alloc.Empty()
	from.Clear()
	return nil
}

// SplitAndTransfer shares the data bytes with the source and copies
// validity when the start is not byte aligned. Shared allocations are
// accounted to the target allocator afterwards.
func (p *fixedTransferPair[T]) SplitAndTransfer(start, length int) error {
	to, from := p.to, p.from
	if start < 0 || length < 0 || start+length > from.valueCount {
		return illegalArgument("slice [%d, %d) out of range for %d values", start, start+length, from.valueCount)
	}
	to.Clear()
	if length == 0 {
		return nil
	}
	validity, err := splitValidity(from.validity, start, length, to.alloc)
	if err != nil {
		return err
	}
	w := from.layout.width
	to.validity.Release()
	to.data.Release()
	to.validity = validity
	to.data = transferBuffer(from.data.Slice(start*w, length*w), to.alloc)
	to.valueCount = length
	return nil
}

func (p *fixedTransferPair[T]) CopyValueSafe(from, to int) error {
	return p.to.CopyFromSafe(from, to, p.from)
}
