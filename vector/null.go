// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
)

// NullVector holds only a length; every slot is null. A fresh list vector
// uses one as its child until an element type is known.
type NullVector struct {
	name       string
	valueCount int
}

func NewNullVector(name string) *NullVector {
	return &NullVector{name: name}
}

func (v *NullVector) Name() string { return v.name }

func (v *NullVector) Field() arrow.Field {
	return arrow.Field{Name: v.name, Type: arrow.Null, Nullable: true}
}

func (v *NullVector) MinorType() MinorType   { return MinorNull }
func (v *NullVector) Allocator() *Allocator  { return nil }
func (v *NullVector) ValueCount() int        { return v.valueCount }
func (v *NullVector) ValueCapacity() int     { return math.MaxInt32 }
func (v *NullVector) SetInitialCapacity(int) {}
func (v *NullVector) AllocateNew() error     { return nil }
func (v *NullVector) AllocateNewSafe() bool  { return true }
func (v *NullVector) ReAlloc() error         { return nil }
func (v *NullVector) IsNull(int) bool        { return true }
func (v *NullVector) NullCount() int         { return v.valueCount }
func (v *NullVector) GetObject(int) any      { return nil }
func (v *NullVector) HashCode(int) uint64    { return 0 }
func (v *NullVector) BufferSize() int        { return 0 }
func (v *NullVector) BufferSizeFor(int) int  { return 0 }
func (v *NullVector) FieldBuffers() []*Buffer {
	return nil
}
func (v *NullVector) Children() []Vector { return nil }

func (v *NullVector) SetValueCount(n int) error {
	v.valueCount = n
	return nil
}

func (v *NullVector) LoadFieldBuffers(node FieldNode, buffers []*Buffer) error {
	if len(buffers) != 0 {
		return illegalArgument("null vector %q takes no buffers, got %d", v.name, len(buffers))
	}
	v.valueCount = node.Length
	return nil
}

func (v *NullVector) Buffers(clear bool) []*Buffer {
	if clear {
		v.Clear()
	}
	return nil
}

func (v *NullVector) TransferPair(name string, _ *Allocator, _ CallBack) TransferPair {
	return &nullTransferPair{from: v, to: NewNullVector(name)}
}

func (v *NullVector) MakeTransferPair(target Vector) (TransferPair, error) {
	to, ok := target.(*NullVector)
	if !ok {
		return nil, illegalArgument("cannot transfer null vector %q to %s vector", v.name, target.MinorType())
	}
	return &nullTransferPair{from: v, to: to}, nil
}

func (v *NullVector) CopyFromSafe(_, to int, src Vector) error {
	if src.MinorType() != MinorNull {
		return illegalArgument("cannot copy %s into null vector %q", src.MinorType(), v.name)
	}
	if to >= v.valueCount {
		v.valueCount = to + 1
	}
	return nil
}

func (v *NullVector) Clear() { v.valueCount = 0 }
func (v *NullVector) Reset() { v.valueCount = 0 }
func (v *NullVector) Close() { v.valueCount = 0 }

type nullTransferPair struct {
	from, to *NullVector
}

func (p *nullTransferPair) Transfer() error {
	p.to.valueCount = p.from.valueCount
	p.from.Clear()
	return nil
}

func (p *nullTransferPair) SplitAndTransfer(start, length int) error {
	if start < 0 || length < 0 || start+length > p.from.valueCount {
		return illegalArgument("slice [%d, %d) out of range for %d values", start, start+length, p.from.valueCount)
	}
	p.to.valueCount = length
	return nil
}

func (p *nullTransferPair) To() Vector { return p.to }

func (p *nullTransferPair) CopyValueSafe(from, to int) error {
	return p.to.CopyFromSafe(from, to, p.from)
}
