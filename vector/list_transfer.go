// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"log/slog"
)

type listTransferPair struct {
	from  *ListVector
	to    *ListVector
	child TransferPair
}

// TransferPair returns a pair whose target is a new, empty list named name
// and accounted to alloc.
func (v *ListVector) TransferPair(name string, alloc *Allocator, cb CallBack) TransferPair {
	to := &ListVector{
		name:                   name,
		alloc:                  alloc,
		fieldType:              v.fieldType,
		cb:                     cb,
		validity:               alloc.Empty(),
		offsets:                alloc.Empty(),
		lastSet:                -1,
		validityAllocationSize: v.validityAllocationSize,
		offsetAllocationSize:   v.offsetAllocationSize,
	}
	childPair := v.child.TransferPair(v.child.Name(), alloc, cb)
	to.child = childPair.To()
	return &listTransferPair{from: v, to: to, child: childPair}
}

// MakeTransferPair pairs v with an existing list. A target without an
// element type takes on v's.
func (v *ListVector) MakeTransferPair(target Vector) (TransferPair, error) {
	to, ok := target.(*ListVector)
	if !ok {
		return nil, illegalArgument("cannot transfer list %q to %s vector", v.name, target.MinorType())
	}
	if _, isNull := v.child.(*NullVector); !isNull {
		if _, _, err := to.AddOrGetVector(FieldTypeOf(v.child.Field())); err != nil {
			return nil, err
		}
	}
	childPair, err := v.child.MakeTransferPair(to.child)
	if err != nil {
		return nil, err
	}
	return &listTransferPair{from: v, to: to, child: childPair}, nil
}

func (p *listTransferPair) To() Vector { return p.to }

// Transfer hands every buffer to the target's allocator without copying
// and leaves the source empty.
func (p *listTransferPair) Transfer() error {
	from, to := p.from, p.to
	to.Clear()
	if err := p.child.Transfer(); err != nil {
		return err
	}

	to.validity.Release()
	to.offsets.Release()
	to.validity = transferBuffer(from.validity, to.alloc)
	to.offsets = transferBuffer(from.offsets, to.alloc)
	from.validity = from.alloc.Empty()
	from.offsets = from.alloc.Empty()

	to.lastSet = from.lastSet
	to.validityAllocationSize = max(to.validity.Capacity(), from.validityAllocationSize)
	to.offsetAllocationSize = max(to.offsets.Capacity(), from.offsetAllocationSize)
	if from.valueCount > 0 {
		if err := to.SetValueCount(from.valueCount); err != nil {
			return err
		}
	}
	slog.Debug("list transferred", "from", from.name, "to", to.name, "values", from.valueCount)
	from.Clear()
	return nil
}

// SplitAndTransfer moves slots [start, start+length) to the target. The
// target gets rebased offsets and its own validity bitmap; child elements
// are split through the child's transfer pair.
func (p *listTransferPair) SplitAndTransfer(start, length int) error {
	from, to := p.from, p.to
	if start < 0 || length < 0 || start+length > from.valueCount {
		return illegalArgument("slice [%d, %d) out of range for %d values", start, start+length, from.valueCount)
	}
	to.Clear()
	if length == 0 {
		return nil
	}

	startPoint := from.offset(start)
	sliceLength := from.offset(start+length) - startPoint

	offsets, err := to.alloc.allocate((length+1)*OffsetWidth, to.name, "offsets")
	if err != nil {
		return err
	}
	for i := 0; i <= length; i++ {
		offsets.SetInt32(i*OffsetWidth, int32(from.offset(start+i)-startPoint))
	}

	validity, err := splitValidity(from.validity, start, length, to.alloc)
	if err != nil {
		offsets.Release()
		return err
	}

	to.validity.Release()
	to.offsets.Release()
	to.validity, to.offsets = validity, offsets
	to.offsetAllocationSize = offsets.Capacity()

	if err := p.child.SplitAndTransfer(startPoint, sliceLength); err != nil {
		return err
	}
	to.lastSet = length - 1
	return to.SetValueCount(length)
}

func (p *listTransferPair) CopyValueSafe(from, to int) error {
	return p.to.CopyFrom(from, to, p.from)
}
