// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/apache/arrow-go/v18/arrow"
)

// DataVectorName is the name given to a list's child when none is supplied.
const DataVectorName = "$data$"

// ListVector stores variable-length lists in a validity bitmap, an offset
// buffer of N+1 int32 entries and a single child vector holding every
// element back to back. Slot i spans child positions
// [offset[i], offset[i+1]).
//
// Slots are written in increasing order with StartNewValue and EndValue.
// Offsets past lastSet are undefined until SetValueCount fills them in.
type ListVector struct {
	name      string
	alloc     *Allocator
	fieldType FieldType
	cb        CallBack

	validity *Buffer
	offsets  *Buffer
	child    Vector

	valueCount int
	lastSet    int

	validityAllocationSize int
	offsetAllocationSize   int
}

// NewListVector creates an empty list vector. ft.Type must be a list type;
// a non-null element type creates the matching child.
func NewListVector(name string, alloc *Allocator, ft FieldType, cb CallBack) (*ListVector, error) {
	if ft.Type == nil {
		ft.Type = arrow.ListOfField(arrow.Field{Name: DataVectorName, Type: arrow.Null, Nullable: true})
	}
	lt, ok := ft.Type.(*arrow.ListType)
	if !ok {
		return nil, illegalArgument("list vector %q requires a list type, got %s", name, ft.Type)
	}

	initial := alloc.cfg.InitialValueAllocation
	v := &ListVector{
		name:                   name,
		alloc:                  alloc,
		fieldType:              ft,
		cb:                     cb,
		validity:               alloc.Empty(),
		offsets:                alloc.Empty(),
		lastSet:                -1,
		validityAllocationSize: validitySize(initial),
		offsetAllocationSize:   (initial + 1) * OffsetWidth,
	}

	elem := lt.ElemField()
	v.child = NewNullVector(elem.Name)
	if elem.Type.ID() != arrow.NULL {
		if err := v.InitializeChildrenFromFields([]arrow.Field{elem}); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// EmptyListVector returns a nullable list vector with no element type yet.
func EmptyListVector(name string, alloc *Allocator) *ListVector {
	v, _ := NewListVector(name, alloc, FieldType{Nullable: true}, nil)
	return v
}

// NewListVectorFromField creates a list vector, and its child, from f.
func NewListVectorFromField(f arrow.Field, alloc *Allocator, cb CallBack) (*ListVector, error) {
	return NewListVector(f.Name, alloc, FieldTypeOf(f), cb)
}

// InitializeChildrenFromFields creates the child from the single element
// field. Lists have exactly one child.
func (v *ListVector) InitializeChildrenFromFields(children []arrow.Field) error {
	if len(children) != 1 {
		names := make([]string, len(children))
		for i, c := range children {
			names[i] = c.Name
		}
		return illegalArgument("lists have only one child, found %d: [%s]", len(children), strings.Join(names, ", "))
	}
	f := children[0]
	child, created, err := v.addOrGetVector(f.Name, FieldTypeOf(f))
	if err != nil {
		return err
	}
	if !created {
		return illegalArgument("child vector already existed: %s", child.Field())
	}
	return nil
}

// AddOrGetVector returns the child for ft. A child that has no type yet is
// replaced and created reports true. Asking for a different type than the
// existing child fails; promote to a union first.
func (v *ListVector) AddOrGetVector(ft FieldType) (Vector, bool, error) {
	return v.addOrGetVector(v.child.Name(), ft)
}

func (v *ListVector) addOrGetVector(name string, ft FieldType) (Vector, bool, error) {
	if _, isNull := v.child.(*NullVector); isNull && ft.Type.ID() != arrow.NULL {
		child, err := ft.NewVector(name, v.alloc, v.cb)
		if err != nil {
			return nil, false, err
		}
		v.child.Close()
		v.child = child
		notify(v.cb)
		return child, true, nil
	}
	if !arrow.TypeEqual(v.child.Field().Type, ft.Type) {
		return nil, false, unsupportedOperation("inner vector type mismatch: requested %s, actual %s", ft.Type, v.child.Field().Type)
	}
	return v.child, false, nil
}

func (v *ListVector) Name() string          { return v.name }
func (v *ListVector) MinorType() MinorType  { return MinorList }
func (v *ListVector) Allocator() *Allocator { return v.alloc }
func (v *ListVector) ValueCount() int       { return v.valueCount }
func (v *ListVector) Children() []Vector    { return []Vector{v.child} }

// DataVector returns the child vector.
func (v *ListVector) DataVector() Vector { return v.child }

func (v *ListVector) ValidityBuffer() *Buffer { return v.validity }
func (v *ListVector) OffsetBuffer() *Buffer   { return v.offsets }

// DataBuffer always fails: list elements live in the child vector.
func (v *ListVector) DataBuffer() (*Buffer, error) {
	return nil, unsupportedOperation("list vector %q has no data buffer, use DataVector", v.name)
}

func (v *ListVector) Field() arrow.Field {
	return arrow.Field{
		Name:     v.name,
		Type:     arrow.ListOfField(v.child.Field()),
		Nullable: v.fieldType.Nullable,
		Metadata: v.fieldType.Metadata,
	}
}

func (v *ListVector) offset(i int) int {
	return int(v.offsets.Int32(i * OffsetWidth))
}

func (v *ListVector) setOffset(i, x int) {
	v.offsets.SetInt32(i*OffsetWidth, int32(x))
}

// fillHoles copies the running offset forward over slots [from, to].
func (v *ListVector) fillHoles(from, to int) {
	for i := from; i <= to; i++ {
		v.setOffset(i+1, v.offset(i))
	}
}

// ValueCapacity is the number of slots the validity and offset buffers can
// both address.
func (v *ListVector) ValueCapacity() int {
	offsetCap := max(v.offsets.Capacity()/OffsetWidth-1, 0)
	return min(offsetCap, v.validity.Capacity()*8)
}

// SetInitialCapacity sizes the next allocation for n slots and the child
// for n*DefaultRepeatPerRecord elements.
func (v *ListVector) SetInitialCapacity(n int) {
	v.validityAllocationSize = validitySize(n)
	v.offsetAllocationSize = (n + 1) * OffsetWidth
	v.child.SetInitialCapacity(n * DefaultRepeatPerRecord)
}

// SetInitialCapacityDensity sizes the next allocation for n slots holding
// on average density elements each. The child capacity is truncated and at
// least 1.
func (v *ListVector) SetInitialCapacityDensity(n int, density float64) error {
	inner := float64(n) * density
	if inner >= math.MaxInt32 {
		return oversizedAllocation("requested amount of memory for %q is more than max allowed", v.name)
	}
	v.validityAllocationSize = validitySize(n)
	v.offsetAllocationSize = (n + 1) * OffsetWidth
	innerCap := max(int(inner), 1)
	if da, ok := v.child.(DensityAware); ok {
		return da.SetInitialCapacityDensity(innerCap, density)
	}
	v.child.SetInitialCapacity(innerCap)
	return nil
}

// Density is the average list length over the current slots.
func (v *ListVector) Density() float64 {
	if v.valueCount == 0 {
		return 0
	}
	total := v.offset(v.valueCount) - v.offset(0)
	return float64(total) / float64(v.valueCount)
}

// AllocateNew releases the current buffers and allocates fresh ones using
// the configured allocation sizes.
func (v *ListVector) AllocateNew() error {
	v.Clear()
	validity, err := v.alloc.allocate(v.validityAllocationSize, v.name, "validity")
	if err != nil {
		return err
	}
	offsets, err := v.alloc.allocate(v.offsetAllocationSize, v.name, "offsets")
	if err != nil {
		validity.Release()
		return err
	}
	v.validity.Release()
	v.offsets.Release()
	v.validity, v.offsets = validity, offsets
	if err := v.child.AllocateNew(); err != nil {
		v.Clear()
		return err
	}
	return nil
}

// AllocateNewSafe is AllocateNew reporting failure as false. The vector is
// left cleared on failure.
func (v *ListVector) AllocateNewSafe() bool {
	if err := v.AllocateNew(); err != nil {
		slog.Debug("list allocation failed", "vector", v.name, "error", err)
		v.Clear()
		return false
	}
	return true
}

// ReAlloc doubles the validity, offset and child capacity. Validity and
// offsets are replaced together or not at all.
func (v *ListVector) ReAlloc() error {
	if err := v.reallocValidityAndOffsets(); err != nil {
		return err
	}
	return v.child.ReAlloc()
}

func (v *ListVector) reallocValidityAndOffsets() error {
	validity, err := v.alloc.expand(v.validity, v.validityAllocationSize, v.name, "validity")
	if err != nil {
		return err
	}
	offsets, err := v.alloc.expand(v.offsets, v.offsetAllocationSize, v.name, "offsets")
	if err != nil {
		validity.Release()
		return err
	}
	v.alloc.commitGrowth(v.validity, validity, v.name, "validity")
	v.alloc.commitGrowth(v.offsets, offsets, v.name, "offsets")
	v.validity, v.offsets = validity, offsets
	v.validityAllocationSize = validity.Capacity()
	v.offsetAllocationSize = offsets.Capacity()
	return nil
}

// ensure grows validity and offsets until slot i is addressable.
func (v *ListVector) ensure(i int) error {
	for i >= v.ValueCapacity() {
		if err := v.reallocValidityAndOffsets(); err != nil {
			return err
		}
	}
	return nil
}

// ReserveCapacity grows the validity and offset buffers to hold n slots.
func (v *ListVector) ReserveCapacity(n int) error {
	return v.ensure(n - 1)
}

// ReserveCapacityDensity reserves n slots and grows the child to hold
// n*density elements.
func (v *ListVector) ReserveCapacityDensity(n int, density float64) error {
	inner := float64(n) * density
	if inner >= math.MaxInt32 {
		return oversizedAllocation("requested amount of memory for %q is more than max allowed", v.name)
	}
	if err := v.ReserveCapacity(n); err != nil {
		return err
	}
	want := max(int(inner), 1)
	for v.child.ValueCapacity() < want {
		if err := v.child.ReAlloc(); err != nil {
			return err
		}
	}
	return nil
}

// StartNewValue opens slot i, marks it present and returns the child index
// where its elements begin. Uncommitted slots before i become empty lists
// in the offset table but keep their validity bit.
func (v *ListVector) StartNewValue(i int) (int, error) {
	if err := v.ensure(i); err != nil {
		return 0, err
	}
	v.fillHoles(v.lastSet+1, i)
	setValid(v.validity, i)
	v.lastSet = i
	return v.offset(v.lastSet + 1), nil
}

// EndValue closes slot i after size elements were written to the child.
func (v *ListVector) EndValue(i, size int) {
	v.setOffset(i+1, v.offset(i+1)+size)
}

// SetNotNull marks slot i present without touching the offsets.
func (v *ListVector) SetNotNull(i int) error {
	if err := v.ensure(i); err != nil {
		return err
	}
	setValid(v.validity, i)
	v.lastSet = i
	return nil
}

// SetNull marks slot i null and commits it with an empty extent.
func (v *ListVector) SetNull(i int) error {
	if err := v.ensure(i); err != nil {
		return err
	}
	if v.lastSet >= i {
		v.lastSet = i - 1
	}
	v.fillHoles(v.lastSet+1, i)
	setInvalid(v.validity, i)
	v.lastSet = i
	return nil
}

// SetValueCount fixes the number of slots to n. Offsets of uncommitted
// slots below n are filled with the last committed offset and the child
// length becomes the end offset of the last committed slot.
func (v *ListVector) SetValueCount(n int) error {
	v.valueCount = n
	if n > 0 {
		for n > v.ValueCapacity() {
			if err := v.reallocValidityAndOffsets(); err != nil {
				return err
			}
		}
		v.fillHoles(v.lastSet+1, n-1)
	}
	childCount := 0
	if n > 0 {
		childCount = v.offset(v.lastSet + 1)
	}
	return v.child.SetValueCount(childCount)
}

func (v *ListVector) LastSet() int     { return v.lastSet }
func (v *ListVector) SetLastSet(i int) { v.lastSet = i }

// ElementStartIndex returns the first child index of slot i.
func (v *ListVector) ElementStartIndex(i int) int { return v.offset(i) }

// ElementEndIndex returns the child index one past the end of slot i.
func (v *ListVector) ElementEndIndex(i int) int { return v.offset(i + 1) }

// ElementRange returns [start, end) of slot i in the child.
func (v *ListVector) ElementRange(i int) (start, end int) {
	return v.offset(i), v.offset(i + 1)
}

// IsSet returns 1 when slot i holds a list and 0 when it is null.
func (v *ListVector) IsSet(i int) int {
	if isValid(v.validity, i) {
		return 1
	}
	return 0
}

func (v *ListVector) IsNull(i int) bool {
	return v.IsSet(i) == 0
}

func (v *ListVector) NullCount() int {
	return nullCount(v.validity, v.valueCount)
}

// NullPositions returns the null slots below ValueCount.
func (v *ListVector) NullPositions() *roaring.Bitmap {
	return nullPositions(v.validity, v.valueCount)
}

// GetObject returns nil for a null slot and otherwise a new slice holding
// the child objects of the list.
func (v *ListVector) GetObject(i int) any {
	if v.IsNull(i) {
		return nil
	}
	start, end := v.ElementRange(i)
	vals := make([]any, 0, end-start)
	for j := start; j < end; j++ {
		vals = append(vals, v.child.GetObject(j))
	}
	return vals
}

// HashCode combines the element hashes of slot i in order.
func (v *ListVector) HashCode(i int) uint64 {
	if v.IsNull(i) {
		return 0
	}
	var h uint64
	start, end := v.ElementRange(i)
	for j := start; j < end; j++ {
		h = 31*h + v.child.HashCode(j)
	}
	return h
}

func (v *ListVector) BufferSize() int {
	if v.valueCount == 0 {
		return 0
	}
	return (v.valueCount+1)*OffsetWidth + validitySize(v.valueCount) + v.child.BufferSize()
}

func (v *ListVector) BufferSizeFor(n int) int {
	if n == 0 {
		return 0
	}
	childCount := 0
	if v.offsets.Capacity() >= (n+1)*OffsetWidth {
		childCount = v.offset(n)
	}
	return (n+1)*OffsetWidth + validitySize(n) + v.child.BufferSizeFor(childCount)
}

func (v *ListVector) setReaderAndWriterIndex() {
	v.validity.SetReaderIndex(0)
	v.offsets.SetReaderIndex(0)
	if v.valueCount == 0 {
		v.validity.SetWriterIndex(0)
		v.offsets.SetWriterIndex(0)
	} else {
		v.validity.SetWriterIndex(validitySize(v.valueCount))
		v.offsets.SetWriterIndex((v.valueCount + 1) * OffsetWidth)
	}
}

// FieldBuffers returns the validity and offset buffers, in that order, with
// their writer indices set to the bytes in use.
func (v *ListVector) FieldBuffers() []*Buffer {
	v.setReaderAndWriterIndex()
	return []*Buffer{v.validity, v.offsets}
}

// LoadFieldBuffers adopts a validity and an offset buffer, taking a
// reference to each.
func (v *ListVector) LoadFieldBuffers(node FieldNode, buffers []*Buffer) error {
	if len(buffers) != 2 {
		return illegalArgument("illegal buffer count, expected 2, got %d", len(buffers))
	}
	validity, offsets := buffers[0], buffers[1]
	if n := node.Length; n > 0 {
		if validity.Capacity() < validitySize(n) || offsets.Capacity() < (n+1)*OffsetWidth {
			return illegalArgument("buffers of %d and %d bytes cannot hold %d list slots", validity.Capacity(), offsets.Capacity(), n)
		}
	}
	validity.Retain()
	offsets.Retain()
	v.validity.Release()
	v.offsets.Release()
	v.validity, v.offsets = validity, offsets

	v.validityAllocationSize = validity.Capacity()
	v.offsetAllocationSize = offsets.Capacity()
	v.lastSet = node.Length - 1
	v.valueCount = node.Length
	return nil
}

func (v *ListVector) Buffers(clear bool) []*Buffer {
	v.setReaderAndWriterIndex()
	var out []*Buffer
	if v.BufferSize() > 0 {
		out = append(out, v.validity, v.offsets)
		out = append(out, v.child.Buffers(false)...)
	}
	if clear {
		for _, b := range out {
			b.Retain()
		}
		v.Clear()
	}
	return out
}

// CopyFrom copies slot in of src into slot out. Both vectors must be lists
// with compatible element types.
func (v *ListVector) CopyFrom(in, out int, src Vector) error {
	if src.MinorType() != v.MinorType() {
		return illegalArgument("cannot copy %s into list %q", src.MinorType(), v.name)
	}
	from, ok := src.(*ListVector)
	if !ok {
		return illegalArgument("cannot copy %T into list %q", src, v.name)
	}
	if from.IsNull(in) {
		return v.SetNull(out)
	}
	if _, isNull := from.child.(*NullVector); !isNull {
		if _, _, err := v.AddOrGetVector(FieldTypeOf(from.child.Field())); err != nil {
			return illegalArgument("cannot copy %s elements into list %q: %v", from.child.Field().Type, v.name, err)
		}
	}

	start, end := from.ElementRange(in)
	pos, err := v.StartNewValue(out)
	if err != nil {
		return err
	}
	for j := start; j < end; j++ {
		if err := v.child.CopyFromSafe(j, pos+j-start, from.child); err != nil {
			return err
		}
	}
	v.EndValue(out, end-start)
	return nil
}

func (v *ListVector) CopyFromSafe(in, out int, src Vector) error {
	return v.CopyFrom(in, out, src)
}

// PromoteToUnion moves the current child into the first branch of a new
// union child and notifies the schema change callback.
func (v *ListVector) PromoteToUnion() (*UnionVector, error) {
	committed := 0
	if v.lastSet >= 0 {
		committed = v.offset(v.lastSet + 1)
	}
	return v.promoteToUnion(max(committed, v.child.ValueCount()))
}

// promoteToUnion is PromoteToUnion for a child with n written elements.
func (v *ListVector) promoteToUnion(n int) (*UnionVector, error) {
	old := v.child
	u := NewUnionVector(old.Name(), v.alloc, v.cb)

	if _, isNull := old.(*NullVector); isNull {
		if err := u.SetValueCount(n); err != nil {
			u.Close()
			return nil, err
		}
	} else {
		if err := old.SetValueCount(n); err != nil {
			u.Close()
			return nil, err
		}
		pair := old.TransferPair(strings.ToLower(old.MinorType().String()), v.alloc, v.cb)
		if err := pair.Transfer(); err != nil {
			u.Close()
			return nil, err
		}
		code, err := u.AddVector(pair.To())
		if err != nil {
			pair.To().Close()
			u.Close()
			return nil, err
		}
		if err := u.SetValueCount(n); err != nil {
			u.Close()
			return nil, err
		}
		for i := 0; i < n; i++ {
			u.typeIds.SetByte(i, byte(code))
		}
		old.Close()
	}

	v.child = u
	slog.Debug("list child promoted to union", "vector", v.name, "elements", n)
	notify(v.cb)
	return u, nil
}

// Writer returns a cursor for appending lists starting at slot 0.
func (v *ListVector) Writer() *ListWriter {
	return &ListWriter{vec: v}
}

// Clear releases all buffers and resets the vector to empty.
func (v *ListVector) Clear() {
	v.validity.Release()
	v.offsets.Release()
	v.validity = v.alloc.Empty()
	v.offsets = v.alloc.Empty()
	v.child.Clear()
	v.valueCount = 0
	v.lastSet = -1
}

// Reset zeroes the buffers but keeps them allocated.
func (v *ListVector) Reset() {
	v.validity.SetZero(0, v.validity.Capacity())
	v.offsets.SetZero(0, v.offsets.Capacity())
	v.child.Reset()
	v.valueCount = 0
	v.lastSet = -1
}

func (v *ListVector) Close() {
	v.Clear()
	v.child.Close()
}

func (v *ListVector) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < v.valueCount; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprint(&sb, formatObject(v.GetObject(i)))
	}
	sb.WriteByte(']')
	return sb.String()
}

func formatObject(o any) string {
	switch x := o.(type) {
	case nil:
		return "null"
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatObject(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	default:
		return fmt.Sprint(x)
	}
}
