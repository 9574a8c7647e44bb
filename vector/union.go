// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"math"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// maxUnionBranches is the number of type codes an int8 type id can address.
const maxUnionBranches = math.MaxInt8 + 1

// UnionVector is a sparse union. Every branch has the union's length and
// the int8 type id of a slot selects the branch holding its value. Branch 0
// is always a NullVector, so a zeroed type id reads as null.
type UnionVector struct {
	name  string
	alloc *Allocator
	cb    CallBack

	typeIds  *Buffer
	branches []Vector

	valueCount      int
	initialCapacity int
}

// NewUnionVector returns a union holding only the null branch.
func NewUnionVector(name string, alloc *Allocator, cb CallBack) *UnionVector {
	return &UnionVector{
		name:            name,
		alloc:           alloc,
		cb:              cb,
		typeIds:         alloc.Empty(),
		branches:        []Vector{NewNullVector("null")},
		initialCapacity: alloc.cfg.InitialValueAllocation,
	}
}

func newUnionVectorFromType(name string, alloc *Allocator, dt *arrow.SparseUnionType, cb CallBack) (*UnionVector, error) {
	u := NewUnionVector(name, alloc, cb)
	fields := dt.Fields()
	codes := dt.TypeCodes()
	for i, f := range fields {
		if int(codes[i]) != i {
			return nil, unsupportedOperation("union %q: type code %d at position %d is not dense", name, codes[i], i)
		}
		if i == 0 {
			if f.Type.ID() != arrow.NULL {
				return nil, unsupportedOperation("union %q: branch 0 must be null, got %s", name, f.Type)
			}
			u.branches[0] = NewNullVector(f.Name)
			continue
		}
		child, err := NewVectorFromField(f, alloc, cb)
		if err != nil {
			return nil, err
		}
		u.branches = append(u.branches, child)
	}
	return u, nil
}

func (u *UnionVector) Name() string          { return u.name }
func (u *UnionVector) MinorType() MinorType  { return MinorUnion }
func (u *UnionVector) Allocator() *Allocator { return u.alloc }
func (u *UnionVector) ValueCount() int       { return u.valueCount }
func (u *UnionVector) Children() []Vector    { return u.branches }

// TypeIdBuffer returns the int8 type id buffer.
func (u *UnionVector) TypeIdBuffer() *Buffer { return u.typeIds }

func (u *UnionVector) Field() arrow.Field {
	fields := make([]arrow.Field, len(u.branches))
	codes := make([]arrow.UnionTypeCode, len(u.branches))
	for i, b := range u.branches {
		fields[i] = b.Field()
		codes[i] = arrow.UnionTypeCode(i)
	}
	return arrow.Field{Name: u.name, Type: arrow.SparseUnionOf(fields, codes), Nullable: true}
}

// AddVector appends v as a new branch and returns its type code.
func (u *UnionVector) AddVector(v Vector) (int8, error) {
	if len(u.branches) >= maxUnionBranches {
		return 0, illegalArgument("union %q already has %d branches", u.name, len(u.branches))
	}
	if v.ValueCount() < u.valueCount {
		if err := v.SetValueCount(u.valueCount); err != nil {
			return 0, err
		}
	}
	u.branches = append(u.branches, v)
	notify(u.cb)
	return int8(len(u.branches) - 1), nil
}

// Branch returns the vector for a type code.
func (u *UnionVector) Branch(code int8) Vector {
	return u.branches[code]
}

// BranchFor returns the first branch storing dt.
func (u *UnionVector) BranchFor(dt arrow.DataType) (Vector, int8, bool) {
	for i, b := range u.branches {
		if arrow.TypeEqual(b.Field().Type, dt) {
			return b, int8(i), true
		}
	}
	return nil, 0, false
}

// GetOrAddVector returns the branch for ft, creating it if missing.
func (u *UnionVector) GetOrAddVector(ft FieldType) (Vector, int8, error) {
	if b, code, ok := u.BranchFor(ft.Type); ok {
		return b, code, nil
	}
	minor, err := MinorTypeOf(ft.Type)
	if err != nil {
		return nil, 0, err
	}
	v, err := ft.NewVector(strings.ToLower(minor.String()), u.alloc, u.cb)
	if err != nil {
		return nil, 0, err
	}
	code, err := u.AddVector(v)
	if err != nil {
		v.Close()
		return nil, 0, err
	}
	return v, code, nil
}

// TypeCode returns the type id of slot i.
func (u *UnionVector) TypeCode(i int) int8 {
	return int8(u.typeIds.Byte(i))
}

// SetTypeCode records that slot i lives in the branch with code.
func (u *UnionVector) SetTypeCode(i int, code int8) error {
	if err := u.ensure(i); err != nil {
		return err
	}
	u.typeIds.SetByte(i, byte(code))
	return nil
}

func (u *UnionVector) ValueCapacity() int {
	c := u.typeIds.Capacity()
	for _, b := range u.branches[1:] {
		c = min(c, b.ValueCapacity())
	}
	return c
}

func (u *UnionVector) SetInitialCapacity(n int) {
	u.initialCapacity = n
	for _, b := range u.branches {
		b.SetInitialCapacity(n)
	}
}

func (u *UnionVector) AllocateNew() error {
	u.Clear()
	ids, err := u.alloc.allocate(max(u.initialCapacity, 1), u.name, "typeIds")
	if err != nil {
		return err
	}
	u.typeIds.Release()
	u.typeIds = ids
	for _, b := range u.branches {
		if err := b.AllocateNew(); err != nil {
			return err
		}
	}
	return nil
}

func (u *UnionVector) AllocateNewSafe() bool {
	if err := u.AllocateNew(); err != nil {
		u.Clear()
		return false
	}
	return true
}

func (u *UnionVector) ReAlloc() error {
	ids, err := u.alloc.grow(u.typeIds, u.initialCapacity/2, u.name, "typeIds")
	if err != nil {
		return err
	}
	u.typeIds = ids
	for _, b := range u.branches {
		if err := b.ReAlloc(); err != nil {
			return err
		}
	}
	return nil
}

func (u *UnionVector) ensure(i int) error {
	for i >= u.typeIds.Capacity() {
		ids, err := u.alloc.grow(u.typeIds, u.initialCapacity/2, u.name, "typeIds")
		if err != nil {
			return err
		}
		u.typeIds = ids
	}
	return nil
}

// SetValueCount sets the union length and the length of every branch.
func (u *UnionVector) SetValueCount(n int) error {
	if err := u.ensure(n - 1); err != nil {
		return err
	}
	u.valueCount = n
	for _, b := range u.branches {
		if err := b.SetValueCount(n); err != nil {
			return err
		}
	}
	return nil
}

func (u *UnionVector) IsNull(i int) bool {
	code := u.TypeCode(i)
	return code == 0 || u.branches[code].IsNull(i)
}

func (u *UnionVector) NullCount() int {
	n := 0
	for i := 0; i < u.valueCount; i++ {
		if u.IsNull(i) {
			n++
		}
	}
	return n
}

func (u *UnionVector) GetObject(i int) any {
	return u.branches[u.TypeCode(i)].GetObject(i)
}

func (u *UnionVector) HashCode(i int) uint64 {
	return u.branches[u.TypeCode(i)].HashCode(i)
}

func (u *UnionVector) BufferSize() int {
	return u.BufferSizeFor(u.valueCount)
}

func (u *UnionVector) BufferSizeFor(n int) int {
	if n == 0 {
		return 0
	}
	size := n
	for _, b := range u.branches {
		size += b.BufferSizeFor(n)
	}
	return size
}

func (u *UnionVector) FieldBuffers() []*Buffer {
	u.typeIds.SetReaderIndex(0)
	u.typeIds.SetWriterIndex(u.valueCount)
	return []*Buffer{u.typeIds}
}

func (u *UnionVector) LoadFieldBuffers(node FieldNode, buffers []*Buffer) error {
	if len(buffers) != 1 {
		return illegalArgument("illegal buffer count for union %q, expected 1, got %d", u.name, len(buffers))
	}
	if buffers[0].Capacity() < node.Length {
		return illegalArgument("type id buffer of %d bytes cannot hold %d slots of %q", buffers[0].Capacity(), node.Length, u.name)
	}
	buffers[0].Retain()
	u.typeIds.Release()
	u.typeIds = buffers[0]
	u.valueCount = node.Length
	return nil
}

func (u *UnionVector) Buffers(clear bool) []*Buffer {
	out := u.FieldBuffers()
	for _, b := range u.branches {
		out = append(out, b.Buffers(false)...)
	}
	if clear {
		for _, b := range out {
			b.Retain()
		}
		u.Clear()
	}
	return out
}

func (u *UnionVector) TransferPair(name string, alloc *Allocator, cb CallBack) TransferPair {
	to := NewUnionVector(name, alloc, cb)
	return u.newTransferPair(to)
}

func (u *UnionVector) MakeTransferPair(target Vector) (TransferPair, error) {
	to, ok := target.(*UnionVector)
	if !ok {
		return nil, illegalArgument("cannot transfer union %q to %s vector", u.name, target.MinorType())
	}
	for i := 1; i < len(to.branches) && i < len(u.branches); i++ {
		if !arrow.TypeEqual(to.branches[i].Field().Type, u.branches[i].Field().Type) {
			return nil, illegalArgument("union %q: branch %d type mismatch", u.name, i)
		}
	}
	return u.newTransferPair(to), nil
}

// newTransferPair gives to the same branch layout as u and pairs them up.
func (u *UnionVector) newTransferPair(to *UnionVector) *unionTransferPair {
	p := &unionTransferPair{from: u, to: to}
	for i, b := range u.branches {
		var pair TransferPair
		if i < len(to.branches) {
			pair, _ = b.MakeTransferPair(to.branches[i])
		} else {
			pair = b.TransferPair(b.Name(), to.alloc, to.cb)
			to.branches = append(to.branches, pair.To())
		}
		p.branches = append(p.branches, pair)
	}
	return p
}

func (u *UnionVector) CopyFromSafe(from, to int, src Vector) error {
	in, ok := src.(*UnionVector)
	if !ok {
		return illegalArgument("cannot copy %s into union %q", src.MinorType(), u.name)
	}
	code := in.TypeCode(from)
	if code == 0 {
		return u.SetTypeCode(to, 0)
	}
	srcBranch := in.branches[code]
	dst, dstCode, err := u.GetOrAddVector(FieldTypeOf(srcBranch.Field()))
	if err != nil {
		return err
	}
	if err := dst.CopyFromSafe(from, to, srcBranch); err != nil {
		return err
	}
	return u.SetTypeCode(to, dstCode)
}

func (u *UnionVector) Clear() {
	u.typeIds.Release()
	u.typeIds = u.alloc.Empty()
	for _, b := range u.branches {
		b.Clear()
	}
	u.valueCount = 0
}

func (u *UnionVector) Reset() {
	u.typeIds.SetZero(0, u.typeIds.Capacity())
	for _, b := range u.branches {
		b.Reset()
	}
	u.valueCount = 0
}

func (u *UnionVector) Close() {
	u.Clear()
	for _, b := range u.branches {
		b.Close()
	}
}

type unionTransferPair struct {
	from, to *UnionVector
	branches []TransferPair
}

func (p *unionTransferPair) To() Vector { return p.to }

func (p *unionTransferPair) Transfer() error {
	to, from := p.to, p.from
	to.typeIds.Release()
	to.typeIds = transferBuffer(from.typeIds, to.alloc)
	from.typeIds = from.alloc.Empty()
	for _, b := range p.branches {
		if err := b.Transfer(); err != nil {
			return err
		}
	}
	to.valueCount = from.valueCount
	from.Clear()
	return nil
}

func (p *unionTransferPair) SplitAndTransfer(start, length int) error {
	to, from := p.to, p.from
	if start < 0 || length < 0 || start+length > from.valueCount {
		return illegalArgument("slice [%d, %d) out of range for %d values", start, start+length, from.valueCount)
	}
	to.typeIds.Release()
	if length == 0 {
		to.typeIds = to.alloc.Empty()
	} else {
		to.typeIds = transferBuffer(from.typeIds.Slice(start, length), to.alloc)
	}
	for _, b := range p.branches {
		if err := b.SplitAndTransfer(start, length); err != nil {
			return err
		}
	}
	to.valueCount = length
	return nil
}

func (p *unionTransferPair) CopyValueSafe(from, to int) error {
	return p.to.CopyFromSafe(from, to, p.from)
}
