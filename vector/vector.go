// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// Vector is a column of values backed by allocator buffers. Implementations
// are not safe for concurrent mutation.
type Vector interface {
	Name() string
	Field() arrow.Field
	MinorType() MinorType
	Allocator() *Allocator

	ValueCount() int
	SetValueCount(n int) error
	ValueCapacity() int
	SetInitialCapacity(n int)
	AllocateNew() error
	AllocateNewSafe() bool
	ReAlloc() error

	IsNull(i int) bool
	NullCount() int
	GetObject(i int) any
	HashCode(i int) uint64

	BufferSize() int
	BufferSizeFor(n int) int
	// FieldBuffers returns the vector's own buffers, without children.
	FieldBuffers() []*Buffer
	LoadFieldBuffers(node FieldNode, buffers []*Buffer) error
	// Buffers returns own and child buffers. With clear set the caller
	// receives a reference to each and the vector is cleared.
	Buffers(clear bool) []*Buffer
	Children() []Vector

	TransferPair(name string, alloc *Allocator, cb CallBack) TransferPair
	MakeTransferPair(target Vector) (TransferPair, error)
	CopyFromSafe(from, to int, src Vector) error

	Clear()
	Reset()
	Close()
}

// DensityAware is implemented by vectors whose children can be pre-sized
// from an average element count per slot.
type DensityAware interface {
	SetInitialCapacityDensity(n int, density float64) error
}

// TransferPair moves data from one vector to another.
type TransferPair interface {
	// Transfer moves all buffers to the target and clears the source.
	Transfer() error
	// SplitAndTransfer moves slots [start, start+length) to the target.
	SplitAndTransfer(start, length int) error
	To() Vector
	// CopyValueSafe copies one slot from the source into the target.
	CopyValueSafe(from, to int) error
}

// FieldNode carries the slot and null counts for one serialized vector.
type FieldNode struct {
	Length    int
	NullCount int
}

// CallBack receives schema change notifications.
type CallBack interface {
	DoWork()
}

// CallBackFunc adapts a function to CallBack.
type CallBackFunc func()

func (f CallBackFunc) DoWork() { f() }

func notify(cb CallBack) {
	if cb != nil {
		cb.DoWork()
	}
}

// MinorType identifies a vector implementation.
type MinorType int

const (
	MinorNull MinorType = iota
	MinorInt32
	MinorInt64
	MinorFloat64
	MinorList
	MinorUnion
)

func (m MinorType) String() string {
	switch m {
	case MinorNull:
		return "NULL"
	case MinorInt32:
		return "INT"
	case MinorInt64:
		return "BIGINT"
	case MinorFloat64:
		return "FLOAT8"
	case MinorList:
		return "LIST"
	case MinorUnion:
		return "UNION"
	default:
		return fmt.Sprintf("MinorType(%d)", int(m))
	}
}

// MinorTypeOf maps an arrow type to the vector kind that stores it.
func MinorTypeOf(dt arrow.DataType) (MinorType, error) {
	switch dt.ID() {
	case arrow.NULL:
		return MinorNull, nil
	case arrow.INT32:
		return MinorInt32, nil
	case arrow.INT64:
		return MinorInt64, nil
	case arrow.FLOAT64:
		return MinorFloat64, nil
	case arrow.LIST:
		return MinorList, nil
	case arrow.SPARSE_UNION:
		return MinorUnion, nil
	}
	return MinorNull, unsupportedOperation("no vector for arrow type %s", dt)
}

// FieldType describes a vector's type independent of its name.
type FieldType struct {
	Nullable bool
	Type     arrow.DataType
	Metadata arrow.Metadata
}

// Nullable returns a nullable FieldType for dt.
func Nullable(dt arrow.DataType) FieldType {
	return FieldType{Nullable: true, Type: dt}
}

// NotNullable returns a non-nullable FieldType for dt.
func NotNullable(dt arrow.DataType) FieldType {
	return FieldType{Type: dt}
}

// FieldTypeOf extracts the FieldType of f.
func FieldTypeOf(f arrow.Field) FieldType {
	return FieldType{Nullable: f.Nullable, Type: f.Type, Metadata: f.Metadata}
}

// Field names ft.
func (ft FieldType) Field(name string) arrow.Field {
	return arrow.Field{Name: name, Type: ft.Type, Nullable: ft.Nullable, Metadata: ft.Metadata}
}

// NewVector creates an empty vector of this type.
func (ft FieldType) NewVector(name string, alloc *Allocator, cb CallBack) (Vector, error) {
	minor, err := MinorTypeOf(ft.Type)
	if err != nil {
		return nil, err
	}
	switch minor {
	case MinorNull:
		return NewNullVector(name), nil
	case MinorInt32:
		return NewInt32Vector(name, alloc), nil
	case MinorInt64:
		return NewInt64Vector(name, alloc), nil
	case MinorFloat64:
		return NewFloat64Vector(name, alloc), nil
	case MinorList:
		return NewListVector(name, alloc, ft, cb)
	case MinorUnion:
		return newUnionVectorFromType(name, alloc, ft.Type.(*arrow.SparseUnionType), cb)
	}
	return nil, unsupportedOperation("no vector for minor type %s", minor)
}

// NewVectorFromField creates an empty vector for f, including children.
func NewVectorFromField(f arrow.Field, alloc *Allocator, cb CallBack) (Vector, error) {
	return FieldTypeOf(f).NewVector(f.Name, alloc, cb)
}
