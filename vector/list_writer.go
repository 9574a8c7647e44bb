// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// ListWriter appends lists to a ListVector one slot at a time.
//
//	w := v.Writer()
//	w.StartList()
//	w.WriteInt64(1)
//	w.WriteInt64(2)
//	w.EndList()
//	v.SetValueCount(w.Position())
//
// The first scalar written fixes the element type. Writing a scalar of a
// different type promotes the child to a union, which fires the list's
// schema change callback.
type ListWriter struct {
	vec   *ListVector
	idx   int
	start int
	next  int
	open  bool
}

// SetPosition moves the writer to slot i.
func (w *ListWriter) SetPosition(i int) { w.idx = i }

// Position returns the slot the next list will be written to.
func (w *ListWriter) Position() int { return w.idx }

// StartList opens a list at the current slot.
func (w *ListWriter) StartList() error {
	if w.open {
		return illegalState("list at slot %d is still open", w.idx)
	}
	start, err := w.vec.StartNewValue(w.idx)
	if err != nil {
		return err
	}
	w.start, w.next, w.open = start, start, true
	return nil
}

// EndList closes the open list and advances to the next slot.
func (w *ListWriter) EndList() error {
	if !w.open {
		return illegalState("no list open at slot %d", w.idx)
	}
	w.vec.EndValue(w.idx, w.next-w.start)
	w.idx++
	w.open = false
	return nil
}

// WriteNullList writes a null slot and advances.
func (w *ListWriter) WriteNullList() error {
	if w.open {
		return illegalState("list at slot %d is still open", w.idx)
	}
	if err := w.vec.SetNull(w.idx); err != nil {
		return err
	}
	w.idx++
	return nil
}

func (w *ListWriter) WriteInt32(x int32) error {
	return w.writeScalar(arrow.PrimitiveTypes.Int32, func(v Vector, i int) error {
		return v.(*Int32Vector).SetSafe(i, x)
	})
}

func (w *ListWriter) WriteInt64(x int64) error {
	return w.writeScalar(arrow.PrimitiveTypes.Int64, func(v Vector, i int) error {
		return v.(*Int64Vector).SetSafe(i, x)
	})
}

func (w *ListWriter) WriteFloat64(x float64) error {
	return w.writeScalar(arrow.PrimitiveTypes.Float64, func(v Vector, i int) error {
		return v.(*Float64Vector).SetSafe(i, x)
	})
}

// WriteNull appends a null element to the open list.
func (w *ListWriter) WriteNull() error {
	if !w.open {
		return illegalState("no list open at slot %d", w.idx)
	}
	var err error
	switch c := w.vec.child.(type) {
	case *NullVector:
	case *UnionVector:
		err = c.SetTypeCode(w.next, 0)
	case *ListVector:
		err = c.SetNull(w.next)
	case interface{ SetNullSafe(int) error }:
		err = c.SetNullSafe(w.next)
	default:
		err = unsupportedOperation("cannot write null into %s child", c.MinorType())
	}
	if err != nil {
		return err
	}
	w.next++
	return nil
}

// StartNested opens a list as the next element of the open list and returns
// a writer positioned on it. Finish it with EndList on the returned writer.
func (w *ListWriter) StartNested() (*ListWriter, error) {
	if !w.open {
		return nil, illegalState("no list open at slot %d", w.idx)
	}
	child, _, err := w.vec.AddOrGetVector(Nullable(arrow.ListOfField(arrow.Field{Name: DataVectorName, Type: arrow.Null, Nullable: true})))
	if err != nil {
		if inner, ok := w.vec.child.(*ListVector); ok {
			child = inner
		} else {
			return nil, err
		}
	}
	inner := child.(*ListVector).Writer()
	inner.SetPosition(w.next)
	if err := inner.StartList(); err != nil {
		return nil, err
	}
	w.next++
	return inner, nil
}

func (w *ListWriter) writeScalar(dt arrow.DataType, set func(Vector, int) error) error {
	if !w.open {
		return illegalState("no list open at slot %d", w.idx)
	}
	target, code, err := w.branch(dt)
	if err != nil {
		return err
	}
	if err := set(target, w.next); err != nil {
		return err
	}
	if u, ok := w.vec.child.(*UnionVector); ok {
		if err := u.SetTypeCode(w.next, code); err != nil {
			return err
		}
	}
	w.next++
	return nil
}

// branch finds the vector that stores dt, creating or promoting the child
// as needed.
func (w *ListWriter) branch(dt arrow.DataType) (Vector, int8, error) {
	child := w.vec.child
	if _, isNull := child.(*NullVector); isNull {
		created, _, err := w.vec.AddOrGetVector(Nullable(dt))
		return created, 0, err
	}
	if u, ok := child.(*UnionVector); ok {
		return u.GetOrAddVector(Nullable(dt))
	}
	if arrow.TypeEqual(child.Field().Type, dt) {
		return child, 0, nil
	}
	u, err := w.vec.promoteToUnion(w.next)
	if err != nil {
		return nil, 0, err
	}
	return u.GetOrAddVector(Nullable(dt))
}
