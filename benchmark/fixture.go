// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package benchmark holds fixture builders and round trips shared by the
// vector benchmarks.
package benchmark

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Query-farm/vgi-vector/vector"
)

// Shape controls the generated lists.
type Shape struct {
	Rows int
	// Width is the element count of every non-null list.
	Width int
	// NullEvery makes every NullEvery-th row null. Zero means no nulls.
	NullEvery int
}

// Small, Medium and Large are the shapes the benchmarks run with.
var (
	Small  = Shape{Rows: 1_000, Width: 4, NullEvery: 10}
	Medium = Shape{Rows: 100_000, Width: 8, NullEvery: 7}
	Large  = Shape{Rows: 1_000_000, Width: 2, NullEvery: 0}
)

func (s Shape) String() string {
	return fmt.Sprintf("rows=%d/width=%d", s.Rows, s.Width)
}

// Elements returns the total child element count of the shape.
func (s Shape) Elements() int {
	n := s.Rows
	if s.NullEvery > 0 {
		n -= s.Rows / s.NullEvery
	}
	return n * s.Width
}

// BuildInt64Lists writes a list<int64> vector of the given shape through a
// ListWriter.
func BuildInt64Lists(alloc *vector.Allocator, name string, s Shape) (*vector.ListVector, error) {
	v, err := vector.NewListVector(name, alloc, vector.Nullable(arrow.ListOf(arrow.PrimitiveTypes.Int64)), nil)
	if err != nil {
		return nil, err
	}
	if err := WriteInt64Lists(v, s); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// WriteInt64Lists appends s.Rows lists to v from slot 0.
func WriteInt64Lists(v *vector.ListVector, s Shape) error {
	w := v.Writer()
	for i := 0; i < s.Rows; i++ {
		if s.NullEvery > 0 && i%s.NullEvery == s.NullEvery-1 {
			if err := w.WriteNullList(); err != nil {
				return err
			}
			continue
		}
		if err := w.StartList(); err != nil {
			return err
		}
		for j := 0; j < s.Width; j++ {
			if err := w.WriteInt64(int64(i*s.Width + j)); err != nil {
				return err
			}
		}
		if err := w.EndList(); err != nil {
			return err
		}
	}
	return v.SetValueCount(s.Rows)
}

// BuildRoot returns a root with an int64 id column and a list column of
// the given shape.
func BuildRoot(alloc *vector.Allocator, s Shape) (*vector.Root, error) {
	ids := vector.NewInt64Vector("id", alloc)
	for i := 0; i < s.Rows; i++ {
		if err := ids.SetSafe(i, int64(i)); err != nil {
			ids.Close()
			return nil, err
		}
	}
	if err := ids.SetValueCount(s.Rows); err != nil {
		ids.Close()
		return nil, err
	}
	lists, err := BuildInt64Lists(alloc, "values", s)
	if err != nil {
		ids.Close()
		return nil, err
	}
	return vector.RootOf(ids, lists), nil
}
