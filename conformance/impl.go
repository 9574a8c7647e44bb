// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Query-farm/vgi-vector/vector"
)

// BuildRoot writes the conformance fixture into vectors drawn from alloc.
// The caller owns the returned root and must close it.
func BuildRoot(alloc *vector.Allocator) (*vector.Root, error) {
	var built []vector.Vector
	fail := func(err error) (*vector.Root, error) {
		for _, v := range built {
			v.Close()
		}
		return nil, err
	}

	for _, c := range Columns {
		v, err := buildColumn(c, alloc)
		if v != nil {
			built = append(built, v)
		}
		if err != nil {
			return fail(fmt.Errorf("building %q: %w", c.Name, err))
		}
	}
	root := vector.RootOf(built...)
	if err := root.SetRowCount(Rows); err != nil {
		return fail(err)
	}
	root.SyncSchema()
	return root, nil
}

func buildColumn(c Column, alloc *vector.Allocator) (vector.Vector, error) {
	if c.Type == nil {
		v := vector.EmptyListVector(c.Name, alloc)
		return v, writeLists(v.Writer(), c.Want[:])
	}
	if c.Type.ID() == arrow.INT64 {
		v := vector.NewInt64Vector(c.Name, alloc)
		for i, x := range c.Want {
			var err error
			if x == nil {
				err = v.SetNullSafe(i)
			} else {
				err = v.SetSafe(i, x.(int64))
			}
			if err != nil {
				return v, err
			}
		}
		return v, nil
	}
	v, err := vector.NewListVector(c.Name, alloc, vector.Nullable(c.Type), nil)
	if err != nil {
		return nil, err
	}
	return v, writeLists(v.Writer(), c.Want[:])
}

// writeLists writes each row through w. Rows are nil or []any whose
// elements are nil, int32, int64, float64 or a nested []any.
func writeLists(w *vector.ListWriter, rows []any) error {
	for i, row := range rows {
		if row == nil {
			if err := w.WriteNullList(); err != nil {
				return err
			}
			continue
		}
		if err := w.StartList(); err != nil {
			return err
		}
		for _, e := range row.([]any) {
			if err := writeElement(w, e); err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
		}
		if err := w.EndList(); err != nil {
			return err
		}
	}
	return nil
}

func writeElement(w *vector.ListWriter, e any) error {
	switch x := e.(type) {
	case nil:
		return w.WriteNull()
	case int32:
		return w.WriteInt32(x)
	case int64:
		return w.WriteInt64(x)
	case float64:
		return w.WriteFloat64(x)
	case []any:
		inner, err := w.StartNested()
		if err != nil {
			return err
		}
		for _, ie := range x {
			if err := writeElement(inner, ie); err != nil {
				return err
			}
		}
		return inner.EndList()
	}
	return fmt.Errorf("unsupported element %T", e)
}

// Verify checks that root holds exactly the conformance fixture.
func Verify(root *vector.Root) error {
	if root.RowCount() != Rows {
		return fmt.Errorf("row count %d, want %d", root.RowCount(), Rows)
	}
	return VerifyRange(root, 0)
}

// VerifyRange checks that the rows of root equal the fixture rows starting
// at start. All mismatches are reported together.
func VerifyRange(root *vector.Root, start int) error {
	if start < 0 || start+root.RowCount() > Rows {
		return fmt.Errorf("rows [%d, %d) outside the fixture", start, start+root.RowCount())
	}
	if n := len(root.FieldVectors()); n != len(Columns) {
		return fmt.Errorf("root has %d columns, want %d", n, len(Columns))
	}

	var errs []error
	for i, c := range Columns {
		v := root.VectorAt(i)
		if v.Name() != c.Name {
			errs = append(errs, fmt.Errorf("column %d is %q, want %q", i, v.Name(), c.Name))
			continue
		}
		if got := elementMinor(v); got != c.Minor {
			errs = append(errs, fmt.Errorf("column %q holds %s, want %s", c.Name, got, c.Minor))
		}
		nulls := 0
		for row := 0; row < root.RowCount(); row++ {
			want := c.Want[start+row]
			if want == nil {
				nulls++
			}
			if got := v.GetObject(row); !reflect.DeepEqual(got, want) {
				errs = append(errs, fmt.Errorf("column %q row %d: got %v, want %v", c.Name, start+row, got, want))
			}
		}
		if v.NullCount() != nulls {
			errs = append(errs, fmt.Errorf("column %q: %d nulls, want %d", c.Name, v.NullCount(), nulls))
		}
	}
	return errors.Join(errs...)
}

func elementMinor(v vector.Vector) vector.MinorType {
	if l, ok := v.(*vector.ListVector); ok {
		return l.DataVector().MinorType()
	}
	return v.MinorType()
}
