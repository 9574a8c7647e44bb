// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/bitutil"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ExportArray returns an arrow array sharing v's buffers. The array holds
// its own references, so v may be cleared or closed while it is in use.
func ExportArray(v Vector) (arrow.Array, error) {
	data, err := exportData(v)
	if err != nil {
		return nil, err
	}
	defer data.Release()
	return array.MakeFromData(data), nil
}

func exportData(v Vector) (arrow.ArrayData, error) {
	n := v.ValueCount()
	dt := v.Field().Type
	switch x := v.(type) {
	case *NullVector:
		return array.NewData(arrow.Null, n, []*memory.Buffer{nil}, nil, n, 0), nil

	case *ListVector:
		child, err := exportData(x.child)
		if err != nil {
			return nil, err
		}
		defer child.Release()
		return array.NewData(dt, n,
			[]*memory.Buffer{x.validity.arrowBuffer(), x.offsets.arrowBuffer()},
			[]arrow.ArrayData{child}, x.NullCount(), 0), nil

	case *UnionVector:
		children := make([]arrow.ArrayData, 0, len(x.branches))
		defer func() {
			for _, c := range children {
				c.Release()
			}
		}()
		for _, b := range x.branches {
			c, err := exportData(b)
			if err != nil {
				return nil, err
			}
			children = append(children, c)
		}
		return array.NewData(dt, n,
			[]*memory.Buffer{nil, x.typeIds.arrowBuffer()},
			children, 0, 0), nil
	}

	switch v.MinorType() {
	case MinorInt32, MinorInt64, MinorFloat64:
		bufs := v.FieldBuffers()
		return array.NewData(dt, n,
			[]*memory.Buffer{bufs[0].arrowBuffer(), bufs[1].arrowBuffer()},
			nil, v.NullCount(), 0), nil
	}
	return nil, unsupportedOperation("cannot export %s vector %q", v.MinorType(), v.Name())
}

// ImportArray builds a vector named name from arr. Buffers of unsliced
// arrays are shared with arr; sliced ranges are copied into alloc.
func ImportArray(name string, arr arrow.Array, alloc *Allocator) (Vector, error) {
	f := arrow.Field{Name: name, Type: arr.DataType(), Nullable: true}
	v, err := NewVectorFromField(f, alloc, nil)
	if err != nil {
		return nil, err
	}
	if err := loadArrayData(v, arr.Data(), alloc); err != nil {
		v.Close()
		return nil, fmt.Errorf("importing %q: %w", name, err)
	}
	return v, nil
}

// RootFromRecord imports every column of rec.
func RootFromRecord(rec arrow.Record, alloc *Allocator) (*Root, error) {
	schema := rec.Schema()
	vectors := make([]Vector, 0, rec.NumCols())
	for i, col := range rec.Columns() {
		v, err := ImportArray(schema.Field(i).Name, col, alloc)
		if err != nil {
			for _, done := range vectors {
				done.Close()
			}
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return NewRootWithSchema(schema, vectors, int(rec.NumRows()))
}

// Record exports the root as an arrow record. The schema reflects the
// vectors' current fields.
func (r *Root) Record() (arrow.Record, error) {
	fields := make([]arrow.Field, len(r.vectors))
	cols := make([]arrow.Array, 0, len(r.vectors))
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()
	for i, v := range r.vectors {
		fields[i] = v.Field()
		arr, err := ExportArray(v)
		if err != nil {
			return nil, err
		}
		cols = append(cols, arr)
	}
	md := r.schema.Metadata()
	return array.NewRecord(arrow.NewSchema(fields, &md), cols, int64(r.rowCount)), nil
}

func loadArrayData(v Vector, d arrow.ArrayData, alloc *Allocator) error {
	n, off := d.Len(), d.Offset()
	node := FieldNode{Length: n, NullCount: d.NullN()}

	switch x := v.(type) {
	case *NullVector:
		return x.SetValueCount(n)

	case *ListVector:
		validity, err := importValidity(d, alloc)
		if err != nil {
			return err
		}
		defer validity.Release()
		offsets, start, end, err := importOffsets(d, alloc)
		if err != nil {
			return err
		}
		defer offsets.Release()
		if err := x.LoadFieldBuffers(node, []*Buffer{validity, offsets}); err != nil {
			return err
		}
		child := array.NewSliceData(d.Children()[0], int64(start), int64(end))
		defer child.Release()
		return loadArrayData(x.child, child, alloc)

	case *UnionVector:
		if d.DataType().ID() != arrow.SPARSE_UNION {
			return unsupportedOperation("only sparse unions can be imported, got %s", d.DataType())
		}
		typeIds, err := importBytes(d.Buffers()[1], off, n, 1, alloc)
		if err != nil {
			return err
		}
		defer typeIds.Release()
		if err := x.LoadFieldBuffers(node, []*Buffer{typeIds}); err != nil {
			return err
		}
		for i, b := range x.branches {
			child := array.NewSliceData(d.Children()[i], int64(off), int64(off+n))
			err := loadArrayData(b, child, alloc)
			child.Release()
			if err != nil {
				return err
			}
		}
		return nil
	}

	fw, ok := d.DataType().(arrow.FixedWidthDataType)
	if !ok {
		return unsupportedOperation("cannot import %s into %s vector", d.DataType(), v.MinorType())
	}
	validity, err := importValidity(d, alloc)
	if err != nil {
		return err
	}
	defer validity.Release()
	values, err := importBytes(d.Buffers()[1], off, n, fw.BitWidth()/8, alloc)
	if err != nil {
		return err
	}
	defer values.Release()
	return v.LoadFieldBuffers(node, []*Buffer{validity, values})
}

// importValidity returns a bitmap for d starting at bit 0. A missing
// bitmap means every slot is valid.
func importValidity(d arrow.ArrayData, alloc *Allocator) (*Buffer, error) {
	n, off := d.Len(), d.Offset()
	if n == 0 {
		return alloc.Empty(), nil
	}
	src := d.Buffers()[0]
	if src != nil && off == 0 {
		return wrapArrowBuffer(src), nil
	}
	dst, err := alloc.Buffer(validitySize(n))
	if err != nil {
		return nil, err
	}
	if src == nil {
		bitutil.SetBitsTo(dst.Bytes(), 0, int64(n), true)
	} else {
		bitutil.CopyBitmap(src.Bytes(), off, n, dst.Bytes(), 0)
	}
	return dst, nil
}

// importBytes returns the n elements of width bytes starting at element off.
func importBytes(src *memory.Buffer, off, n, width int, alloc *Allocator) (*Buffer, error) {
	if n == 0 || src == nil {
		return alloc.Empty(), nil
	}
	if off == 0 {
		return wrapArrowBuffer(src), nil
	}
	dst, err := alloc.Buffer(n * width)
	if err != nil {
		return nil, err
	}
	copy(dst.Bytes(), src.Bytes()[off*width:(off+n)*width])
	return dst, nil
}

// importOffsets returns offsets rebased to start at zero along with the
// child range they cover.
func importOffsets(d arrow.ArrayData, alloc *Allocator) (*Buffer, int, int, error) {
	n, off := d.Len(), d.Offset()
	src := d.Buffers()[1]
	if n == 0 || src == nil {
		return alloc.Empty(), 0, 0, nil
	}
	offs := arrow.Int32Traits.CastFromBytes(src.Bytes())[off : off+n+1]
	start, end := int(offs[0]), int(offs[n])
	if off == 0 && start == 0 {
		return wrapArrowBuffer(src), start, end, nil
	}
	dst, err := alloc.Buffer((n + 1) * OffsetWidth)
	if err != nil {
		return nil, 0, 0, err
	}
	for i, o := range offs {
		dst.SetInt32(i*OffsetWidth, o-int32(start))
	}
	return dst, start, end, nil
}
