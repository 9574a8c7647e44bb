// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportList(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	writeInt64Lists(t, v, sampleRows)

	arr, err := ExportArray(v)
	require.NoError(t, err)
	v.Close()
	defer arr.Release()

	list, ok := arr.(*array.List)
	require.True(t, ok)
	assert.Equal(t, 4, list.Len())
	assert.Equal(t, 1, list.NullN())
	assert.True(t, list.IsNull(1))
	assert.Equal(t, []int32{0, 3, 3, 3, 4}, list.Offsets())

	values := list.ListValues().(*array.Int64)
	assert.Equal(t, []int64{1, 2, 3, 4}, values.Int64Values())
}

func TestExportImportRoundTrip(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()
	writeInt64Lists(t, v, sampleRows)

	arr, err := ExportArray(v)
	require.NoError(t, err)
	defer arr.Release()

	back, err := ImportArray("back", arr, alloc)
	require.NoError(t, err)
	defer back.Close()
	requireRows(t, back.(*ListVector), sampleRows)
	assert.True(t, arrow.TypeEqual(v.Field().Type, back.Field().Type))
}

func TestImportSlicedArray(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()
	rows := mixedRows(12)
	writeInt64Lists(t, v, rows)

	arr, err := ExportArray(v)
	require.NoError(t, err)
	defer arr.Release()
	sliced := array.NewSlice(arr, 5, 11)
	defer sliced.Release()

	back, err := ImportArray("slice", sliced, alloc)
	require.NoError(t, err)
	defer back.Close()
	list := back.(*ListVector)
	requireRows(t, list, rows[5:11])
	assert.Equal(t, int32(0), list.OffsetBuffer().Int32(0))
}

func TestImportArrowBuiltArray(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)
	alloc := newTestAllocator(t, DefaultConfig())

	b := array.NewListBuilder(mem, arrow.PrimitiveTypes.Float64)
	defer b.Release()
	vb := b.ValueBuilder().(*array.Float64Builder)
	b.Append(true)
	vb.AppendValues([]float64{1, 2}, nil)
	b.AppendNull()
	b.Append(true)
	vb.AppendNull()
	arr := b.NewArray()
	defer arr.Release()

	v, err := ImportArray("f", arr, alloc)
	require.NoError(t, err)
	defer v.Close()

	assert.Equal(t, []any{1.0, 2.0}, v.GetObject(0))
	assert.Nil(t, v.GetObject(1))
	assert.Equal(t, []any{nil}, v.GetObject(2))
}

func TestExportImportUnion(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := EmptyListVector("mixed", alloc)
	defer v.Close()

	w := v.Writer()
	require.NoError(t, w.StartList())
	require.NoError(t, w.WriteInt32(1))
	require.NoError(t, w.WriteFloat64(1.5))
	require.NoError(t, w.WriteNull())
	require.NoError(t, w.EndList())
	require.NoError(t, v.SetValueCount(1))

	arr, err := ExportArray(v)
	require.NoError(t, err)
	defer arr.Release()

	values := arr.(*array.List).ListValues()
	require.Equal(t, arrow.SPARSE_UNION, values.DataType().ID())
	assert.Equal(t, []arrow.UnionTypeCode{1, 2, 0}, values.(*array.SparseUnion).RawTypeCodes())

	back, err := ImportArray("back", arr, alloc)
	require.NoError(t, err)
	defer back.Close()
	assert.Equal(t, []any{int32(1), 1.5, nil}, back.GetObject(0))
}

func TestRootRecordRoundTrip(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	root := newSampleRoot(t, alloc, 12)
	defer root.Close()

	rec, err := root.Record()
	require.NoError(t, err)
	defer rec.Release()
	assert.Equal(t, int64(12), rec.NumRows())
	assert.Equal(t, int64(2), rec.NumCols())

	back, err := RootFromRecord(rec, alloc)
	require.NoError(t, err)
	defer back.Close()
	assert.True(t, root.Equals(back))
}
