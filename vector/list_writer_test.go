// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListWriterPromotesToUnion(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	calls := 0
	v, err := NewListVector("list", alloc, FieldType{Nullable: true}, CallBackFunc(func() { calls++ }))
	require.NoError(t, err)
	defer v.Close()

	w := v.Writer()
	require.NoError(t, w.StartList())
	require.NoError(t, w.WriteInt64(1))
	assert.Equal(t, MinorInt64, v.DataVector().MinorType())
	before := calls

	require.NoError(t, w.WriteFloat64(2.5))
	require.NoError(t, w.EndList())
	assert.Greater(t, calls, before)

	require.NoError(t, w.StartList())
	require.NoError(t, w.WriteInt64(3))
	require.NoError(t, w.WriteNull())
	require.NoError(t, w.EndList())
	require.NoError(t, w.WriteNullList())
	require.NoError(t, v.SetValueCount(w.Position()))

	u, ok := v.DataVector().(*UnionVector)
	require.True(t, ok)
	names := make([]string, 0, len(u.Children()))
	for _, c := range u.Children() {
		names = append(names, c.Name())
	}
	assert.Equal(t, []string{"null", "bigint", "float8"}, names)
	assert.Equal(t, DataVectorName, u.Name())
	assert.Equal(t, 4, u.ValueCount())

	assert.Equal(t, []any{int64(1), 2.5}, v.GetObject(0))
	assert.Equal(t, []any{int64(3), nil}, v.GetObject(1))
	assert.Nil(t, v.GetObject(2))
	assert.Equal(t, 3, v.ValueCount())

	ut, ok := v.Field().Type.(*arrow.ListType).Elem().(*arrow.SparseUnionType)
	require.True(t, ok)
	assert.Equal(t, []arrow.UnionTypeCode{0, 1, 2}, ut.TypeCodes())
}

func TestListPromoteToUnionKeepsValues(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	calls := 0
	v, err := NewListVector("list", alloc, Nullable(arrow.ListOf(arrow.PrimitiveTypes.Int64)), CallBackFunc(func() { calls++ }))
	require.NoError(t, err)
	defer v.Close()
	writeInt64Lists(t, v, sampleRows)

	u, err := v.PromoteToUnion()
	require.NoError(t, err)
	assert.Positive(t, calls)
	assert.Equal(t, 4, u.ValueCount())
	for i := 0; i < 4; i++ {
		assert.Equal(t, int8(1), u.TypeCode(i))
	}
	requireRows(t, v, sampleRows)
}

func TestListPromoteEmptyChild(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := EmptyListVector("list", alloc)
	defer v.Close()

	u, err := v.PromoteToUnion()
	require.NoError(t, err)
	assert.Len(t, u.Children(), 1)
	assert.Same(t, u, v.DataVector())
}

func TestListWriterNested(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := EmptyListVector("nested", alloc)
	defer v.Close()

	w := v.Writer()
	require.NoError(t, w.StartList())
	inner, err := w.StartNested()
	require.NoError(t, err)
	require.NoError(t, inner.WriteInt32(1))
	require.NoError(t, inner.WriteInt32(2))
	require.NoError(t, inner.EndList())
	inner, err = w.StartNested()
	require.NoError(t, err)
	require.NoError(t, inner.EndList())
	require.NoError(t, w.EndList())
	require.NoError(t, v.SetValueCount(1))

	assert.Equal(t, []any{[]any{int32(1), int32(2)}, []any{}}, v.GetObject(0))
	child, ok := v.DataVector().(*ListVector)
	require.True(t, ok)
	assert.Equal(t, 2, child.ValueCount())
	assert.Equal(t, MinorInt32, child.DataVector().MinorType())
}

func TestListWriterState(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := EmptyListVector("list", alloc)
	defer v.Close()

	w := v.Writer()
	assert.ErrorIs(t, w.EndList(), ErrIllegalState)
	assert.ErrorIs(t, w.WriteInt32(1), ErrIllegalState)
	assert.ErrorIs(t, w.WriteNull(), ErrIllegalState)
	_, err := w.StartNested()
	assert.ErrorIs(t, err, ErrIllegalState)

	require.NoError(t, w.StartList())
	assert.ErrorIs(t, w.StartList(), ErrIllegalState)
	assert.ErrorIs(t, w.WriteNullList(), ErrIllegalState)
	require.NoError(t, w.EndList())

	w.SetPosition(5)
	require.NoError(t, w.StartList())
	require.NoError(t, w.EndList())
	assert.Equal(t, 6, w.Position())
	require.NoError(t, v.SetValueCount(6))
	assert.Equal(t, 4, v.NullCount())
}
