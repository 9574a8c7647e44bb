// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleRows = [][]int64{{1, 2, 3}, nil, {}, {4}}

func TestListStartEndValue(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()
	require.NoError(t, v.AllocateNew())
	child := v.DataVector().(*Int64Vector)

	start, err := v.StartNewValue(0)
	require.NoError(t, err)
	assert.Equal(t, 0, start)
	for j, x := range []int64{1, 2, 3} {
		require.NoError(t, child.SetSafe(start+j, x))
	}
	v.EndValue(0, 3)

	// slot 1 is skipped and stays null
	start, err = v.StartNewValue(2)
	require.NoError(t, err)
	assert.Equal(t, 3, start)
	v.EndValue(2, 0)

	start, err = v.StartNewValue(3)
	require.NoError(t, err)
	assert.Equal(t, 3, start)
	require.NoError(t, child.SetSafe(start, 4))
	v.EndValue(3, 1)

	require.NoError(t, v.SetValueCount(4))
	requireRows(t, v, sampleRows)

	for i, want := range []int32{0, 3, 3, 3, 4} {
		assert.Equal(t, want, v.OffsetBuffer().Int32(i*OffsetWidth), "offset %d", i)
	}
	assert.Equal(t, 4, child.ValueCount())
	assert.Equal(t, 3, v.LastSet())
	assert.Equal(t, 1, v.NullCount())
	assert.Equal(t, []uint32{1}, v.NullPositions().ToArray())
	assert.Equal(t, 1, v.IsSet(0))
	assert.Equal(t, 0, v.IsSet(1))

	s, e := v.ElementRange(3)
	assert.Equal(t, 3, s)
	assert.Equal(t, 4, e)
	assert.Equal(t, 3, v.ElementStartIndex(2))
	assert.Equal(t, 3, v.ElementEndIndex(2))
}

func TestListSetValueCountFillsHoles(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()

	writeInt64Lists(t, v, [][]int64{{7}})
	require.NoError(t, v.SetValueCount(5))

	for i := 1; i <= 5; i++ {
		assert.Equal(t, int32(1), v.OffsetBuffer().Int32(i*OffsetWidth), "offset %d", i)
	}
	for i := 1; i < 5; i++ {
		assert.True(t, v.IsNull(i))
		assert.Nil(t, v.GetObject(i))
	}
	assert.Equal(t, 1, v.DataVector().ValueCount())
}

func TestListSetValueCountOnFreshVector(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()
	require.Equal(t, -1, v.LastSet())

	require.NoError(t, v.SetValueCount(5))
	assert.Equal(t, 5, v.NullCount())
	for i := 0; i < 5; i++ {
		assert.True(t, v.IsNull(i), "slot %d", i)
		assert.Nil(t, v.GetObject(i))
	}
	for i := 0; i <= 5; i++ {
		assert.Zero(t, v.OffsetBuffer().Int32(i*OffsetWidth), "offset %d", i)
	}
	assert.Zero(t, v.DataVector().ValueCount())
}

func TestListSetValueCountZeroResetsChild(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()
	writeInt64Lists(t, v, sampleRows)
	require.Equal(t, 4, v.DataVector().ValueCount())

	require.NoError(t, v.SetValueCount(0))
	assert.Zero(t, v.ValueCount())
	assert.Zero(t, v.NullCount())
	assert.Zero(t, v.DataVector().ValueCount())
}

func TestListSetNotNullKeepsOffsets(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()

	writeInt64Lists(t, v, [][]int64{{1, 2}})
	require.NoError(t, v.SetNotNull(1))
	assert.Equal(t, 1, v.LastSet())
	assert.False(t, v.IsNull(1))
	assert.Equal(t, int32(2), v.OffsetBuffer().Int32(1*OffsetWidth))
	assert.Zero(t, v.OffsetBuffer().Int32(2*OffsetWidth))
}

func TestListSetNull(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()

	writeInt64Lists(t, v, [][]int64{{1}, {2}})
	require.NoError(t, v.SetNull(3))
	require.NoError(t, v.SetValueCount(4))

	requireRows(t, v, [][]int64{{1}, {2}, nil, nil})
	s, e := v.ElementRange(3)
	assert.Equal(t, s, e)
}

func TestListReAllocGrowsToPowersOfTwo(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := EmptyListVector("list", alloc)
	defer v.Close()

	v.SetInitialCapacity(2)
	require.NoError(t, v.AllocateNew())
	assert.Equal(t, 1, v.ValidityBuffer().Capacity())
	assert.Equal(t, 16, v.OffsetBuffer().Capacity())
	assert.Equal(t, 3, v.ValueCapacity())

	require.NoError(t, v.ReAlloc())
	assert.Equal(t, 2, v.ValidityBuffer().Capacity())
	assert.Equal(t, 32, v.OffsetBuffer().Capacity())
	assert.Equal(t, 7, v.ValueCapacity())
}

func TestListGrowthPreservesContents(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()

	v.SetInitialCapacity(1)
	require.NoError(t, v.AllocateNew())

	rows := make([][]int64, 100)
	for i := range rows {
		switch {
		case i%7 == 3:
			rows[i] = nil
		case i%5 == 0:
			rows[i] = []int64{}
		default:
			rows[i] = []int64{int64(i), int64(-i)}
		}
	}
	writeInt64Lists(t, v, rows)
	requireRows(t, v, rows)
	assert.GreaterOrEqual(t, v.ValueCapacity(), 100)
}

func TestListOversizedAllocation(t *testing.T) {
	alloc := newTestAllocator(t, Config{MaxAllocationBytes: 64, InitialValueAllocation: 4})
	v := EmptyListVector("list", alloc)
	defer v.Close()
	require.NoError(t, v.AllocateNew())

	var (
		i   int
		err error
	)
	for i = 0; i < 100; i++ {
		if _, err = v.StartNewValue(i); err != nil {
			break
		}
		v.EndValue(i, 0)
	}
	require.ErrorIs(t, err, ErrOversizedAllocation)
	assert.Equal(t, 15, i)
	assert.Equal(t, 15, v.ValueCapacity())
}

func TestListReAllocFailureKeepsBuffersInStep(t *testing.T) {
	alloc := newTestAllocator(t, Config{MaxAllocationBytes: 64, InitialValueAllocation: 4})
	v := EmptyListVector("list", alloc)
	defer v.Close()
	require.NoError(t, v.AllocateNew())
	require.NoError(t, v.ReAlloc())

	validity, offsets := v.ValidityBuffer().Capacity(), v.OffsetBuffer().Capacity()
	require.Equal(t, 64, offsets)
	allocated := alloc.Allocated()

	// validity could still double but offsets cannot
	require.ErrorIs(t, v.ReAlloc(), ErrOversizedAllocation)
	assert.Equal(t, validity, v.ValidityBuffer().Capacity())
	assert.Equal(t, offsets, v.OffsetBuffer().Capacity())
	assert.Equal(t, 15, v.ValueCapacity())
	assert.Equal(t, allocated, alloc.Allocated())
}

func TestListDensityOversized(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()

	assert.ErrorIs(t, v.SetInitialCapacityDensity(math.MaxInt32, 2), ErrOversizedAllocation)
	assert.ErrorIs(t, v.ReserveCapacityDensity(math.MaxInt32, 2), ErrOversizedAllocation)
}

func TestListDensityTruncatesChildCapacity(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()

	require.NoError(t, v.SetInitialCapacityDensity(10, 0.15))
	require.NoError(t, v.AllocateNew())
	assert.Equal(t, 1, v.DataVector().ValueCapacity())
	assert.GreaterOrEqual(t, v.ValueCapacity(), 10)

	require.NoError(t, v.ReserveCapacityDensity(20, 3))
	assert.GreaterOrEqual(t, v.ValueCapacity(), 20)
	assert.GreaterOrEqual(t, v.DataVector().ValueCapacity(), 60)
}

func TestListDensity(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()

	assert.Zero(t, v.Density())
	writeInt64Lists(t, v, sampleRows)
	assert.InDelta(t, 1.0, v.Density(), 1e-9)
}

func TestListAllocateNewSafeOutOfMemory(t *testing.T) {
	alloc := newTestAllocator(t, Config{Limit: 1024})
	v := EmptyListVector("list", alloc)
	defer v.Close()

	assert.False(t, v.AllocateNewSafe())
	assert.Zero(t, alloc.Allocated())
	assert.Equal(t, int64(1), alloc.Statistics().Refused)
	assert.Zero(t, v.ValueCapacity())

	assert.ErrorIs(t, v.AllocateNew(), ErrOutOfMemory)
}

func TestListHashCode(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()

	writeInt64Lists(t, v, [][]int64{{1, 2}, {1, 2}, {2, 1}, nil, {}})
	assert.Equal(t, v.HashCode(0), v.HashCode(1))
	assert.NotEqual(t, v.HashCode(0), v.HashCode(2))
	assert.Zero(t, v.HashCode(3))
	assert.Zero(t, v.HashCode(4))

	child := v.DataVector()
	assert.Equal(t, 31*child.HashCode(0)+child.HashCode(1), v.HashCode(0))
}

func TestListBufferSize(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()

	assert.Zero(t, v.BufferSize())
	writeInt64Lists(t, v, sampleRows)

	// offsets + validity + child validity + child data
	assert.Equal(t, 5*4+1+1+4*8, v.BufferSize())
	assert.Equal(t, 3*4+1+1+3*8, v.BufferSizeFor(2))
	assert.Zero(t, v.BufferSizeFor(0))
}

func TestListFieldBuffersRoundTrip(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	src := newInt64List(t, "src", alloc)
	defer src.Close()
	writeInt64Lists(t, src, sampleRows)

	bufs := src.FieldBuffers()
	require.Len(t, bufs, 2)
	assert.Equal(t, 1, bufs[0].WriterIndex())
	assert.Equal(t, 5*OffsetWidth, bufs[1].WriterIndex())

	dst := newInt64List(t, "dst", alloc)
	defer dst.Close()
	require.NoError(t, dst.LoadFieldBuffers(FieldNode{Length: 4, NullCount: 1}, bufs))
	child := src.DataVector()
	require.NoError(t, dst.DataVector().LoadFieldBuffers(FieldNode{Length: child.ValueCount()}, child.FieldBuffers()))

	requireRows(t, dst, sampleRows)
	assert.Equal(t, 3, dst.LastSet())
	assert.Equal(t, 2, bufs[0].RefCount())
}

func TestListFieldBuffersEmpty(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()
	require.NoError(t, v.AllocateNew())

	bufs := v.FieldBuffers()
	assert.Zero(t, bufs[0].WriterIndex())
	assert.Zero(t, bufs[1].WriterIndex())
}

func TestListLoadFieldBuffersWrongCount(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()

	err := v.LoadFieldBuffers(FieldNode{Length: 1}, []*Buffer{alloc.Empty()})
	assert.ErrorIs(t, err, ErrIllegalArgument)
}

func TestListLoadFieldBuffersTooSmall(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()

	validity, err := alloc.Buffer(1)
	require.NoError(t, err)
	defer validity.Release()
	offsets, err := alloc.Buffer(8)
	require.NoError(t, err)
	defer offsets.Release()

	err = v.LoadFieldBuffers(FieldNode{Length: 4}, []*Buffer{validity, offsets})
	assert.ErrorIs(t, err, ErrIllegalArgument)
	assert.Equal(t, 1, offsets.RefCount())
	require.NoError(t, v.LoadFieldBuffers(FieldNode{Length: 1}, []*Buffer{validity, offsets}))
}

func TestListBuffersClear(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()
	writeInt64Lists(t, v, sampleRows)

	bufs := v.Buffers(true)
	require.Len(t, bufs, 4)
	assert.Zero(t, v.ValueCount())
	assert.Zero(t, v.ValueCapacity())
	assert.Positive(t, alloc.Allocated())
	for _, b := range bufs {
		assert.Equal(t, 1, b.RefCount())
		b.Release()
	}
	assert.Zero(t, alloc.Allocated())
}

func TestListDataBufferUnsupported(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := EmptyListVector("list", alloc)
	defer v.Close()

	_, err := v.DataBuffer()
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}

func TestListChildren(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())

	_, err := NewListVector("bad", alloc, Nullable(arrow.PrimitiveTypes.Int32), nil)
	assert.ErrorIs(t, err, ErrIllegalArgument)

	v := EmptyListVector("list", alloc)
	defer v.Close()
	assert.Equal(t, MinorNull, v.DataVector().MinorType())
	assert.Equal(t, DataVectorName, v.DataVector().Name())

	two := []arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int32},
		{Name: "b", Type: arrow.PrimitiveTypes.Int32},
	}
	assert.ErrorIs(t, v.InitializeChildrenFromFields(two), ErrIllegalArgument)

	require.NoError(t, v.InitializeChildrenFromFields(two[:1]))
	assert.Equal(t, "a", v.DataVector().Name())
	assert.ErrorIs(t, v.InitializeChildrenFromFields(two[:1]), ErrIllegalArgument)

	got, created, err := v.AddOrGetVector(Nullable(arrow.PrimitiveTypes.Int32))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, v.DataVector(), got)

	_, _, err = v.AddOrGetVector(Nullable(arrow.PrimitiveTypes.Float64))
	assert.ErrorIs(t, err, ErrUnsupportedOperation)

	want := arrow.Field{Name: "list", Type: arrow.ListOfField(arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int32, Nullable: true}), Nullable: true}
	assert.True(t, want.Equal(v.Field()), "got %s", v.Field())
}

func TestListCallbackOnChildCreation(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	calls := 0
	v, err := NewListVector("list", alloc, FieldType{Nullable: true}, CallBackFunc(func() { calls++ }))
	require.NoError(t, err)
	defer v.Close()

	_, created, err := v.AddOrGetVector(Nullable(arrow.PrimitiveTypes.Int64))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 1, calls)
}

func TestListCopyFromSafe(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	src := newInt64List(t, "src", alloc)
	defer src.Close()
	writeInt64Lists(t, src, sampleRows)

	dst := EmptyListVector("dst", alloc)
	defer dst.Close()
	require.NoError(t, dst.CopyFromSafe(0, 3, src))
	require.NoError(t, dst.CopyFromSafe(1, 4, src))
	require.NoError(t, dst.CopyFromSafe(3, 5, src))
	require.NoError(t, dst.SetValueCount(6))

	requireRows(t, dst, [][]int64{nil, nil, nil, {1, 2, 3}, nil, {4}})

	ints := NewInt32Vector("ints", alloc)
	defer ints.Close()
	assert.ErrorIs(t, dst.CopyFromSafe(0, 0, ints), ErrIllegalArgument)

	other, err := NewListVector("other", alloc, Nullable(arrow.ListOf(arrow.PrimitiveTypes.Int32)), nil)
	require.NoError(t, err)
	defer other.Close()
	assert.ErrorIs(t, other.CopyFromSafe(0, 0, src), ErrIllegalArgument)
}

func TestListClearAndReset(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()
	writeInt64Lists(t, v, sampleRows)

	capacity := v.ValueCapacity()
	v.Reset()
	assert.Zero(t, v.ValueCount())
	assert.Equal(t, -1, v.LastSet())
	assert.Equal(t, capacity, v.ValueCapacity())
	assert.True(t, v.IsNull(0))

	v.Clear()
	assert.Zero(t, v.ValueCapacity())
	assert.Zero(t, alloc.Allocated())
}

func TestListString(t *testing.T) {
	alloc := newTestAllocator(t, DefaultConfig())
	v := newInt64List(t, "list", alloc)
	defer v.Close()
	writeInt64Lists(t, v, sampleRows)

	assert.Equal(t, "[[1,2,3], null, [], [4]]", v.String())
}
