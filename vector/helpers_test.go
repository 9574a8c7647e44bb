// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestAllocator returns an allocator whose memory is checked for leaks
// when the test finishes.
func newTestAllocator(t *testing.T, cfg Config) *Allocator {
	t.Helper()
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	alloc := NewAllocatorWith(t.Name(), mem, cfg)
	t.Cleanup(func() {
		mem.AssertSize(t, 0)
		assert.NoError(t, alloc.Close())
	})
	return alloc
}

// writeInt64Lists appends rows through a writer. A nil row is a null slot.
func writeInt64Lists(t *testing.T, v *ListVector, rows [][]int64) {
	t.Helper()
	w := v.Writer()
	for _, row := range rows {
		if row == nil {
			require.NoError(t, w.WriteNullList())
			continue
		}
		require.NoError(t, w.StartList())
		for _, x := range row {
			require.NoError(t, w.WriteInt64(x))
		}
		require.NoError(t, w.EndList())
	}
	require.NoError(t, v.SetValueCount(len(rows)))
}

// int64ListObject is the GetObject form of row.
func int64ListObject(row []int64) any {
	if row == nil {
		return nil
	}
	out := make([]any, len(row))
	for i, x := range row {
		out[i] = x
	}
	return out
}

func newInt64List(t *testing.T, name string, alloc *Allocator) *ListVector {
	t.Helper()
	v, err := NewListVector(name, alloc, Nullable(arrow.ListOf(arrow.PrimitiveTypes.Int64)), nil)
	require.NoError(t, err)
	return v
}

func requireRows(t *testing.T, v *ListVector, rows [][]int64) {
	t.Helper()
	require.Equal(t, len(rows), v.ValueCount())
	for i, row := range rows {
		assert.Equal(t, int64ListObject(row), v.GetObject(i), "slot %d", i)
	}
}
