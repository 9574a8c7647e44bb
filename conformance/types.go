// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Query-farm/vgi-vector/vector"
)

// Rows is the row count of the conformance root.
const Rows = 8

// Column names of the conformance root, in schema order.
const (
	ColID     = "id"
	ColScores = "scores"
	ColTags   = "tags"
	ColMatrix = "matrix"
	ColMixed  = "mixed"
)

// Column describes one column of the conformance root.
type Column struct {
	Name string
	// Type is the declared type. The mixed column starts as an untyped
	// list and is promoted while writing, so its Type is nil.
	Type arrow.DataType
	// Minor is the minor type of the list element vector after writing, or
	// of the column itself for scalar columns.
	Minor vector.MinorType
	// Want holds the GetObject value of every row.
	Want [Rows]any
}

// Columns is the expected-value table.
var Columns = []Column{
	{
		Name:  ColID,
		Type:  arrow.PrimitiveTypes.Int64,
		Minor: vector.MinorInt64,
		Want: [Rows]any{
			int64(0), int64(1), int64(2), int64(3),
			int64(4), int64(5), nil, int64(7),
		},
	},
	{
		Name:  ColScores,
		Type:  arrow.ListOf(arrow.PrimitiveTypes.Float64),
		Minor: vector.MinorFloat64,
		Want: [Rows]any{
			[]any{1.5, 2.5},
			nil,
			[]any{},
			[]any{0.25},
			[]any{-1.0, 0.0, 1.0},
			nil,
			[]any{3.75, 4.75, 5.75, 6.75},
			[]any{},
		},
	},
	{
		Name:  ColTags,
		Type:  arrow.ListOf(arrow.PrimitiveTypes.Int32),
		Minor: vector.MinorInt32,
		Want: [Rows]any{
			[]any{},
			[]any{int32(10)},
			[]any{int32(20), int32(21)},
			[]any{},
			nil,
			[]any{int32(50)},
			[]any{int32(60), nil},
			[]any{},
		},
	},
	{
		Name:  ColMatrix,
		Type:  arrow.ListOf(arrow.ListOf(arrow.PrimitiveTypes.Int64)),
		Minor: vector.MinorList,
		Want: [Rows]any{
			[]any{[]any{int64(1), int64(2)}, []any{int64(3)}},
			[]any{[]any{}},
			nil,
			[]any{[]any{int64(4)}, nil},
			[]any{},
			[]any{[]any{int64(5), int64(6), int64(7)}},
			nil,
			[]any{nil, []any{}, []any{int64(8)}},
		},
	},
	{
		Name:  ColMixed,
		Minor: vector.MinorUnion,
		Want: [Rows]any{
			[]any{int64(1)},
			[]any{2.5},
			[]any{int64(3), nil, 4.5},
			nil,
			[]any{},
			[]any{int32(7)},
			[]any{nil},
			[]any{int64(8), 9.5},
		},
	},
}

// ColumnByName returns the table entry for name.
func ColumnByName(name string) (Column, bool) {
	for _, c := range Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}
