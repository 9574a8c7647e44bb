// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"fmt"

	"github.com/Query-farm/vgi-vector/vector"
)

// Batch is a row range of a split root.
type Batch struct {
	Start int
	Root  *vector.Root
}

// Batches splits root into consecutive roots of at most size rows using
// split-and-transfer. The source keeps its data. Each batch root belongs to
// the caller.
func Batches(root *vector.Root, size int) ([]Batch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size %d must be positive", size)
	}
	var out []Batch
	for start := 0; start < root.RowCount(); start += size {
		n := min(size, root.RowCount()-start)
		part, err := root.Slice(start, n)
		if err != nil {
			CloseBatches(out)
			return nil, fmt.Errorf("slicing rows [%d, %d): %w", start, start+n, err)
		}
		out = append(out, Batch{Start: start, Root: part})
	}
	return out, nil
}

// VerifyBatches checks batches produced from the conformance root, in order.
func VerifyBatches(batches []Batch) error {
	next := 0
	for _, b := range batches {
		if b.Start != next {
			return fmt.Errorf("batch starts at row %d, want %d", b.Start, next)
		}
		if err := VerifyRange(b.Root, b.Start); err != nil {
			return fmt.Errorf("batch at row %d: %w", b.Start, err)
		}
		next += b.Root.RowCount()
	}
	if next != Rows {
		return fmt.Errorf("batches cover %d rows, want %d", next, Rows)
	}
	return nil
}

// CloseBatches closes every batch root.
func CloseBatches(batches []Batch) {
	for _, b := range batches {
		b.Root.Close()
	}
}
