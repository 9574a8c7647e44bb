// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"bytes"

	"github.com/Query-farm/vgi-vector/vector"
	"github.com/Query-farm/vgi-vector/vector/codec"
)

// RoundTripFrame encodes v as a frame into buf, decodes it again and
// returns the encoded size. buf is reset first.
func RoundTripFrame(buf *bytes.Buffer, v vector.Vector, c codec.Type, alloc *vector.Allocator) (int, error) {
	buf.Reset()
	if err := vector.WriteVector(buf, v, c); err != nil {
		return 0, err
	}
	n := buf.Len()
	back, err := vector.ReadVector(buf, alloc)
	if err != nil {
		return n, err
	}
	back.Close()
	return n, nil
}

// RoundTripIPC writes root as an IPC stream of batch-row records into buf,
// reads every record back and returns the encoded size.
func RoundTripIPC(buf *bytes.Buffer, root *vector.Root, batch int, c codec.Type, alloc *vector.Allocator) (int, error) {
	buf.Reset()
	var roots []*vector.Root
	defer func() {
		for _, r := range roots {
			r.Close()
		}
	}()
	for start := 0; start < root.RowCount(); start += batch {
		part, err := root.Slice(start, min(batch, root.RowCount()-start))
		if err != nil {
			return 0, err
		}
		roots = append(roots, part)
	}
	if err := vector.WriteRoot(buf, roots, vector.WithCompression(c)); err != nil {
		return 0, err
	}
	n := buf.Len()
	err := vector.ReadRoots(buf, alloc, func(r *vector.Root) error {
		r.Close()
		return nil
	})
	return n, err
}
