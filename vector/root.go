// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
)

// Root groups equal-length vectors under a schema, like an arrow record
// batch whose columns can still be written to.
type Root struct {
	schema   *arrow.Schema
	vectors  []Vector
	byName   map[string]Vector
	rowCount int
}

// NewRoot builds a root over vectors. The schema is taken from their
// fields and the row count from the first vector.
func NewRoot(vectors []Vector) *Root {
	fields := make([]arrow.Field, len(vectors))
	for i, v := range vectors {
		fields[i] = v.Field()
	}
	rowCount := 0
	if len(vectors) > 0 {
		rowCount = vectors[0].ValueCount()
	}
	r, _ := NewRootWithSchema(arrow.NewSchema(fields, nil), vectors, rowCount)
	return r
}

// RootOf is NewRoot over its arguments.
func RootOf(vectors ...Vector) *Root {
	return NewRoot(vectors)
}

// NewRootWithSchema builds a root from an explicit schema. The schema must
// have one field per vector.
func NewRootWithSchema(schema *arrow.Schema, vectors []Vector, rowCount int) (*Root, error) {
	if schema.NumFields() != len(vectors) {
		return nil, illegalArgument("schema has %d fields but %d vectors were given", schema.NumFields(), len(vectors))
	}
	r := &Root{
		schema:   schema,
		vectors:  slices.Clone(vectors),
		byName:   make(map[string]Vector, len(vectors)),
		rowCount: rowCount,
	}
	for i, v := range vectors {
		r.byName[schema.Field(i).Name] = v
	}
	return r, nil
}

// CreateRoot creates an empty vector for every field of schema.
func CreateRoot(schema *arrow.Schema, alloc *Allocator) (*Root, error) {
	vectors := make([]Vector, 0, schema.NumFields())
	for _, f := range schema.Fields() {
		v, err := NewVectorFromField(f, alloc, nil)
		if err != nil {
			for _, created := range vectors {
				created.Close()
			}
			return nil, fmt.Errorf("creating vector %q: %w", f.Name, err)
		}
		vectors = append(vectors, v)
	}
	return NewRootWithSchema(schema, vectors, 0)
}

func (r *Root) Schema() *arrow.Schema  { return r.schema }
func (r *Root) FieldVectors() []Vector { return r.vectors }
func (r *Root) RowCount() int          { return r.rowCount }
func (r *Root) VectorAt(i int) Vector  { return r.vectors[i] }

// Vector returns the vector named name, or nil.
func (r *Root) Vector(name string) Vector {
	return r.byName[name]
}

// AllocateNew allocates every vector and resets the row count.
func (r *Root) AllocateNew() error {
	for _, v := range r.vectors {
		if err := v.AllocateNew(); err != nil {
			return fmt.Errorf("allocating %q: %w", v.Name(), err)
		}
	}
	r.rowCount = 0
	return nil
}

// Clear releases the buffers of every vector.
func (r *Root) Clear() {
	for _, v := range r.vectors {
		v.Clear()
	}
	r.rowCount = 0
}

// Close releases every vector.
func (r *Root) Close() {
	for _, v := range r.vectors {
		v.Close()
	}
	r.rowCount = 0
}

// SetRowCount sets the value count of every vector to n.
func (r *Root) SetRowCount(n int) error {
	r.rowCount = n
	for _, v := range r.vectors {
		if err := v.SetValueCount(n); err != nil {
			return fmt.Errorf("setting row count of %q: %w", v.Name(), err)
		}
	}
	return nil
}

// AddVector returns a new root with v inserted at index i. The vectors are
// shared with r.
func (r *Root) AddVector(i int, v Vector) (*Root, error) {
	if i < 0 || i > len(r.vectors) {
		return nil, illegalArgument("index %d out of range for %d vectors", i, len(r.vectors))
	}
	vectors := slices.Insert(slices.Clone(r.vectors), i, v)
	fields := slices.Insert(slices.Clone(r.schema.Fields()), i, v.Field())
	md := r.schema.Metadata()
	return NewRootWithSchema(arrow.NewSchema(fields, &md), vectors, r.rowCount)
}

// RemoveVector returns a new root without the vector at index i. The
// remaining vectors are shared with r.
func (r *Root) RemoveVector(i int) (*Root, error) {
	if i < 0 || i >= len(r.vectors) {
		return nil, illegalArgument("index %d out of range for %d vectors", i, len(r.vectors))
	}
	vectors := slices.Delete(slices.Clone(r.vectors), i, i+1)
	fields := slices.Delete(slices.Clone(r.schema.Fields()), i, i+1)
	md := r.schema.Metadata()
	return NewRootWithSchema(arrow.NewSchema(fields, &md), vectors, r.rowCount)
}

// Slice returns a new root holding rows [index, index+length). The source
// root keeps its data.
func (r *Root) Slice(index, length int) (*Root, error) {
	if index < 0 || length < 0 || index+length > r.rowCount {
		return nil, illegalArgument("slice [%d, %d) out of range for %d rows", index, index+length, r.rowCount)
	}
	sliced := make([]Vector, 0, len(r.vectors))
	for _, v := range r.vectors {
		pair := v.TransferPair(v.Name(), v.Allocator(), nil)
		if err := pair.SplitAndTransfer(index, length); err != nil {
			for _, s := range sliced {
				s.Close()
			}
			return nil, fmt.Errorf("slicing %q: %w", v.Name(), err)
		}
		sliced = append(sliced, pair.To())
	}
	return NewRootWithSchema(r.schema, sliced, length)
}

// SyncSchema rebuilds the schema from the vectors' current fields and
// reports whether it changed.
func (r *Root) SyncSchema() bool {
	fields := make([]arrow.Field, len(r.vectors))
	for i, v := range r.vectors {
		fields[i] = v.Field()
	}
	md := r.schema.Metadata()
	schema := arrow.NewSchema(fields, &md)
	if schema.Equal(r.schema) {
		return false
	}
	r.schema = schema
	return true
}

// Equals compares schemas, row counts and every value.
func (r *Root) Equals(other *Root) bool {
	if other == nil || r.rowCount != other.rowCount || !r.schema.Equal(other.schema) {
		return false
	}
	for i, v := range r.vectors {
		o := other.vectors[i]
		for row := 0; row < r.rowCount; row++ {
			if !reflect.DeepEqual(v.GetObject(row), o.GetObject(row)) {
				return false
			}
		}
	}
	return true
}

// ContentToTSV renders the root as tab separated rows under a header.
func (r *Root) ContentToTSV() string {
	var sb strings.Builder
	for i, f := range r.schema.Fields() {
		if i > 0 {
			sb.WriteByte('\t')
		}
		sb.WriteString(f.Name)
	}
	sb.WriteByte('\n')
	for row := 0; row < r.rowCount; row++ {
		for i, v := range r.vectors {
			if i > 0 {
				sb.WriteByte('\t')
			}
			sb.WriteString(formatObject(v.GetObject(row)))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (r *Root) String() string { return r.ContentToTSV() }
