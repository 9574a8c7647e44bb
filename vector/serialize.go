// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/Query-farm/vgi-vector/vector/codec"
)

// Frame layout, all integers little-endian:
//
//	magic "VGIV" | version u8 | codec u8 | schema length u32 | IPC schema
//	node: length u32 | null count u32 | buffer count u8 | blocks... | children...
//
// Nodes are written depth first in Children order. Each buffer is one codec
// block holding the bytes between its reader and writer index.
var frameMagic = [4]byte{'V', 'G', 'I', 'V'}

const frameVersion = 1

// WriteVector writes v as a single frame, compressing each buffer with c.
func WriteVector(w io.Writer, v Vector, c codec.Type) error {
	schema := serializeSchema(arrow.NewSchema([]arrow.Field{v.Field()}, nil))

	hdr := make([]byte, 0, 10)
	hdr = append(hdr, frameMagic[:]...)
	hdr = append(hdr, frameVersion, byte(c))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(len(schema)))
	if _, err := w.Write(hdr); err != nil {
		return fmt.Errorf("writing frame header: %w", err)
	}
	if _, err := w.Write(schema); err != nil {
		return fmt.Errorf("writing frame schema: %w", err)
	}
	return writeNode(w, v, c)
}

func writeNode(w io.Writer, v Vector, c codec.Type) error {
	bufs := v.FieldBuffers()
	node := make([]byte, 0, 9)
	node = binary.LittleEndian.AppendUint32(node, uint32(v.ValueCount()))
	node = binary.LittleEndian.AppendUint32(node, uint32(v.NullCount()))
	node = append(node, byte(len(bufs)))
	if _, err := w.Write(node); err != nil {
		return fmt.Errorf("writing node %q: %w", v.Name(), err)
	}
	for _, b := range bufs {
		block, err := codec.CompressBlock(b.Readable(), c)
		if err != nil {
			return fmt.Errorf("compressing buffer of %q: %w", v.Name(), err)
		}
		if _, err := w.Write(block); err != nil {
			return fmt.Errorf("writing buffer of %q: %w", v.Name(), err)
		}
	}
	for _, child := range v.Children() {
		if err := writeNode(w, child, c); err != nil {
			return err
		}
	}
	return nil
}

// ReadVector reads one frame written by WriteVector. Buffers are allocated
// from alloc.
func ReadVector(r io.Reader, alloc *Allocator) (Vector, error) {
	var hdr [10]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("reading frame header: %w", err)
	}
	if !bytes.Equal(hdr[:4], frameMagic[:]) {
		return nil, illegalArgument("bad frame magic %q", hdr[:4])
	}
	if hdr[4] != frameVersion {
		return nil, illegalArgument("unsupported frame version %d", hdr[4])
	}
	c := codec.Type(hdr[5])
	if c > codec.ZSTD {
		return nil, illegalArgument("unknown frame codec %d", hdr[5])
	}

	schemaLen := int64(binary.LittleEndian.Uint32(hdr[6:]))
	if schemaLen > alloc.Config().MaxAllocationBytes {
		return nil, illegalArgument("frame schema of %d bytes exceeds the %d byte cap", schemaLen, alloc.Config().MaxAllocationBytes)
	}
	schemaBytes, err := readExactly(r, schemaLen)
	if err != nil {
		return nil, fmt.Errorf("reading frame schema: %w", err)
	}
	schema, err := deserializeSchema(schemaBytes)
	if err != nil {
		return nil, err
	}
	if schema.NumFields() != 1 {
		return nil, illegalArgument("frame schema has %d fields, expected 1", schema.NumFields())
	}

	v, err := NewVectorFromField(schema.Field(0), alloc, nil)
	if err != nil {
		return nil, err
	}
	if err := readNode(r, v, c, alloc); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func readNode(r io.Reader, v Vector, c codec.Type, alloc *Allocator) error {
	var hdr [9]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("reading node %q: %w", v.Name(), err)
	}
	node := FieldNode{
		Length:    int(binary.LittleEndian.Uint32(hdr[0:])),
		NullCount: int(binary.LittleEndian.Uint32(hdr[4:])),
	}

	bufs := make([]*Buffer, 0, hdr[8])
	defer func() {
		for _, b := range bufs {
			b.Release()
		}
	}()
	// No buffer is wider than eight bytes per slot plus one trailing offset.
	maxRaw := (node.Length + 1) * 8
	for range int(hdr[8]) {
		b, err := readBlock(r, c, maxRaw, alloc)
		if err != nil {
			return fmt.Errorf("reading buffer of %q: %w", v.Name(), err)
		}
		bufs = append(bufs, b)
	}
	if err := v.LoadFieldBuffers(node, bufs); err != nil {
		return err
	}
	for _, child := range v.Children() {
		if err := readNode(r, child, c, alloc); err != nil {
			return err
		}
	}
	return checkLoaded(v)
}

// checkLoaded verifies that the slots of a freshly read vector only
// reference elements its children actually hold.
func checkLoaded(v Vector) error {
	switch x := v.(type) {
	case *ListVector:
		if x.valueCount == 0 {
			return nil
		}
		prev := x.offset(0)
		if prev != 0 {
			return illegalArgument("list %q: first offset is %d", x.name, prev)
		}
		for i := 1; i <= x.valueCount; i++ {
			o := x.offset(i)
			if o < prev {
				return illegalArgument("list %q: offset %d decreases from %d to %d", x.name, i, prev, o)
			}
			prev = o
		}
		if n := x.child.ValueCount(); prev > n {
			return illegalArgument("list %q: offsets reach %d but the child holds %d values", x.name, prev, n)
		}
	case *UnionVector:
		for i := 0; i < x.valueCount; i++ {
			code := x.TypeCode(i)
			if code < 0 || int(code) >= len(x.branches) {
				return illegalArgument("union %q: slot %d has type code %d", x.name, i, code)
			}
			if b := x.branches[code]; b.MinorType() != MinorNull && i >= b.ValueCount() {
				return illegalArgument("union %q: slot %d is past the end of branch %q", x.name, i, b.Name())
			}
		}
	}
	return nil
}

func readBlock(r io.Reader, c codec.Type, maxRaw int, alloc *Allocator) (*Buffer, error) {
	header := make([]byte, codec.HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	size, err := codec.BlockSize(header)
	if err != nil {
		return nil, err
	}
	raw, err := codec.RawSize(header)
	if err != nil {
		return nil, err
	}
	if raw > maxRaw {
		return nil, illegalArgument("block of %d bytes is too large for its node", raw)
	}
	if limit := alloc.Config().MaxAllocationBytes; int64(size) > limit {
		return nil, illegalArgument("block of %d bytes exceeds the %d byte cap", size, limit)
	}
	payload, err := readExactly(r, int64(size-codec.HeaderSize))
	if err != nil {
		return nil, err
	}
	if raw == 0 {
		return alloc.Empty(), nil
	}
	dst, err := alloc.allocate(raw, "frame", "block")
	if err != nil {
		return nil, err
	}
	block := append(header, payload...)
	if _, err := codec.DecompressBlock(block, dst.Bytes(), c); err != nil {
		dst.Release()
		return nil, err
	}
	return dst, nil
}

// readExactly reads n bytes from r. The result grows with the data actually
// read, so a corrupt length cannot force a large allocation up front.
func readExactly(r io.Reader, n int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, n))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) < n {
		return nil, io.ErrUnexpectedEOF
	}
	return b, nil
}

// serializeSchema encodes schema as an IPC stream holding only the schema
// message.
func serializeSchema(schema *arrow.Schema) []byte {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	w.Close()
	return buf.Bytes()
}

func deserializeSchema(b []byte) (*arrow.Schema, error) {
	reader, err := ipc.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decoding frame schema: %w", err)
	}
	defer reader.Release()
	return reader.Schema(), nil
}
