// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vector

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"

	"github.com/Query-farm/vgi-vector/vector/codec"
)

// Well-known schema metadata keys written by WriteRoot.
const (
	MetaVersion   = "vgi_vector.version"
	MetaCreatedBy = "vgi_vector.created_by"

	FormatVersion = "1"
	CreatedBy     = "vgi-vector"
)

type ipcOptions struct {
	compression codec.Type
	metadata    map[string]string
}

// IPCOption configures WriteRoot.
type IPCOption func(*ipcOptions)

// WithCompression compresses record bodies with t.
func WithCompression(t codec.Type) IPCOption {
	return func(o *ipcOptions) { o.compression = t }
}

// WithMetadata adds key/value pairs to the stream's schema metadata.
func WithMetadata(md map[string]string) IPCOption {
	return func(o *ipcOptions) {
		if o.metadata == nil {
			o.metadata = make(map[string]string, len(md))
		}
		for k, v := range md {
			o.metadata[k] = v
		}
	}
}

// WriteRoot writes roots as one arrow IPC stream: schema, one record per
// root, end of stream. Every root must have the first root's schema.
func WriteRoot(w io.Writer, roots []*Root, opts ...IPCOption) error {
	if len(roots) == 0 {
		return illegalArgument("no roots to write")
	}
	var o ipcOptions
	for _, opt := range opts {
		opt(&o)
	}

	first, err := roots[0].Record()
	if err != nil {
		return err
	}
	defer first.Release()
	schema := withStreamMetadata(first.Schema(), o.metadata)

	writerOpts := []ipc.Option{ipc.WithSchema(schema)}
	switch o.compression {
	case codec.LZ4:
		writerOpts = append(writerOpts, ipc.WithLZ4())
	case codec.ZSTD:
		writerOpts = append(writerOpts, ipc.WithZstd())
	}
	writer := ipc.NewWriter(w, writerOpts...)

	for i, root := range roots {
		rec := first
		if i > 0 {
			if rec, err = root.Record(); err != nil {
				writer.Close()
				return err
			}
		}
		if !rec.Schema().Equal(first.Schema()) {
			if i > 0 {
				rec.Release()
			}
			writer.Close()
			return illegalArgument("root %d schema %s does not match %s", i, rec.Schema(), first.Schema())
		}
		err = writer.Write(rec)
		if i > 0 {
			rec.Release()
		}
		if err != nil {
			writer.Close()
			return fmt.Errorf("writing root %d: %w", i, err)
		}
	}
	return writer.Close()
}

// ReadRoots reads an arrow IPC stream and calls fn with each record
// imported as a root. The root shares the record's memory and belongs to fn,
// which must close it.
func ReadRoots(r io.Reader, alloc *Allocator, fn func(*Root) error) error {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(alloc.Memory()))
	if err != nil {
		return fmt.Errorf("reading IPC stream: %w", err)
	}
	defer reader.Release()

	if err := checkStreamMetadata(reader.Schema()); err != nil {
		return err
	}

	for reader.Next() {
		root, err := RootFromRecord(reader.Record(), alloc)
		if err != nil {
			return err
		}
		if err := fn(root); err != nil {
			return err
		}
	}
	if err := reader.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading record: %w", err)
	}
	return nil
}

// ReadRoot reads the first record of an IPC stream.
func ReadRoot(r io.Reader, alloc *Allocator) (*Root, error) {
	var out *Root
	err := ReadRoots(r, alloc, func(root *Root) error {
		if out != nil {
			root.Close()
			return nil
		}
		out = root
		return nil
	})
	if err != nil {
		if out != nil {
			out.Close()
		}
		return nil, err
	}
	if out == nil {
		return nil, io.EOF
	}
	return out, nil
}

func withStreamMetadata(schema *arrow.Schema, extra map[string]string) *arrow.Schema {
	keys := []string{MetaVersion, MetaCreatedBy}
	values := []string{FormatVersion, CreatedBy}
	md := schema.Metadata()
	for i, k := range md.Keys() {
		if k == MetaVersion || k == MetaCreatedBy {
			continue
		}
		if _, ok := extra[k]; ok {
			continue
		}
		keys = append(keys, k)
		values = append(values, md.Values()[i])
	}
	for k, v := range extra {
		keys = append(keys, k)
		values = append(values, v)
	}
	meta := arrow.NewMetadata(keys, values)
	return arrow.NewSchema(schema.Fields(), &meta)
}

func checkStreamMetadata(schema *arrow.Schema) error {
	md := schema.Metadata()
	if v, ok := md.GetValue(MetaVersion); ok && v != FormatVersion {
		return &VectorError{
			Type:    TypeIllegalArgument,
			Message: fmt.Sprintf("unsupported %s %q, expected %q", MetaVersion, v, FormatVersion),
		}
	}
	return nil
}
