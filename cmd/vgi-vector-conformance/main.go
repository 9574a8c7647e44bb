// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Query-farm/vgi-vector/conformance"
	vecotel "github.com/Query-farm/vgi-vector/otel"
	"github.com/Query-farm/vgi-vector/vector"
	"github.com/Query-farm/vgi-vector/vector/codec"
)

const (
	modeIPC   = "ipc"
	modeFrame = "frame"
)

type options struct {
	mode     string
	codec    string
	limit    string
	batch    int
	otel     bool
	logLevel string
}

func main() {
	var opts options
	app := kingpin.New("vgi-vector-conformance", "Build, encode and verify the vgi-vector conformance fixture.")
	app.Flag("mode", "Encoding: ipc or frame.").Default(modeIPC).EnumVar(&opts.mode, modeIPC, modeFrame)
	app.Flag("codec", "Buffer compression: none, lz4 or zstd.").Default("none").EnumVar(&opts.codec, "none", "lz4", "zstd")
	app.Flag("limit", "Allocator limit, e.g. 64MB. Empty means unlimited.").Default("").StringVar(&opts.limit)
	app.Flag("batch", "Rows per IPC record.").Default("3").IntVar(&opts.batch)
	app.Flag("otel", "Export allocator metrics and growth spans to stderr.").BoolVar(&opts.otel)
	app.Flag("log-level", "Log level: debug, info, warn or error.").Default("info").EnumVar(&opts.logLevel, "debug", "info", "warn", "error")

	check := app.Command("check", "Encode the fixture in memory, decode it and verify.").Default()
	write := app.Command("write", "Encode the fixture to a file, or stdout when no file is given.")
	writePath := write.Arg("file", "Output file.").String()
	read := app.Command("read", "Decode a file written by write and verify it.")
	readPath := read.Arg("file", "Input file.").Required().ExistingFile()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		app.Fatalf("bad --log-level: %v", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var err error
	switch cmd {
	case check.FullCommand():
		err = run(ctx, opts, os.Stdout, func(alloc *vector.Allocator, c codec.Type, s *summary) error {
			var buf bytes.Buffer
			if err := encode(&buf, alloc, opts, c, s); err != nil {
				return err
			}
			return decode(&buf, alloc, opts, s)
		})
	case write.FullCommand():
		report := io.Writer(os.Stdout)
		if *writePath == "" {
			report = os.Stderr
		}
		err = run(ctx, opts, report, func(alloc *vector.Allocator, c codec.Type, s *summary) error {
			out := io.Writer(os.Stdout)
			if *writePath != "" {
				f, err := os.Create(*writePath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return encode(out, alloc, opts, c, s)
		})
	case read.FullCommand():
		err = run(ctx, opts, os.Stdout, func(alloc *vector.Allocator, _ codec.Type, s *summary) error {
			f, err := os.Open(*readPath)
			if err != nil {
				return err
			}
			defer f.Close()
			return decode(f, alloc, opts, s)
		})
	}
	if err != nil {
		slog.Error("conformance failed", "command", cmd, "err", err)
		os.Exit(1)
	}
}

// summary is printed as JSON when a command finishes.
type summary struct {
	Mode        string          `json:"mode"`
	Codec       string          `json:"codec"`
	Rows        int             `json:"rows"`
	Batches     int             `json:"batches,omitempty"`
	EncodedSize string          `json:"encoded_size,omitempty"`
	Verified    bool            `json:"verified"`
	Peak        string          `json:"peak_allocated"`
	Allocator   string          `json:"allocator"`
	Columns     []columnSummary `json:"columns,omitempty"`
}

type columnSummary struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Nulls      []uint32 `json:"null_positions"`
	BufferSize string   `json:"buffer_size"`
}

func run(ctx context.Context, opts options, report io.Writer, body func(*vector.Allocator, codec.Type, *summary) error) error {
	c, err := codec.Parse(opts.codec)
	if err != nil {
		return err
	}
	cfg, err := vector.ConfigFromEnv()
	if err != nil {
		return err
	}
	if opts.limit != "" {
		if cfg.Limit, err = vector.ParseByteSize(opts.limit); err != nil {
			return fmt.Errorf("bad --limit: %w", err)
		}
	}
	alloc := vector.NewAllocator("conformance", cfg)

	if opts.otel {
		shutdown, err := setupOtel(ctx, alloc)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	s := &summary{Mode: opts.mode, Codec: c.String()}
	if err := body(alloc, c, s); err != nil {
		return err
	}
	s.Peak = humanize.IBytes(uint64(alloc.Peak()))
	s.Allocator = alloc.String()
	if err := alloc.Close(); err != nil {
		return err
	}

	enc := json.NewEncoder(report)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func encode(w io.Writer, alloc *vector.Allocator, opts options, c codec.Type, s *summary) error {
	root, err := conformance.BuildRoot(alloc)
	if err != nil {
		return err
	}
	defer root.Close()
	s.Rows = root.RowCount()
	s.Columns = summarize(root)

	cw := &countingWriter{w: w}
	switch opts.mode {
	case modeFrame:
		for _, v := range root.FieldVectors() {
			if err := vector.WriteVector(cw, v, c); err != nil {
				return err
			}
		}
	default:
		batches, err := conformance.Batches(root, opts.batch)
		if err != nil {
			return err
		}
		defer conformance.CloseBatches(batches)
		roots := make([]*vector.Root, len(batches))
		for i, b := range batches {
			roots[i] = b.Root
		}
		if err := vector.WriteRoot(cw, roots, vector.WithCompression(c)); err != nil {
			return err
		}
		s.Batches = len(batches)
	}
	s.EncodedSize = humanize.IBytes(uint64(cw.n))
	slog.Debug("fixture encoded", "mode", opts.mode, "codec", c, "bytes", cw.n)
	return nil
}

func decode(r io.Reader, alloc *vector.Allocator, opts options, s *summary) error {
	switch opts.mode {
	case modeFrame:
		var vectors []vector.Vector
		defer func() {
			for _, v := range vectors {
				v.Close()
			}
		}()
		for {
			v, err := vector.ReadVector(r, alloc)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			vectors = append(vectors, v)
		}
		root := vector.RootOf(vectors...)
		if err := conformance.Verify(root); err != nil {
			return err
		}
		s.Rows = root.RowCount()
		s.Columns = summarize(root)

	default:
		var batches []conformance.Batch
		defer func() { conformance.CloseBatches(batches) }()
		next := 0
		err := vector.ReadRoots(r, alloc, func(root *vector.Root) error {
			batches = append(batches, conformance.Batch{Start: next, Root: root})
			next += root.RowCount()
			return nil
		})
		if err != nil {
			return err
		}
		if err := conformance.VerifyBatches(batches); err != nil {
			return err
		}
		s.Rows = next
		s.Batches = len(batches)
	}
	s.Verified = true
	return nil
}

func summarize(root *vector.Root) []columnSummary {
	out := make([]columnSummary, 0, len(root.FieldVectors()))
	for _, v := range root.FieldVectors() {
		out = append(out, columnSummary{
			Name:       v.Name(),
			Type:       v.Field().Type.String(),
			Nulls:      nullPositions(v).ToArray(),
			BufferSize: humanize.IBytes(uint64(v.BufferSize())),
		})
	}
	return out
}

func nullPositions(v vector.Vector) *roaring.Bitmap {
	if np, ok := v.(interface{ NullPositions() *roaring.Bitmap }); ok {
		return np.NullPositions()
	}
	bm := roaring.New()
	for i := 0; i < v.ValueCount(); i++ {
		if v.IsNull(i) {
			bm.Add(uint32(i))
		}
	}
	return bm
}

// setupOtel installs stdout exporters on stderr and instruments alloc. The
// returned function flushes and stops both providers.
func setupOtel(ctx context.Context, alloc *vector.Allocator) (func(), error) {
	traceExp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr), stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))

	cfg := vecotel.DefaultConfig()
	cfg.TracerProvider = tp
	cfg.MeterProvider = mp
	cfg.Context = ctx
	if err := vecotel.InstrumentAllocator(alloc, cfg); err != nil {
		return nil, err
	}
	return func() {
		shutdownCtx := context.WithoutCancel(ctx)
		if err := tp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("trace provider shutdown", "err", err)
		}
		if err := mp.Shutdown(shutdownCtx); err != nil {
			slog.Warn("meter provider shutdown", "err", err)
		}
	}, nil
}
