// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vecotel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/Query-farm/vgi-vector/vector"
)

type harness struct {
	reader *sdkmetric.ManualReader
	spans  *tracetest.SpanRecorder
	cfg    OtelConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
		_ = tp.Shutdown(context.Background())
	})
	cfg := DefaultConfig()
	cfg.MeterProvider = mp
	cfg.TracerProvider = tp
	return &harness{reader: reader, spans: spans, cfg: cfg}
}

func (h *harness) metrics(t *testing.T) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, h.reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumInt(agg metricdata.Aggregation, match func(attribute.Set) bool) int64 {
	var total int64
	if s, ok := agg.(metricdata.Sum[int64]); ok {
		for _, dp := range s.DataPoints {
			if match == nil || match(dp.Attributes) {
				total += dp.Value
			}
		}
	}
	return total
}

func eventIs(name string) func(attribute.Set) bool {
	return func(s attribute.Set) bool {
		v, ok := s.Value("event")
		return ok && v.AsString() == name
	}
}

func TestInstrumentAllocatorMetrics(t *testing.T) {
	h := newHarness(t)
	alloc := vector.NewAllocator("metrics", vector.Config{InitialValueAllocation: 4})
	require.NoError(t, InstrumentAllocator(alloc, h.cfg))

	v := vector.NewInt64Vector("ints", alloc)
	for i := 0; i < 100; i++ {
		require.NoError(t, v.SetSafe(i, int64(i)))
	}
	require.NoError(t, v.SetValueCount(100))

	got := h.metrics(t)
	require.Contains(t, got, "vgi_vector.allocator.events")
	assert.Positive(t, sumInt(got["vgi_vector.allocator.events"], eventIs("allocate")))
	assert.Equal(t, alloc.Allocated(), sumInt(got["vgi_vector.allocator.live_bytes"], nil))

	hist, ok := got["vgi_vector.vector.growth"].(metricdata.Histogram[int64])
	require.True(t, ok)
	var growths uint64
	for _, dp := range hist.DataPoints {
		growths += dp.Count
	}
	assert.Positive(t, growths)

	v.Close()
	got = h.metrics(t)
	assert.Zero(t, sumInt(got["vgi_vector.allocator.live_bytes"], nil))
	assert.Equal(t,
		sumInt(got["vgi_vector.allocator.bytes"], eventIs("allocate")),
		sumInt(got["vgi_vector.allocator.bytes"], eventIs("release")))
	require.NoError(t, alloc.Close())
}

func TestInstrumentAllocatorGrowthSpans(t *testing.T) {
	h := newHarness(t)
	h.cfg.CustomAttributes = []attribute.KeyValue{attribute.String("job", "test")}
	alloc := vector.NewAllocator("spans", vector.Config{InitialValueAllocation: 2})
	require.NoError(t, InstrumentAllocator(alloc, h.cfg))

	v := vector.EmptyListVector("list", alloc)
	defer v.Close()
	w := v.Writer()
	for i := 0; i < 10; i++ {
		require.NoError(t, w.StartList())
		require.NoError(t, w.WriteInt32(int32(i)))
		require.NoError(t, w.EndList())
	}
	require.NoError(t, v.SetValueCount(10))

	ended := h.spans.Ended()
	require.NotEmpty(t, ended)
	names := map[string]bool{}
	for _, s := range ended {
		names[s.Name()] = true
		attrs := attribute.NewSet(s.Attributes()...)
		vec, ok := attrs.Value("vgi_vector.vector")
		require.True(t, ok)
		assert.NotEmpty(t, vec.AsString())
		job, ok := attrs.Value("job")
		require.True(t, ok)
		assert.Equal(t, "test", job.AsString())
	}
	assert.True(t, names["vgi_vector/grow offsets"], "spans: %v", names)
}

func TestInstrumentAllocatorTransferAndRefusal(t *testing.T) {
	h := newHarness(t)
	src := vector.NewAllocator("src", vector.DefaultConfig())
	dst := vector.NewAllocator("dst", vector.Config{Limit: 4096})
	require.NoError(t, InstrumentAllocator(src, h.cfg))

	v := vector.NewInt32Vector("ints", src)
	require.NoError(t, v.SetSafe(0, 1))
	require.NoError(t, v.SetValueCount(1))
	pair := v.TransferPair("moved", dst, nil)
	require.NoError(t, pair.Transfer())

	got := h.metrics(t)
	assert.Positive(t, sumInt(got["vgi_vector.allocator.events"], eventIs("transfer_out")))
	assert.Zero(t, sumInt(got["vgi_vector.allocator.live_bytes"], nil))

	require.NoError(t, InstrumentAllocator(dst, h.cfg))
	_, err := dst.Buffer(1 << 20)
	assert.ErrorIs(t, err, vector.ErrOutOfMemory)
	got = h.metrics(t)
	assert.Equal(t, int64(1), sumInt(got["vgi_vector.allocator.events"], eventIs("refused")))

	pair.To().Close()
	v.Close()
	require.NoError(t, src.Close())
	require.NoError(t, dst.Close())
}

func TestInstrumentAllocatorDisabled(t *testing.T) {
	h := newHarness(t)
	h.cfg.EnableMetrics = false
	h.cfg.EnableTracing = false
	alloc := vector.NewAllocator("off", vector.Config{InitialValueAllocation: 2})
	require.NoError(t, InstrumentAllocator(alloc, h.cfg))

	v := vector.NewInt32Vector("ints", alloc)
	for i := 0; i < 50; i++ {
		require.NoError(t, v.SetSafe(i, int32(i)))
	}
	v.Close()

	assert.Empty(t, h.metrics(t))
	assert.Empty(t, h.spans.Ended())
	require.NoError(t, alloc.Close())
}
