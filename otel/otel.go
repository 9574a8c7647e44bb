// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package vecotel provides OpenTelemetry instrumentation for vgi-vector
// allocators. It implements the [vector.AllocationHook] interface to record
// allocation metrics and a span per buffer growth.
//
// Usage:
//
//	alloc := vector.NewAllocator("root", vector.DefaultConfig())
//	vecotel.InstrumentAllocator(alloc, vecotel.DefaultConfig())
package vecotel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Query-farm/vgi-vector/vector"
)

const instrumentationName = "vgi_vector"

// OtelConfig configures OpenTelemetry instrumentation for an allocator.
type OtelConfig struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// EnableTracing enables a span per buffer growth. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// Context is the parent of growth spans. Defaults to context.Background().
	Context context.Context
	// CustomAttributes are added to every span and measurement.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns an OtelConfig with tracing and metrics enabled.
// Providers are resolved from the global OTel SDK at instrumentation time.
func DefaultConfig() OtelConfig {
	return OtelConfig{
		EnableTracing: true,
		EnableMetrics: true,
	}
}

// InstrumentAllocator attaches OpenTelemetry instrumentation to alloc via
// [vector.Allocator.SetHook]. It replaces any hook already installed.
func InstrumentAllocator(alloc *vector.Allocator, cfg OtelConfig) error {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}

	h := &otelHook{
		cfg:       cfg,
		allocator: alloc.Name(),
		tracer:    cfg.TracerProvider.Tracer(instrumentationName),
	}

	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		var err error
		if h.events, err = meter.Int64Counter("vgi_vector.allocator.events",
			metric.WithUnit("{event}"),
			metric.WithDescription("Number of allocator events by kind"),
		); err != nil {
			return fmt.Errorf("creating event counter: %w", err)
		}
		if h.bytes, err = meter.Int64Counter("vgi_vector.allocator.bytes",
			metric.WithUnit("By"),
			metric.WithDescription("Bytes moved by allocator events"),
		); err != nil {
			return fmt.Errorf("creating byte counter: %w", err)
		}
		if h.live, err = meter.Int64UpDownCounter("vgi_vector.allocator.live_bytes",
			metric.WithUnit("By"),
			metric.WithDescription("Bytes currently held by the allocator"),
		); err != nil {
			return fmt.Errorf("creating live byte counter: %w", err)
		}
		if h.growth, err = meter.Int64Histogram("vgi_vector.vector.growth",
			metric.WithUnit("By"),
			metric.WithDescription("New size of reallocated vector buffers"),
		); err != nil {
			return fmt.Errorf("creating growth histogram: %w", err)
		}
	}

	alloc.SetHook(h)
	return nil
}

// otelHook implements vector.AllocationHook with OpenTelemetry metrics and
// growth spans.
type otelHook struct {
	cfg       OtelConfig
	allocator string
	tracer    trace.Tracer
	events    metric.Int64Counter
	bytes     metric.Int64Counter
	live      metric.Int64UpDownCounter
	growth    metric.Int64Histogram
}

func (h *otelHook) attrs(extra ...attribute.KeyValue) metric.MeasurementOption {
	kv := make([]attribute.KeyValue, 0, 1+len(extra)+len(h.cfg.CustomAttributes))
	kv = append(kv, attribute.String("vgi_vector.allocator", h.allocator))
	kv = append(kv, extra...)
	kv = append(kv, h.cfg.CustomAttributes...)
	return metric.WithAttributes(kv...)
}

// OnAllocation counts the event and tracks live bytes.
func (h *otelHook) OnAllocation(info vector.AllocationInfo) {
	if !h.cfg.EnableMetrics {
		return
	}
	ctx := h.cfg.Context
	opt := h.attrs(attribute.String("event", string(info.Event)))
	h.events.Add(ctx, 1, opt)
	if info.Event != vector.EventRefused {
		h.bytes.Add(ctx, info.Bytes, opt)
	}

	switch info.Event {
	case vector.EventAllocate, vector.EventTransfer:
		h.live.Add(ctx, info.Bytes, h.attrs())
	case vector.EventRelease, vector.EventHandOff:
		h.live.Add(ctx, -info.Bytes, h.attrs())
	}
}

// OnGrowth records the new buffer size and emits a span covering the
// reallocation.
func (h *otelHook) OnGrowth(info vector.GrowthInfo) {
	ctx := h.cfg.Context
	if h.cfg.EnableMetrics {
		h.growth.Record(ctx, info.NewBytes, h.attrs(
			attribute.String("vgi_vector.buffer", info.Buffer),
		))
	}
	if !h.cfg.EnableTracing {
		return
	}

	now := time.Now()
	attrs := []attribute.KeyValue{
		attribute.String("vgi_vector.allocator", h.allocator),
		attribute.String("vgi_vector.vector", info.Vector),
		attribute.String("vgi_vector.buffer", info.Buffer),
		attribute.Int64("vgi_vector.old_bytes", info.OldBytes),
		attribute.Int64("vgi_vector.new_bytes", info.NewBytes),
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)
	_, span := h.tracer.Start(ctx, fmt.Sprintf("vgi_vector/grow %s", info.Buffer),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(now),
		trace.WithAttributes(attrs...),
	)
	span.SetStatus(codes.Ok, "")
	span.End(trace.WithTimestamp(now))
}
