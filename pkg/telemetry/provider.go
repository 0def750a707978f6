// ABOUTME: Telemetry implementation backed by the process-global OpenTelemetry providers
// ABOUTME: Instruments are created lazily and cached per metric name

package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// otelTelemetry records against whatever tracer and meter providers the embedding
// application registered globally. Without an SDK installed those are no-ops,
// so the library stays silent unless the host wires up exporters.
type otelTelemetry struct {
	tracer trace.Tracer
	meter  metric.Meter

	mu         sync.Mutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter
}

// New creates a Telemetry instance from the given configuration.
// A disabled config yields the no-op implementation.
func New(cfg Config) (Telemetry, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	return &otelTelemetry{
		tracer:     otel.Tracer(cfg.ServiceName),
		meter:      otel.Meter(cfg.ServiceName),
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
	}, nil
}

func (t *otelTelemetry) histogram(name string) (metric.Float64Histogram, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := t.histograms[name]; ok {
		return h, nil
	}
	h, err := t.meter.Float64Histogram(name)
	if err != nil {
		return nil, err
	}
	t.histograms[name] = h
	return h, nil
}

func (t *otelTelemetry) counter(name string) (metric.Int64Counter, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.counters[name]; ok {
		return c, nil
	}
	c, err := t.meter.Int64Counter(name)
	if err != nil {
		return nil, err
	}
	t.counters[name] = c
	return c, nil
}

// RecordHistogram records a histogram value. Instrument creation failures are
// swallowed; telemetry must never fail a storage operation.
func (t *otelTelemetry) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	h, err := t.histogram(name)
	if err != nil {
		return
	}
	h.Record(ctx, value, metric.WithAttributes(attrs...))
}

// RecordCounter records a counter increment.
func (t *otelTelemetry) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	c, err := t.counter(name)
	if err != nil {
		return
	}
	c.Add(ctx, value, metric.WithAttributes(attrs...))
}

// StartSpan creates a new tracing span.
func (t *otelTelemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Shutdown is a no-op; the global providers belong to the embedding application.
func (t *otelTelemetry) Shutdown(ctx context.Context) error {
	return nil
}
