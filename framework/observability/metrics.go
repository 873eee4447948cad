package observability

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records framework metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordRequest records a served HTTP request.
	RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration)

	// RecordHandler records one call of a route's action.
	RecordHandler(ctx context.Context, route string, duration time.Duration, err error)
}

type otelMetrics struct {
	requests        metric.Int64Counter
	requestLatency  metric.Float64Histogram
	handlerCalls    metric.Int64Counter
	handlerLatency  metric.Float64Histogram
	handlerFailures metric.Int64Counter
}

func newOtelMetrics(mp metric.MeterProvider) (*otelMetrics, error) {
	meter := mp.Meter(instrumentationName)

	requests, err := meter.Int64Counter("nix.http.requests",
		metric.WithDescription("Number of served HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestLatency, err := meter.Float64Histogram("nix.http.latency_ms",
		metric.WithDescription("HTTP request latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	handlerCalls, err := meter.Int64Counter("nix.handler.calls",
		metric.WithDescription("Number of route handler calls"),
	)
	if err != nil {
		return nil, err
	}

	handlerLatency, err := meter.Float64Histogram("nix.handler.latency_ms",
		metric.WithDescription("Route handler latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	handlerFailures, err := meter.Int64Counter("nix.handler.failures",
		metric.WithDescription("Number of failed route handler calls"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		requests:        requests,
		requestLatency:  requestLatency,
		handlerCalls:    handlerCalls,
		handlerLatency:  handlerLatency,
		handlerFailures: handlerFailures,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by mp. A nil mp
// means the global OTel meter provider. If instrument creation fails,
// a no-op recorder is returned.
func NewMetricsRecorder(mp metric.MeterProvider) MetricsRecorder {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m, err := newOtelMetrics(mp)
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", status),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

func (m *otelMetrics) RecordHandler(ctx context.Context, route string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("route", route))
	m.handlerCalls.Add(ctx, 1, attrs)
	m.handlerLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.handlerFailures.Add(ctx, 1, attrs)
	}
}
