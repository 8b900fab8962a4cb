package engine

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter. Without an installed SDK the global
// providers are no-ops.
var (
	tracer = otel.Tracer("navstack.engine")
	meter  = otel.Meter("navstack.engine")
)

var (
	requestsTotal   metric.Int64Counter
	requestDuration metric.Float64Histogram
	redirectsTotal  metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		requestsTotal, err = meter.Int64Counter(
			"navstack_requests_total",
			metric.WithDescription("Total navigation requests by operation and outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		requestDuration, err = meter.Float64Histogram(
			"navstack_request_duration_seconds",
			metric.WithDescription("Duration of navigation requests including queue wait"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		redirectsTotal, err = meter.Int64Counter(
			"navstack_redirects_total",
			metric.WithDescription("Total interceptor redirects applied"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startRequestSpan creates a span for one engine request.
func startRequestSpan(ctx context.Context, op Op, target Target) (context.Context, trace.Span) {
	return tracer.Start(ctx, "engine."+spanName(op),
		trace.WithAttributes(
			attribute.String("navstack.op", string(op)),
			attribute.String("navstack.target", target.String()),
		),
	)
}

func spanName(op Op) string {
	switch op {
	case OpNavigate:
		return "Navigate"
	case OpPop:
		return "Pop"
	case OpReplace:
		return "Replace"
	case OpSwitch:
		return "SwitchChild"
	case OpDeepLink:
		return "DeepLink"
	default:
		return string(op)
	}
}

// endRequestSpan sets the result attributes on a request span.
func endRequestSpan(span trace.Span, res Result, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("navstack.error_code", string(CodeOf(err))))
		return
	}
	span.SetAttributes(
		attribute.String("navstack.outcome", string(res.Outcome)),
		attribute.Int64("navstack.version", res.Snapshot.Version),
		attribute.Int("navstack.redirects", len(res.Redirects)),
	)
}

// recordRequest records metrics for a finished request.
func recordRequest(ctx context.Context, op Op, outcome string, duration time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", string(op)),
		attribute.String("outcome", outcome),
	)
	requestsTotal.Add(ctx, 1, attrs)
	requestDuration.Record(ctx, duration.Seconds(), attrs)
}

// recordRedirect records one applied redirect.
func recordRedirect(ctx context.Context, op Op) {
	if err := initMetrics(); err != nil {
		return
	}
	redirectsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", string(op)),
	))
}
