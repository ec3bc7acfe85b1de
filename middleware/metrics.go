package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/nimbusflow/relay/queue"
	"github.com/nimbusflow/relay/trigger"
)

// meterName is the instrumentation scope name for relay metrics.
const meterName = "github.com/nimbusflow/relay"

// Metrics returns middleware that records per-message processing metrics
// using the global OTel MeterProvider. If no MeterProvider is configured,
// noop instruments are used and this middleware becomes a pass-through.
//
// Instruments:
//   - relay.message.duration (Float64Histogram): processing time in seconds,
//     with attributes: trigger_type, status ("ok" or "error")
//   - relay.message.processed (Int64Counter): total messages processed,
//     with attributes: trigger_type, status ("ok" or "error")
func Metrics() Middleware {
	meter := otel.Meter(meterName)
	return MetricsWithMeter(meter)
}

// MetricsWithMeter returns metrics middleware using the provided meter.
// This variant allows injecting a specific MeterProvider for testing.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// Instruments are created once at construction time. On error the OTel
	// API returns noop instruments, so the middleware degrades gracefully.
	duration, dErr := meter.Float64Histogram(
		"relay.message.duration",
		metric.WithDescription("Duration of message processing in seconds"),
		metric.WithUnit("s"),
	)
	_ = dErr // noop fallback guaranteed by OTel API contract

	processed, pErr := meter.Int64Counter(
		"relay.message.processed",
		metric.WithDescription("Total number of messages processed"),
		metric.WithUnit("{message}"),
	)
	_ = pErr // noop fallback guaranteed by OTel API contract

	return func(ctx context.Context, m *queue.Message, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("trigger_type", m.Attributes[trigger.AttrTriggerType]),
			attribute.String("status", status),
		)

		duration.Record(ctx, elapsed, attrs)
		processed.Add(ctx, 1, attrs)

		return err
	}
}
