package telemetry

import (
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
)

type Metrics struct {
	HTTPRequests    metric.Int64Counter
	HTTPDuration    metric.Float64Histogram
	OrdersPlaced    metric.Int64Counter
	OrderValueCents metric.Int64Histogram
	CartLinesAdded  metric.Int64Counter
	EventsPublished metric.Int64Counter
	EventsConsumed  metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requests, err := meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total HTTP requests handled"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("Duration of HTTP request handling"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5),
	)
	if err != nil {
		return nil, err
	}

	placed, err := meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Total orders placed from carts"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	value, err := meter.Int64Histogram("order_value_cents",
		metric.WithDescription("Order total in cents"),
		metric.WithUnit("cents"),
		metric.WithExplicitBucketBoundaries(500, 1000, 2500, 5000, 10000, 25000, 50000),
	)
	if err != nil {
		return nil, err
	}

	lines, err := meter.Int64Counter("cart_lines_added_total",
		metric.WithDescription("Cart additions, split by created or merged"),
		metric.WithUnit("{line}"),
	)
	if err != nil {
		return nil, err
	}

	published, err := meter.Int64Counter("events_published_total",
		metric.WithDescription("Order events written to Kafka"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	consumed, err := meter.Int64Counter("events_consumed_total",
		metric.WithDescription("Order events consumed from Kafka"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		HTTPRequests:    requests,
		HTTPDuration:    duration,
		OrdersPlaced:    placed,
		OrderValueCents: value,
		CartLinesAdded:  lines,
		EventsPublished: published,
		EventsConsumed:  consumed,
	}, nil
}

// NopMetrics returns instruments that record nothing.
func NopMetrics() *Metrics {
	m, _ := NewMetrics(metricnoop.NewMeterProvider().Meter("noop"))
	return m
}
