package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zapcore"
)

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	ctx := context.Background()
	m.OrdersPlaced.Add(ctx, 2)
	m.CartLinesAdded.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "merged")))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			found[md.Name] = true
			if md.Name == "orders_placed_total" {
				sum, ok := md.Data.(metricdata.Sum[int64])
				if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 2 {
					t.Fatalf("orders_placed_total = %+v", md.Data)
				}
			}
		}
	}
	if !found["orders_placed_total"] || !found["cart_lines_added_total"] {
		t.Fatalf("metrics collected = %v", found)
	}
}

func TestSetupDisabled(t *testing.T) {
	log, tracer, meter, shutdown, err := Setup(context.Background(), Options{ServiceName: "test", Level: "debug"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer shutdown(context.Background())
	if log == nil || tracer == nil || meter == nil {
		t.Fatalf("Setup returned nil components")
	}
	if _, err := NewMetrics(meter); err != nil {
		t.Fatalf("NewMetrics on noop meter: %v", err)
	}
	if NopMetrics() == nil {
		t.Fatalf("NopMetrics returned nil")
	}
}

func TestExportersShutdownBeforeStart(t *testing.T) {
	var e exporters
	e.shutdown(context.Background())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"WARN":  zapcore.WarnLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
