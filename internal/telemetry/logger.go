package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	ServiceName string
	// Enabled turns on OTLP export; otherwise only JSON logs are written.
	Enabled  bool
	Endpoint string
	Level    string
}

// Setup returns the process logger, tracer and meter plus a shutdown func.
// Logs always go to stdout as JSON. With Enabled they are also shipped over
// OTLP/gRPC together with spans and metrics; otherwise tracer and meter are
// no-ops.
func Setup(ctx context.Context, o Options) (*zap.Logger, trace.Tracer, metric.Meter, func(context.Context), error) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	stdout := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		parseLevel(o.Level),
	)
	if !o.Enabled {
		log := zap.New(stdout).With(zap.String("service", o.ServiceName))
		return log, tracenoop.NewTracerProvider().Tracer(o.ServiceName),
			metricnoop.NewMeterProvider().Meter(o.ServiceName),
			func(context.Context) { _ = log.Sync() }, nil
	}

	var ex exporters
	if err := ex.start(ctx, o); err != nil {
		ex.shutdown(ctx)
		return nil, nil, nil, nil, err
	}
	otel.SetTracerProvider(ex.traces)
	otel.SetMeterProvider(ex.metrics)

	log := zap.New(zapcore.NewTee(
		otelzap.NewCore(o.ServiceName, otelzap.WithLoggerProvider(ex.logs)),
		stdout,
	))
	shutdown := func(ctx context.Context) {
		_ = log.Sync()
		ex.shutdown(ctx)
	}
	return log, ex.traces.Tracer(o.ServiceName), ex.metrics.Meter(o.ServiceName), shutdown, nil
}

// exporters holds the three OTLP pipelines. Fields stay nil until their
// pipeline is up, so shutdown is safe after a partial start.
type exporters struct {
	traces  *sdktrace.TracerProvider
	metrics *sdkmetric.MeterProvider
	logs    *sdklog.LoggerProvider
}

func (e *exporters) start(ctx context.Context, o Options) error {
	endpoint := o.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4317"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(o.ServiceName)))
	if err != nil {
		return fmt.Errorf("otel resource: %w", err)
	}

	te, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return fmt.Errorf("otlp traces: %w", err)
	}
	e.traces = sdktrace.NewTracerProvider(sdktrace.WithResource(res), sdktrace.WithBatcher(te))

	me, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(endpoint), otlpmetricgrpc.WithInsecure())
	if err != nil {
		return fmt.Errorf("otlp metrics: %w", err)
	}
	e.metrics = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(me)))

	le, err := otlploggrpc.New(ctx, otlploggrpc.WithEndpoint(endpoint), otlploggrpc.WithInsecure())
	if err != nil {
		return fmt.Errorf("otlp logs: %w", err)
	}
	e.logs = sdklog.NewLoggerProvider(sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(le)))
	return nil
}

func (e *exporters) shutdown(ctx context.Context) {
	if e.traces != nil {
		_ = e.traces.Shutdown(ctx)
	}
	if e.metrics != nil {
		_ = e.metrics.Shutdown(ctx)
	}
	if e.logs != nil {
		_ = e.logs.Shutdown(ctx)
	}
}

func parseLevel(s string) zapcore.Level {
	if s == "" {
		return zapcore.InfoLevel
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}
