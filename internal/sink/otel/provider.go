package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ExporterConfig selects the OTLP collector.
type ExporterConfig struct {
	Endpoint       string // host:port of the OTLP gRPC collector
	ServiceName    string
	Insecure       bool
	MetricInterval time.Duration // defaults to 15s
}

// Providers holds the SDK providers backed by OTLP gRPC exporters.
type Providers struct {
	Logs    *sdklog.LoggerProvider
	Metrics *sdkmetric.MeterProvider
}

// NewProviders dials nothing up front; exporters connect lazily.
func NewProviders(ctx context.Context, cfg ExporterConfig) (*Providers, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("otel: endpoint is required")
	}
	if cfg.MetricInterval <= 0 {
		cfg.MetricInterval = 15 * time.Second
	}

	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(cfg.ServiceName))

	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	logExporter, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		_ = metricExporter.Shutdown(ctx)
		return nil, fmt.Errorf("log exporter: %w", err)
	}

	return &Providers{
		Metrics: sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(cfg.MetricInterval))),
		),
		Logs: sdklog.NewLoggerProvider(
			sdklog.WithResource(res),
			sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		),
	}, nil
}

// Logger returns the logger used by LogConsumer.
func (p *Providers) Logger() otellog.Logger {
	return p.Logs.Logger(scopeName)
}

// MeterProvider returns the provider used by MetricConsumer.
func (p *Providers) MeterProvider() metric.MeterProvider {
	return p.Metrics
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(p.Logs.Shutdown(ctx), p.Metrics.Shutdown(ctx))
}
