package observe

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// SetupOption configures [Setup].
type SetupOption func(*setupConfig)

type setupConfig struct {
	version    string
	registerer prometheus.Registerer
	spans      sdktrace.SpanExporter
}

// WithVersion sets the service.version resource attribute.
func WithVersion(v string) SetupOption {
	return func(c *setupConfig) { c.version = v }
}

// WithRegisterer registers the metrics exporter with r instead of the
// Prometheus default registry served by promhttp.Handler.
func WithRegisterer(r prometheus.Registerer) SetupOption {
	return func(c *setupConfig) { c.registerer = r }
}

// WithSpanExporter exports pipeline and HTTP spans to exp. Without it spans
// are sampled but dropped.
func WithSpanExporter(exp sdktrace.SpanExporter) SetupOption {
	return func(c *setupConfig) { c.spans = exp }
}

// Setup installs global OTel meter and tracer providers for the "relayvox"
// service. Metrics go to a Prometheus exporter, so the instruments in
// [Metrics] show up on /metrics. The returned function flushes and shuts
// both providers down.
func Setup(ctx context.Context, opts ...SetupOption) (func(context.Context) error, error) {
	var cfg setupConfig
	for _, o := range opts {
		o(&cfg)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("relayvox"),
			semconv.ServiceVersion(cfg.version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	var exporterOpts []promexporter.Option
	if cfg.registerer != nil {
		exporterOpts = append(exporterOpts, promexporter.WithRegisterer(cfg.registerer))
	}
	reader, err := promexporter.New(exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if cfg.spans != nil {
		tpOpts = append(tpOpts, sdktrace.WithBatcher(cfg.spans))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
