// Package tracing sets up OpenTelemetry tracing for the HTTP layer.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Exporter names accepted in Config.Exporter
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterZipkin = "zipkin"
)

// ErrUnknownExporter is returned for an unsupported exporter name
var ErrUnknownExporter = errors.New("unknown trace exporter")

// Config controls tracing
type Config struct {
	Exporter       string
	ZipkinEndpoint string
	ServiceName    string
	SampleRatio    float64
}

// DefaultConfig disables export
func DefaultConfig() Config {
	return Config{
		Exporter:       ExporterNone,
		ZipkinEndpoint: "http://localhost:9411/api/v2/spans",
		ServiceName:    "todo-service",
		SampleRatio:    1,
	}
}

// Provider owns the tracer used by the HTTP middleware
type Provider struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	shutdown   func(context.Context) error
}

// NewProvider creates a provider for cfg. With the "none" exporter the
// returned provider produces non-recording spans. Stdout spans go to w,
// or os.Stdout when w is nil.
func NewProvider(ctx context.Context, cfg Config, w io.Writer) (*Provider, error) {
	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return &Provider{
			tracer:     noop.NewTracerProvider().Tracer(cfg.ServiceName),
			propagator: propagation.TraceContext{},
			shutdown:   func(context.Context) error { return nil },
		}, nil
	}

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case ExporterStdout:
		if w == nil {
			w = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w))
	case ExporterZipkin:
		exporter, err = zipkin.New(cfg.ZipkinEndpoint)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", cfg.Exporter, err)
	}

	return NewProviderWithProcessor(cfg, sdktrace.NewBatchSpanProcessor(exporter)), nil
}

// NewProviderWithProcessor builds a provider around an explicit span
// processor, e.g. a tracetest.SpanRecorder.
func NewProviderWithProcessor(cfg Config, processor sdktrace.SpanProcessor) *Provider {
	name := cfg.ServiceName
	if name == "" {
		name = "todo-service"
	}
	ratio := cfg.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	return &Provider{
		tracer:     tp.Tracer(name),
		propagator: propagation.TraceContext{},
		shutdown:   tp.Shutdown,
	}
}

// Tracer returns the tracer spans are started from
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown flushes pending spans
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}
