package otel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName scopes tooltailor's tracers and meters.
const InstrumentationName = "github.com/petal-labs/tooltailor"

// EnvOTLPEndpoint is the standard OTLP endpoint variable.
const EnvOTLPEndpoint = "OTEL_EXPORTER_OTLP_ENDPOINT"

// Config selects exporters. With no endpoint and no metric reader the
// providers are no-ops.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Endpoint is an OTLP/HTTP URL for spans. Empty falls back to
	// $OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string
	// SampleRate is between 0 and 1. Zero means sample everything.
	SampleRate float64
	// MetricReader collects metrics. Nil disables them.
	MetricReader sdkmetric.Reader
	// SpanExporter replaces the OTLP exporter, mostly for tests.
	SpanExporter sdktrace.SpanExporter
}

// Providers bundles the tracer and meter providers handed to components.
type Providers struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider
}

// NewProviders builds tracer and meter providers from cfg and installs the
// tracer provider and W3C propagators globally when tracing is enabled.
func NewProviders(ctx context.Context, cfg Config) (*Providers, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "tooltailor"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	p := &Providers{}
	exporter := cfg.SpanExporter
	if exporter == nil {
		endpoint := strings.TrimSpace(cfg.Endpoint)
		if endpoint == "" {
			endpoint = strings.TrimSpace(os.Getenv(EnvOTLPEndpoint))
		}
		if endpoint != "" {
			otlp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
			if err != nil {
				return nil, fmt.Errorf("otel: create OTLP exporter: %w", err)
			}
			exporter = otlp
		}
	}
	if exporter != nil {
		p.tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler(cfg.SampleRate)),
		)
		otel.SetTracerProvider(p.tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}
	if cfg.MetricReader != nil {
		p.mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(cfg.MetricReader),
			sdkmetric.WithResource(res),
		)
	}
	return p, nil
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0 || rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Tracer returns the tooltailor tracer, a no-op when tracing is off.
func (p *Providers) Tracer() trace.Tracer {
	if p == nil || p.tp == nil {
		return tracenoop.NewTracerProvider().Tracer(InstrumentationName)
	}
	return p.tp.Tracer(InstrumentationName)
}

// Meter returns the tooltailor meter, a no-op when metrics are off.
func (p *Providers) Meter() metric.Meter {
	if p == nil || p.mp == nil {
		return metricnoop.NewMeterProvider().Meter(InstrumentationName)
	}
	return p.mp.Meter(InstrumentationName)
}

// TracingEnabled reports whether spans are exported.
func (p *Providers) TracingEnabled() bool {
	return p != nil && p.tp != nil
}

// ForceFlush exports pending spans and metrics.
func (p *Providers) ForceFlush(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		errs = append(errs, p.tp.ForceFlush(ctx))
	}
	if p.mp != nil {
		errs = append(errs, p.mp.ForceFlush(ctx))
	}
	return errors.Join(errs...)
}

// Shutdown flushes and stops both providers.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.tp != nil {
		errs = append(errs, p.tp.Shutdown(ctx))
	}
	if p.mp != nil {
		errs = append(errs, p.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
