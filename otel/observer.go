// Package otel records tooltailor customization events with OpenTelemetry.
package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/tooltailor/tool"
)

// CustomizationObserver turns service events into metrics and spans.
type CustomizationObserver struct {
	tracer trace.Tracer

	commits     metric.Int64Counter
	overrides   metric.Int64Counter
	enabled     metric.Int64Gauge
	discoveries metric.Int64Counter
	latency     metric.Float64Histogram
	drift       metric.Int64Counter
}

// NewCustomizationObserver binds instruments to meter. tracer may be nil.
func NewCustomizationObserver(meter metric.Meter, tracer trace.Tracer) (*CustomizationObserver, error) {
	commits, err := meter.Int64Counter(
		"tooltailor.apply.commits",
		metric.WithDescription("Number of committed customizations"),
	)
	if err != nil {
		return nil, err
	}
	overrides, err := meter.Int64Counter(
		"tooltailor.apply.overrides",
		metric.WithDescription("Number of tool overrides persisted by commits"),
	)
	if err != nil {
		return nil, err
	}
	enabled, err := meter.Int64Gauge(
		"tooltailor.tools.enabled",
		metric.WithDescription("Enabled tools after the last commit"),
	)
	if err != nil {
		return nil, err
	}
	discoveries, err := meter.Int64Counter(
		"tooltailor.discovery.requests",
		metric.WithDescription("Number of live tool discovery attempts"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		"tooltailor.discovery.latency",
		metric.WithDescription("Tool discovery latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	drift, err := meter.Int64Counter(
		"tooltailor.drift.tools",
		metric.WithDescription("Tools found out of sync with the configured catalog"),
	)
	if err != nil {
		return nil, err
	}

	return &CustomizationObserver{
		tracer:      tracer,
		commits:     commits,
		overrides:   overrides,
		enabled:     enabled,
		discoveries: discoveries,
		latency:     latency,
		drift:       drift,
	}, nil
}

// ObserveApply records one commit.
func (o *CustomizationObserver) ObserveApply(observation tool.ApplyObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("server", observation.Server),
		attribute.Bool("allowlisted", observation.Allowlisted),
		attribute.Bool("success", observation.ErrorCode == ""),
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.commits.Add(ctx, 1, options)
	if observation.ErrorCode == "" {
		server := metric.WithAttributes(attribute.String("server", observation.Server))
		o.overrides.Add(ctx, int64(observation.Overrides), server)
		o.enabled.Record(ctx, int64(observation.EnabledTools), server)
	}

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "customization.apply", trace.WithAttributes(append(attrs,
		attribute.Int("enabled_tools", observation.EnabledTools),
		attribute.Int("total_tools", observation.TotalTools),
		attribute.Int("overrides", observation.Overrides),
	)...))
	endSpan(span, observation.ErrorCode)
}

// ObserveDiscovery records one live discovery attempt.
func (o *CustomizationObserver) ObserveDiscovery(observation tool.DiscoveryObservation) {
	if o == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("server", observation.Server),
		attribute.Bool("success", observation.Success),
	}
	if observation.ErrorCode != "" {
		attrs = append(attrs, attribute.String("error_code", observation.ErrorCode))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.discoveries.Add(ctx, 1, options)
	o.latency.Record(ctx, seconds(observation.DurationMS), options)

	if o.tracer == nil {
		return
	}
	_, span := o.tracer.Start(ctx, "tool.discovery", trace.WithAttributes(append(attrs,
		attribute.Int("tools", observation.Tools),
	)...))
	endSpan(span, observation.ErrorCode)
}

// ObserveDrift records the extra and missing tool counts of one check.
func (o *CustomizationObserver) ObserveDrift(observation tool.DriftObservation) {
	if o == nil {
		return
	}
	ctx := context.Background()
	if observation.Extra > 0 {
		o.drift.Add(ctx, int64(observation.Extra), metric.WithAttributes(
			attribute.String("server", observation.Server),
			attribute.String("kind", "extra"),
		))
	}
	if observation.Missing > 0 {
		o.drift.Add(ctx, int64(observation.Missing), metric.WithAttributes(
			attribute.String("server", observation.Server),
			attribute.String("kind", "missing"),
		))
	}
}

func endSpan(span trace.Span, errorCode string) {
	if errorCode != "" {
		span.SetStatus(codes.Error, errorCode)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func seconds(ms int64) float64 {
	return float64(time.Duration(ms)*time.Millisecond) / float64(time.Second)
}

var _ tool.Observer = (*CustomizationObserver)(nil)
