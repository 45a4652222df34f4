package otel_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	ttotel "github.com/petal-labs/tooltailor/otel"
	"github.com/petal-labs/tooltailor/tool"
)

func newTestMeter() (*metric.ManualReader, *metric.MeterProvider) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	return reader, mp
}

func newTestTracer() (*tracetest.InMemoryExporter, *sdktrace.TracerProvider) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return exporter, tp
}

func collectMetrics(t *testing.T, reader *metric.ManualReader) *metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return &rm
}

func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for i := range scope.Metrics {
			if scope.Metrics[i].Name == name {
				return &scope.Metrics[i]
			}
		}
	}
	return nil
}

func sumInt64(t *testing.T, rm *metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m := findMetric(rm, name)
	if m == nil {
		t.Fatalf("%s metric not found", name)
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s type = %T, want Sum[int64]", name, m.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestCustomizationObserverRecordsMetrics(t *testing.T) {
	reader, mp := newTestMeter()
	observer, err := ttotel.NewCustomizationObserver(mp.Meter("test"), noop.NewTracerProvider().Tracer("test"))
	if err != nil {
		t.Fatalf("NewCustomizationObserver() error = %v", err)
	}

	observer.ObserveApply(tool.ApplyObservation{Server: "files", EnabledTools: 2, TotalTools: 3, Overrides: 2, Allowlisted: true})
	observer.ObserveApply(tool.ApplyObservation{Server: "files", ErrorCode: tool.ErrorCodeStoreFailure})
	observer.ObserveDiscovery(tool.DiscoveryObservation{Server: "files", Tools: 3, DurationMS: 40, Success: true})
	observer.ObserveDiscovery(tool.DiscoveryObservation{Server: "web", DurationMS: 900, ErrorCode: tool.ErrorCodeDiscoveryFailed})
	observer.ObserveDrift(tool.DriftObservation{Server: "files", Extra: 1, Missing: 2})
	observer.ObserveDrift(tool.DriftObservation{Server: "web"})

	rm := collectMetrics(t, reader)

	if got := sumInt64(t, rm, "tooltailor.apply.commits"); got != 2 {
		t.Fatalf("apply commits = %d, want 2", got)
	}
	if got := sumInt64(t, rm, "tooltailor.apply.overrides"); got != 2 {
		t.Fatalf("apply overrides = %d, want 2", got)
	}
	if got := sumInt64(t, rm, "tooltailor.discovery.requests"); got != 2 {
		t.Fatalf("discovery requests = %d, want 2", got)
	}
	if got := sumInt64(t, rm, "tooltailor.drift.tools"); got != 3 {
		t.Fatalf("drift tools = %d, want 3", got)
	}

	latency := findMetric(rm, "tooltailor.discovery.latency")
	if latency == nil {
		t.Fatal("tooltailor.discovery.latency metric not found")
	}
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("latency type = %T, want Histogram[float64]", latency.Data)
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Fatalf("latency samples = %d, want 2", count)
	}

	enabled := findMetric(rm, "tooltailor.tools.enabled")
	if enabled == nil {
		t.Fatal("tooltailor.tools.enabled metric not found")
	}
	gauge, ok := enabled.Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 1 || gauge.DataPoints[0].Value != 2 {
		t.Fatalf("enabled gauge = %+v", enabled.Data)
	}
}

func TestCustomizationObserverRecordsSpans(t *testing.T) {
	_, mp := newTestMeter()
	exporter, tp := newTestTracer()
	observer, err := ttotel.NewCustomizationObserver(mp.Meter("test"), tp.Tracer("test"))
	if err != nil {
		t.Fatalf("NewCustomizationObserver() error = %v", err)
	}

	observer.ObserveApply(tool.ApplyObservation{Server: "files", EnabledTools: 1, TotalTools: 1})
	observer.ObserveDiscovery(tool.DiscoveryObservation{Server: "web", ErrorCode: tool.ErrorCodeDiscoveryFailed})

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Name != "customization.apply" || spans[0].Status.Code != otelcodes.Ok {
		t.Fatalf("apply span = %s %v", spans[0].Name, spans[0].Status)
	}
	if spans[1].Name != "tool.discovery" || spans[1].Status.Code != otelcodes.Error {
		t.Fatalf("discovery span = %s %v", spans[1].Name, spans[1].Status)
	}
	found := false
	for _, attr := range spans[1].Attributes {
		if attr.Key == attribute.Key("error_code") && attr.Value.AsString() == tool.ErrorCodeDiscoveryFailed {
			found = true
		}
	}
	if !found {
		t.Fatalf("discovery span attrs = %v, want error_code", spans[1].Attributes)
	}
}

func TestNilCustomizationObserverIsSafe(t *testing.T) {
	var observer *ttotel.CustomizationObserver
	observer.ObserveApply(tool.ApplyObservation{})
	observer.ObserveDiscovery(tool.DiscoveryObservation{})
	observer.ObserveDrift(tool.DriftObservation{Extra: 1})
}
