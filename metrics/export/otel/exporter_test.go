package otel

import (
	"context"
	"sync"
	"testing"

	goAccess "github.com/MrEthical07/goAccess"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goAccess.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goAccess.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goAccess.MetricsSnapshot{
		Counters:   make(map[goAccess.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goAccess.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("goaccess-test")

	src := &fakeSource{
		snapshot: goAccess.MetricsSnapshot{
			Counters: map[goAccess.MetricID]uint64{
				goAccess.MetricAccessApproved: 3,
			},
			Histograms: map[goAccess.MetricID][]uint64{
				goAccess.MetricAccessLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	m, ok := findMetric(rm, "goaccess_access_approved_total")
	if !ok {
		t.Fatal("expected approved counter")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected approved counter data %+v", m.Data)
	}

	m, ok = findMetric(rm, "goaccess_access_decision_latency_seconds_bucket")
	if !ok {
		t.Fatal("expected bucket gauge")
	}
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 8 {
		t.Fatalf("expected 8 bucket points, got %+v", m.Data)
	}
	for _, dp := range gauge.DataPoints {
		le, _ := dp.Attributes.Value(attribute.Key("le"))
		if le.AsString() == "+Inf" && dp.Value != 8 {
			t.Fatalf("expected +Inf bucket 8, got %d", dp.Value)
		}
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("goaccess-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("goaccess-test")

	src := &fakeSource{
		snapshot: goAccess.MetricsSnapshot{
			Counters: map[goAccess.MetricID]uint64{
				goAccess.MetricAccessAllowed: 1,
			},
			Histograms: map[goAccess.MetricID][]uint64{
				goAccess.MetricAccessLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goAccess.MetricAccessAllowed] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterReportsCountAndAuditDrops(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("goaccess-test")

	src := &fakeSource{
		snapshot: goAccess.MetricsSnapshot{
			Histograms: map[goAccess.MetricID][]uint64{
				goAccess.MetricAccessLatency: {2, 0, 1},
			},
		},
		dropped: 5,
	}
	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	m, ok := findMetric(rm, "goaccess_access_decision_latency_seconds_count")
	if !ok {
		t.Fatal("expected count gauge")
	}
	if g, ok := m.Data.(metricdata.Gauge[int64]); !ok || len(g.DataPoints) != 1 || g.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected count data %+v", m.Data)
	}

	m, ok = findMetric(rm, "goaccess_audit_dropped_total")
	if !ok {
		t.Fatal("expected audit dropped counter")
	}
	if s, ok := m.Data.(metricdata.Sum[int64]); !ok || len(s.DataPoints) != 1 || s.DataPoints[0].Value != 5 {
		t.Fatalf("unexpected audit dropped data %+v", m.Data)
	}
}
