package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/MrEthical07/goAccess/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is what the exporter observes on every collection.
// *goAccess.Engine implements it.
type MetricsSource interface {
	MetricsSnapshot() goAccess.MetricsSnapshot
	AuditDropped() uint64
}

// observeFunc reports one instrument from a snapshot taken once per cycle.
type observeFunc func(metric.Observer, goAccess.MetricsSnapshot)

// Exporter keeps one OpenTelemetry callback registered against a
// [MetricsSource]. Close unregisters it.
type Exporter struct {
	source       MetricsSource
	registration metric.Registration
	observers    []observeFunc
}

// leOptions holds the "le" attribute of each engine bucket, +Inf last.
var leOptions = func() []metric.ObserveOption {
	out := make([]metric.ObserveOption, 0, len(internaldefs.HistogramBounds)+1)
	for _, le := range internaldefs.HistogramBounds {
		out = append(out, metric.WithAttributes(attribute.String("le", strconv.FormatFloat(le, 'g', -1, 64))))
	}
	return append(out, metric.WithAttributes(attribute.String("le", "+Inf")))
}()

func NewExporter(meter metric.Meter, engine *goAccess.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	var instruments []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		id := def.ID
		e.observers = append(e.observers, func(o metric.Observer, s goAccess.MetricsSnapshot) {
			o.ObserveInt64(c, int64(s.Counters[id]))
		})
		instruments = append(instruments, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative bucket counts."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s buckets: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count",
			metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s count: %w", def.Name, err)
		}
		id := def.ID
		e.observers = append(e.observers, func(o metric.Observer, s goAccess.MetricsSnapshot) {
			cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(s.Histograms[id]))
			for i, n := range cumulative {
				o.ObserveInt64(buckets, int64(n), leOptions[i])
			}
			o.ObserveInt64(count, int64(cumulative[len(cumulative)-1]))
		})
		instruments = append(instruments, buckets, count)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events dropped because the dispatcher buffer was full."))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.observers = append(e.observers, func(o metric.Observer, _ goAccess.MetricsSnapshot) {
		o.ObserveInt64(dropped, int64(source.AuditDropped()))
	})
	instruments = append(instruments, dropped)

	reg, err := meter.RegisterCallback(e.observe, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, fn := range e.observers {
		fn(o, snapshot)
	}
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
