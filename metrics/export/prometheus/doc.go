// Package prometheus exposes engine metrics to Prometheus.
//
// [NewExporter] wraps a [goAccess.Engine] in a prometheus.Collector. Counter
// names follow goaccess_*_total; the one histogram is
// goaccess_access_decision_latency_seconds. Mount [Exporter.Handler], or
// register the exporter with a registry of your own. The package never
// touches the global default registry.
package prometheus
