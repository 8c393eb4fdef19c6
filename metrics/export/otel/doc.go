// Package otel binds engine metrics to OpenTelemetry instruments.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and,
// for the latency histogram, a bucket gauge keyed by an "le" attribute plus
// a count gauge. A single callback reads [goAccess.Engine.MetricsSnapshot]
// on each collection cycle.
//
// Callers own the MeterProvider and pass in a Meter.
package otel
