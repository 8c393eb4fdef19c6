// Package internaldefs holds the metric names and bucket bounds shared by
// the exporters.
//
// Both the Prometheus and OpenTelemetry exporters read these tables, so a
// rename here changes every exporter at once. The package performs no I/O.
package internaldefs
