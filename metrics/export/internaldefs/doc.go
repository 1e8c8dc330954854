// Package internaldefs holds the shared metric name and help-text table
// used by the exporter packages. It exists so the Prometheus and
// OpenTelemetry exporters emit identical series names from one definition.
package internaldefs
