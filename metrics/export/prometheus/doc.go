// Package prometheus publishes goReset engine metrics through
// client_golang.
//
// [PrometheusExporter] implements prometheus.Collector. Register it with an
// existing registry, or mount [PrometheusExporter.Handler] which serves it
// from a private one. Counters are named goreset_*_total and the single
// histogram is goreset_password_reset_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global default registry.
//   - Mutate engine state.
package prometheus
