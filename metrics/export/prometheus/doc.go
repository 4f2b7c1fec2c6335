// Package prometheus renders engine metrics for Prometheus scrapers.
//
// [NewPrometheusExporter] accepts a [joysky.Engine] and exposes an
// [net/http.Handler] that renders all counters and latency histograms in
// text exposition format. Counter names are prefixed joysky_*_total.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the
//     Handler.
//   - Mutate engine state.
package prometheus
