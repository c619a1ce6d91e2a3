// Package prometheus exposes carebook metrics through prometheus/client_golang.
//
// [NewPrometheusExporter] wraps a [carebook.Portal] in a [prometheus.Collector] that
// reads one snapshot per scrape, registers it on a private registry together with the
// Go runtime collector, and serves that registry through promhttp. Counter names are
// carebook_*_total; the single histogram is carebook_api_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry; callers mount the Handler.
//   - Mutate portal state.
package prometheus
