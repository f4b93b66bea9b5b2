// Package metrics exposes the headline statistics of every loaded dataset as
// Prometheus gauges, plus reload counters and report build timings.
//
// Metrics are registered on a private registry served by Handler, so tests
// can build independent instances.
package metrics
