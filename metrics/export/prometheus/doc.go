// Package prometheus exposes engine metrics through client_golang.
//
// [Collector] is a prometheus.Collector built from Engine.MetricsSnapshot on
// every scrape. Counters are named pairauth_*_total; the latency histograms
// are pairauth_login_latency_seconds and pairauth_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global default registry. Callers register the
//     Collector or mount [Handler].
//   - Mutate engine state.
package prometheus
