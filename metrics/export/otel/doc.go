// Package otel publishes engine metrics through an OpenTelemetry Meter.
//
// [New] registers an Int64ObservableCounter per engine counter and a set of
// gauges per latency histogram (one per cumulative bucket plus count and
// sum). A single callback reads Engine.MetricsSnapshot on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
