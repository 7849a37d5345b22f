// Package otel publishes goAuthClient metrics through OpenTelemetry
// observable instruments.
//
// Outcome families become one counter each with a "result" or "outcome"
// attribute; coordinator state becomes observable gauges; the renewal latency
// histogram is exported as cumulative bucket levels labelled "le" plus count
// and sum. One callback reads [goAuthClient.Engine.MetricsSnapshot] per
// collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
