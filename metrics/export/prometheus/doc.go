// Package prometheus renders goAuthClient metrics in the Prometheus text
// exposition format.
//
// Outcome counters are written as labelled families (renewal result, replay
// result, guard outcome), coordinator state as gauges, and the renewal latency
// histogram with real bucket, sum and count series.
package prometheus
