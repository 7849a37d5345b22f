// Package internaldefs holds the series names, label layout and bucket
// bounds shared by the Prometheus and OpenTelemetry exporters, so both
// publish the same metric set.
//
// Outcome counters are grouped into labelled families (renewal result,
// replay result, guard outcome). Coordinator state is exported as gauges.
package internaldefs
