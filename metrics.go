package goAuthClient

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram.
type MetricID uint16

const (
	// MetricRenewalStarted counts renewal calls issued against the refresh endpoint.
	MetricRenewalStarted MetricID = iota
	// MetricRenewalSuccess counts renewals that produced a new access token.
	MetricRenewalSuccess
	// MetricRenewalFailure counts renewals that failed or returned an unusable body.
	MetricRenewalFailure
	// MetricRequestQueued counts callers placed on a replay queue, renewal starters included.
	MetricRequestQueued
	// MetricReplaySuccess counts queued requests whose replay completed with a 2xx.
	MetricReplaySuccess
	// MetricReplayFailure counts queued requests whose replay returned an error.
	MetricReplayFailure
	// MetricStaleReplay counts requests replayed directly because they carried an outdated bearer.
	MetricStaleReplay
	// MetricLogout counts direct logouts performed in Interactive execution.
	MetricLogout
	// MetricAuthTokenSignal counts ErrAuthToken signals raised in Rendering execution.
	MetricAuthTokenSignal
	// MetricGuardPass counts guarded handler invocations.
	MetricGuardPass
	// MetricGuardNoSession counts guard redirects caused by a missing access token.
	MetricGuardNoSession
	// MetricGuardForbidden counts guard redirects caused by a failed permission check.
	MetricGuardForbidden
	// MetricGuardSessionReset counts guard redirects caused by ErrAuthToken.
	MetricGuardSessionReset
	// MetricRenewalLatency is the latency histogram of renewal calls.
	MetricRenewalLatency
	metricIDCount
)

// GaugeID identifies a level that rises and falls with coordinator state.
type GaugeID uint8

const (
	// GaugeRenewalsInFlight is the number of renewal calls currently running.
	GaugeRenewalsInFlight GaugeID = iota
	// GaugeQueueDepth is the number of callers waiting on a renewal.
	GaugeQueueDepth
	gaugeIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
	sumNano uint64
}

type paddedGauge struct {
	value int64
	_     [cacheLineSize - 8]byte
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters, gauges and the renewal latency histogram.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	gauges        [gaugeIDCount]paddedGauge
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every recorded metric.
// Histograms hold per-bucket (non-cumulative) counts; HistogramSums the total
// observed duration per histogram.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Gauges        map[GaugeID]int64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

func emptySnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Counters:      map[MetricID]uint64{},
		Gauges:        map[GaugeID]int64{},
		Histograms:    map[MetricID][]uint64{},
		HistogramSums: map[MetricID]time.Duration{},
	}
}

// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the renewal latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc is a no-op on a nil or disabled receiver and for unknown ids.
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d only for histogram ids and only when latency histograms are enabled.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricRenewalLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
	if d > 0 {
		atomic.AddUint64(&m.histograms[id].sumNano, uint64(d))
	}
}

// Add moves gauge g by delta. It is a no-op on a nil or disabled receiver.
func (m *Metrics) Add(g GaugeID, delta int64) {
	if m == nil || !m.enabled || g >= gaugeIDCount {
		return
	}
	atomic.AddInt64(&m.gauges[g].value, delta)
}

// Level returns the current value of gauge g.
func (m *Metrics) Level(g GaugeID) int64 {
	if m == nil || g >= gaugeIDCount {
		return 0
	}
	return atomic.LoadInt64(&m.gauges[g].value)
}

// Value returns the current counter for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns empty maps when metrics are disabled.
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return emptySnapshot()
	}

	s := MetricsSnapshot{
		Counters:      make(map[MetricID]uint64, int(metricIDCount)),
		Gauges:        make(map[GaugeID]int64, int(gaugeIDCount)),
		Histograms:    make(map[MetricID][]uint64, 1),
		HistogramSums: make(map[MetricID]time.Duration, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	for g := GaugeID(0); g < gaugeIDCount; g++ {
		s.Gauges[g] = atomic.LoadInt64(&m.gauges[g].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricRenewalLatency].buckets[i])
		}
		s.Histograms[MetricRenewalLatency] = buckets
		s.HistogramSums[MetricRenewalLatency] = time.Duration(atomic.LoadUint64(&m.histograms[MetricRenewalLatency].sumNano))
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
