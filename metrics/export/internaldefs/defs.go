package internaldefs

import (
	"strconv"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// Namespace prefixes every exported series.
const Namespace = "goauthclient"

// CounterDef names one unlabelled counter.
type CounterDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// Member binds one label value of a family to the counter that feeds it.
type Member struct {
	ID    goAuthClient.MetricID
	Value string
}

// FamilyDef is a labelled counter: one series per member, told apart by Label.
type FamilyDef struct {
	Name    string
	Help    string
	Label   string
	Members []Member
}

// GaugeDef names one coordinator level.
type GaugeDef struct {
	ID   goAuthClient.GaugeID
	Name string
	Help string
}

// Counters are the renewal lifecycle counters exported one series each.
var Counters = []CounterDef{
	{ID: goAuthClient.MetricRenewalStarted, Name: Namespace + "_renewal_started_total", Help: "Renewal calls issued."},
	{ID: goAuthClient.MetricRequestQueued, Name: Namespace + "_request_queued_total", Help: "Requests queued behind a renewal."},
	{ID: goAuthClient.MetricLogout, Name: Namespace + "_logout_total", Help: "Direct logouts."},
	{ID: goAuthClient.MetricAuthTokenSignal, Name: Namespace + "_auth_token_signal_total", Help: "Auth token signals raised while rendering."},
}

// Families group counters that describe outcomes of one decision.
var Families = []FamilyDef{
	{
		Name:  Namespace + "_renewals_total",
		Help:  "Finished renewals by result.",
		Label: "result",
		Members: []Member{
			{ID: goAuthClient.MetricRenewalSuccess, Value: "success"},
			{ID: goAuthClient.MetricRenewalFailure, Value: "failure"},
		},
	},
	{
		Name:  Namespace + "_replays_total",
		Help:  "Replayed requests by result. stale marks direct replays of an outdated bearer.",
		Label: "result",
		Members: []Member{
			{ID: goAuthClient.MetricReplaySuccess, Value: "success"},
			{ID: goAuthClient.MetricReplayFailure, Value: "failure"},
			{ID: goAuthClient.MetricStaleReplay, Value: "stale"},
		},
	},
	{
		Name:  Namespace + "_guard_decisions_total",
		Help:  "Session guard decisions by outcome.",
		Label: "outcome",
		Members: []Member{
			{ID: goAuthClient.MetricGuardPass, Value: "pass"},
			{ID: goAuthClient.MetricGuardNoSession, Value: "no_session"},
			{ID: goAuthClient.MetricGuardForbidden, Value: "forbidden"},
			{ID: goAuthClient.MetricGuardSessionReset, Value: "session_reset"},
		},
	},
}

// Gauges expose the coordinator state summed over every live client.
var Gauges = []GaugeDef{
	{ID: goAuthClient.GaugeRenewalsInFlight, Name: Namespace + "_renewals_in_flight", Help: "Renewal calls currently running."},
	{ID: goAuthClient.GaugeQueueDepth, Name: Namespace + "_renewal_queue_depth", Help: "Callers waiting on a renewal."},
}

// RenewalLatency is the only histogram.
var RenewalLatency = struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}{
	ID:   goAuthClient.MetricRenewalLatency,
	Name: Namespace + "_renewal_latency_seconds",
	Help: "Renewal call latency.",
}

// BucketBounds are the upper bounds of the latency buckets, matching the
// core histogram. The last bucket is unbounded.
var BucketBounds = []time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

// LeLabel renders bucket i as a Prometheus "le" value.
func LeLabel(i int) string {
	if i >= len(BucketBounds) {
		return "+Inf"
	}
	return strconv.FormatFloat(BucketBounds[i].Seconds(), 'g', -1, 64)
}

// Cumulative folds raw per-bucket counts into running totals, one entry per
// bucket including +Inf. Missing buckets count as zero.
func Cumulative(raw []uint64) []uint64 {
	out := make([]uint64, len(BucketBounds)+1)
	var running uint64
	for i := range out {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
