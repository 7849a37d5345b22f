package otel

import (
	"context"
	"errors"
	"fmt"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goAuthClient.MetricsSnapshot
	AuditDropped() uint64
}

// series is one observed value: the instrument, the counter or gauge feeding
// it, and the attributes that tell it apart within its instrument.
type series struct {
	instrument metric.Int64Observable
	id         goAuthClient.MetricID
	gaugeID    goAuthClient.GaugeID
	isGauge    bool
	observed   []metric.ObserveOption
}

// OTelExporter publishes engine metrics through observable instruments read
// from one snapshot per collection.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	series       []series
	buckets      metric.Int64ObservableGauge
	bucketAttrs  [][]metric.ObserveOption
	latencyCount metric.Int64ObservableGauge
	latencySum   metric.Float64ObservableCounter
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments on meter that read engine snapshots.
func NewOTelExporter(meter metric.Meter, engine *goAuthClient.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers instruments that read source.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.Counters {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.series = append(e.series, series{instrument: c, id: def.ID})
		observables = append(observables, c)
	}

	for _, fam := range internaldefs.Families {
		c, err := meter.Int64ObservableCounter(fam.Name, metric.WithDescription(fam.Help))
		if err != nil {
			return nil, fmt.Errorf("family %s: %w", fam.Name, err)
		}
		for _, m := range fam.Members {
			attrs := metric.WithAttributeSet(attribute.NewSet(attribute.String(fam.Label, m.Value)))
			e.series = append(e.series, series{instrument: c, id: m.ID, observed: []metric.ObserveOption{attrs}})
		}
		observables = append(observables, c)
	}

	for _, def := range internaldefs.Gauges {
		g, err := meter.Int64ObservableGauge(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("gauge %s: %w", def.Name, err)
		}
		e.series = append(e.series, series{instrument: g, gaugeID: def.ID, isGauge: true})
		observables = append(observables, g)
	}

	if err := e.registerLatency(meter, &observables); err != nil {
		return nil, err
	}

	dropped, err := meter.Int64ObservableCounter(
		internaldefs.Namespace+"_audit_dropped_total",
		metric.WithDescription("Audit events dropped on a full dispatcher buffer."),
	)
	if err != nil {
		return nil, fmt.Errorf("audit dropped counter: %w", err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

// registerLatency exports the renewal histogram as cumulative bucket levels
// labelled by "le", plus its count and sum.
func (e *OTelExporter) registerLatency(meter metric.Meter, observables *[]metric.Observable) error {
	def := internaldefs.RenewalLatency

	buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket", metric.WithDescription("Cumulative renewal latency bucket counts."))
	if err != nil {
		return fmt.Errorf("latency buckets: %w", err)
	}
	count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription("Renewal latency sample count."))
	if err != nil {
		return fmt.Errorf("latency count: %w", err)
	}
	sum, err := meter.Float64ObservableCounter(def.Name+"_sum", metric.WithDescription(def.Help), metric.WithUnit("s"))
	if err != nil {
		return fmt.Errorf("latency sum: %w", err)
	}

	e.buckets, e.latencyCount, e.latencySum = buckets, count, sum
	for i := 0; i <= len(internaldefs.BucketBounds); i++ {
		e.bucketAttrs = append(e.bucketAttrs, []metric.ObserveOption{
			metric.WithAttributeSet(attribute.NewSet(attribute.String("le", internaldefs.LeLabel(i)))),
		})
	}
	*observables = append(*observables, buckets, count, sum)
	return nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()

	for _, s := range e.series {
		if s.isGauge {
			o.ObserveInt64(s.instrument, snap.Gauges[s.gaugeID], s.observed...)
			continue
		}
		o.ObserveInt64(s.instrument, int64(snap.Counters[s.id]), s.observed...)
	}

	if raw, ok := snap.Histograms[internaldefs.RenewalLatency.ID]; ok {
		cumulative := internaldefs.Cumulative(raw)
		for i, n := range cumulative {
			o.ObserveInt64(e.buckets, int64(n), e.bucketAttrs[i]...)
		}
		o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))
		o.ObserveFloat64(e.latencySum, snap.HistogramSums[internaldefs.RenewalLatency.ID].Seconds())
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
