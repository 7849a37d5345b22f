package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() goAuthClient.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter serves an engine's metrics in the text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from engine.
func NewPrometheusExporter(engine *goAuthClient.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource reads from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves Render on every request.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the exposition text, or "" when the source records nothing
// (metrics disabled and no dropped audit events).
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}
	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Gauges) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var e exposition
	e.b.Grow(4096)

	for _, def := range internaldefs.Counters {
		e.header(def.Name, def.Help, "counter")
		e.sample(def.Name, "", "", strconv.FormatUint(snap.Counters[def.ID], 10))
	}
	for _, fam := range internaldefs.Families {
		e.header(fam.Name, fam.Help, "counter")
		for _, m := range fam.Members {
			e.sample(fam.Name, fam.Label, m.Value, strconv.FormatUint(snap.Counters[m.ID], 10))
		}
	}
	for _, def := range internaldefs.Gauges {
		e.header(def.Name, def.Help, "gauge")
		e.sample(def.Name, "", "", strconv.FormatInt(snap.Gauges[def.ID], 10))
	}
	if raw, ok := snap.Histograms[internaldefs.RenewalLatency.ID]; ok {
		e.histogram(raw, snap.HistogramSums[internaldefs.RenewalLatency.ID].Seconds())
	}

	name := internaldefs.Namespace + "_audit_dropped_total"
	e.header(name, "Audit events dropped on a full dispatcher buffer.", "counter")
	e.sample(name, "", "", strconv.FormatUint(dropped, 10))

	return e.b.String()
}

type exposition struct {
	b strings.Builder
}

func (e *exposition) header(name, help, kind string) {
	e.b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	e.b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func (e *exposition) sample(name, label, value, v string) {
	e.b.WriteString(name)
	if label != "" {
		e.b.WriteString("{" + label + "=\"" + value + "\"}")
	}
	e.b.WriteByte(' ')
	e.b.WriteString(v)
	e.b.WriteByte('\n')
}

func (e *exposition) histogram(raw []uint64, sumSeconds float64) {
	def := internaldefs.RenewalLatency
	e.header(def.Name, def.Help, "histogram")

	cumulative := internaldefs.Cumulative(raw)
	for i, n := range cumulative {
		e.sample(def.Name+"_bucket", "le", internaldefs.LeLabel(i), strconv.FormatUint(n, 10))
	}
	e.sample(def.Name+"_sum", "", "", strconv.FormatFloat(sumSeconds, 'g', -1, 64))
	e.sample(def.Name+"_count", "", "", strconv.FormatUint(cumulative[len(cumulative)-1], 10))
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
