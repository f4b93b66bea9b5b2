package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/delayboard/delayboard/server/internal/report"
)

const namespace = "delayboard"

// Reload results used as the "result" label of delayboard_reloads_total.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds the collectors for all datasets.
type Metrics struct {
	reg *prometheus.Registry

	rows        *prometheus.GaugeVec
	lateRate    *prometheus.GaugeVec
	onTimeRate  *prometheus.GaugeVec
	problematic *prometheus.GaugeVec
	affected    *prometheus.GaugeVec
	sweepPct    *prometheus.GaugeVec
	lastLoad    *prometheus.GaugeVec

	reloads       *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
}

// New creates a Metrics with its own registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		g := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
		reg.MustRegister(g)
		return g
	}

	m := &Metrics{
		reg:         reg,
		rows:        gauge("rows", "Number of rentals in the dataset.", "dataset"),
		lateRate:    gauge("late_rate_pct", "Percentage of rentals returned late for checkout.", "dataset"),
		onTimeRate:  gauge("on_time_rate_pct", "Percentage of rentals returned on time or early.", "dataset"),
		problematic: gauge("problematic_cases", "Chained rentals whose previous driver was late.", "dataset"),
		affected:    gauge("affected_share_pct", "Percentage of rentals preceded by another rental on the same car.", "dataset"),
		sweepPct: gauge("sweep_pct_of_problematic",
			"Share of problematic cases solved by a minimum delay of threshold minutes.",
			"dataset", "partition", "threshold"),
		lastLoad: gauge("last_load_timestamp_seconds", "Unix time of the last successful load.", "dataset"),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Dataset loads by result.",
		}, []string{"dataset", "result"}),
		buildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "report_build_duration_seconds",
			Help:      "Time to load a dataset and build its report.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"dataset"}),
	}
	reg.MustRegister(m.reloads, m.buildDuration)
	return m
}

// Observe sets the gauges of r.DatasetID from r.
func (m *Metrics) Observe(r *report.Report) {
	id := r.DatasetID
	m.rows.WithLabelValues(id).Set(float64(r.Totals.Rows))
	m.lateRate.WithLabelValues(id).Set(r.Rates.LatePct)
	m.onTimeRate.WithLabelValues(id).Set(r.Rates.OnTimePct)
	m.problematic.WithLabelValues(id).Set(float64(r.Totals.Problematic))
	m.affected.WithLabelValues(id).Set(r.Rates.AffectedPct)
	m.lastLoad.WithLabelValues(id).Set(float64(r.GeneratedAt.Unix()))

	// thresholds may have changed since the previous report
	m.sweepPct.DeletePartialMatch(prometheus.Labels{"dataset": id})
	for _, s := range r.Sweeps {
		for _, pt := range s.Points {
			if pt.PctOfProblematic == nil {
				continue
			}
			m.sweepPct.WithLabelValues(id, string(s.Partition), strconv.Itoa(pt.ThresholdMinutes)).
				Set(*pt.PctOfProblematic)
		}
	}
}

// RecordReload counts one load attempt of datasetID and its duration.
func (m *Metrics) RecordReload(datasetID string, err error, took time.Duration) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.reloads.WithLabelValues(datasetID, result).Inc()
	m.buildDuration.WithLabelValues(datasetID).Observe(took.Seconds())
}

// Forget removes the gauges of datasetID, used when a dataset fails to load
// or is dropped from the configuration. Counters are kept.
func (m *Metrics) Forget(datasetID string) {
	l := prometheus.Labels{"dataset": datasetID}
	for _, g := range []*prometheus.GaugeVec{
		m.rows, m.lateRate, m.onTimeRate, m.problematic, m.affected, m.sweepPct, m.lastLoad,
	} {
		g.DeletePartialMatch(l)
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
