package reconcile

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks audit runs and the divergence they find.
type Metrics struct {
	Runs         *prometheus.CounterVec
	RunDuration  prometheus.Histogram
	Divergences  *prometheus.GaugeVec
	Remediations *prometheus.CounterVec
	LastClean    prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_reconcile_runs_total",
			Help: "Audit runs by outcome (clean, divergent, error, skipped)",
		}, []string{"outcome"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "roster_reconcile_run_duration_seconds",
			Help:    "Duration of completed audit runs",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		Divergences: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roster_reconcile_divergences",
			Help: "Entries per divergence category in the latest audit run",
		}, []string{"category"}),
		Remediations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_reconcile_remediations_total",
			Help: "Remediation attempts by outcome",
		}, []string{"outcome"}),
		LastClean: f.NewGauge(prometheus.GaugeOpts{
			Name: "roster_reconcile_last_clean",
			Help: "1 if the latest audit run was clean, 0 otherwise",
		}),
	}
}

// ObserveReport records a finished run.
func (m *Metrics) ObserveReport(r *Report) {
	outcome := "clean"
	clean := 1.0
	if !r.Clean() {
		outcome = "divergent"
		clean = 0
	}
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunDuration.Observe(r.Duration().Seconds())
	m.Divergences.WithLabelValues(string(CategoryRemovedWithoutDisable)).Set(float64(len(r.RemovedWithoutDisable)))
	m.Divergences.WithLabelValues(string(CategoryDisabledWithoutRemoved)).Set(float64(len(r.DisabledWithoutRemoved)))
	m.Divergences.WithLabelValues(string(CategoryNoIdentity)).Set(float64(len(r.NoIdentityToVerify)))
	m.LastClean.Set(clean)
}

func (m *Metrics) IncrementRun(outcome string) {
	m.Runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRemediation(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.Remediations.WithLabelValues(outcome).Inc()
}

// observeSince is used for runs that fail before producing a report.
func (m *Metrics) observeSince(start time.Time) {
	m.RunDuration.Observe(time.Since(start).Seconds())
}
