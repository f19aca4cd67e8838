package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics provides observability for the membership lifecycle.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	Compensations     *prometheus.CounterVec
	IdentitySkipped   prometheus.Counter
}

// New registers the membership metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_membership_operations_total",
			Help: "Lifecycle operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roster_membership_operation_duration_seconds",
			Help:    "Duration of lifecycle operations including identity provider calls",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		Compensations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_membership_compensations_total",
			Help: "Saga compensations by step and outcome",
		}, []string{"step", "outcome"}),
		IdentitySkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "roster_membership_identity_skipped_total",
			Help: "Lifecycle operations on memberships with no linked identity account",
		}),
	}
}

// ObserveOperation records one lifecycle operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(op string, err error, start time.Time) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementCompensation(step string, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.Compensations.WithLabelValues(step, outcome).Inc()
}
