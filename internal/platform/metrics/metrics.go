package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"roster/pkg/platform/circuit"
)

// Metrics holds process-level gauges that don't belong to one domain package.
type Metrics struct {
	BreakerOpen        *prometheus.GaugeVec
	BreakerTransitions *prometheus.CounterVec
	Up                 prometheus.Gauge
}

// New registers the platform metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		BreakerOpen: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roster_circuit_breaker_open",
			Help: "1 while the named circuit breaker is open",
		}, []string{"breaker"}),
		BreakerTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "roster_circuit_breaker_transitions_total",
			Help: "Circuit breaker state changes",
		}, []string{"breaker", "state"}),
		Up: f.NewGauge(prometheus.GaugeOpts{
			Name: "roster_up",
			Help: "1 once the process has finished starting",
		}),
	}
}

// BreakerObserver returns a callback suitable for identity.WithStateObserver.
func (m *Metrics) BreakerObserver(name string) func(circuit.State) {
	m.BreakerOpen.WithLabelValues(name).Set(0)
	return func(state circuit.State) {
		open := 0.0
		if state == circuit.StateOpen {
			open = 1
		}
		m.BreakerOpen.WithLabelValues(name).Set(open)
		m.BreakerTransitions.WithLabelValues(name, string(state)).Inc()
	}
}
