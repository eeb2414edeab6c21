package resilience

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce sync.Once

	// BreakerState reports the current state per target: 0=closed, 1=open, 2=half-open.
	BreakerState *prometheus.GaugeVec
	// BreakerTransitions counts state transitions per target.
	BreakerTransitions *prometheus.CounterVec
	// BreakerOpenedTotal counts transitions into the open state per target.
	BreakerOpenedTotal *prometheus.CounterVec
)

// MustRegisterMetrics creates and registers the breaker collectors once.
func MustRegisterMetrics(namespace string, reg prometheus.Registerer) {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Current breaker state: 0=closed,1=open,2=half-open",
		}, []string{"target"})
		BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_transition_total",
			Help:      "Count of breaker state transitions",
		}, []string{"target", "from", "to"})
		BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breaker_open_total",
			Help:      "Number of times a breaker transitioned into open state",
		}, []string{"target"})
		reg.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
	})
}
