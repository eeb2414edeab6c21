package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BundleAssembledTotal counts bundle expansions onto orders by outcome.
	BundleAssembledTotal *prometheus.CounterVec
	// BundleReconciliationMismatch counts assembled bundles whose lines do not sum to the bundle price.
	BundleReconciliationMismatch prometheus.Counter
	// BundleValidationTotal counts submission-time bundle validations by result.
	BundleValidationTotal *prometheus.CounterVec
	// BundleValidationSkippedGroups counts child groups whose check was skipped.
	BundleValidationSkippedGroups *prometheus.CounterVec
	// OrderTotalMismatch counts orders whose recorded grand total diverges from recomputation.
	OrderTotalMismatch prometheus.Counter
	// EventPublishTotal tracks outbound event delivery outcomes.
	EventPublishTotal *prometheus.CounterVec
	// EventPublishLatency records delivery attempt latency in milliseconds.
	EventPublishLatency *prometheus.HistogramVec
	// TaskProcessedTotal counts background tasks handled by the worker.
	TaskProcessedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BundleAssembledTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_assembled_total",
			Help:      "Count of bundle expansions by outcome.",
		}, []string{"outcome"}))
		BundleReconciliationMismatch = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_reconciliation_mismatch_total",
			Help:      "Assembled bundles whose net total is outside tolerance of the bundle price.",
		}))
		BundleValidationTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_validation_total",
			Help:      "Submission-time bundle validations by result.",
		}, []string{"result"}))
		BundleValidationSkippedGroups = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_validation_skipped_groups_total",
			Help:      "Bundle child groups skipped during validation by reason.",
		}, []string{"reason"}))
		OrderTotalMismatch = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_total_mismatch_total",
			Help:      "Orders whose recorded grand total diverges from the recomputed total.",
		}))
		EventPublishTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_total",
			Help:      "Count of outbound event deliveries by result.",
		}, []string{"result"}))
		EventPublishLatency = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_duration_ms",
			Help:      "Latency for outbound event deliveries in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"}))
		TaskProcessedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_processed_total",
			Help:      "Background tasks processed by type and result.",
		}, []string{"task", "result"}))
	})
}

// IncCounterVec increments vec for labels when the collector is registered.
func IncCounterVec(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// IncCounter increments c when the collector is registered.
func IncCounter(c prometheus.Counter) {
	if c == nil {
		return
	}
	c.Inc()
}
