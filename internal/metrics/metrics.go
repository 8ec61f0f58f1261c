package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for scheduling operations.
type SchedulingMetrics struct {
	operationsTotal   *prometheus.CounterVec
	rejectionsTotal   *prometheus.CounterVec
	returnTripsTotal  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transport",
			Subsystem: "scheduling",
			Name:      "operations_total",
			Help:      "Total scheduling operations by outcome",
		}, []string{"operation", "outcome"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transport",
			Subsystem: "scheduling",
			Name:      "rejections_total",
			Help:      "Rejected scheduling operations by error kind and code",
		}, []string{"operation", "kind", "code"}),
		returnTripsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "transport",
			Subsystem: "scheduling",
			Name:      "return_trips_total",
			Help:      "Return trip generation attempts by outcome",
		}, []string{"outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "transport",
			Subsystem: "scheduling",
			Name:      "operation_duration_seconds",
			Help:      "Latency of scheduling operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.operationsTotal, m.rejectionsTotal, m.returnTripsTotal, m.operationDuration)
	return m
}

func (m *SchedulingMetrics) ObserveOperation(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveRejection(operation, kind, code string) {
	if m == nil {
		return
	}
	m.rejectionsTotal.WithLabelValues(operation, kind, code).Inc()
}

func (m *SchedulingMetrics) ObserveReturnTrip(outcome string) {
	if m == nil {
		return
	}
	m.returnTripsTotal.WithLabelValues(outcome).Inc()
}
