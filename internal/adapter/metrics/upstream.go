package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics holds Prometheus metrics for World Bank API requests.
type UpstreamMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewUpstreamMetrics creates and registers upstream request metrics on the given registry.
func NewUpstreamMetrics(reg prometheus.Registerer) *UpstreamMetrics {
	m := &UpstreamMetrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of World Bank API requests, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of World Bank API requests in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration)
	return m
}

// ObserveUpstreamRequest implements worldbank.RequestObserver. Requests
// rejected by the open circuit breaker are counted but not timed.
func (m *UpstreamMetrics) ObserveUpstreamRequest(endpoint, outcome string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	if outcome != "rejected" {
		m.RequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	}
}
