package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/wbdash/internal/domain"
)

// RefreshMetrics holds Prometheus metrics for the refresh scheduler.
type RefreshMetrics struct {
	RefreshesTotal  *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	TableRows       prometheus.Gauge
	LastSuccess     prometheus.Gauge
	TrackedSessions prometheus.Gauge
}

// NewRefreshMetrics creates and registers refresh metrics on the given registry.
func NewRefreshMetrics(reg prometheus.Registerer) *RefreshMetrics {
	m := &RefreshMetrics{
		RefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "Total number of refresh attempts, by trigger and result.",
		}, []string{"trigger", "result"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of refreshes that reached the upstream API, in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"trigger"}),
		TableRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observation_table_rows",
			Help:      "Number of rows in the most recently fetched observation table.",
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "refresh_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		TrackedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_sessions",
			Help:      "Number of sessions kept fresh by the scheduler.",
		}),
	}

	reg.MustRegister(m.RefreshesTotal, m.Duration, m.TableRows, m.LastSuccess, m.TrackedSessions)
	return m
}

// ObserveRefresh records one refresh attempt. Skipped attempts never reached
// upstream, so only their count is recorded.
func (m *RefreshMetrics) ObserveRefresh(trigger string, outcome domain.RefreshOutcome, duration time.Duration, rows int) {
	m.RefreshesTotal.WithLabelValues(trigger, string(outcome)).Inc()
	if outcome == domain.RefreshOutcomeSkipped {
		return
	}

	m.Duration.WithLabelValues(trigger).Observe(duration.Seconds())
	if outcome == domain.RefreshOutcomeRefreshed {
		m.TableRows.Set(float64(rows))
		m.LastSuccess.SetToCurrentTime()
	}
}

func (m *RefreshMetrics) SetTrackedSessions(n int) {
	m.TrackedSessions.Set(float64(n))
}
