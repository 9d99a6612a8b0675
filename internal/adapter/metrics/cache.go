package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics holds Prometheus metrics for the country catalog cache and the
// session table store.
type CacheMetrics struct {
	Hits             prometheus.Counter
	Misses           prometheus.Counter
	SessionEvictions prometheus.Counter
}

// NewCacheMetrics creates and registers cache metrics on the given registry.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "country_catalog",
			Name:      "cache_hits_total",
			Help:      "Total number of country list lookups served from cache.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "country_catalog",
			Name:      "cache_misses_total",
			Help:      "Total number of country list lookups that went upstream.",
		}),
		SessionEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session_store",
			Name:      "evictions_total",
			Help:      "Total number of idle session tables evicted from memory.",
		}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.SessionEvictions)
	return m
}

func (m *CacheMetrics) CacheHit()  { m.Hits.Inc() }
func (m *CacheMetrics) CacheMiss() { m.Misses.Inc() }

// SessionsEvicted counts tables dropped by the in-memory store's eviction sweep.
func (m *CacheMetrics) SessionsEvicted(n int) { m.SessionEvictions.Add(float64(n)) }
