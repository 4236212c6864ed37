// Package prom exports cache tier metrics to Prometheus.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/adeilh/emergency-backend/cache"
)

// Collector owns the metric vectors shared by every tier. Each tier gets its
// own cache.Metrics view through Tier.
type Collector struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
	evicts *prometheus.CounterVec
	size   *prometheus.GaugeVec
}

// New registers the cache metrics with reg (nil => prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer, ns string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache hits",
		}, []string{"tier"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache misses",
		}, []string{"tier"}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Cache evictions by reason",
		}, []string{"tier", "reason"}),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Subsystem: "cache",
			Name:      "size_entries",
			Help:      "Number of resident entries",
		}, []string{"tier"}),
	}
	reg.MustRegister(c.hits, c.misses, c.evicts, c.size)
	return c
}

// Tier returns a cache.Metrics bound to the tier label.
func (c *Collector) Tier(name string) cache.Metrics {
	return &tierMetrics{
		hits:   c.hits.WithLabelValues(name),
		misses: c.misses.WithLabelValues(name),
		evicts: c.evicts.MustCurryWith(prometheus.Labels{"tier": name}),
		size:   c.size.WithLabelValues(name),
	}
}

type tierMetrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
	evicts *prometheus.CounterVec
	size   prometheus.Gauge
}

func (m *tierMetrics) Hit()  { m.hits.Inc() }
func (m *tierMetrics) Miss() { m.misses.Inc() }

func (m *tierMetrics) Evict(r cache.EvictReason, n int) {
	m.evicts.WithLabelValues(r.String()).Add(float64(n))
}

func (m *tierMetrics) Size(entries int) { m.size.Set(float64(entries)) }

var _ cache.Metrics = (*tierMetrics)(nil)
