// Package metrics holds the HTTP request metrics exported at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const Namespace = "emergency"

// HTTP records request counts, latencies and in-flight requests. It
// satisfies httpx.RequestObserver.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

// NewHTTP registers the request metrics with reg (nil => default registerer).
func NewHTTP(reg prometheus.Registerer) *HTTP {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &HTTP{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Requests currently being served",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.active)
	return m
}

func (m *HTTP) Begin() { m.active.Inc() }

func (m *HTTP) End(method, path string, status int, elapsed time.Duration) {
	m.active.Dec()
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}
