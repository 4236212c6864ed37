package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTP(reg)

	m.Begin()
	if got := testutil.ToFloat64(m.active); got != 1 {
		t.Fatalf("active = %v, want 1", got)
	}
	m.End("GET", "/api/incidents", 200, 20*time.Millisecond)
	if got := testutil.ToFloat64(m.active); got != 0 {
		t.Fatalf("active = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/incidents", "200")); got != 1 {
		t.Fatalf("requests = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.duration); n != 1 {
		t.Fatalf("duration series = %d, want 1", n)
	}
}
