package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/adeilh/emergency-backend/cache"
)

func TestCollectorTracksTierActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	col := New(reg, "emergency")

	tiers := cache.NewTiers(cache.DefaultTiersConfig(), cache.WithMetrics(col.Tier))
	tiers.Short.Set("incidents:a", 1)
	tiers.Short.Get("incidents:a")
	tiers.Short.Get("incidents:b")
	tiers.Short.InvalidatePrefix("incidents")

	if got := testutil.ToFloat64(col.hits.WithLabelValues("short")); got != 1 {
		t.Fatalf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(col.misses.WithLabelValues("short")); got != 1 {
		t.Fatalf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(col.evicts.WithLabelValues("short", "invalidate")); got != 1 {
		t.Fatalf("invalidate evictions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(col.size.WithLabelValues("short")); got != 0 {
		t.Fatalf("size = %v, want 0", got)
	}
	if got := testutil.ToFloat64(col.hits.WithLabelValues("medium")); got != 0 {
		t.Fatalf("medium hits = %v, want 0", got)
	}
}
