package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type countingMetrics struct {
	mu      sync.Mutex
	hits    int
	misses  int
	evicted map[EvictReason]int
	size    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{evicted: make(map[EvictReason]int)}
}

func (m *countingMetrics) Hit()  { m.mu.Lock(); m.hits++; m.mu.Unlock() }
func (m *countingMetrics) Miss() { m.mu.Lock(); m.misses++; m.mu.Unlock() }
func (m *countingMetrics) Evict(r EvictReason, n int) {
	m.mu.Lock()
	m.evicted[r] += n
	m.mu.Unlock()
}
func (m *countingMetrics) Size(n int) { m.mu.Lock(); m.size = n; m.mu.Unlock() }

func TestGetOnFreshCacheIsAbsent(t *testing.T) {
	c := New(Options{})
	if _, ok := c.Get("incidents:missing"); ok {
		t.Fatalf("Get() on empty cache reported a hit")
	}
}

func TestSetThenGet(t *testing.T) {
	c := New(Options{Capacity: 10, TTL: time.Minute})
	c.Set("k", "v1")
	got, ok := c.Get("k")
	if !ok || got != "v1" {
		t.Fatalf("Get() = %v, %v; want v1, true", got, ok)
	}

	c.Set("k", "v2")
	if got, _ := c.Get("k"); got != "v2" {
		t.Fatalf("Get() after overwrite = %v, want v2", got)
	}
}

func TestEntriesExpireAfterTTL(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{Capacity: 10, TTL: 300 * time.Second, Now: clock.Now})

	c.Set("incidents:list", []string{"a"})
	clock.Advance(299 * time.Second)
	if _, ok := c.Get("incidents:list"); !ok {
		t.Fatalf("entry expired before its TTL")
	}

	clock.Advance(2 * time.Second)
	if _, ok := c.Get("incidents:list"); ok {
		t.Fatalf("entry still present after 301s on a 300s tier")
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", c.Len())
	}
}

func TestSetResetsExpiry(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{Capacity: 10, TTL: time.Minute, Now: clock.Now})

	c.Set("k", 1)
	clock.Advance(50 * time.Second)
	c.Set("k", 2)
	clock.Advance(50 * time.Second)

	if got, ok := c.Get("k"); !ok || got != 2 {
		t.Fatalf("Get() = %v, %v; want 2, true", got, ok)
	}
}

func TestCapacityEvictsExactlyOneOldestEntry(t *testing.T) {
	metrics := newCountingMetrics()
	c := New(Options{Capacity: 3, TTL: time.Hour, Metrics: metrics})

	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	c.Set("k3", 3)

	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	if _, ok := c.Get("k0"); ok {
		t.Fatalf("oldest entry k0 should have been evicted")
	}
	for _, k := range []string{"k1", "k2", "k3"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("entry %s missing after eviction", k)
		}
	}
	if metrics.evicted[EvictCapacity] != 1 {
		t.Fatalf("capacity evictions = %d, want 1", metrics.evicted[EvictCapacity])
	}
}

func TestCapacityPrefersExpiredEntries(t *testing.T) {
	clock := newFakeClock()
	metrics := newCountingMetrics()
	c := New(Options{Capacity: 2, TTL: time.Minute, Now: clock.Now, Metrics: metrics})

	c.Set("old", 1)
	clock.Advance(2 * time.Minute)
	c.Set("fresh", 2)
	c.Set("new", 3)

	if _, ok := c.Get("fresh"); !ok {
		t.Fatalf("fresh entry evicted while an expired one was available")
	}
	if metrics.evicted[EvictTTL] != 1 || metrics.evicted[EvictCapacity] != 0 {
		t.Fatalf("evictions = %v, want one ttl and no capacity", metrics.evicted)
	}
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	c := New(Options{Capacity: 2, TTL: time.Hour})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 3)

	if _, ok := c.Get("b"); !ok {
		t.Fatalf("overwrite of existing key evicted another entry")
	}
}

func TestGetDoesNotChangeEvictionOrder(t *testing.T) {
	c := New(Options{Capacity: 2, TTL: time.Hour})
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("Get() refreshed recency of a")
	}
}

func TestInvalidate(t *testing.T) {
	c := New(Options{})
	c.Set("a", 1)
	c.Invalidate("a")
	c.Invalidate("never-set")

	if _, ok := c.Get("a"); ok {
		t.Fatalf("Invalidate() left the entry behind")
	}
}

func TestInvalidatePrefixLeavesOtherPrefixes(t *testing.T) {
	c := New(Options{})
	c.Set("incidents:1", 1)
	c.Set("incidents:2", 2)
	c.Set("incidents", 3)
	c.Set("typhoons:1", 4)

	if n := c.InvalidatePrefix("incidents"); n != 3 {
		t.Fatalf("InvalidatePrefix() = %d, want 3", n)
	}
	if _, ok := c.Get("typhoons:1"); !ok {
		t.Fatalf("typhoons entry removed by incidents invalidation")
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
}

func TestClearAndStats(t *testing.T) {
	clock := newFakeClock()
	c := New(Options{Name: "medium", Capacity: 1000, TTL: 5 * time.Minute, Now: clock.Now})
	c.Set("a", 1)
	c.Set("b", 2)

	st := c.Stats()
	if st.Name != "medium" || st.Size != 2 || st.Capacity != 1000 || st.TTL != 300 {
		t.Fatalf("Stats() = %+v", st)
	}
	if !st.Timestamp.Equal(clock.Now()) {
		t.Fatalf("Stats().Timestamp = %v, want %v", st.Timestamp, clock.Now())
	}

	c.Clear()
	if got := c.Stats().Size; got != 0 {
		t.Fatalf("Stats().Size after Clear() = %d, want 0", got)
	}
}

func TestConcurrentSetGet(t *testing.T) {
	c := New(Options{Capacity: 64, TTL: time.Minute})
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := fmt.Sprintf("k%d", (g*31+i)%128)
				c.Set(key, i)
				c.Get(key)
				if i%97 == 0 {
					c.InvalidatePrefix("k1")
				}
			}
		}(g)
	}
	wg.Wait()

	if n := c.Len(); n > 64 {
		t.Fatalf("Len() = %d exceeds capacity", n)
	}
}
