package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	defaultCapacity = 1000
	defaultTTL      = 5 * time.Minute
)

// Options configures a Cache. Zero values fall back to defaults.
type Options struct {
	Name     string
	Capacity int
	TTL      time.Duration
	Metrics  Metrics
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Capacity <= 0 {
		o.Capacity = defaultCapacity
	}
	if o.TTL <= 0 {
		o.TTL = defaultTTL
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
}

// pendingLoad is a GetOrLoad computation in flight. An invalidation that
// covers its key marks it stale and its result is then not stored.
type pendingLoad struct {
	stale bool
}

// Cache is a bounded in-memory map with a fixed TTL per entry and request
// coalescing for GetOrLoad. All methods are safe for concurrent use.
//
// Expiry is evaluated lazily on access. Entries are kept in insertion order
// (a Set moves the key to the back) and the front entry is evicted when a new
// key would exceed Capacity.
type Cache struct {
	opts Options

	mu      sync.RWMutex
	items   map[string]*list.Element
	order   *list.List
	pending map[string]*pendingLoad
	flights singleflight.Group
}

// New builds a Cache from the provided options.
func New(opts Options) *Cache {
	cfg := opts.withDefaults()
	return &Cache{
		opts:  cfg,
		items:   make(map[string]*list.Element, cfg.Capacity),
		order:   list.New(),
		pending: make(map[string]*pendingLoad),
	}
}

// Name returns the tier name the cache was built with.
func (c *Cache) Name() string { return c.opts.Name }

// Capacity returns the maximum number of live entries.
func (c *Cache) Capacity() int { return c.opts.Capacity }

// TTL returns the lifetime applied by Set.
func (c *Cache) TTL() time.Duration { return c.opts.TTL }

// Get returns the value for key if it is present and not expired.
// It never mutates the cache.
func (c *Cache) Get(key string) (any, bool) {
	value, ok := c.lookup(key)
	if !ok {
		c.opts.Metrics.Miss()
		return nil, false
	}
	c.opts.Metrics.Hit()
	return value, true
}

// lookup is Get without metrics.
func (c *Cache) lookup(key string) (any, bool) {
	now := c.opts.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*entry)
	if !now.Before(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set inserts or replaces key, restarting its TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.opts.TTL)
}

// SetWithTTL is Set with a per-entry lifetime. A non-positive ttl uses the
// cache TTL.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.opts.TTL
	}
	c.mu.Lock()
	c.storeLocked(key, value, ttl)
	size := len(c.items)
	c.mu.Unlock()
	c.opts.Metrics.Size(size)
}

func (c *Cache) storeLocked(key string, value any, ttl time.Duration) {
	now := c.opts.Now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = now.Add(ttl)
		c.order.MoveToBack(el)
		return
	}

	if len(c.items) >= c.opts.Capacity {
		if n := c.purgeExpiredLocked(now); n > 0 {
			c.opts.Metrics.Evict(EvictTTL, n)
		}
	}
	if len(c.items) >= c.opts.Capacity {
		if front := c.order.Front(); front != nil {
			c.removeLocked(front)
			c.opts.Metrics.Evict(EvictCapacity, 1)
		}
	}

	c.items[key] = c.order.PushBack(&entry{key: key, value: value, expiresAt: now.Add(ttl)})
}

// purgeExpiredLocked drops expired entries from the front of the insertion
// list. With a uniform TTL the list is also ordered by expiry.
func (c *Cache) purgeExpiredLocked(now time.Time) int {
	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if now.Before(el.Value.(*entry).expiresAt) {
			break
		}
		c.removeLocked(el)
		removed++
		el = next
	}
	return removed
}

func (c *Cache) removeLocked(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.order.Remove(el)
}

// Invalidate removes key if present.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	el, ok := c.items[key]
	if ok {
		c.removeLocked(el)
	}
	if p, loading := c.pending[key]; loading {
		p.stale = true
	}
	size := len(c.items)
	c.mu.Unlock()

	if ok {
		c.opts.Metrics.Evict(EvictInvalidate, 1)
		c.opts.Metrics.Size(size)
	}
}

// InvalidatePrefix removes every entry whose key starts with prefix and
// returns the number of removed entries.
func (c *Cache) InvalidatePrefix(prefix string) int {
	c.mu.Lock()
	removed := 0
	for key, el := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.removeLocked(el)
			removed++
		}
	}
	for key, p := range c.pending {
		if strings.HasPrefix(key, prefix) {
			p.stale = true
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	if removed > 0 {
		c.opts.Metrics.Evict(EvictInvalidate, removed)
		c.opts.Metrics.Size(size)
	}
	return removed
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	removed := len(c.items)
	c.items = make(map[string]*list.Element, c.opts.Capacity)
	c.order.Init()
	for _, p := range c.pending {
		p.stale = true
	}
	c.mu.Unlock()

	if removed > 0 {
		c.opts.Metrics.Evict(EvictInvalidate, removed)
	}
	c.opts.Metrics.Size(0)
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	now := c.opts.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, el := range c.items {
		if now.Before(el.Value.(*entry).expiresAt) {
			n++
		}
	}
	return n
}

// Stats is a point-in-time snapshot of a cache tier.
type Stats struct {
	Name      string    `json:"name,omitempty"`
	Size      int       `json:"size"`
	Capacity  int       `json:"maxsize"`
	TTL       int64     `json:"ttl"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats returns size, capacity and TTL (in seconds). It only takes the
// structural lock, never a per-key flight.
func (c *Cache) Stats() Stats {
	return Stats{
		Name:      c.opts.Name,
		Size:      c.Len(),
		Capacity:  c.opts.Capacity,
		TTL:       int64(c.opts.TTL / time.Second),
		Timestamp: c.opts.Now().UTC(),
	}
}

// GetOrLoad returns the cached value for key or runs load exactly once
// across concurrent callers and caches a successful result.
//
// Callers that join an in-flight load receive its value or error. A caller
// whose ctx ends while waiting returns ctx.Err() without affecting the load.
// Errors are never cached. A result computed while an Invalidate,
// InvalidatePrefix or Clear covered key is returned but not stored.
// Invalidations of other keys do not affect it.
func (c *Cache) GetOrLoad(ctx context.Context, key string, load func(context.Context) (any, error)) (any, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	ch := c.flights.DoChan(key, func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		p := c.beginLoad(key)
		v, err := load(ctx)
		c.finishLoad(key, p, v, err == nil)
		if err != nil {
			return nil, err
		}
		return v, nil
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) beginLoad(key string) *pendingLoad {
	p := &pendingLoad{}
	c.mu.Lock()
	c.pending[key] = p
	c.mu.Unlock()
	return p
}

// finishLoad stores value when ok and p was not marked stale.
func (c *Cache) finishLoad(key string, p *pendingLoad, value any, ok bool) {
	c.mu.Lock()
	if c.pending[key] == p {
		delete(c.pending, key)
	}
	if !ok || p.stale {
		c.mu.Unlock()
		return
	}
	c.storeLocked(key, value, c.opts.TTL)
	size := len(c.items)
	c.mu.Unlock()
	c.opts.Metrics.Size(size)
}
