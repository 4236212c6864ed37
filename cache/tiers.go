package cache

import "time"

// TierConfig sizes a single tier.
type TierConfig struct {
	Capacity int
	TTL      time.Duration
}

// TiersConfig sizes the three response tiers.
type TiersConfig struct {
	Short  TierConfig
	Medium TierConfig
	Long   TierConfig
}

// DefaultTiersConfig returns the stock sizing: short 500/60s, medium
// 1000/5m, long 500/30m.
func DefaultTiersConfig() TiersConfig {
	return TiersConfig{
		Short:  TierConfig{Capacity: 500, TTL: time.Minute},
		Medium: TierConfig{Capacity: 1000, TTL: 5 * time.Minute},
		Long:   TierConfig{Capacity: 500, TTL: 30 * time.Minute},
	}
}

// Tiers groups the caches used by the API. Short holds fast-moving data,
// Medium list and lookup responses, Long slow aggregates.
type Tiers struct {
	Short  *Cache
	Medium *Cache
	Long   *Cache
}

// TierOption customises tier construction.
type TierOption func(*tierSettings)

type tierSettings struct {
	now     func() time.Time
	metrics func(tier string) Metrics
}

// WithClock injects a clock into every tier.
func WithClock(now func() time.Time) TierOption {
	return func(s *tierSettings) {
		s.now = now
	}
}

// WithMetrics installs a per-tier Metrics factory.
func WithMetrics(factory func(tier string) Metrics) TierOption {
	return func(s *tierSettings) {
		s.metrics = factory
	}
}

// NewTiers builds the three tiers. Zero-valued sizes fall back to
// DefaultTiersConfig.
func NewTiers(cfg TiersConfig, opts ...TierOption) *Tiers {
	var s tierSettings
	for _, opt := range opts {
		opt(&s)
	}
	def := DefaultTiersConfig()
	build := func(name string, tc, fallback TierConfig) *Cache {
		if tc.Capacity <= 0 {
			tc.Capacity = fallback.Capacity
		}
		if tc.TTL <= 0 {
			tc.TTL = fallback.TTL
		}
		o := Options{Name: name, Capacity: tc.Capacity, TTL: tc.TTL, Now: s.now}
		if s.metrics != nil {
			o.Metrics = s.metrics(name)
		}
		return New(o)
	}
	return &Tiers{
		Short:  build("short", cfg.Short, def.Short),
		Medium: build("medium", cfg.Medium, def.Medium),
		Long:   build("long", cfg.Long, def.Long),
	}
}

func (t *Tiers) all() []*Cache {
	return []*Cache{t.Short, t.Medium, t.Long}
}

// InvalidatePrefix removes prefix from every tier and returns the total
// number of removed entries.
func (t *Tiers) InvalidatePrefix(prefix string) int {
	n := 0
	for _, c := range t.all() {
		n += c.InvalidatePrefix(prefix)
	}
	return n
}

// ClearAll empties every tier.
func (t *Tiers) ClearAll() {
	for _, c := range t.all() {
		c.Clear()
	}
}

// TierStats is the per-tier snapshot served by the stats endpoint.
type TierStats struct {
	Short  Stats `json:"short_cache"`
	Medium Stats `json:"medium_cache"`
	Long   Stats `json:"long_cache"`
}

// Stats snapshots every tier.
func (t *Tiers) Stats() TierStats {
	return TierStats{
		Short:  t.Short.Stats(),
		Medium: t.Medium.Stats(),
		Long:   t.Long.Stats(),
	}
}
