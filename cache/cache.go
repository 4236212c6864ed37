// Package cache provides the in-process response cache used by the API
// handlers: bounded TTL tiers with per-key request coalescing, plus the
// byte-oriented Store abstraction consumed by the auth package.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("cache: key not found")
	ErrUnhashableKey = errors.New("cache: arguments cannot be fingerprinted")
)

// Store represents a simple TTL-based cache abstraction that can be backed
// by memory or any other KV store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// EvictReason explains why an entry left the cache.
type EvictReason int

const (
	// EvictCapacity: removed to make room for a new key.
	EvictCapacity EvictReason = iota
	// EvictTTL: dropped because it outlived its TTL.
	EvictTTL
	// EvictInvalidate: removed by Invalidate, InvalidatePrefix or Clear.
	EvictInvalidate
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictTTL:
		return "ttl"
	default:
		return "invalidate"
	}
}

// Metrics exposes cache-level observability hooks.
// Implementations must be safe for concurrent use.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason, n int)
	Size(entries int)
}

// NoopMetrics is the default Metrics implementation.
type NoopMetrics struct{}

func (NoopMetrics) Hit()                   {}
func (NoopMetrics) Miss()                  {}
func (NoopMetrics) Evict(EvictReason, int) {}
func (NoopMetrics) Size(int)               {}

var _ Metrics = NoopMetrics{}
