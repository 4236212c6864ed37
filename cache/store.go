package cache

import (
	"context"
	"time"
)

// MemoryStore adapts a Cache to the byte-oriented Store interface.
type MemoryStore struct {
	c *Cache
}

// NewMemoryStore wraps c. Values written through the store are copied.
func NewMemoryStore(c *Cache) *MemoryStore {
	return &MemoryStore{c: c}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := s.c.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	b, _ := v.([]byte)
	return append([]byte(nil), b...), nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.c.SetWithTTL(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.c.Invalidate(key)
	return nil
}
