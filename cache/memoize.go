package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Key derives a cache key of the form "<prefix>:<fingerprint>" where the
// fingerprint is a digest of the JSON encoding of args. Map keys are encoded
// in sorted order so equal arguments always produce the same key. With no
// arguments the prefix itself is the key.
func Key(prefix string, args ...any) (string, error) {
	if len(args) == 0 {
		return prefix, nil
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnhashableKey, err)
	}
	sum := sha256.Sum256(raw)
	return prefix + ":" + hex.EncodeToString(sum[:16]), nil
}

// Memoize wraps fn so results are cached in c under Key(prefix, arg).
// Concurrent calls with equal arguments share one execution of fn.
func Memoize[A, V any](c *Cache, prefix string, fn func(context.Context, A) (V, error)) func(context.Context, A) (V, error) {
	return MemoizeWith(c, func(arg A) (string, error) {
		return Key(prefix, arg)
	}, fn)
}

// MemoizeWith is Memoize with a caller-supplied key derivation.
func MemoizeWith[A, V any](c *Cache, keyFn func(A) (string, error), fn func(context.Context, A) (V, error)) func(context.Context, A) (V, error) {
	return func(ctx context.Context, arg A) (V, error) {
		var zero V
		key, err := keyFn(arg)
		if err != nil {
			return zero, err
		}
		v, err := c.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
			return fn(ctx, arg)
		})
		if err != nil {
			return zero, err
		}
		out, ok := v.(V)
		if !ok {
			return zero, fmt.Errorf("cache: value under %q has type %T", key, v)
		}
		return out, nil
	}
}

// Load is a typed convenience over GetOrLoad for one-off call sites that do
// not need a reusable memoized function.
func Load[V any](ctx context.Context, c *Cache, key string, fn func(context.Context) (V, error)) (V, error) {
	var zero V
	v, err := c.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	out, ok := v.(V)
	if !ok {
		return zero, fmt.Errorf("cache: value under %q has type %T", key, v)
	}
	return out, nil
}
