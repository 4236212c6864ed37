package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

var (
	ErrPasswordMismatch    = errors.New("auth: password does not match")
	ErrPasswordInvalidHash = errors.New("auth: invalid password hash")
	ErrPasswordTooLong     = errors.New("auth: password too long")
)

const (
	DefaultBcryptCost  = bcrypt.DefaultCost
	DefaultHashWorkers = 4
	// bcrypt ignores input past 72 bytes.
	MaxPasswordLength = 72
)

// BcryptHasher hashes passwords with bcrypt. The number of concurrent hash
// operations is bounded so login bursts cannot starve request handling.
type BcryptHasher struct {
	cost    int
	workers *semaphore.Weighted
}

// HasherOption customises a BcryptHasher.
type HasherOption func(*BcryptHasher)

// WithBcryptCost overrides the work factor.
func WithBcryptCost(cost int) HasherOption {
	return func(h *BcryptHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithHashWorkers bounds concurrent hash and compare operations.
func WithHashWorkers(n int) HasherOption {
	return func(h *BcryptHasher) {
		if n > 0 {
			h.workers = semaphore.NewWeighted(int64(n))
		}
	}
}

func NewBcryptHasher(opts ...HasherOption) *BcryptHasher {
	h := &BcryptHasher{
		cost:    DefaultBcryptCost,
		workers: semaphore.NewWeighted(DefaultHashWorkers),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

var _ PasswordHasher = (*BcryptHasher)(nil)

func (h *BcryptHasher) Hash(ctx context.Context, plain []byte) (string, error) {
	if len(plain) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}
	if err := h.workers.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.workers.Release(1)

	out, err := bcrypt.GenerateFromPassword(plain, h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: bcrypt: %w", err)
	}
	return string(out), nil
}

func (h *BcryptHasher) Compare(ctx context.Context, plain []byte, hashed string) error {
	if err := h.workers.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.workers.Release(1)

	err := bcrypt.CompareHashAndPassword([]byte(hashed), plain)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return fmt.Errorf("%w: %v", ErrPasswordInvalidHash, err)
	}
}
