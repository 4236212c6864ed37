package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/adeilh/emergency-backend/cache"
)

func newProvider(t *testing.T, now func() time.Time) *HMACJWTProvider {
	t.Helper()
	provider, err := NewHMACJWTProvider([]byte("test-secret"), "")
	if err != nil {
		t.Fatalf("NewHMACJWTProvider() error = %v", err)
	}
	if now != nil {
		provider.SetNowFunc(now)
	}
	store := cache.NewMemoryStore(cache.New(cache.Options{Capacity: 100, TTL: time.Hour, Now: now}))
	provider.UseRevocationStore(store)
	return provider
}

func TestHMACJWTProviderIssueParse(t *testing.T) {
	provider := newProvider(t, nil)
	ctx := context.Background()

	token, err := provider.Issue(ctx, JWTClaims{Subject: "admin", Role: "admin"}, JWTOptions{Issuer: "emergency", TTL: time.Minute})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if strings.Count(token.Raw(), ".") != 2 {
		t.Fatalf("Issue() raw = %q, want three segments", token.Raw())
	}

	parsed, err := provider.Parse(ctx, token.Raw())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := parsed.Claims(); got.Subject != "admin" || got.Role != "admin" || got.Issuer != "emergency" {
		t.Fatalf("Parse() claims = %+v", got)
	}
	if parsed.Claims().ID == "" {
		t.Fatalf("Parse() claims missing id")
	}
}

func TestHMACJWTProviderRejectsTampering(t *testing.T) {
	provider := newProvider(t, nil)
	ctx := context.Background()

	token, err := provider.Issue(ctx, JWTClaims{Subject: "user"}, JWTOptions{TTL: time.Minute})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	other, err := NewHMACJWTProvider([]byte("other-secret"), "")
	if err != nil {
		t.Fatalf("NewHMACJWTProvider() error = %v", err)
	}
	if _, err := other.Parse(ctx, token.Raw()); !errors.Is(err, ErrJWTInvalidSignature) {
		t.Fatalf("Parse() error = %v, want ErrJWTInvalidSignature", err)
	}
	if _, err := provider.Parse(ctx, "not-a-token"); !errors.Is(err, ErrJWTInvalidFormat) {
		t.Fatalf("Parse() error = %v, want ErrJWTInvalidFormat", err)
	}
}

func TestHMACJWTProviderExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	provider := newProvider(t, func() time.Time { return now })
	provider.SetLeeway(0)
	ctx := context.Background()

	token, err := provider.Issue(ctx, JWTClaims{Subject: "user"}, JWTOptions{TTL: 30 * time.Minute})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	now = now.Add(29 * time.Minute)
	if _, err := provider.Parse(ctx, token.Raw()); err != nil {
		t.Fatalf("Parse() before expiry error = %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := provider.Parse(ctx, token.Raw()); !errors.Is(err, ErrJWTExpired) {
		t.Fatalf("Parse() error = %v, want ErrJWTExpired", err)
	}
}

func TestHMACJWTProviderRevocation(t *testing.T) {
	provider := newProvider(t, nil)
	ctx := context.Background()

	token, err := provider.Issue(ctx, JWTClaims{Subject: "user"}, JWTOptions{TTL: time.Minute})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if err := provider.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if _, err := provider.Parse(ctx, token.Raw()); !errors.Is(err, ErrJWTRevoked) {
		t.Fatalf("Parse() error = %v, want ErrJWTRevoked", err)
	}

	fresh, err := provider.Issue(ctx, JWTClaims{Subject: "user"}, JWTOptions{TTL: time.Minute})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := provider.Parse(ctx, fresh.Raw()); err != nil {
		t.Fatalf("Parse() fresh token error = %v", err)
	}
}

func TestHMACJWTProviderRequiresSubject(t *testing.T) {
	provider := newProvider(t, nil)
	ctx := context.Background()

	token, err := provider.Issue(ctx, JWTClaims{}, JWTOptions{TTL: time.Minute})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if _, err := provider.Parse(ctx, token.Raw()); !errors.Is(err, ErrJWTInvalidClaims) {
		t.Fatalf("Parse() error = %v, want ErrJWTInvalidClaims", err)
	}
}

func TestNewHMACJWTProviderValidation(t *testing.T) {
	if _, err := NewHMACJWTProvider(nil, ""); !errors.Is(err, ErrJWTMissingSigningKey) {
		t.Fatalf("NewHMACJWTProvider() error = %v, want ErrJWTMissingSigningKey", err)
	}
	if _, err := NewHMACJWTProvider([]byte("k"), "RS256"); !errors.Is(err, ErrJWTUnsupportedAlgo) {
		t.Fatalf("NewHMACJWTProvider() error = %v, want ErrJWTUnsupportedAlgo", err)
	}
}
