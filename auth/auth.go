// Package auth issues and validates bearer tokens, hashes passwords and
// exposes the account workflows used by the API.
package auth

import (
	"context"
	"time"
)

// JWTClaims models the payload embedded inside a signed JWT.
type JWTClaims struct {
	ID        string
	Subject   string
	Role      string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	NotBefore time.Time
}

// JWTOptions captures the knobs available when minting JWTs.
type JWTOptions struct {
	Issuer    string
	TTL       time.Duration
	ClockSkew time.Duration
}

// JWTToken exposes immutable information about a minted JWT.
type JWTToken interface {
	Raw() string
	Claims() JWTClaims
	ExpiresAt() time.Time
}

// TokenProvider issues, validates, and revokes JWTs.
type TokenProvider interface {
	Issue(ctx context.Context, claims JWTClaims, opts JWTOptions) (JWTToken, error)
	Parse(ctx context.Context, raw string) (JWTToken, error)
	Revoke(ctx context.Context, token JWTToken) error
}

// PasswordHasher manages password hashing and verification. Hashes are
// self-describing strings suitable for storage.
type PasswordHasher interface {
	Hash(ctx context.Context, plain []byte) (string, error)
	Compare(ctx context.Context, plain []byte, hash string) error
}
