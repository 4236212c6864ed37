package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"
	"time"

	"github.com/adeilh/emergency-backend/cache"
)

var (
	ErrJWTInvalidFormat     = errors.New("auth: invalid jwt format")
	ErrJWTInvalidSignature  = errors.New("auth: invalid jwt signature")
	ErrJWTUnsupportedAlgo   = errors.New("auth: unsupported jwt algorithm")
	ErrJWTExpired           = errors.New("auth: jwt expired")
	ErrJWTNotYetValid       = errors.New("auth: jwt not yet valid")
	ErrJWTRevoked           = errors.New("auth: jwt revoked")
	ErrJWTInvalidClaims     = errors.New("auth: invalid jwt claims")
	ErrJWTMissingSigningKey = errors.New("auth: missing signing key")
	ErrJWTInvalidIssuer     = errors.New("auth: invalid jwt issuer")
)

const defaultRevocationPrefix = "jwt:revoked"

type jwtToken struct {
	raw    string
	claims JWTClaims
}

func (t jwtToken) Raw() string { return t.raw }

func (t jwtToken) Claims() JWTClaims { return t.claims }

func (t jwtToken) ExpiresAt() time.Time { return t.claims.ExpiresAt }

type jwtHeader struct {
	Algorithm string `json:"alg"`
	Type      string `json:"typ"`
}

type jwtPayload struct {
	ID        string `json:"jti,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Role      string `json:"role,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
}

// HMACJWTProvider implements TokenProvider using HMAC signing. Revocations
// are kept in a cache.Store until the token would have expired anyway.
type HMACJWTProvider struct {
	secret         []byte
	alg            string
	leeway         time.Duration
	now            func() time.Time
	revocations    cache.Store
	prefix         string
	requiredIssuer string
}

// NewHMACJWTProvider creates an HMAC based JWT provider. The algorithm
// defaults to HS256.
func NewHMACJWTProvider(secret []byte, algorithm string) (*HMACJWTProvider, error) {
	if len(secret) == 0 {
		return nil, ErrJWTMissingSigningKey
	}
	if algorithm == "" {
		algorithm = "HS256"
	}
	if _, err := signingHasher(algorithm); err != nil {
		return nil, err
	}
	return &HMACJWTProvider{
		secret: append([]byte(nil), secret...),
		alg:    algorithm,
		leeway: 30 * time.Second,
		now:    time.Now,
		prefix: defaultRevocationPrefix,
	}, nil
}

// SetRequiredIssuer enforces issuer validation during token parsing.
func (p *HMACJWTProvider) SetRequiredIssuer(issuer string) {
	p.requiredIssuer = issuer
}

// SetLeeway overrides the default expiration leeway used during validation.
func (p *HMACJWTProvider) SetLeeway(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.leeway = d
}

// SetNowFunc allows injecting a deterministic clock (useful for tests).
func (p *HMACJWTProvider) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		fn = time.Now
	}
	p.now = fn
}

// UseRevocationStore enables Revoke by persisting revoked token ids in store.
func (p *HMACJWTProvider) UseRevocationStore(store cache.Store) {
	p.revocations = store
}

func (p *HMACJWTProvider) Issue(ctx context.Context, claims JWTClaims, opts JWTOptions) (JWTToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prepared, err := p.prepareClaims(claims, opts)
	if err != nil {
		return nil, err
	}

	headerSeg, err := encodeSegment(jwtHeader{Algorithm: p.alg, Type: "JWT"})
	if err != nil {
		return nil, err
	}
	payloadSeg, err := encodeSegment(payloadFromClaims(prepared))
	if err != nil {
		return nil, err
	}

	signingInput := headerSeg + "." + payloadSeg
	signatureSeg, err := p.sign(signingInput)
	if err != nil {
		return nil, err
	}

	return &jwtToken{raw: signingInput + "." + signatureSeg, claims: prepared}, nil
}

func (p *HMACJWTProvider) Parse(ctx context.Context, raw string) (JWTToken, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, ErrJWTInvalidFormat
	}

	var header jwtHeader
	if err := decodeSegment(parts[0], &header); err != nil {
		return nil, ErrJWTInvalidFormat
	}
	if header.Algorithm != p.alg {
		return nil, ErrJWTUnsupportedAlgo
	}
	if err := p.verify(parts[0]+"."+parts[1], parts[2]); err != nil {
		return nil, err
	}

	var payload jwtPayload
	if err := decodeSegment(parts[1], &payload); err != nil {
		return nil, ErrJWTInvalidFormat
	}

	claims := claimsFromPayload(payload)
	if err := p.validateClaims(claims); err != nil {
		return nil, err
	}
	if err := p.checkRevoked(ctx, claims.ID); err != nil {
		return nil, err
	}

	return &jwtToken{raw: raw, claims: claims}, nil
}

// Revoke denies token until its expiry. Without a revocation store it is a
// no-op.
func (p *HMACJWTProvider) Revoke(ctx context.Context, token JWTToken) error {
	if token == nil || token.Claims().ID == "" {
		return fmt.Errorf("%w: empty token id", ErrJWTInvalidClaims)
	}
	if p.revocations == nil {
		return nil
	}
	ttl := token.ExpiresAt().Add(p.leeway).Sub(p.now())
	if ttl <= 0 {
		return nil
	}
	return p.revocations.Set(ctx, p.revocationKey(token.Claims().ID), []byte{1}, ttl)
}

func (p *HMACJWTProvider) checkRevoked(ctx context.Context, id string) error {
	if p.revocations == nil {
		return nil
	}
	if id == "" {
		return ErrJWTInvalidClaims
	}
	_, err := p.revocations.Get(ctx, p.revocationKey(id))
	switch {
	case err == nil:
		return ErrJWTRevoked
	case errors.Is(err, cache.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (p *HMACJWTProvider) revocationKey(id string) string {
	return p.prefix + ":" + id
}

func (p *HMACJWTProvider) prepareClaims(claims JWTClaims, opts JWTOptions) (JWTClaims, error) {
	c := claims
	if opts.TTL < 0 {
		return JWTClaims{}, fmt.Errorf("%w: negative ttl", ErrJWTInvalidClaims)
	}
	if c.ID == "" {
		id, err := randomID()
		if err != nil {
			return JWTClaims{}, err
		}
		c.ID = id
	}
	if c.IssuedAt.IsZero() {
		c.IssuedAt = p.now()
	}
	if c.ExpiresAt.IsZero() && opts.TTL > 0 {
		c.ExpiresAt = c.IssuedAt.Add(opts.TTL)
	}
	if c.NotBefore.IsZero() {
		c.NotBefore = c.IssuedAt.Add(-opts.ClockSkew)
	}
	if !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(c.IssuedAt) {
		return JWTClaims{}, fmt.Errorf("%w: expires before issued", ErrJWTInvalidClaims)
	}
	if c.Issuer == "" {
		c.Issuer = opts.Issuer
	}
	return c, nil
}

func (p *HMACJWTProvider) validateClaims(claims JWTClaims) error {
	now := p.now()

	if !claims.ExpiresAt.IsZero() && now.After(claims.ExpiresAt.Add(p.leeway)) {
		return ErrJWTExpired
	}
	if !claims.NotBefore.IsZero() && now.Add(p.leeway).Before(claims.NotBefore) {
		return ErrJWTNotYetValid
	}
	if p.requiredIssuer != "" && claims.Issuer != p.requiredIssuer {
		return ErrJWTInvalidIssuer
	}
	if claims.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrJWTInvalidClaims)
	}
	return nil
}

func (p *HMACJWTProvider) sign(input string) (string, error) {
	hasher, err := signingHasher(p.alg)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hasher, p.secret)
	_, _ = mac.Write([]byte(input))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (p *HMACJWTProvider) verify(input, signature string) error {
	provided, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return ErrJWTInvalidSignature
	}
	expected, err := p.sign(input)
	if err != nil {
		return err
	}
	want, _ := base64.RawURLEncoding.DecodeString(expected)
	if !hmac.Equal(provided, want) {
		return ErrJWTInvalidSignature
	}
	return nil
}

func signingHasher(alg string) (func() hash.Hash, error) {
	switch alg {
	case "HS256":
		return sha256.New, nil
	case "HS384":
		return sha512.New384, nil
	case "HS512":
		return sha512.New, nil
	default:
		return nil, ErrJWTUnsupportedAlgo
	}
}

func payloadFromClaims(claims JWTClaims) jwtPayload {
	return jwtPayload{
		ID:        claims.ID,
		Subject:   claims.Subject,
		Role:      claims.Role,
		Issuer:    claims.Issuer,
		IssuedAt:  unixOrZero(claims.IssuedAt),
		ExpiresAt: unixOrZero(claims.ExpiresAt),
		NotBefore: unixOrZero(claims.NotBefore),
	}
}

func claimsFromPayload(payload jwtPayload) JWTClaims {
	return JWTClaims{
		ID:        payload.ID,
		Subject:   payload.Subject,
		Role:      payload.Role,
		Issuer:    payload.Issuer,
		IssuedAt:  timeFromUnix(payload.IssuedAt),
		ExpiresAt: timeFromUnix(payload.ExpiresAt),
		NotBefore: timeFromUnix(payload.NotBefore),
	}
}

func encodeSegment(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeSegment(segment string, dest any) error {
	data, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeFromUnix(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(v, 0).UTC()
}

func randomID() (string, error) {
	buf := make([]byte, 18)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
