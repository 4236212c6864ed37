package auth

import (
	"context"
	"net/http"
)

type Middleware struct {
	authenticator Authenticator
	extractor     TokenExtractor
	skipper       MiddlewareSkipper
	errorHandler  MiddlewareErrorHandler
}

type principalKey struct{}

func NewMiddleware(a Authenticator, opts ...MiddlewareOption) (*Middleware, error) {
	cfg, err := newMiddlewareConfig(a, opts...)
	if err != nil {
		return nil, err
	}
	return &Middleware{
		authenticator: cfg.authenticator,
		extractor:     cfg.extractor,
		skipper:       cfg.skipper,
		errorHandler:  cfg.errorHandler,
	}, nil
}

// Handler rejects requests without a valid bearer token and stores the
// resolved Principal in the request context.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	if m == nil {
		panic("auth: middleware is nil")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipper(r) {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := m.extractor(r)
		if err != nil {
			m.errorHandler(w, r, err)
			return
		}

		p, err := m.authenticator.Authenticate(r.Context(), raw)
		if err != nil {
			m.errorHandler(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireAdmin answers 403 unless the principal placed by Handler is an
// admin. It must run after Handler.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			m.errorHandler(w, r, ErrUnauthenticated)
			return
		}
		if !p.User.IsAdmin() {
			m.errorHandler(w, r, ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
