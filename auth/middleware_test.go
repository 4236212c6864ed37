package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/adeilh/emergency-backend/model"
)

type fakeAuthenticator struct {
	principal Principal
	err       error
	raw       string
}

func (f *fakeAuthenticator) Authenticate(_ context.Context, raw string) (Principal, error) {
	f.raw = raw
	return f.principal, f.err
}

func TestNewMiddlewareRequiresAuthenticator(t *testing.T) {
	if _, err := NewMiddleware(nil); err == nil {
		t.Fatalf("expected error when authenticator is nil")
	}
}

func TestMiddlewareInjectsPrincipal(t *testing.T) {
	fake := &fakeAuthenticator{principal: Principal{User: model.User{Username: "alice", Role: model.RoleUser}}}
	mw, err := NewMiddleware(fake)
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer source-token")
	res := httptest.NewRecorder()

	var invoked bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		invoked = true
		p, ok := PrincipalFromContext(r.Context())
		if !ok {
			t.Fatalf("principal missing from context")
		}
		if p.User.Username != "alice" {
			t.Fatalf("principal user = %s", p.User.Username)
		}
	})
	mw.Handler(next).ServeHTTP(res, req)

	if !invoked {
		t.Fatalf("expected next handler to be invoked")
	}
	if fake.raw != "source-token" {
		t.Fatalf("authenticator received %q", fake.raw)
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	mw, err := NewMiddleware(&fakeAuthenticator{})
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}

	res := httptest.NewRecorder()
	mw.Handler(http.NotFoundHandler()).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "Could not validate credentials" {
		t.Fatalf("body = %v", body)
	}
}

func TestMiddlewareRejectsInvalidToken(t *testing.T) {
	mw, err := NewMiddleware(&fakeAuthenticator{err: ErrUnauthenticated})
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	res := httptest.NewRecorder()
	mw.Handler(http.NotFoundHandler()).ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.Code)
	}
}

func TestMiddlewareSkipperShortCircuits(t *testing.T) {
	fake := &fakeAuthenticator{err: errors.New("should not be called")}
	mw, err := NewMiddleware(fake, WithSkipper(func(*http.Request) bool { return true }))
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}

	res := httptest.NewRecorder()
	called := false
	mw.Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })).
		ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Fatalf("expected next handler to run when skipped")
	}
}

func TestRequireAdmin(t *testing.T) {
	mw, err := NewMiddleware(&fakeAuthenticator{})
	if err != nil {
		t.Fatalf("NewMiddleware() error = %v", err)
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	cases := []struct {
		name string
		ctx  context.Context
		want int
	}{
		{"anonymous", context.Background(), http.StatusUnauthorized},
		{"user", WithPrincipal(context.Background(), Principal{User: model.User{Role: model.RoleUser}}), http.StatusForbidden},
		{"admin", WithPrincipal(context.Background(), Principal{User: model.User{Role: model.RoleAdmin}}), http.StatusNoContent},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			res := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(tc.ctx)
			mw.RequireAdmin(ok).ServeHTTP(res, req)
			if res.Code != tc.want {
				t.Fatalf("status = %d, want %d", res.Code, tc.want)
			}
		})
	}
}

func TestBearerTokenExtractor(t *testing.T) {
	extract := BearerTokenExtractor()
	cases := []struct {
		header string
		want   string
		err    error
	}{
		{"", "", ErrTokenNotFound},
		{"Basic abc", "", ErrTokenInvalidInput},
		{"Bearer ", "", ErrTokenInvalidInput},
		{"bearer tok", "tok", nil},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		got, err := extract(req)
		if !errors.Is(err, tc.err) || got != tc.want {
			t.Fatalf("extract(%q) = %q, %v; want %q, %v", tc.header, got, err, tc.want, tc.err)
		}
	}
}
