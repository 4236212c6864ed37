package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrTokenNotFound     = errors.New("auth: token not found")
	ErrTokenInvalidInput = errors.New("auth: invalid token source")
)

// Authenticator resolves a raw bearer token to its principal.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (Principal, error)
}

type TokenExtractor func(*http.Request) (string, error)

type MiddlewareSkipper func(*http.Request) bool

type MiddlewareErrorHandler func(http.ResponseWriter, *http.Request, error)

type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	authenticator Authenticator
	extractor     TokenExtractor
	skipper       MiddlewareSkipper
	errorHandler  MiddlewareErrorHandler
}

func newMiddlewareConfig(a Authenticator, opts ...MiddlewareOption) (middlewareConfig, error) {
	if a == nil {
		return middlewareConfig{}, errors.New("auth: middleware requires an authenticator")
	}
	cfg := middlewareConfig{
		authenticator: a,
		extractor:     BearerTokenExtractor(),
		skipper:       defaultSkipper,
		errorHandler:  WriteError,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg, nil
}

func WithTokenExtractor(extractor TokenExtractor) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if extractor != nil {
			cfg.extractor = extractor
		}
	}
}

func WithSkipper(skipper MiddlewareSkipper) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if skipper != nil {
			cfg.skipper = skipper
		}
	}
}

func WithErrorHandler(handler MiddlewareErrorHandler) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if handler != nil {
			cfg.errorHandler = handler
		}
	}
}

func BearerTokenExtractor() TokenExtractor {
	return func(r *http.Request) (string, error) {
		header := r.Header.Get("Authorization")
		if header == "" {
			return "", ErrTokenNotFound
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", ErrTokenInvalidInput
		}
		token := strings.TrimSpace(parts[1])
		if token == "" {
			return "", ErrTokenInvalidInput
		}
		return token, nil
	}
}

func defaultSkipper(*http.Request) bool { return false }

// WriteError renders an authentication failure as {"error": msg}.
func WriteError(w http.ResponseWriter, _ *http.Request, err error) {
	status := http.StatusUnauthorized
	msg := "Could not validate credentials"
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		msg = "request timed out"
	case errors.Is(err, ErrForbidden):
		status = http.StatusForbidden
		msg = "Admin privileges required"
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
