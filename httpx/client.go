package httpx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/adeilh/emergency-backend/auth"
)

// RestClient exposes a minimal subset of resty.Client for customization without importing resty.
type RestClient interface {
	SetHeader(key, value string) RestClient
	SetHeaders(headers map[string]string) RestClient
	SetTimeout(d time.Duration) RestClient
}

type restyAdapter struct{ c *resty.Client }

func (r restyAdapter) SetHeader(key, value string) RestClient {
	r.c.SetHeader(key, value)
	return r
}

func (r restyAdapter) SetHeaders(headers map[string]string) RestClient {
	r.c.SetHeaders(headers)
	return r
}

func (r restyAdapter) SetTimeout(d time.Duration) RestClient {
	r.c.SetTimeout(d)
	return r
}

// APIError is a non-2xx answer from the API. Message holds the server's
// {"error": ...} text, or the raw body when the response carried none.
type APIError struct {
	Status  int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status of an *APIError in err's chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type errorBody struct {
	Error string `json:"error"`
}

// Client talks to the emergency API. After Login it authenticates every
// request with the issued token unless a request sets WithBearer.
type Client struct {
	resty *resty.Client

	mu    sync.RWMutex
	token string
}

func NewClient(opts ...ClientOption) *Client {
	cfg := defaultClientOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	rc := resty.New()
	if cfg.BaseURL != "" {
		rc.SetBaseURL(cfg.BaseURL)
	}
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	if len(cfg.Headers) > 0 {
		rc.SetHeaders(cfg.Headers)
	}
	if cfg.RestyConfig != nil {
		cfg.RestyConfig(restyAdapter{rc})
	}

	return &Client{resty: rc}
}

type RequestOption func(*resty.Request)

// WithQuery sets query parameters on the request.
func WithQuery(params map[string]string) RequestOption {
	return func(r *resty.Request) {
		if len(params) == 0 {
			return
		}
		r.SetQueryParams(params)
	}
}

// WithBearer injects an Authorization header using the provided bearer token.
func WithBearer(token string) RequestOption {
	return func(r *resty.Request) {
		token = strings.TrimSpace(token)
		if token != "" {
			r.SetHeader("Authorization", "Bearer "+token)
		}
	}
}

// Login exchanges credentials for a session and keeps its token for later
// requests.
func (c *Client) Login(ctx context.Context, username, password string) (auth.Session, error) {
	var s auth.Session
	creds := map[string]string{"username": username, "password": password}
	if _, err := c.Post(ctx, "/api/auth/login", creds, &s); err != nil {
		return auth.Session{}, err
	}
	c.mu.Lock()
	c.token = s.AccessToken
	c.mu.Unlock()
	return s, nil
}

// Logout revokes the stored token and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.Post(ctx, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	return nil
}

func (c *Client) Get(ctx context.Context, path string, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodGet, path, nil, result, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body any, result any, opts ...RequestOption) (*resty.Response, error) {
	return c.do(ctx, resty.MethodPost, path, body, result, opts...)
}

func (c *Client) do(ctx context.Context, method, path string, body any, result any, opts ...RequestOption) (*resty.Response, error) {
	var failure errorBody
	req := c.resty.R().SetContext(ctx).SetError(&failure)
	c.mu.RLock()
	if c.token != "" {
		req.SetHeader("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()
	for _, opt := range opts {
		if opt != nil {
			opt(req)
		}
	}
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return resp, err
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode(), Message: failure.Error, Body: resp.Body()}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(resp.String())
		}
		return resp, apiErr
	}
	return resp, nil
}
