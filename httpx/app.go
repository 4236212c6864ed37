// Package httpx wraps echo with the server, routing, client and middleware
// conventions shared by the API.
package httpx

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Context represents the context of the current HTTP request.
type Context = echo.Context

// HandlerFunc defines a function to handle HTTP requests.
type HandlerFunc = echo.HandlerFunc

// MiddlewareFunc defines a function to process middleware.
type MiddlewareFunc = echo.MiddlewareFunc

// App is the main application instance for handling HTTP requests.
type App struct{ e *echo.Echo }

// NewApp creates a new App instance.
func NewApp() *App {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	return &App{e: e}
}

// Echo exposes the underlying echo instance.
func (a *App) Echo() *echo.Echo { return a.e }

// ServeHTTP lets an App be used directly as an http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) { a.e.ServeHTTP(w, r) }

// Use attaches middleware to the App instance.
func (a *App) Use(mw ...MiddlewareFunc) { a.e.Use(mw...) }

// Pre attaches middleware that runs before routing.
func (a *App) Pre(mw ...MiddlewareFunc) { a.e.Pre(mw...) }

// Group creates a route group with an optional prefix and middleware stack.
func (a *App) Group(prefix string, mw ...MiddlewareFunc) *Router {
	return NewRouter(a, prefix, mw...)
}

// GET registers a GET route.
func (a *App) GET(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.GET(path, h, mw...)
}

// POST registers a POST route.
func (a *App) POST(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.POST(path, h, mw...)
}

// PUT registers a PUT route.
func (a *App) PUT(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.PUT(path, h, mw...)
}

// DELETE registers a DELETE route.
func (a *App) DELETE(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.DELETE(path, h, mw...)
}

// Any registers a route for every method.
func (a *App) Any(path string, h HandlerFunc, mw ...MiddlewareFunc) {
	a.e.Any(path, h, mw...)
}

// WrapHandler adapts a plain http.Handler such as promhttp.
func WrapHandler(h http.Handler) HandlerFunc { return echo.WrapHandler(h) }

// HTTPError constructs an HTTP error without importing echo in callers.
func HTTPError(code int, message any) error { return echo.NewHTTPError(code, message) }

// RecoverMiddleware returns a middleware that recovers from panics.
func RecoverMiddleware() MiddlewareFunc { return middleware.Recover() }

// RequestIDMiddleware assigns X-Request-ID when the client did not send one.
func RequestIDMiddleware() MiddlewareFunc { return middleware.RequestID() }

// GzipMiddleware compresses responses larger than minLength bytes.
func GzipMiddleware(minLength int) MiddlewareFunc {
	return middleware.GzipWithConfig(middleware.GzipConfig{MinLength: minLength})
}

// CORSMiddleware builds a CORS middleware from the provided config; nil uses defaults.
func CORSMiddleware(cfg *middleware.CORSConfig) MiddlewareFunc {
	if cfg == nil {
		return middleware.CORSWithConfig(middleware.DefaultCORSConfig)
	}
	return middleware.CORSWithConfig(*cfg)
}

// DefaultCORSConfig provides the default CORS configuration.
var DefaultCORSConfig = middleware.DefaultCORSConfig

// BindBody decodes the request body into v, ignoring path and query
// parameters.
func BindBody(c Context, v any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		return HTTPError(StatusBadRequest, "invalid request body")
	}
	return nil
}
