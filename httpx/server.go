package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Validator runs before route handlers; return an error to stop the pipeline.
type Validator func(Context) error

type Server struct {
	app      *App
	address  string
	srv      *http.Server
	shutdown time.Duration
	readTO   time.Duration
	writeTO  time.Duration
}

type RouteRegistrar func(*App)

type StartOption func(*Server)

func WithShutdownTimeout(d time.Duration) StartOption {
	return func(s *Server) {
		if d > 0 {
			s.shutdown = d
		}
	}
}

func NewServer(opts ...ServerOption) *Server {
	cfg := defaultServerOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	app := NewApp()
	e := app.e
	e.HTTPErrorHandler = func(err error, c echo.Context) { cfg.ErrorHandler(err, c) }
	if cfg.Logger != nil {
		e.Logger = cfg.Logger
	}
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.Pre(middleware.RemoveTrailingSlash())
	for _, mw := range cfg.Middlewares {
		e.Use(mw)
	}
	if cfg.CORS != nil {
		e.Use(CORSMiddleware(cfg.CORS))
	}
	if len(cfg.Validators) > 0 {
		e.Use(validatorMiddleware(cfg.Validators...))
	}

	return &Server{
		app:      app,
		address:  cfg.Address,
		shutdown: cfg.ShutdownTimeout,
		readTO:   cfg.ReadTimeout,
		writeTO:  cfg.WriteTimeout,
	}
}

func (s *Server) RegisterRoutes(reg RouteRegistrar) {
	if reg != nil {
		reg(s.app)
	}
}

// App returns the application the server dispatches to.
func (s *Server) App() *App { return s.app }

func (s *Server) Handler() http.Handler {
	return s.app.e
}

// Address reports the configured listen address.
func (s *Server) Address() string { return s.address }

// Start serves until ctx is cancelled, then shuts down gracefully. A clean
// shutdown returns nil.
func (s *Server) Start(ctx context.Context, opts ...StartOption) error {
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Start over an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv = &http.Server{
		Handler:      s.app.e,
		ReadTimeout:  s.readTO,
		WriteTimeout: s.writeTO,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// DefaultErrorHandler renders every error as {"error": msg}. Errors that are
// not *echo.HTTPError become a 500 with a generic message.
func DefaultErrorHandler(err error, c echo.Context) {
	code := StatusInternalError
	msg := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		case nil:
			msg = http.StatusText(code)
		default:
			if !c.Response().Committed {
				_ = c.JSON(code, map[string]any{"error": m})
			}
			return
		}
	}
	if c.Response().Committed {
		return
	}
	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, map[string]any{"error": msg})
}

func validatorMiddleware(v ...Validator) MiddlewareFunc {
	copied := append([]Validator(nil), v...)
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			for _, validator := range copied {
				if validator == nil {
					continue
				}
				if err := validator(c); err != nil {
					return err
				}
			}
			return next(c)
		}
	}
}
