package httpx

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/time/rate"

	"github.com/adeilh/emergency-backend/auth"
)

// AuthMiddleware bridges a net/http auth.Middleware into echo. The handler
// error is propagated so the server error handler still renders it.
func AuthMiddleware(mw *auth.Middleware) MiddlewareFunc {
	if mw == nil {
		return func(next HandlerFunc) HandlerFunc {
			return func(c Context) error {
				return HTTPError(StatusUnauthorized, "auth middleware missing")
			}
		}
	}
	return bridge(mw.Handler)
}

// AdminMiddleware bridges auth.Middleware.RequireAdmin. It must follow
// AuthMiddleware.
func AdminMiddleware(mw *auth.Middleware) MiddlewareFunc {
	if mw == nil {
		return func(next HandlerFunc) HandlerFunc {
			return func(c Context) error {
				return HTTPError(StatusForbidden, "auth middleware missing")
			}
		}
	}
	return bridge(mw.RequireAdmin)
}

func bridge(wrap func(http.Handler) http.Handler) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			var nextErr error
			downstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				c.SetRequest(r)
				nextErr = next(c)
			})
			wrap(downstream).ServeHTTP(c.Response(), c.Request())
			return nextErr
		}
	}
}

// RequestLogger emits one structured record per request through logger.
func RequestLogger(logger *log.Logger) MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rec := log.JSON{
				"request_id": v.RequestID,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"remote_ip":  v.RemoteIP,
			}
			if v.Error != nil {
				rec["error"] = v.Error.Error()
				logger.Errorj(rec)
				return nil
			}
			logger.Infoj(rec)
			return nil
		},
	})
}

// RequestObserver receives per-request measurements.
type RequestObserver interface {
	Begin()
	End(method, path string, status int, elapsed time.Duration)
}

// MetricsMiddleware reports every request to obs. Paths are route
// templates, not raw URIs, to keep label cardinality bounded.
func MetricsMiddleware(obs RequestObserver) MiddlewareFunc {
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			obs.Begin()
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			obs.End(c.Request().Method, path, c.Response().Status, time.Since(start))
			return nil
		}
	}
}

// RateLimitConfig configures RateLimitMiddleware.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	// IdleTTL drops limiters for clients not seen for this long.
	IdleTTL time.Duration
	Skipper func(Context) bool
	Now     func() time.Time
}

// IPRateLimiter keeps one token bucket per client address.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	lastGC   time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter(cfg RateLimitConfig) *IPRateLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 120
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &IPRateLimiter{
		limiters: make(map[string]*visitor),
		limit:    rate.Limit(float64(cfg.RequestsPerMinute) / 60),
		burst:    cfg.Burst,
		idle:     cfg.IdleTTL,
		now:      cfg.Now,
		lastGC:   cfg.Now(),
	}
}

// Allow consumes a token for ip and reports whether the request may proceed.
func (l *IPRateLimiter) Allow(ip string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > l.idle {
		for k, v := range l.limiters {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.limiters, k)
			}
		}
		l.lastGC = now
	}

	v, ok := l.limiters[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// RateLimitMiddleware answers 429 once a client exhausts its bucket.
func RateLimitMiddleware(cfg RateLimitConfig) MiddlewareFunc {
	limiter := NewIPRateLimiter(cfg)
	retryAfter := strconv.Itoa(int(1/float64(limiter.limit)) + 1)
	return func(next HandlerFunc) HandlerFunc {
		return func(c Context) error {
			if cfg.Skipper != nil && cfg.Skipper(c) {
				return next(c)
			}
			if !limiter.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", retryAfter)
				return HTTPError(StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
