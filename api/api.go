// Package api registers the HTTP handlers of the emergency service.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adeilh/emergency-backend/auth"
	"github.com/adeilh/emergency-backend/cache"
	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/httpx"
	"github.com/adeilh/emergency-backend/internal/chat"
	"github.com/adeilh/emergency-backend/internal/push"
	"github.com/adeilh/emergency-backend/model"
)

// Cache prefixes. Every memoized read lives under one of these so writes
// can drop the whole resource with Tiers.InvalidatePrefix.
const (
	prefixIncidents = "incidents"
	prefixTyphoons  = "typhoons"
	prefixAnalytics = "analytics"
)

const Version = "1.0.0"

// Deps are the collaborators the handlers need.
type Deps struct {
	Store   db.Store
	Tiers   *cache.Tiers
	Auth    *auth.Service
	Push    push.Sender
	Chat    chat.Completer
	Logger  *log.Logger
	Metrics http.Handler
	Now     func() time.Time
}

// API owns the handlers and their memoized reads.
type API struct {
	store   db.Store
	tiers   *cache.Tiers
	auth    *auth.Service
	push    push.Sender
	chat    chat.Completer
	log     *log.Logger
	metrics http.Handler
	now     func() time.Time
	started time.Time

	requireUser  httpx.MiddlewareFunc
	requireAdmin httpx.MiddlewareFunc

	listIncidents  func(context.Context, db.IncidentFilter) ([]model.Incident, error)
	getIncident    func(context.Context, string) (model.Incident, error)
	listTyphoons   func(context.Context, db.TyphoonFilter) ([]model.Typhoon, error)
	getTyphoon     func(context.Context, string) (model.Typhoon, error)
	dashboard      func(context.Context, int) (Dashboard, error)
	incidentReport func(context.Context, int) (IncidentReport, error)
	userReport     func(context.Context, int) (UserReport, error)
}

func New(d Deps) (*API, error) {
	if d.Store == nil || d.Tiers == nil || d.Auth == nil {
		return nil, errors.New("api: store, tiers and auth are required")
	}
	if d.Push == nil {
		d.Push = push.New(push.Config{})
	}
	if d.Chat == nil {
		d.Chat = chat.New(chat.Config{})
	}
	if d.Logger == nil {
		d.Logger = log.New("api")
	}
	if d.Metrics == nil {
		d.Metrics = promhttp.Handler()
	}
	if d.Now == nil {
		d.Now = model.Now
	}

	mw, err := auth.NewMiddleware(d.Auth)
	if err != nil {
		return nil, err
	}

	a := &API{
		store:        d.Store,
		tiers:        d.Tiers,
		auth:         d.Auth,
		push:         d.Push,
		chat:         d.Chat,
		log:          d.Logger,
		metrics:      d.Metrics,
		now:          d.Now,
		started:      d.Now(),
		requireUser:  httpx.AuthMiddleware(mw),
		requireAdmin: httpx.AdminMiddleware(mw),
	}

	a.listIncidents = cache.Memoize(d.Tiers.Medium, prefixIncidents+":list", d.Store.ListIncidents)
	a.getIncident = cache.Memoize(d.Tiers.Medium, prefixIncidents+":get", d.Store.GetIncident)
	a.listTyphoons = cache.Memoize(d.Tiers.Medium, prefixTyphoons+":list", d.Store.ListTyphoons)
	a.getTyphoon = cache.Memoize(d.Tiers.Medium, prefixTyphoons+":get", d.Store.GetTyphoon)
	a.dashboard = cache.Memoize(d.Tiers.Medium, prefixAnalytics+":dashboard", a.buildDashboard)
	a.incidentReport = cache.Memoize(d.Tiers.Medium, prefixAnalytics+":incidents", a.buildIncidentReport)
	a.userReport = cache.Memoize(d.Tiers.Medium, prefixAnalytics+":users", a.buildUserReport)
	return a, nil
}

// Register mounts every route on app.
func (a *API) Register(app *httpx.App) {
	app.GET("/metrics", httpx.WrapHandler(a.metrics))

	r := app.Group("/api")
	r.GET("", a.hello)
	r.POST("/status", a.createStatusCheck)
	r.GET("/status", a.listStatusChecks)
	r.GET("/health", a.health)
	r.GET("/cache/stats", a.cacheStats)
	r.POST("/cache/clear", a.clearCache, a.requireUser, a.requireAdmin)
	r.POST("/ai-chat", a.aiChat)

	authR := r.Group("/auth")
	authR.POST("/register", a.register)
	authR.POST("/login", a.login)
	authR.GET("/me", a.me, a.requireUser)
	authR.POST("/logout", a.logout, a.requireUser)

	inc := r.Group("/incidents")
	inc.POST("", a.createIncident)
	inc.GET("", a.listIncidentsHandler)
	inc.GET("/user/:name", a.userIncidents)
	inc.GET("/:id", a.getIncidentHandler)
	inc.PUT("/:id", a.updateIncident)
	inc.DELETE("/:id", a.deleteIncident)

	ty := r.Group("/typhoons")
	ty.GET("", a.listTyphoonsHandler)
	ty.GET("/active", a.activeTyphoons)
	ty.GET("/:id", a.getTyphoonHandler)
	admin := ty.Group("", a.requireUser, a.requireAdmin)
	admin.POST("", a.createTyphoon)
	admin.PUT("/:id", a.updateTyphoon)
	admin.PUT("/:id/archive", a.archiveTyphoon)
	admin.POST("/:id/tracking", a.addTrackingPoint)
	admin.DELETE("/:id", a.deleteTyphoon)

	n := r.Group("/notifications")
	n.POST("/subscribe", a.subscribe)
	n.POST("/unsubscribe", a.unsubscribe)
	n.POST("/send", a.sendNotification, a.requireUser, a.requireAdmin)
	n.GET("/preferences/:user_id", a.getPreferences)
	n.PUT("/preferences", a.updatePreferences)
	n.GET("/history", a.notificationHistory, a.requireUser, a.requireAdmin)
	n.GET("/vapid-public-key", a.vapidPublicKey)

	an := r.Group("/analytics")
	an.POST("/track", a.track)
	an.GET("/dashboard", a.dashboardHandler, a.requireUser)
	an.GET("/incidents", a.incidentAnalytics, a.requireUser)
	an.GET("/users", a.userAnalytics, a.requireUser)
	an.GET("/system", a.systemAnalytics, a.requireUser)
	an.GET("/export", a.exportAnalytics, a.requireUser, a.requireAdmin)
	an.GET("/realtime", a.realtime, a.requireUser)
}

// invalidate drops every cached read under the given resource prefixes.
func (a *API) invalidate(prefixes ...string) {
	for _, p := range prefixes {
		n := a.tiers.InvalidatePrefix(p)
		if n > 0 {
			a.log.Debugj(log.JSON{"event": "cache_invalidate", "prefix": p, "removed": n})
		}
	}
}

// fail maps domain and store errors onto HTTP errors. Unexpected errors are
// logged and reported without detail.
func (a *API) fail(c httpx.Context, err error, notFound string) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return httpx.HTTPError(httpx.StatusNotFound, notFound)
	case errors.Is(err, db.ErrConflict):
		return httpx.HTTPError(httpx.StatusConflict, "Resource already exists")
	case errors.Is(err, model.ErrInvalid):
		return httpx.HTTPError(httpx.StatusBadRequest, detail(err, model.ErrInvalid))
	case errors.Is(err, cache.ErrUnhashableKey):
		return httpx.HTTPError(httpx.StatusBadRequest, "invalid query")
	case errors.Is(err, context.DeadlineExceeded):
		return httpx.HTTPError(httpx.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, context.Canceled):
		return httpx.HTTPError(499, "request cancelled")
	}
	a.log.Errorj(log.JSON{
		"event":  "request_failed",
		"method": c.Request().Method,
		"path":   c.Path(),
		"error":  err.Error(),
	})
	return httpx.HTTPError(httpx.StatusInternalError, "Internal server error")
}

// detail strips the sentinel prefix from a wrapped validation error.
func detail(err, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error())
	msg = strings.TrimPrefix(msg, ": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

func queryInt(c httpx.Context, name string, def, min, max int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, httpx.HTTPError(httpx.StatusBadRequest, name+" must be an integer between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
	}
	return n, nil
}

func principal(c httpx.Context) (auth.Principal, bool) {
	return auth.PrincipalFromContext(c.Request().Context())
}

func ok(c httpx.Context, msg string) error {
	return c.JSON(httpx.StatusOK, map[string]string{"message": msg})
}
