// Package app assembles the emergency service from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adeilh/emergency-backend/api"
	"github.com/adeilh/emergency-backend/auth"
	"github.com/adeilh/emergency-backend/cache"
	cacheprom "github.com/adeilh/emergency-backend/cache/prom"
	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/db/mongo"
	"github.com/adeilh/emergency-backend/db/sql/postgres"
	"github.com/adeilh/emergency-backend/httpx"
	"github.com/adeilh/emergency-backend/internal/chat"
	"github.com/adeilh/emergency-backend/internal/config"
	"github.com/adeilh/emergency-backend/internal/logging"
	"github.com/adeilh/emergency-backend/internal/metrics"
	"github.com/adeilh/emergency-backend/internal/push"
)

const connectTimeout = 10 * time.Second

// revocationCapacity bounds the logout denylist.
const revocationCapacity = 10000

// App owns every long-lived component of a running server.
type App struct {
	cfg    config.Config
	log    *log.Logger
	store  db.Store
	tiers  *cache.Tiers
	auth   *auth.Service
	server *httpx.Server
}

// Option customises New.
type Option func(*options)

type options struct {
	logger   *log.Logger
	store    db.Store
	registry *prometheus.Registry
}

// WithLogger replaces the logger built from the log config.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStore uses s instead of connecting to the configured database.
func WithStore(s db.Store) Option {
	return func(o *options) { o.store = s }
}

// WithRegistry registers metrics with reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// OpenStore connects to the backend selected by cfg.Driver.
func OpenStore(ctx context.Context, cfg config.Database) (db.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.Connect(ctx,
			postgres.WithDSN(cfg.DSN),
			postgres.WithMaxOpenConns(cfg.MaxOpenConns),
			postgres.WithMaxIdleConns(cfg.MaxIdleConns),
			postgres.WithConnMaxLifetime(cfg.ConnMaxLifetime),
		)
	case config.DriverMongo:
		return mongo.Connect(ctx,
			mongo.WithURI(cfg.DSN),
			mongo.WithDatabase(cfg.Name),
			mongo.WithMaxPoolSize(cfg.MaxOpenConns),
			mongo.WithConnectTimeout(connectTimeout),
		)
	default:
		return nil, fmt.Errorf("%w: unknown database.driver %q", config.ErrInvalid, cfg.Driver)
	}
}

// NewAuth builds the auth service over users. Revoked tokens are kept in an
// in-memory denylist sized for the token lifetime.
func NewAuth(cfg config.Auth, users auth.Users) (*auth.Service, error) {
	provider, err := auth.NewHMACJWTProvider([]byte(cfg.Secret), "")
	if err != nil {
		return nil, err
	}
	if cfg.Issuer != "" {
		provider.SetRequiredIssuer(cfg.Issuer)
	}
	denylist := cache.New(cache.Options{Name: "revoked", Capacity: revocationCapacity, TTL: cfg.TokenTTL})
	provider.UseRevocationStore(cache.NewMemoryStore(denylist))
	return auth.NewService(auth.ServiceConfig{
		Users:    users,
		Hasher:   auth.NewBcryptHasher(),
		Tokens:   provider,
		TokenTTL: cfg.TokenTTL,
		Issuer:   cfg.Issuer,
	})
}

// New connects the store, migrates it and wires the HTTP server.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.New("emergency", cfg.Log.Level, cfg.Log.Format, nil)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
		o.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	logger := o.logger

	store := o.store
	if store == nil {
		var err error
		if store, err = OpenStore(ctx, cfg.Database); err != nil {
			return nil, err
		}
	}
	a, err := build(ctx, cfg, store, logger, o.registry)
	if err != nil {
		if o.store == nil {
			_ = store.Close(context.Background())
		}
		return nil, err
	}
	return a, nil
}

func build(ctx context.Context, cfg config.Config, store db.Store, logger *log.Logger, reg *prometheus.Registry) (*App, error) {
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("app: migrate: %w", err)
	}

	cacheMetrics := cacheprom.New(reg, metrics.Namespace)
	tiers := cache.NewTiers(cfg.Cache, cache.WithMetrics(cacheMetrics.Tier))

	svc, err := NewAuth(cfg.Auth, store)
	if err != nil {
		return nil, err
	}
	if cfg.Bootstrap.SeedUsers {
		if err := SeedUsers(ctx, svc, logger); err != nil {
			return nil, err
		}
	}

	sender := push.New(push.Config{
		PublicKey:  cfg.Push.VAPIDPublicKey,
		PrivateKey: cfg.Push.VAPIDPrivateKey,
		Subject:    cfg.Push.Subject,
	})
	if !push.Enabled(sender) {
		logger.Warnj(log.JSON{"event": "push_disabled", "reason": "vapid keys not configured"})
	}
	assistant := chat.New(chat.Config{
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
	})

	handlers, err := api.New(api.Deps{
		Store:   store,
		Tiers:   tiers,
		Auth:    svc,
		Push:    sender,
		Chat:    assistant,
		Logger:  logger,
		Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})
	if err != nil {
		return nil, err
	}

	cors := httpx.DefaultCORSConfig
	if len(cfg.Server.CORSOrigins) > 0 {
		cors.AllowOrigins = cfg.Server.CORSOrigins
	}
	server := httpx.NewServer(
		httpx.WithAddress(cfg.Server.Address),
		httpx.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		httpx.WithShutdownGrace(cfg.Server.ShutdownTimeout),
		httpx.WithLogger(logger),
		httpx.AppendMiddlewares(
			httpx.RequestLogger(logger),
			httpx.MetricsMiddleware(metrics.NewHTTP(reg)),
			httpx.RateLimitMiddleware(httpx.RateLimitConfig{
				RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
				Burst:             cfg.RateLimit.Burst,
				Skipper:           skipRateLimit,
			}),
			httpx.GzipMiddleware(500),
		),
		httpx.WithCORS(&cors),
	)
	server.RegisterRoutes(handlers.Register)

	return &App{
		cfg:    cfg,
		log:    logger,
		store:  store,
		tiers:  tiers,
		auth:   svc,
		server: server,
	}, nil
}

func skipRateLimit(c httpx.Context) bool {
	switch c.Path() {
	case "/metrics", "/api/health":
		return true
	}
	return false
}

// SeedUsers creates the demo accounts that do not exist yet.
func SeedUsers(ctx context.Context, svc *auth.Service, logger *log.Logger) error {
	for _, r := range auth.DemoAccounts() {
		created, err := svc.EnsureUser(ctx, r)
		if err != nil {
			return fmt.Errorf("app: seed %s: %w", r.Username, err)
		}
		if created {
			logger.Infoj(log.JSON{"event": "user_seeded", "username": r.Username, "role": r.Role})
		}
	}
	return nil
}

// Handler exposes the router, mainly for tests.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Auth returns the auth service.
func (a *App) Auth() *auth.Service { return a.auth }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	a.log.Infoj(log.JSON{"event": "server_start", "address": a.server.Address(), "driver": a.cfg.Database.Driver})
	err := a.server.Start(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	a.log.Infoj(log.JSON{"event": "server_stopped"})
	return nil
}

// Close clears the caches and closes the store.
func (a *App) Close(ctx context.Context) error {
	a.tiers.ClearAll()
	return a.store.Close(ctx)
}
