// Package config loads runtime settings from defaults, an optional YAML file
// and EMERGENCY_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/adeilh/emergency-backend/cache"
)

const EnvPrefix = "EMERGENCY"

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

var ErrInvalid = errors.New("config: invalid configuration")

type Server struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

type Log struct {
	Level  string
	Format string
}

type Database struct {
	Driver          string
	DSN             string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type Auth struct {
	Secret   string
	TokenTTL time.Duration
	Issuer   string
}

type Push struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
}

type AI struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

type RateLimit struct {
	RequestsPerMinute int
	Burst             int
}

type Bootstrap struct {
	SeedUsers bool
}

// Config is the fully resolved application configuration.
type Config struct {
	Server    Server
	Log       Log
	Database  Database
	Auth      Auth
	Cache     cache.TiersConfig
	Push      Push
	AI        AI
	RateLimit RateLimit
	Bootstrap Bootstrap
}

// SetDefaults registers every key with its default so env overrides resolve
// even when no config file is present.
func SetDefaults(v *viper.Viper) {
	tiers := cache.DefaultTiersConfig()

	v.SetDefault("server.address", ":8001")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.driver", DriverMongo)
	v.SetDefault("database.dsn", "mongodb://localhost:27017")
	v.SetDefault("database.name", "emergency_db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.token_ttl", 30*time.Minute)
	v.SetDefault("auth.issuer", "emergency-backend")
	v.SetDefault("cache.short.capacity", tiers.Short.Capacity)
	v.SetDefault("cache.short.ttl", tiers.Short.TTL)
	v.SetDefault("cache.medium.capacity", tiers.Medium.Capacity)
	v.SetDefault("cache.medium.ttl", tiers.Medium.TTL)
	v.SetDefault("cache.long.capacity", tiers.Long.Capacity)
	v.SetDefault("cache.long.ttl", tiers.Long.TTL)
	v.SetDefault("push.vapid_public_key", "")
	v.SetDefault("push.vapid_private_key", "")
	v.SetDefault("push.subject", "mailto:admin@emergency.com")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "gpt-3.5-turbo")
	v.SetDefault("ai.max_tokens", 500)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ratelimit.requests_per_minute", 120)
	v.SetDefault("ratelimit.burst", 60)
	v.SetDefault("bootstrap.seed_users", false)
}

// New returns a viper instance with defaults and environment binding set up.
// file may be empty.
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}
	return v, nil
}

// Load resolves and validates a Config from v.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Server: Server{
			Address:         v.GetString("server.address"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			CORSOrigins:     stringList(v, "server.cors_origins"),
		},
		Log: Log{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Database: Database{
			Driver:          strings.ToLower(v.GetString("database.driver")),
			DSN:             v.GetString("database.dsn"),
			Name:            v.GetString("database.name"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Auth: Auth{
			Secret:   v.GetString("auth.secret"),
			TokenTTL: v.GetDuration("auth.token_ttl"),
			Issuer:   v.GetString("auth.issuer"),
		},
		Cache: cache.TiersConfig{
			Short:  cache.TierConfig{Capacity: v.GetInt("cache.short.capacity"), TTL: v.GetDuration("cache.short.ttl")},
			Medium: cache.TierConfig{Capacity: v.GetInt("cache.medium.capacity"), TTL: v.GetDuration("cache.medium.ttl")},
			Long:   cache.TierConfig{Capacity: v.GetInt("cache.long.capacity"), TTL: v.GetDuration("cache.long.ttl")},
		},
		Push: Push{
			VAPIDPublicKey:  v.GetString("push.vapid_public_key"),
			VAPIDPrivateKey: v.GetString("push.vapid_private_key"),
			Subject:         v.GetString("push.subject"),
		},
		AI: AI{
			APIKey:      v.GetString("ai.api_key"),
			BaseURL:     v.GetString("ai.base_url"),
			Model:       v.GetString("ai.model"),
			MaxTokens:   v.GetInt64("ai.max_tokens"),
			Temperature: v.GetFloat64("ai.temperature"),
		},
		RateLimit: RateLimit{
			RequestsPerMinute: v.GetInt("ratelimit.requests_per_minute"),
			Burst:             v.GetInt("ratelimit.burst"),
		},
		Bootstrap: Bootstrap{SeedUsers: v.GetBool("bootstrap.seed_users")},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMongo:
	default:
		return fmt.Errorf("%w: unknown database.driver %q", ErrInvalid, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required", ErrInvalid)
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("%w: auth.secret is required", ErrInvalid)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("%w: auth.token_ttl must be positive", ErrInvalid)
	}
	for name, tier := range map[string]cache.TierConfig{"short": c.Cache.Short, "medium": c.Cache.Medium, "long": c.Cache.Long} {
		if tier.Capacity <= 0 || tier.TTL <= 0 {
			return fmt.Errorf("%w: cache.%s needs positive capacity and ttl", ErrInvalid, name)
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("%w: unknown log.level %q", ErrInvalid, c.Log.Level)
	}
	return nil
}

// stringList accepts both YAML lists and comma separated env values.
func stringList(v *viper.Viper, key string) []string {
	if raw, ok := v.Get(key).(string); ok {
		return splitList(raw)
	}
	return v.GetStringSlice(key)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
