package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EMERGENCY_AUTH_SECRET", "s3cret")

	v, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Address != ":8001" {
		t.Fatalf("Server.Address = %q", cfg.Server.Address)
	}
	if cfg.Auth.TokenTTL != 30*time.Minute {
		t.Fatalf("Auth.TokenTTL = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Cache.Short.TTL != time.Minute || cfg.Cache.Medium.Capacity != 1000 || cfg.Cache.Long.TTL != 30*time.Minute {
		t.Fatalf("Cache = %+v", cfg.Cache)
	}
	if cfg.Database.Driver != DriverMongo || cfg.Database.Name != "emergency_db" {
		t.Fatalf("Database = %+v", cfg.Database)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("EMERGENCY_AUTH_SECRET", "s3cret")
	t.Setenv("EMERGENCY_DATABASE_DRIVER", "postgres")
	t.Setenv("EMERGENCY_DATABASE_DSN", "postgres://u:p@localhost/db?sslmode=disable")
	t.Setenv("EMERGENCY_CACHE_MEDIUM_TTL", "90s")
	t.Setenv("EMERGENCY_SERVER_CORS_ORIGINS", "http://a.example, http://b.example")

	v, err := New("")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Fatalf("Database.Driver = %q", cfg.Database.Driver)
	}
	if cfg.Cache.Medium.TTL != 90*time.Second {
		t.Fatalf("Cache.Medium.TTL = %v", cfg.Cache.Medium.TTL)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://b.example" {
		t.Fatalf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "emergency.yaml")
	body := []byte("auth:\n  secret: from-file\nserver:\n  address: \":9000\"\ncache:\n  short:\n    capacity: 10\n")
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	v, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.Secret != "from-file" || cfg.Server.Address != ":9000" || cfg.Cache.Short.Capacity != 10 {
		t.Fatalf("Load() = %+v", cfg)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {},
		"unknown driver": {"EMERGENCY_AUTH_SECRET": "x", "EMERGENCY_DATABASE_DRIVER": "sqlite"},
		"zero capacity":  {"EMERGENCY_AUTH_SECRET": "x", "EMERGENCY_CACHE_LONG_CAPACITY": "0"},
		"bad log level":  {"EMERGENCY_AUTH_SECRET": "x", "EMERGENCY_LOG_LEVEL": "loud"},
	}
	for name, env := range cases {
		env := env
		t.Run(name, func(t *testing.T) {
			for k, val := range env {
				t.Setenv(k, val)
			}
			v, err := New("")
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if _, err := Load(v); !errors.Is(err, ErrInvalid) {
				t.Fatalf("Load() error = %v, want ErrInvalid", err)
			}
		})
	}
}
