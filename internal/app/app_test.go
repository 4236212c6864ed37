package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/adeilh/emergency-backend/auth"
	"github.com/adeilh/emergency-backend/cache"
	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/internal/config"
	"github.com/adeilh/emergency-backend/internal/logging"
	testmongo "github.com/adeilh/emergency-backend/internal/testutil/mongocontainer"
	"github.com/adeilh/emergency-backend/model"
)

var setupErr error

func TestMain(m *testing.M) {
	setupErr = testmongo.Setup()
	code := m.Run()
	_ = testmongo.Teardown()
	os.Exit(code)
}

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]model.User
}

func (m *memoryUsers) CreateUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Username]; ok {
		return db.ErrConflict
	}
	m.users[u.Username] = u
	return nil
}

func (m *memoryUsers) GetUserByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return model.User{}, db.ErrNotFound
	}
	return u, nil
}

func testConfig() config.Config {
	return config.Config{
		Server:   config.Server{Address: "127.0.0.1:0"},
		Log:      config.Log{Level: "off"},
		Database: config.Database{Driver: config.DriverMongo, DSN: testmongo.URI(), Name: "emergency_app_" + model.NewID()},
		Auth:     config.Auth{Secret: "test-secret", TokenTTL: time.Minute, Issuer: "test"},
		Cache:    cache.DefaultTiersConfig(),
		RateLimit: config.RateLimit{
			RequestsPerMinute: 600,
			Burst:             100,
		},
		Bootstrap: config.Bootstrap{SeedUsers: true},
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.Database{Driver: "sqlite", DSN: "x"})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("OpenStore() error = %v, want ErrInvalid", err)
	}
}

func TestSeedUsersIsIdempotent(t *testing.T) {
	users := &memoryUsers{users: make(map[string]model.User)}
	svc, err := NewAuth(config.Auth{Secret: "s", TokenTTL: time.Minute, Issuer: "test"}, users)
	if err != nil {
		t.Fatalf("NewAuth() error = %v", err)
	}
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := SeedUsers(ctx, svc, logging.Discard()); err != nil {
			t.Fatalf("SeedUsers() error = %v", err)
		}
	}
	if len(users.users) != len(auth.DemoAccounts()) {
		t.Fatalf("seeded %d users, want %d", len(users.users), len(auth.DemoAccounts()))
	}
	if _, err := svc.Login(ctx, "admin", "admin123"); err != nil {
		t.Fatalf("Login(admin) error = %v", err)
	}
}

func TestNewServesHealthAndMetrics(t *testing.T) {
	if setupErr != nil {
		t.Skipf("mongo container unavailable: %v", setupErr)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := New(ctx, testConfig(), WithLogger(logging.Discard()), WithRegistry(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })

	for _, path := range []string{"/api/health", "/metrics", "/api/cache/stats"} {
		rec := httptest.NewRecorder()
		a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("GET %s status = %d, body %s", path, rec.Code, rec.Body.String())
		}
	}

	if _, err := a.Auth().Login(ctx, "testuser", "test123"); err != nil {
		t.Fatalf("Login(testuser) error = %v", err)
	}
}
