// Package db declares the persistence contracts shared by the PostgreSQL and
// MongoDB backends.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/adeilh/emergency-backend/model"
)

var (
	ErrNotFound = errors.New("db: record not found")
	ErrConflict = errors.New("db: record already exists")
)

// DefaultLimit and MaxLimit bound list queries.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// IncidentFilter narrows incident listings. Zero fields are ignored.
type IncidentFilter struct {
	Status     string
	Priority   string
	ReportedBy string
	Since      time.Time
	Until      time.Time
	Skip       int
	Limit      int
}

// TyphoonFilter narrows typhoon listings.
type TyphoonFilter struct {
	Status string
	Skip   int
	Limit  int
}

// EventFilter narrows analytics event listings.
type EventFilter struct {
	Since time.Time
	Until time.Time
	Skip  int
	Limit int
}

// SubscriptionFilter selects push recipients.
type SubscriptionFilter struct {
	ActiveOnly bool
	UserIDs    []string
}

// ClampLimit applies DefaultLimit and MaxLimit to a requested page size.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

type UserStore interface {
	CreateUser(ctx context.Context, u model.User) error
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	CountUsers(ctx context.Context, since, until time.Time) (int64, error)
	ListUsersCreated(ctx context.Context, since, until time.Time) ([]model.User, error)
}

type IncidentStore interface {
	CreateIncident(ctx context.Context, inc model.Incident) error
	GetIncident(ctx context.Context, id string) (model.Incident, error)
	// ListIncidents returns newest first, ties broken by id.
	ListIncidents(ctx context.Context, f IncidentFilter) ([]model.Incident, error)
	UpdateIncident(ctx context.Context, inc model.Incident) error
	DeleteIncident(ctx context.Context, id string) error
	CountIncidents(ctx context.Context, since, until time.Time) (int64, error)
}

type TyphoonStore interface {
	CreateTyphoon(ctx context.Context, t model.Typhoon) error
	GetTyphoon(ctx context.Context, id string) (model.Typhoon, error)
	ListTyphoons(ctx context.Context, f TyphoonFilter) ([]model.Typhoon, error)
	UpdateTyphoon(ctx context.Context, t model.Typhoon) error
	AppendTrackingPoint(ctx context.Context, id string, p model.TrackingPoint, editor string, at time.Time) (model.Typhoon, error)
	DeleteTyphoon(ctx context.Context, id string) error
}

type SubscriptionStore interface {
	// UpsertSubscription inserts s or replaces the subscription sharing its endpoint.
	UpsertSubscription(ctx context.Context, s model.Subscription) error
	DeactivateSubscription(ctx context.Context, endpoint string) error
	ListSubscriptions(ctx context.Context, f SubscriptionFilter) ([]model.Subscription, error)
	// ActivePreferences returns the preferences of the first active
	// subscription held by userID.
	ActivePreferences(ctx context.Context, userID string) (model.Preferences, error)
	UpdatePreferences(ctx context.Context, userID string, p model.Preferences) (int64, error)
	CountActiveSubscriptions(ctx context.Context) (int64, error)
}

type NotificationLogStore interface {
	CreateNotificationLog(ctx context.Context, l model.NotificationLog) error
	ListNotificationLogs(ctx context.Context, limit int) ([]model.NotificationLog, error)
}

type EventStore interface {
	CreateEvent(ctx context.Context, e model.Event) error
	// ListEvents returns newest first, ties broken by id.
	ListEvents(ctx context.Context, f EventFilter) ([]model.Event, error)
	CountEvents(ctx context.Context, since, until time.Time) (int64, error)
	DistinctEventUsers(ctx context.Context, since time.Time) (int64, error)
}

type StatusStore interface {
	CreateStatusCheck(ctx context.Context, s model.StatusCheck) error
	ListStatusChecks(ctx context.Context, limit int) ([]model.StatusCheck, error)
}

// Stats describes backend storage usage.
type Stats struct {
	Driver      string  `json:"driver"`
	StorageMB   float64 `json:"storage_mb"`
	Collections int     `json:"collections"`
}

// Store aggregates every resource store with lifecycle hooks.
type Store interface {
	UserStore
	IncidentStore
	TyphoonStore
	SubscriptionStore
	NotificationLogStore
	EventStore
	StatusStore

	// Migrate creates tables or indexes. It is idempotent.
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Close(ctx context.Context) error
}
