package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema creates every table and index used by Store. Statements are
// idempotent so Migrate can run on every start.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id              TEXT PRIMARY KEY,
		username        TEXT NOT NULL UNIQUE,
		email           TEXT,
		role            TEXT NOT NULL DEFAULT 'user',
		hashed_password TEXT NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS users_created_at_idx ON users (created_at)`,
	`CREATE TABLE IF NOT EXISTS incidents (
		id            TEXT PRIMARY KEY,
		incident_type TEXT NOT NULL,
		full_name     TEXT NOT NULL,
		phone_number  TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL,
		images        JSONB NOT NULL DEFAULT '[]',
		location      JSONB,
		address       TEXT NOT NULL DEFAULT '',
		reported_at   TEXT NOT NULL,
		status        TEXT NOT NULL,
		priority      TEXT NOT NULL,
		assigned_to   TEXT,
		notes         TEXT,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS incidents_status_idx ON incidents (status)`,
	`CREATE INDEX IF NOT EXISTS incidents_priority_idx ON incidents (priority)`,
	`CREATE INDEX IF NOT EXISTS incidents_full_name_idx ON incidents (full_name)`,
	`CREATE INDEX IF NOT EXISTS incidents_created_at_idx ON incidents (created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS incidents_status_priority_idx ON incidents (status, priority)`,
	`CREATE TABLE IF NOT EXISTS typhoons (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		status     TEXT NOT NULL,
		document   JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS typhoons_status_created_idx ON typhoons (status, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS push_subscriptions (
		id              TEXT PRIMARY KEY,
		user_id         TEXT,
		endpoint        TEXT NOT NULL UNIQUE,
		keys            JSONB NOT NULL,
		expiration_time BIGINT,
		preferences     JSONB NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL,
		active          BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE INDEX IF NOT EXISTS push_subscriptions_user_idx ON push_subscriptions (user_id, active)`,
	`CREATE TABLE IF NOT EXISTS notification_logs (
		id                TEXT PRIMARY KEY,
		title             TEXT NOT NULL,
		body              TEXT NOT NULL,
		notification_type TEXT NOT NULL,
		sent_by           TEXT NOT NULL,
		sent_count        INTEGER NOT NULL,
		failed_count      INTEGER NOT NULL,
		sent_at           TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS notification_logs_sent_at_idx ON notification_logs (sent_at DESC)`,
	`CREATE TABLE IF NOT EXISTS analytics_events (
		id          TEXT PRIMARY KEY,
		event_type  TEXT NOT NULL,
		event_data  JSONB NOT NULL DEFAULT '{}',
		user_id     TEXT,
		session_id  TEXT,
		occurred_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS analytics_events_occurred_at_idx ON analytics_events (occurred_at)`,
	`CREATE TABLE IF NOT EXISTS status_checks (
		id          TEXT PRIMARY KEY,
		client_name TEXT NOT NULL,
		checked_at  TIMESTAMPTZ NOT NULL
	)`,
}

// ApplyMigrations executes the provided SQL statements in order within the given context.
func ApplyMigrations(ctx context.Context, db *sql.DB, statements ...string) error {
	if db == nil {
		return fmt.Errorf("postgres: db is nil")
	}
	for _, stmt := range statements {
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
