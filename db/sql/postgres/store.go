// Package postgres implements db.Store on PostgreSQL through lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/adeilh/emergency-backend/db"
)

// Store persists every resource in PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ db.Store = (*Store)(nil)

// New wraps an existing *sql.DB connection.
func New(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// Connect opens a pool with Open and wraps it.
func Connect(ctx context.Context, opts ...Option) (*Store, error) {
	conn, err := Open(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Migrate(ctx context.Context) error {
	return ApplyMigrations(ctx, s.db, Schema...)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Stats(ctx context.Context) (db.Stats, error) {
	const query = `SELECT pg_database_size(current_database()),
		(SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public')`
	var (
		size   int64
		tables int
	)
	if err := s.db.QueryRowContext(ctx, query).Scan(&size, &tables); err != nil {
		return db.Stats{}, fmt.Errorf("postgres: stats: %w", err)
	}
	return db.Stats{
		Driver:      "postgres",
		StorageMB:   roundMB(size),
		Collections: tables,
	}, nil
}

func (s *Store) Close(context.Context) error {
	return s.db.Close()
}

func roundMB(bytes int64) float64 {
	mb := float64(bytes) / (1024 * 1024)
	return float64(int64(mb*100+0.5)) / 100
}

// translateError maps driver errors onto the db sentinels.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return db.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", db.ErrConflict, pqErr.Constraint)
		case "22P02":
			return db.ErrNotFound
		}
	}
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// clause accumulates WHERE conditions with positional arguments.
type clause struct {
	conds []string
	args  []any
}

func (c *clause) add(cond string, arg any) {
	c.args = append(c.args, arg)
	c.conds = append(c.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(c.args))))
}

func (c *clause) timeRange(column string, since, until time.Time) {
	if !since.IsZero() {
		c.add(column+" >= ?", since)
	}
	if !until.IsZero() {
		c.add(column+" <= ?", until)
	}
}

func (c *clause) String() string {
	if len(c.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.conds, " AND ")
}

// page appends LIMIT/OFFSET placeholders.
func (c *clause) page(skip, limit int) string {
	c.args = append(c.args, limit)
	out := fmt.Sprintf(" LIMIT $%d", len(c.args))
	if skip > 0 {
		c.args = append(c.args, skip)
		out += fmt.Sprintf(" OFFSET $%d", len(c.args))
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	v := nt.Time.UTC()
	return &v
}

func marshalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("postgres: encode: %w", err)
	}
	return raw, nil
}

func unmarshalJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("postgres: decode: %w", err)
	}
	return nil
}

func count(ctx context.Context, q *sql.DB, query string, args ...any) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, translateError(err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func collect[T any](rows interface {
	rowScanner
	Next() bool
	Err() error
	Close() error
}, scan func(rowScanner) (T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError(err)
	}
	return out, nil
}
