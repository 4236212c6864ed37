package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/model"
)

// Typhoons keep their nested bulletin in a JSONB document; the indexed
// columns duplicate the fields used for filtering and ordering.

func (s *Store) CreateTyphoon(ctx context.Context, t model.Typhoon) error {
	doc, err := marshalJSON(t)
	if err != nil {
		return err
	}
	const query = `INSERT INTO typhoons (id, name, status, document, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = s.db.ExecContext(ctx, query, t.ID, t.Name, t.Status, doc, t.CreatedAt, nullTime(t.UpdatedAt))
	return translateError(err)
}

func (s *Store) GetTyphoon(ctx context.Context, id string) (model.Typhoon, error) {
	t, err := scanTyphoon(s.db.QueryRowContext(ctx, `SELECT document FROM typhoons WHERE id = $1`, id))
	if err != nil {
		return model.Typhoon{}, translateError(err)
	}
	return t, nil
}

func (s *Store) ListTyphoons(ctx context.Context, f db.TyphoonFilter) ([]model.Typhoon, error) {
	var c clause
	if f.Status != "" {
		c.add("status = ?", f.Status)
	}
	query := `SELECT document FROM typhoons` + c.String() + ` ORDER BY created_at DESC`
	query += c.page(f.Skip, db.ClampLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, translateError(err)
	}
	return collect(rows, scanTyphoon)
}

func (s *Store) UpdateTyphoon(ctx context.Context, t model.Typhoon) error {
	return updateTyphoon(ctx, s.db, t)
}

func (s *Store) AppendTrackingPoint(ctx context.Context, id string, p model.TrackingPoint, editor string, at time.Time) (model.Typhoon, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Typhoon{}, fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := scanTyphoon(tx.QueryRowContext(ctx, `SELECT document FROM typhoons WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return model.Typhoon{}, translateError(err)
	}
	t.TrackingPath = append(t.TrackingPath, p)
	t.UpdatedAt = &at
	t.UpdatedBy = editor
	if err := updateTyphoon(ctx, tx, t); err != nil {
		return model.Typhoon{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Typhoon{}, fmt.Errorf("postgres: commit: %w", err)
	}
	return t, nil
}

func (s *Store) DeleteTyphoon(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM typhoons WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	return requireAffected(res)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateTyphoon(ctx context.Context, ex execer, t model.Typhoon) error {
	doc, err := marshalJSON(t)
	if err != nil {
		return err
	}
	const query = `UPDATE typhoons SET name = $2, status = $3, document = $4, updated_at = $5 WHERE id = $1`
	res, err := ex.ExecContext(ctx, query, t.ID, t.Name, t.Status, doc, nullTime(t.UpdatedAt))
	if err != nil {
		return translateError(err)
	}
	return requireAffected(res)
}

func scanTyphoon(row rowScanner) (model.Typhoon, error) {
	var (
		raw []byte
		t   model.Typhoon
	)
	if err := row.Scan(&raw); err != nil {
		return model.Typhoon{}, err
	}
	if err := unmarshalJSON(raw, &t); err != nil {
		return model.Typhoon{}, err
	}
	return t, nil
}
