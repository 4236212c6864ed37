package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/model"
)

func (s *Store) CreateEvent(ctx context.Context, e model.Event) error {
	data, err := marshalJSON(e.EventData)
	if err != nil {
		return err
	}
	const query = `INSERT INTO analytics_events (id, event_type, event_data, user_id, session_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = s.db.ExecContext(ctx, query, e.ID, e.EventType, data, nullString(e.UserID), nullString(e.SessionID), e.Timestamp)
	return translateError(err)
}

func (s *Store) ListEvents(ctx context.Context, f db.EventFilter) ([]model.Event, error) {
	var c clause
	c.timeRange("occurred_at", f.Since, f.Until)
	query := `SELECT id, event_type, event_data, user_id, session_id, occurred_at FROM analytics_events` +
		c.String() + ` ORDER BY occurred_at DESC, id DESC` + c.page(f.Skip, db.ClampLimit(f.Limit))
	rows, err := s.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, translateError(err)
	}
	return collect(rows, scanEvent)
}

func (s *Store) CountEvents(ctx context.Context, since, until time.Time) (int64, error) {
	var c clause
	c.timeRange("occurred_at", since, until)
	return count(ctx, s.db, `SELECT COUNT(*) FROM analytics_events`+c.String(), c.args...)
}

func (s *Store) DistinctEventUsers(ctx context.Context, since time.Time) (int64, error) {
	const query = `SELECT COUNT(DISTINCT user_id) FROM analytics_events
		WHERE occurred_at >= $1 AND user_id IS NOT NULL AND user_id <> ''`
	return count(ctx, s.db, query, since)
}

func scanEvent(row rowScanner) (model.Event, error) {
	var (
		e         model.Event
		data      []byte
		userID    sql.NullString
		sessionID sql.NullString
	)
	if err := row.Scan(&e.ID, &e.EventType, &data, &userID, &sessionID, &e.Timestamp); err != nil {
		return model.Event{}, err
	}
	if err := unmarshalJSON(data, &e.EventData); err != nil {
		return model.Event{}, err
	}
	e.UserID = userID.String
	e.SessionID = sessionID.String
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}
