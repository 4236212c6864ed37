package postgres

import (
	"context"

	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/model"
)

func (s *Store) CreateNotificationLog(ctx context.Context, l model.NotificationLog) error {
	const query = `INSERT INTO notification_logs
		(id, title, body, notification_type, sent_by, sent_count, failed_count, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.db.ExecContext(ctx, query, l.ID, l.Title, l.Body, l.NotificationType, l.SentBy,
		l.SentCount, l.FailedCount, l.Timestamp)
	return translateError(err)
}

func (s *Store) ListNotificationLogs(ctx context.Context, limit int) ([]model.NotificationLog, error) {
	const query = `SELECT id, title, body, notification_type, sent_by, sent_count, failed_count, sent_at
		FROM notification_logs ORDER BY sent_at DESC LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, db.ClampLimit(limit))
	if err != nil {
		return nil, translateError(err)
	}
	return collect(rows, func(row rowScanner) (model.NotificationLog, error) {
		var l model.NotificationLog
		err := row.Scan(&l.ID, &l.Title, &l.Body, &l.NotificationType, &l.SentBy, &l.SentCount, &l.FailedCount, &l.Timestamp)
		l.Timestamp = l.Timestamp.UTC()
		return l, err
	})
}

func (s *Store) CreateStatusCheck(ctx context.Context, sc model.StatusCheck) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO status_checks (id, client_name, checked_at) VALUES ($1, $2, $3)`,
		sc.ID, sc.ClientName, sc.Timestamp)
	return translateError(err)
}

func (s *Store) ListStatusChecks(ctx context.Context, limit int) ([]model.StatusCheck, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_name, checked_at FROM status_checks ORDER BY checked_at LIMIT $1`, db.ClampLimit(limit))
	if err != nil {
		return nil, translateError(err)
	}
	return collect(rows, func(row rowScanner) (model.StatusCheck, error) {
		var sc model.StatusCheck
		err := row.Scan(&sc.ID, &sc.ClientName, &sc.Timestamp)
		sc.Timestamp = sc.Timestamp.UTC()
		return sc, err
	})
}
