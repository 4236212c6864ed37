package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/model"
)

const subscriptionColumns = `id, user_id, endpoint, keys, expiration_time, preferences, created_at, active`

func (s *Store) UpsertSubscription(ctx context.Context, sub model.Subscription) error {
	keys, err := marshalJSON(sub.Keys)
	if err != nil {
		return err
	}
	prefs, err := marshalJSON(sub.Preferences)
	if err != nil {
		return err
	}
	var expiration sql.NullInt64
	if sub.ExpirationTime != nil {
		expiration = sql.NullInt64{Int64: *sub.ExpirationTime, Valid: true}
	}
	const query = `INSERT INTO push_subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (endpoint) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			keys = EXCLUDED.keys,
			expiration_time = EXCLUDED.expiration_time,
			preferences = EXCLUDED.preferences,
			active = EXCLUDED.active`
	_, err = s.db.ExecContext(ctx, query, sub.ID, nullString(sub.UserID), sub.Endpoint, keys, expiration,
		prefs, sub.CreatedAt, sub.Active)
	return translateError(err)
}

func (s *Store) DeactivateSubscription(ctx context.Context, endpoint string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE push_subscriptions SET active = FALSE WHERE endpoint = $1 AND active`, endpoint)
	if err != nil {
		return translateError(err)
	}
	return requireAffected(res)
}

func (s *Store) ListSubscriptions(ctx context.Context, f db.SubscriptionFilter) ([]model.Subscription, error) {
	var c clause
	if f.ActiveOnly {
		c.conds = append(c.conds, "active")
	}
	if len(f.UserIDs) > 0 {
		c.add("user_id = ANY(?)", pq.Array(f.UserIDs))
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions`+c.String()+` ORDER BY created_at`, c.args...)
	if err != nil {
		return nil, translateError(err)
	}
	return collect(rows, scanSubscription)
}

func (s *Store) ActivePreferences(ctx context.Context, userID string) (model.Preferences, error) {
	const query = `SELECT preferences FROM push_subscriptions WHERE user_id = $1 AND active
		ORDER BY created_at LIMIT 1`
	var raw []byte
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&raw); err != nil {
		return model.Preferences{}, translateError(err)
	}
	prefs := model.DefaultPreferences()
	if err := unmarshalJSON(raw, &prefs); err != nil {
		return model.Preferences{}, err
	}
	return prefs, nil
}

func (s *Store) UpdatePreferences(ctx context.Context, userID string, p model.Preferences) (int64, error) {
	raw, err := marshalJSON(p)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE push_subscriptions SET preferences = $2 WHERE user_id = $1 AND active`, userID, raw)
	if err != nil {
		return 0, translateError(err)
	}
	return res.RowsAffected()
}

func (s *Store) CountActiveSubscriptions(ctx context.Context) (int64, error) {
	return count(ctx, s.db, `SELECT COUNT(*) FROM push_subscriptions WHERE active`)
}

func scanSubscription(row rowScanner) (model.Subscription, error) {
	var (
		sub        model.Subscription
		userID     sql.NullString
		keys       []byte
		expiration sql.NullInt64
		prefs      []byte
	)
	if err := row.Scan(&sub.ID, &userID, &sub.Endpoint, &keys, &expiration, &prefs, &sub.CreatedAt, &sub.Active); err != nil {
		return model.Subscription{}, err
	}
	sub.UserID = userID.String
	if expiration.Valid {
		v := expiration.Int64
		sub.ExpirationTime = &v
	}
	if err := unmarshalJSON(keys, &sub.Keys); err != nil {
		return model.Subscription{}, err
	}
	if err := unmarshalJSON(prefs, &sub.Preferences); err != nil {
		return model.Subscription{}, err
	}
	sub.CreatedAt = sub.CreatedAt.UTC()
	return sub, nil
}
