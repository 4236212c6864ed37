package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/adeilh/emergency-backend/model"
)

const userColumns = `id, username, email, role, hashed_password, created_at`

func (s *Store) CreateUser(ctx context.Context, u model.User) error {
	const query = `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query, u.ID, u.Username, nullString(u.Email), u.Role, u.HashedPassword, u.CreatedAt)
	return translateError(err)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		return model.User{}, translateError(err)
	}
	return u, nil
}

func (s *Store) CountUsers(ctx context.Context, since, until time.Time) (int64, error) {
	var c clause
	c.timeRange("created_at", since, until)
	return count(ctx, s.db, `SELECT COUNT(*) FROM users`+c.String(), c.args...)
}

func (s *Store) ListUsersCreated(ctx context.Context, since, until time.Time) ([]model.User, error) {
	var c clause
	c.timeRange("created_at", since, until)
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users`+c.String()+` ORDER BY created_at`, c.args...)
	if err != nil {
		return nil, translateError(err)
	}
	return collect(rows, scanUser)
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u     model.User
		email sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Username, &email, &u.Role, &u.HashedPassword, &u.CreatedAt); err != nil {
		return model.User{}, err
	}
	u.Email = email.String
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
