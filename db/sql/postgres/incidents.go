package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/adeilh/emergency-backend/db"
	"github.com/adeilh/emergency-backend/model"
)

const incidentColumns = `id, incident_type, full_name, phone_number, description, images, location,
	address, reported_at, status, priority, assigned_to, notes, created_at, updated_at`

func (s *Store) CreateIncident(ctx context.Context, inc model.Incident) error {
	const query = `INSERT INTO incidents (` + incidentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	images, location, err := encodeIncident(inc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query,
		inc.ID, inc.IncidentType, inc.FullName, inc.PhoneNumber, inc.Description, images, location,
		inc.Address, inc.Timestamp, inc.Status, inc.Priority, nullStringPtr(inc.AssignedTo),
		nullStringPtr(inc.Notes), inc.CreatedAt, nullTime(inc.UpdatedAt),
	)
	return translateError(err)
}

func (s *Store) GetIncident(ctx context.Context, id string) (model.Incident, error) {
	const query = `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	inc, err := scanIncident(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return model.Incident{}, translateError(err)
	}
	return inc, nil
}

func (s *Store) ListIncidents(ctx context.Context, f db.IncidentFilter) ([]model.Incident, error) {
	var c clause
	if f.Status != "" {
		c.add("status = ?", f.Status)
	}
	if f.Priority != "" {
		c.add("priority = ?", f.Priority)
	}
	if f.ReportedBy != "" {
		c.add("full_name = ?", f.ReportedBy)
	}
	c.timeRange("created_at", f.Since, f.Until)
	query := `SELECT ` + incidentColumns + ` FROM incidents` + c.String() + ` ORDER BY created_at DESC, id DESC`
	query += c.page(f.Skip, db.ClampLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, translateError(err)
	}
	return collect(rows, scanIncident)
}

func (s *Store) UpdateIncident(ctx context.Context, inc model.Incident) error {
	const query = `UPDATE incidents SET status = $2, priority = $3, assigned_to = $4, notes = $5, updated_at = $6
		WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, inc.ID, inc.Status, inc.Priority,
		nullStringPtr(inc.AssignedTo), nullStringPtr(inc.Notes), nullTime(inc.UpdatedAt))
	if err != nil {
		return translateError(err)
	}
	return requireAffected(res)
}

func (s *Store) DeleteIncident(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM incidents WHERE id = $1`, id)
	if err != nil {
		return translateError(err)
	}
	return requireAffected(res)
}

func (s *Store) CountIncidents(ctx context.Context, since, until time.Time) (int64, error) {
	var c clause
	c.timeRange("created_at", since, until)
	return count(ctx, s.db, `SELECT COUNT(*) FROM incidents`+c.String(), c.args...)
}

func encodeIncident(inc model.Incident) ([]byte, []byte, error) {
	images := inc.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := marshalJSON(images)
	if err != nil {
		return nil, nil, err
	}
	var locationJSON []byte
	if inc.Location != nil {
		if locationJSON, err = marshalJSON(inc.Location); err != nil {
			return nil, nil, err
		}
	}
	return imagesJSON, locationJSON, nil
}

func scanIncident(row rowScanner) (model.Incident, error) {
	var (
		inc          model.Incident
		imagesJSON   []byte
		locationJSON []byte
		assignedTo   sql.NullString
		notes        sql.NullString
		updatedAt    sql.NullTime
	)
	err := row.Scan(
		&inc.ID, &inc.IncidentType, &inc.FullName, &inc.PhoneNumber, &inc.Description,
		&imagesJSON, &locationJSON, &inc.Address, &inc.Timestamp, &inc.Status, &inc.Priority,
		&assignedTo, &notes, &inc.CreatedAt, &updatedAt,
	)
	if err != nil {
		return model.Incident{}, err
	}
	if err := unmarshalJSON(imagesJSON, &inc.Images); err != nil {
		return model.Incident{}, err
	}
	if len(locationJSON) > 0 {
		inc.Location = &model.Location{}
		if err := unmarshalJSON(locationJSON, inc.Location); err != nil {
			return model.Incident{}, err
		}
	}
	inc.AssignedTo = stringPtr(assignedTo)
	inc.Notes = stringPtr(notes)
	inc.CreatedAt = inc.CreatedAt.UTC()
	inc.UpdatedAt = timePtr(updatedAt)
	return inc, nil
}
