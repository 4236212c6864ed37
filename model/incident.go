package model

import (
	"fmt"
	"time"
)

const (
	IncidentSubmitted = "submitted"
	PriorityMedium    = "medium"
)

// Incident is a citizen-submitted emergency report.
type Incident struct {
	ID           string     `json:"id" bson:"id"`
	IncidentType string     `json:"incidentType" bson:"incidentType"`
	FullName     string     `json:"fullName" bson:"fullName"`
	PhoneNumber  string     `json:"phoneNumber" bson:"phoneNumber"`
	Description  string     `json:"description" bson:"description"`
	Images       []string   `json:"images" bson:"images"`
	Location     *Location  `json:"location,omitempty" bson:"location,omitempty"`
	Address      string     `json:"address" bson:"address"`
	Timestamp    string     `json:"timestamp" bson:"timestamp"`
	Status       string     `json:"status" bson:"status"`
	Priority     string     `json:"priority" bson:"priority"`
	AssignedTo   *string    `json:"assigned_to,omitempty" bson:"assigned_to,omitempty"`
	Notes        *string    `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// IncidentCreate is the body accepted when reporting an incident.
type IncidentCreate struct {
	IncidentType string    `json:"incidentType"`
	FullName     string    `json:"fullName"`
	PhoneNumber  string    `json:"phoneNumber"`
	Description  string    `json:"description"`
	Images       []string  `json:"images"`
	Location     *Location `json:"location"`
	Address      string    `json:"address"`
	Timestamp    string    `json:"timestamp"`
	Status       string    `json:"status"`
	Priority     string    `json:"priority"`
}

// Validate checks required fields.
func (in IncidentCreate) Validate() error {
	switch {
	case in.IncidentType == "":
		return fmt.Errorf("%w: incidentType is required", ErrInvalid)
	case in.FullName == "":
		return fmt.Errorf("%w: fullName is required", ErrInvalid)
	case in.Description == "":
		return fmt.Errorf("%w: description is required", ErrInvalid)
	case in.Timestamp == "":
		return fmt.Errorf("%w: timestamp is required", ErrInvalid)
	}
	return nil
}

// Incident materialises a new record from the create body.
func (in IncidentCreate) Incident(now time.Time) Incident {
	inc := Incident{
		ID:           NewID(),
		IncidentType: in.IncidentType,
		FullName:     in.FullName,
		PhoneNumber:  in.PhoneNumber,
		Description:  in.Description,
		Images:       in.Images,
		Location:     in.Location,
		Address:      in.Address,
		Timestamp:    in.Timestamp,
		Status:       in.Status,
		Priority:     in.Priority,
		CreatedAt:    now,
	}
	if inc.Images == nil {
		inc.Images = []string{}
	}
	if inc.Status == "" {
		inc.Status = IncidentSubmitted
	}
	if inc.Priority == "" {
		inc.Priority = PriorityMedium
	}
	return inc
}

// IncidentUpdate carries the fields responders may change.
type IncidentUpdate struct {
	Status     *string `json:"status"`
	AssignedTo *string `json:"assigned_to"`
	Priority   *string `json:"priority"`
	Notes      *string `json:"notes"`
}

// Empty reports whether no field is set.
func (u IncidentUpdate) Empty() bool {
	return u.Status == nil && u.AssignedTo == nil && u.Priority == nil && u.Notes == nil
}

// Apply copies the set fields onto inc.
func (u IncidentUpdate) Apply(inc *Incident, now time.Time) {
	if u.Status != nil {
		inc.Status = *u.Status
	}
	if u.AssignedTo != nil {
		inc.AssignedTo = u.AssignedTo
	}
	if u.Priority != nil {
		inc.Priority = *u.Priority
	}
	if u.Notes != nil {
		inc.Notes = u.Notes
	}
	inc.UpdatedAt = &now
}
