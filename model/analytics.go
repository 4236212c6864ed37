package model

import (
	"fmt"
	"time"
)

const EventPageView = "page_view"

// Event is a client analytics event.
type Event struct {
	ID        string         `json:"id" bson:"id"`
	EventType string         `json:"event_type" bson:"event_type"`
	EventData map[string]any `json:"event_data" bson:"event_data"`
	UserID    string         `json:"user_id,omitempty" bson:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty" bson:"session_id,omitempty"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
}

// EventCreate is the body of a track request.
type EventCreate struct {
	EventType string         `json:"event_type"`
	EventData map[string]any `json:"event_data"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
}

// Validate checks required fields.
func (in EventCreate) Validate() error {
	if in.EventType == "" {
		return fmt.Errorf("%w: event_type is required", ErrInvalid)
	}
	return nil
}

// Event materialises a new event.
func (in EventCreate) Event(now time.Time) Event {
	data := in.EventData
	if data == nil {
		data = map[string]any{}
	}
	return Event{
		ID:        NewID(),
		EventType: in.EventType,
		EventData: data,
		UserID:    in.UserID,
		SessionID: in.SessionID,
		Timestamp: now,
	}
}

// StatusCheck is a client heartbeat record.
type StatusCheck struct {
	ID         string    `json:"id" bson:"id"`
	ClientName string    `json:"client_name" bson:"client_name"`
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
}
