package model

import (
	"fmt"
	"time"
)

// Notification categories a subscriber can opt out of.
const (
	NotifyIncidents           = "incidents"
	NotifyTyphoons            = "typhoons"
	NotifyEmergencyBroadcasts = "emergency_broadcasts"
	NotifySystemUpdates       = "system_updates"
	NotifyGeneral             = "general"
)

const DefaultNotificationIcon = "/pwa-icons/icon-192x192.png"

// SubscriptionKeys are the browser-provided encryption keys.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh" bson:"p256dh"`
	Auth   string `json:"auth" bson:"auth"`
}

// Preferences selects which notification categories a subscriber receives.
type Preferences struct {
	Incidents           bool `json:"incidents" bson:"incidents"`
	Typhoons            bool `json:"typhoons" bson:"typhoons"`
	EmergencyBroadcasts bool `json:"emergency_broadcasts" bson:"emergency_broadcasts"`
	SystemUpdates       bool `json:"system_updates" bson:"system_updates"`
}

// DefaultPreferences opts into everything.
func DefaultPreferences() Preferences {
	return Preferences{Incidents: true, Typhoons: true, EmergencyBroadcasts: true, SystemUpdates: true}
}

// Allows reports whether kind is enabled. Kinds outside the known categories
// are never delivered.
func (p Preferences) Allows(kind string) bool {
	switch kind {
	case NotifyIncidents:
		return p.Incidents
	case NotifyTyphoons:
		return p.Typhoons
	case NotifyEmergencyBroadcasts:
		return p.EmergencyBroadcasts
	case NotifySystemUpdates:
		return p.SystemUpdates
	default:
		return false
	}
}

// Subscription is a browser push endpoint registration.
type Subscription struct {
	ID             string           `json:"id" bson:"id"`
	UserID         string           `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Endpoint       string           `json:"endpoint" bson:"endpoint"`
	Keys           SubscriptionKeys `json:"keys" bson:"keys"`
	ExpirationTime *int64           `json:"expirationTime,omitempty" bson:"expirationTime,omitempty"`
	Preferences    Preferences      `json:"preferences" bson:"preferences"`
	CreatedAt      time.Time        `json:"created_at" bson:"created_at"`
	Active         bool             `json:"active" bson:"active"`
}

// PushSubscription mirrors the browser PushSubscription JSON.
type PushSubscription struct {
	Endpoint       string           `json:"endpoint"`
	Keys           SubscriptionKeys `json:"keys"`
	ExpirationTime *int64           `json:"expirationTime"`
}

// SubscriptionCreate is the body of a subscribe request.
type SubscriptionCreate struct {
	Subscription PushSubscription `json:"subscription"`
	UserID       string           `json:"user_id"`
	Preferences  *Preferences     `json:"preferences"`
}

// Validate checks required fields.
func (in SubscriptionCreate) Validate() error {
	if in.Subscription.Endpoint == "" {
		return fmt.Errorf("%w: subscription.endpoint is required", ErrInvalid)
	}
	return nil
}

// Materialize builds an active registration from the request.
func (in SubscriptionCreate) Materialize(now time.Time) Subscription {
	prefs := DefaultPreferences()
	if in.Preferences != nil {
		prefs = *in.Preferences
	}
	return Subscription{
		ID:             NewID(),
		UserID:         in.UserID,
		Endpoint:       in.Subscription.Endpoint,
		Keys:           in.Subscription.Keys,
		ExpirationTime: in.Subscription.ExpirationTime,
		Preferences:    prefs,
		CreatedAt:      now,
		Active:         true,
	}
}

// NotificationSend is an admin broadcast request.
type NotificationSend struct {
	Title            string         `json:"title"`
	Body             string         `json:"body"`
	Icon             string         `json:"icon"`
	Data             map[string]any `json:"data"`
	NotificationType string         `json:"notification_type"`
	TargetUsers      []string       `json:"target_users"`
}

// Validate checks required fields and fills defaults.
func (n *NotificationSend) Validate() error {
	if n.Title == "" || n.Body == "" {
		return fmt.Errorf("%w: title and body are required", ErrInvalid)
	}
	if n.Icon == "" {
		n.Icon = DefaultNotificationIcon
	}
	if n.NotificationType == "" {
		n.NotificationType = NotifyGeneral
	}
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	return nil
}

// PreferencesUpdate replaces the preferences of a user's active subscriptions.
type PreferencesUpdate struct {
	UserID string `json:"user_id"`
	Preferences
}

// NotificationLog records one broadcast.
type NotificationLog struct {
	ID               string    `json:"id" bson:"id"`
	Title            string    `json:"title" bson:"title"`
	Body             string    `json:"body" bson:"body"`
	NotificationType string    `json:"notification_type" bson:"notification_type"`
	SentBy           string    `json:"sent_by" bson:"sent_by"`
	SentCount        int       `json:"sent_count" bson:"sent_count"`
	FailedCount      int       `json:"failed_count" bson:"failed_count"`
	Timestamp        time.Time `json:"timestamp" bson:"timestamp"`
}
