package events

import (
	"time"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered   EventType = "user_registered"
	EventSuperuserCreated EventType = "superuser_created"
	EventPasswordChanged  EventType = "password_changed"
	EventProfileUpdated   EventType = "profile_updated"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    int64       `json:"user_id"`
	ActorID   int64       `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// AccountCreatedPayload accompanies user_registered and superuser_created.
type AccountCreatedPayload struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// ProfileUpdatedPayload lists the fields a profile update touched.
type ProfileUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// AccountEventTypes lists every event the account service publishes.
func AccountEventTypes() []EventType {
	return []EventType{
		EventUserRegistered,
		EventSuperuserCreated,
		EventPasswordChanged,
		EventProfileUpdated,
	}
}
