// Package queue defines the user lifecycle events exchanged over RabbitMQ
// along with the publisher used by the API and the audit consumer.
package queue

import "time"

// Event types.
const (
	EventUserRegistered = "user.registered"
	EventUserLoggedIn   = "user.logged_in"
)

// Authentication methods recorded on a UserEvent.
const (
	MethodPassword   = "password"
	MethodExternalID = "external_id"
)

// DefaultQueueName is used when no queue is configured.
const DefaultQueueName = "auth.user_events"

// UserEvent is published after a successful registration or login. It
// carries only the user id; no credential material ever leaves the service.
type UserEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Method     string    `json:"method,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewUserEvent stamps an event with the current UTC time.
func NewUserEvent(typ, userID, method string) UserEvent {
	return UserEvent{Type: typ, UserID: userID, Method: method, OccurredAt: time.Now().UTC()}
}
