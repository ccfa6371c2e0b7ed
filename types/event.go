package types

import "time"

// Account event types published to the message queue.
const (
	EventUserRegistered = "user.registered"
	EventUserVerified   = "user.verified"
	EventProfileCreated = "profile.created"
	EventProfileUpdated = "profile.updated"
)

// AccountEvent is the JSON payload describing an account lifecycle change.
type AccountEvent struct {
	// ID uniquely identifies the event for consumers that deduplicate.
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	UserID   int       `json:"user_id"`
	UserCode string    `json:"user_code,omitempty"`
	Email    string    `json:"email"`
	At       time.Time `json:"at"`
}
