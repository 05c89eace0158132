// Package domain holds the authentication audit event.
package domain

import "time"

// Actions recorded by the auth paths.
const (
	ActionLoginSuccess   = "login_success"
	ActionLoginFailure   = "login_failure"
	ActionSessionRevoked = "session_revoked"
)

// Event is one authentication audit record. AccountID is empty for failures
// against unknown emails.
type Event struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account"`
	Action    string    `json:"action"`
	IP        string    `json:"ip,omitempty"`
	Metadata  string    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
