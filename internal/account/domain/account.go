// Package domain holds the account entity.
package domain

import (
	"time"

	"accounts-api/internal/security"
)

// Account is a registered user. Password is the stored argon2id hash wrapped
// so it serializes to null; the hasher consumes it only through Verify.
type Account struct {
	ID        string                `json:"id"`
	Email     string                `json:"email"`
	Password  security.RedactedHash `json:"password"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt *time.Time            `json:"updated_at"`
}
