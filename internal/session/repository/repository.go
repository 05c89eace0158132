// Package repository defines persistence for sessions.
package repository

import (
	"context"

	"accounts-api/internal/session/domain"
)

// Repository defines persistence for sessions.
type Repository interface {
	// Create persists a new session row.
	Create(ctx context.Context, s *domain.Session) error
	// GetValid returns the session matching key and csrf whose validity
	// predicate (not invalidated, not expired) holds, or nil if no row matches.
	GetValid(ctx context.Context, key, csrf string) (*domain.Session, error)
	// Invalidate marks the session revoked. Idempotent; the row is kept and
	// filtered out by the validity predicate, never deleted eagerly.
	Invalidate(ctx context.Context, key string) error
}
