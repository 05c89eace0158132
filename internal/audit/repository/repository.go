// Package repository defines persistence for audit events.
package repository

import (
	"context"

	"accounts-api/internal/audit/domain"
)

// Repository defines persistence for authentication audit events.
type Repository interface {
	// Create persists the event. The event must have ID set.
	Create(ctx context.Context, e *domain.Event) error
	// ListByAccount returns events for the account, newest first, paginated.
	ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*domain.Event, error)
}
