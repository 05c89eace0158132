// Package repository defines persistence for accounts.
package repository

import (
	"context"

	"accounts-api/internal/account/domain"
)

// Repository defines persistence for accounts.
type Repository interface {
	// GetByEmail returns the account with the given email, or nil if absent.
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	// GetByID returns the account for id, or nil if absent.
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	// List returns all accounts.
	List(ctx context.Context) ([]*domain.Account, error)
	// Create persists a new account. The password hash is passed separately
	// because the redacted wrapper in domain.Account cannot be read back.
	Create(ctx context.Context, a *domain.Account, passwordHash string) error
	// UpdateEmail sets a new email on the account and bumps updated_at.
	UpdateEmail(ctx context.Context, id, email string) error
	// Delete removes the account; sessions cascade in the schema.
	Delete(ctx context.Context, id string) error
}
