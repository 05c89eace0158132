// Package service implements account CRUD on top of the account repository.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"accounts-api/internal/account/domain"
	"accounts-api/internal/account/repository"
	"accounts-api/internal/security"
)

// Sentinel errors; the HTTP layer maps them to status codes.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidEmail           = errors.New("invalid email")
	ErrNotFound               = errors.New("account not found")
	// ErrNotOwner is returned when a session tries to modify an account other
	// than its own. Surfaced as unauthorized, same as a credential failure.
	ErrNotOwner = errors.New("session does not own the account")
)

const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`

var emailPattern = regexp.MustCompile(simpleEmail)

// UpdateInput carries the mutable account fields; nil means "leave unchanged".
type UpdateInput struct {
	Email *string
}

// Service implements account CRUD. Mutations other than Create require the
// caller to prove ownership via the resolved session's account id.
type Service struct {
	repo    repository.Repository
	hasher  *security.Hasher
	nowTime func() time.Time // injectable for testing
}

// NewService returns an account Service with the given dependencies.
func NewService(repo repository.Repository, hasher *security.Hasher) (*Service, error) {
	if repo == nil {
		return nil, errors.New("account repo is required")
	}
	if hasher == nil {
		return nil, errors.New("hasher is required")
	}
	return &Service{
		repo:    repo,
		hasher:  hasher,
		nowTime: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Create registers a new account with a hashed password. Open to anonymous
// callers; this is the registration path.
func (s *Service) Create(ctx context.Context, email, password string) (*domain.Account, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	existing, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	account := &domain.Account{
		ID:        uuid.New().String(),
		Email:     email,
		Password:  security.NewRedactedHash(hash),
		CreatedAt: s.nowTime(),
	}
	if err := s.repo.Create(ctx, account, hash); err != nil {
		return nil, fmt.Errorf("persist account: %w", err)
	}
	return account, nil
}

// Get returns the account with id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	if account == nil {
		return nil, ErrNotFound
	}
	return account, nil
}

// List returns all accounts. The HTTP layer gates this behind a resolved session.
func (s *Service) List(ctx context.Context) ([]*domain.Account, error) {
	return s.repo.List(ctx)
}

// Update applies input to the account with id. callerAccountID must match id;
// a session may only modify its own account.
func (s *Service) Update(ctx context.Context, callerAccountID, id string, input UpdateInput) (*domain.Account, error) {
	if callerAccountID != id {
		return nil, ErrNotOwner
	}
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	if account == nil {
		return nil, ErrNotFound
	}
	if input.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*input.Email))
		if !emailPattern.MatchString(email) {
			return nil, ErrInvalidEmail
		}
		if err := s.repo.UpdateEmail(ctx, id, email); err != nil {
			return nil, fmt.Errorf("update account: %w", err)
		}
	}
	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("account lookup: %w", err)
	}
	if updated == nil {
		// Row vanished between the update and the re-read.
		return nil, ErrNotFound
	}
	return updated, nil
}

// Delete removes the account with id. callerAccountID must match id.
func (s *Service) Delete(ctx context.Context, callerAccountID, id string) error {
	if callerAccountID != id {
		return ErrNotOwner
	}
	account, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("account lookup: %w", err)
	}
	if account == nil {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}
