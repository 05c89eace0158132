package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"accounts-api/internal/session/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the session row. Exactly one row per successful login.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	identity, err := json.Marshal(s.Identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO sessions (key, csrf, account, identity, expiry, invalidated, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.Key, s.CSRF, s.AccountID, identity, s.Expiry, s.Invalidated, s.CreatedAt)
	return err
}

// GetValid returns the session matching key and csrf that is not invalidated
// and not expired, or nil when no such row exists. Expiry is evaluated by the
// database clock so the predicate is authoritative.
func (r *PostgresRepository) GetValid(ctx context.Context, key, csrf string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT key, csrf, account, identity, expiry, invalidated, created_at, updated_at
		   FROM sessions
		  WHERE key = $1 AND csrf = $2 AND expiry > NOW() AND NOT invalidated`,
		key, csrf)

	var (
		s         domain.Session
		identity  []byte
		updatedAt sql.NullTime
	)
	err := row.Scan(&s.Key, &s.CSRF, &s.AccountID, &identity, &s.Expiry, &s.Invalidated, &s.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(identity, &s.Identity); err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}
	if updatedAt.Valid {
		s.UpdatedAt = &updatedAt.Time
	}
	return &s, nil
}

// Invalidate marks the session revoked. The cached copy, if any, ages out on
// its own TTL; this only flips the authoritative row.
func (r *PostgresRepository) Invalidate(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE sessions SET invalidated = TRUE, updated_at = $2 WHERE key = $1",
		key, time.Now().UTC())
	return err
}
