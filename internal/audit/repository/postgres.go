package repository

import (
	"context"
	"database/sql"

	"accounts-api/internal/audit/domain"
)

type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository returns an audit event repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create persists the audit event.
func (r *PostgresRepository) Create(ctx context.Context, e *domain.Event) error {
	account := sql.NullString{String: e.AccountID, Valid: e.AccountID != ""}
	ip := sql.NullString{String: e.IP, Valid: e.IP != ""}
	metadata := sql.NullString{String: e.Metadata, Valid: e.Metadata != ""}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_events (id, account, action, ip, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, account, e.Action, ip, metadata, e.CreatedAt)
	return err
}

// ListByAccount returns events for the account, newest first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int32) ([]*domain.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account, action, ip, metadata, created_at
		   FROM auth_events
		  WHERE account = $1
		  ORDER BY created_at DESC
		  LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Event
	for rows.Next() {
		var (
			e        domain.Event
			account  sql.NullString
			ip       sql.NullString
			metadata sql.NullString
		)
		if err := rows.Scan(&e.ID, &account, &e.Action, &ip, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.AccountID = account.String
		e.IP = ip.String
		e.Metadata = metadata.String
		out = append(out, &e)
	}
	return out, rows.Err()
}
