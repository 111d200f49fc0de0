package hooks

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the narrow slice of pgxpool.Pool the session index needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSessionIndex resolves provider-bound sessions through the tokens
// and identities tables.
type PostgresSessionIndex struct {
	db DB
}

func NewPostgresSessionIndex(db DB) *PostgresSessionIndex {
	return &PostgresSessionIndex{db: db}
}

func (s *PostgresSessionIndex) TokenIDsForProvider(ctx context.Context, accountID, providerID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx,
		`SELECT t.id
		   FROM tokens t
		   JOIN identities i ON i.id = t.identity_id
		  WHERE t.account_id = $1 AND i.provider_id = $2 AND t.deleted_at IS NULL`,
		accountID, providerID)
	if err != nil {
		return nil, fmt.Errorf("list tokens for provider %s: %w", providerID, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan token id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens for provider %s: %w", providerID, err)
	}
	return ids, nil
}
