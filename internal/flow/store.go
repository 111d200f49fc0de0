// Package flow owns the durable set of authorized flows: the store that
// cascade handlers prune and the engine that grants and re-validates them.
package flow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/firezone/firezone-sub013/internal/model"
)

// DB is the narrow slice of pgxpool.Pool the flow package needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists flows. Every mutation is a single account-scoped
// statement; deletes are idempotent and report the affected row count so
// replayed cascade events are safe no-ops.
type Store struct {
	db DB
}

func NewStore(db DB) *Store {
	return &Store{db: db}
}

const flowColumns = `id, account_id, client_id, gateway_id, resource_id, policy_id, membership_id, token_id,
	client_remote_ip, client_user_agent, gateway_remote_ip, expires_at, inserted_at`

func (s *Store) Insert(ctx context.Context, f *model.Flow) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO flows (id, account_id, client_id, gateway_id, resource_id, policy_id, membership_id, token_id,
			client_remote_ip, client_user_agent, gateway_remote_ip, expires_at, inserted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		f.ID, f.AccountID, f.ClientID, f.GatewayID, f.ResourceID, f.PolicyID, f.MembershipID, f.TokenID,
		f.ClientRemoteIP, f.ClientUserAgent, f.GatewayRemoteIP, f.ExpiresAt, f.InsertedAt,
	)
	if err != nil {
		return fmt.Errorf("insert flow: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, accountID, id uuid.UUID) (*model.Flow, error) {
	var f model.Flow
	err := s.db.QueryRow(ctx,
		`SELECT `+flowColumns+` FROM flows WHERE account_id = $1 AND id = $2`,
		accountID, id,
	).Scan(&f.ID, &f.AccountID, &f.ClientID, &f.GatewayID, &f.ResourceID, &f.PolicyID, &f.MembershipID, &f.TokenID,
		&f.ClientRemoteIP, &f.ClientUserAgent, &f.GatewayRemoteIP, &f.ExpiresAt, &f.InsertedAt)
	if err != nil {
		return nil, fmt.Errorf("get flow %s: %w", id, err)
	}
	return &f, nil
}

func (s *Store) DeleteForAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM flows WHERE account_id = $1`, accountID)
	if err != nil {
		return 0, fmt.Errorf("delete flows for account %s: %w", accountID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteForPolicy(ctx context.Context, accountID, policyID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM flows WHERE account_id = $1 AND policy_id = $2`, accountID, policyID)
	if err != nil {
		return 0, fmt.Errorf("delete flows for policy %s: %w", policyID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteForResource(ctx context.Context, accountID, resourceID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM flows WHERE account_id = $1 AND resource_id = $2`, accountID, resourceID)
	if err != nil {
		return 0, fmt.Errorf("delete flows for resource %s: %w", resourceID, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteForResourceGatewayGroup prunes flows for one resource routed
// through gateways of one group, the cascade for a removed resource
// connection.
func (s *Store) DeleteForResourceGatewayGroup(ctx context.Context, accountID, resourceID, gatewayGroupID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM flows WHERE account_id = $1 AND resource_id = $2
		   AND gateway_id IN (SELECT id FROM gateways WHERE account_id = $1 AND group_id = $3)`,
		accountID, resourceID, gatewayGroupID)
	if err != nil {
		return 0, fmt.Errorf("delete flows for resource %s through gateway group %s: %w", resourceID, gatewayGroupID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteForClient(ctx context.Context, accountID, clientID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM flows WHERE account_id = $1 AND client_id = $2`, accountID, clientID)
	if err != nil {
		return 0, fmt.Errorf("delete flows for client %s: %w", clientID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteForGateway(ctx context.Context, accountID, gatewayID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM flows WHERE account_id = $1 AND gateway_id = $2`, accountID, gatewayID)
	if err != nil {
		return 0, fmt.Errorf("delete flows for gateway %s: %w", gatewayID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteForGatewayGroup(ctx context.Context, accountID, gatewayGroupID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM flows WHERE account_id = $1
		   AND gateway_id IN (SELECT id FROM gateways WHERE account_id = $1 AND group_id = $2)`,
		accountID, gatewayGroupID)
	if err != nil {
		return 0, fmt.Errorf("delete flows for gateway group %s: %w", gatewayGroupID, err)
	}
	return tag.RowsAffected(), nil
}

func (s *Store) DeleteForToken(ctx context.Context, accountID, tokenID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM flows WHERE account_id = $1 AND token_id = $2`, accountID, tokenID)
	if err != nil {
		return 0, fmt.Errorf("delete flows for token %s: %w", tokenID, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteStale removes the client's flows whose resource is not in the keep
// set. An empty keep set removes every flow for the client; it gets its own
// statement because a nil slice reaches Postgres as NULL and
// NOT (resource_id = ANY(NULL)) evaluates to NULL, matching no rows.
func (s *Store) DeleteStale(ctx context.Context, accountID, clientID uuid.UUID, keepResourceIDs []uuid.UUID) (int64, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if len(keepResourceIDs) == 0 {
		tag, err = s.db.Exec(ctx,
			`DELETE FROM flows WHERE account_id = $1 AND client_id = $2`,
			accountID, clientID)
	} else {
		tag, err = s.db.Exec(ctx,
			`DELETE FROM flows WHERE account_id = $1 AND client_id = $2 AND NOT (resource_id = ANY($3))`,
			accountID, clientID, keepResourceIDs)
	}
	if err != nil {
		return 0, fmt.Errorf("delete stale flows for client %s: %w", clientID, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired is the only unscoped bulk delete; it matches on expiry
// alone so no cross-tenant side effect is possible.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM flows WHERE expires_at IS NOT NULL AND expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired flows: %w", err)
	}
	return tag.RowsAffected(), nil
}
