package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/firezone/firezone-sub013/internal/model"
	"github.com/firezone/firezone-sub013/internal/policy"
)

// ErrNotFound covers every authorization failure that must not reveal
// whether a resource or a denying policy exists: unknown resource, deleted
// resource, resource in another account, or no conforming policy.
var ErrNotFound = errors.New("not found")

// UnauthorizedError is returned when the subject lacks a permission. It
// names the missing permission for observability; callers must not expose
// it to end users.
type UnauthorizedError struct {
	MissingPermission string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("missing permission %q", e.MissingPermission)
}

// Engine grants, re-validates and reconciles flows. It is the only
// component that inserts flow rows; removal happens here and in the
// cascade handlers, always through the Store.
type Engine struct {
	db     DB
	store  *Store
	logger zerolog.Logger
}

func NewEngine(db DB, store *Store, logger zerolog.Logger) *Engine {
	return &Engine{
		db:     db,
		store:  store,
		logger: logger.With().Str("component", "flow-engine").Logger(),
	}
}

// candidate is a policy joined with the membership that makes it apply to
// the subject's actor.
type candidate struct {
	policy       model.Policy
	membershipID uuid.UUID
}

// Authorize grants the client a flow to the resource through the gateway
// if any enabled policy for one of the subject's groups conforms to the
// client's current context. The first conforming policy wins; candidate
// order is not guaranteed.
func (e *Engine) Authorize(ctx context.Context, client *model.Client, gateway *model.Gateway, resourceID uuid.UUID, subject *Subject) (*model.Flow, error) {
	if !subject.HasPermission(PermissionCreateFlows) {
		return nil, &UnauthorizedError{MissingPermission: PermissionCreateFlows}
	}

	// A caller mixing accounts is a bug in the connection layer, not a
	// condition to report to the client.
	if client.AccountID != subject.AccountID || gateway.AccountID != subject.AccountID {
		panic(fmt.Sprintf("cross-account authorize: client=%s gateway=%s subject=%s",
			client.AccountID, gateway.AccountID, subject.AccountID))
	}

	// A client row belonging to another actor in the same account is
	// reachable from the API, so it is masked the same way as an unknown
	// resource rather than treated as a programming error.
	if client.ActorID != subject.ActorID {
		return nil, ErrNotFound
	}

	if err := e.resolveResource(ctx, subject.AccountID, resourceID); err != nil {
		return nil, err
	}

	chosen, expiresAt, err := e.findConformingPolicy(ctx, client, resourceID, subject.ProviderID, time.Now())
	if err != nil {
		return nil, err
	}

	f := &model.Flow{
		ID:              uuid.New(),
		AccountID:       subject.AccountID,
		ClientID:        client.ID,
		GatewayID:       gateway.ID,
		ResourceID:      resourceID,
		PolicyID:        chosen.policy.ID,
		MembershipID:    chosen.membershipID,
		TokenID:         subject.TokenID,
		ClientRemoteIP:  client.LastSeenRemoteIP,
		ClientUserAgent: client.LastSeenUserAgent,
		GatewayRemoteIP: gateway.LastSeenRemoteIP,
		ExpiresAt:       policy.EarliestExpiration(subject.ExpiresAt, expiresAt),
		InsertedAt:      time.Now(),
	}
	if err := e.store.Insert(ctx, f); err != nil {
		return nil, err
	}

	e.logger.Debug().
		Str("account_id", f.AccountID.String()).
		Str("client_id", f.ClientID.String()).
		Str("resource_id", f.ResourceID.String()).
		Str("policy_id", f.PolicyID.String()).
		Msg("flow authorized")
	return f, nil
}

// Reauthorize re-runs the candidate-policy search for a flow whose policy
// was invalidated while the client stayed connected. It returns a
// replacement flow, or ErrNotFound when no remaining policy conforms and
// the caller must reject access on the data plane.
func (e *Engine) Reauthorize(ctx context.Context, f *model.Flow) (*model.Flow, error) {
	client, err := e.loadClient(ctx, f.AccountID, f.ClientID)
	if err != nil {
		return nil, err
	}

	providerID, tokenExpiry, err := e.loadTokenContext(ctx, f.AccountID, f.TokenID)
	if err != nil {
		return nil, err
	}

	if err := e.resolveResource(ctx, f.AccountID, f.ResourceID); err != nil {
		return nil, err
	}

	chosen, expiresAt, err := e.findConformingPolicy(ctx, client, f.ResourceID, providerID, time.Now())
	if err != nil {
		return nil, err
	}

	replacement := &model.Flow{
		ID:              uuid.New(),
		AccountID:       f.AccountID,
		ClientID:        f.ClientID,
		GatewayID:       f.GatewayID,
		ResourceID:      f.ResourceID,
		PolicyID:        chosen.policy.ID,
		MembershipID:    chosen.membershipID,
		TokenID:         f.TokenID,
		ClientRemoteIP:  client.LastSeenRemoteIP,
		ClientUserAgent: client.LastSeenUserAgent,
		GatewayRemoteIP: f.GatewayRemoteIP,
		ExpiresAt:       policy.EarliestExpiration(tokenExpiry, expiresAt),
		InsertedAt:      time.Now(),
	}
	if err := e.store.Insert(ctx, replacement); err != nil {
		return nil, err
	}
	return replacement, nil
}

// DeleteStaleOnConnect reconciles the client's server-side flows with the
// resource set the client announces on (re)connect, deleting everything
// outside that set. It returns the number of flows removed.
func (e *Engine) DeleteStaleOnConnect(ctx context.Context, client *model.Client, authorizedResourceIDs []uuid.UUID) (int64, error) {
	deleted, err := e.store.DeleteStale(ctx, client.AccountID, client.ID, authorizedResourceIDs)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		e.logger.Debug().
			Str("client_id", client.ID.String()).
			Int64("deleted", deleted).
			Msg("deleted stale flows on connect")
	}
	return deleted, nil
}

// ExpireSweep bulk-deletes flows past their expiry across all accounts.
func (e *Engine) ExpireSweep(ctx context.Context) (int64, error) {
	deleted, err := e.store.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		e.logger.Info().Int64("deleted", deleted).Msg("expired flows swept")
	}
	return deleted, nil
}

// resolveResource confirms the resource exists in the account and is not
// deleted; any other outcome is ErrNotFound.
func (e *Engine) resolveResource(ctx context.Context, accountID, resourceID uuid.UUID) error {
	var id uuid.UUID
	err := e.db.QueryRow(ctx,
		`SELECT id FROM resources WHERE id = $1 AND account_id = $2 AND deleted_at IS NULL`,
		resourceID, accountID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("resolve resource %s: %w", resourceID, err)
	}
	return nil
}

// findConformingPolicy enumerates enabled policies that target the
// resource through one of the actor's groups and returns the first whose
// conditions conform, together with its conformance expiration.
func (e *Engine) findConformingPolicy(ctx context.Context, client *model.Client, resourceID uuid.UUID, providerID string, now time.Time) (*candidate, *time.Time, error) {
	candidates, err := e.candidatePolicies(ctx, client.AccountID, client.ActorID, resourceID)
	if err != nil {
		return nil, nil, err
	}

	evalCtx := policy.ClientContext{
		Region:     client.LastSeenRemoteIPRegion,
		Verified:   client.Verified(),
		ProviderID: providerID,
	}
	if addr, err := netip.ParseAddr(client.LastSeenRemoteIP); err == nil {
		evalCtx.RemoteIP = addr
	}

	for i := range candidates {
		ok, expiresAt, err := policy.Conforms(candidates[i].policy.Conditions, evalCtx, now)
		if err != nil {
			// Conditions are validated at save time; a malformed set here
			// means a skipped migration, not a denial.
			e.logger.Error().Err(err).
				Str("policy_id", candidates[i].policy.ID.String()).
				Msg("policy condition evaluation failed")
			continue
		}
		if ok {
			return &candidates[i], expiresAt, nil
		}
	}
	return nil, nil, ErrNotFound
}

func (e *Engine) candidatePolicies(ctx context.Context, accountID, actorID, resourceID uuid.UUID) ([]candidate, error) {
	rows, err := e.db.Query(ctx,
		`SELECT p.id, p.account_id, p.actor_group_id, p.resource_id, p.conditions, m.id
		   FROM policies p
		   JOIN actor_group_memberships m ON m.actor_group_id = p.actor_group_id AND m.account_id = p.account_id
		  WHERE p.account_id = $1 AND p.resource_id = $2 AND m.actor_id = $3
		    AND p.disabled_at IS NULL AND p.deleted_at IS NULL`,
		accountID, resourceID, actorID)
	if err != nil {
		return nil, fmt.Errorf("list candidate policies for resource %s: %w", resourceID, err)
	}
	defer rows.Close()

	var candidates []candidate
	for rows.Next() {
		var c candidate
		var conditions []byte
		if err := rows.Scan(&c.policy.ID, &c.policy.AccountID, &c.policy.ActorGroupID, &c.policy.ResourceID,
			&conditions, &c.membershipID); err != nil {
			return nil, fmt.Errorf("scan candidate policy: %w", err)
		}
		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &c.policy.Conditions); err != nil {
				return nil, fmt.Errorf("decode conditions for policy %s: %w", c.policy.ID, err)
			}
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidate policies: %w", err)
	}
	return candidates, nil
}

func (e *Engine) loadClient(ctx context.Context, accountID, clientID uuid.UUID) (*model.Client, error) {
	var c model.Client
	err := e.db.QueryRow(ctx,
		`SELECT id, account_id, actor_id, verified_at, last_seen_remote_ip, last_seen_remote_ip_region, last_seen_user_agent
		   FROM clients WHERE id = $1 AND account_id = $2 AND deleted_at IS NULL`,
		clientID, accountID,
	).Scan(&c.ID, &c.AccountID, &c.ActorID, &c.VerifiedAt,
		&c.LastSeenRemoteIP, &c.LastSeenRemoteIPRegion, &c.LastSeenUserAgent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load client %s: %w", clientID, err)
	}
	return &c, nil
}

func (e *Engine) loadTokenContext(ctx context.Context, accountID, tokenID uuid.UUID) (string, *time.Time, error) {
	var providerID *uuid.UUID
	var expiresAt *time.Time
	err := e.db.QueryRow(ctx,
		`SELECT i.provider_id, t.expires_at
		   FROM tokens t
		   LEFT JOIN identities i ON i.id = t.identity_id
		  WHERE t.id = $1 AND t.account_id = $2 AND t.deleted_at IS NULL`,
		tokenID, accountID,
	).Scan(&providerID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("load token %s: %w", tokenID, err)
	}
	provider := ""
	if providerID != nil {
		provider = providerID.String()
	}
	return provider, expiresAt, nil
}
