package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	mw "github.com/firezone/firezone-sub013/internal/api/middleware"
	"github.com/firezone/firezone-sub013/internal/api/request"
	"github.com/firezone/firezone-sub013/internal/api/response"
	"github.com/firezone/firezone-sub013/internal/flow"
	"github.com/firezone/firezone-sub013/internal/model"
)

// DB is the query surface the flow handler needs to resolve the peers
// named in a request.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Flows serves flow authorization requests.
type Flows struct {
	db     DB
	engine *flow.Engine
	logger zerolog.Logger
}

func NewFlows(db DB, engine *flow.Engine, logger zerolog.Logger) *Flows {
	return &Flows{db: db, engine: engine, logger: logger}
}

// Authorize grants the calling session a flow to a resource. Denials are
// reported as not found so a caller cannot enumerate resources or
// policies it is not allowed to see.
func (h *Flows) Authorize(w http.ResponseWriter, r *http.Request) {
	subject := mw.GetSubject(r.Context())

	var req request.AuthorizeFlow
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, err := h.loadClient(r.Context(), subject.AccountID, uuid.MustParse(req.ClientID))
	if err != nil {
		h.writeAuthorizeError(w, err)
		return
	}
	gateway, err := h.loadGateway(r.Context(), subject.AccountID, uuid.MustParse(req.GatewayID))
	if err != nil {
		h.writeAuthorizeError(w, err)
		return
	}

	granted, err := h.engine.Authorize(r.Context(), client, gateway, uuid.MustParse(req.ResourceID), subject)
	if err != nil {
		h.writeAuthorizeError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, granted)
}

func (h *Flows) writeAuthorizeError(w http.ResponseWriter, err error) {
	var unauthorized *flow.UnauthorizedError
	switch {
	case errors.Is(err, flow.ErrNotFound):
		response.WriteError(w, http.StatusNotFound, "not found")
	case errors.As(err, &unauthorized):
		response.WriteError(w, http.StatusForbidden, "forbidden")
	default:
		h.logger.Error().Err(err).Msg("flow authorization failed")
		response.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Flows) loadClient(ctx context.Context, accountID, clientID uuid.UUID) (*model.Client, error) {
	var c model.Client
	err := h.db.QueryRow(ctx,
		`SELECT id, account_id, actor_id, verified_at, last_seen_remote_ip, last_seen_remote_ip_region, last_seen_user_agent
		   FROM clients WHERE id = $1 AND account_id = $2 AND disabled_at IS NULL AND deleted_at IS NULL`,
		clientID, accountID,
	).Scan(&c.ID, &c.AccountID, &c.ActorID, &c.VerifiedAt,
		&c.LastSeenRemoteIP, &c.LastSeenRemoteIPRegion, &c.LastSeenUserAgent)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, flow.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load client %s: %w", clientID, err)
	}
	return &c, nil
}

func (h *Flows) loadGateway(ctx context.Context, accountID, gatewayID uuid.UUID) (*model.Gateway, error) {
	var g model.Gateway
	var lastSeen *time.Time
	err := h.db.QueryRow(ctx,
		`SELECT id, account_id, group_id, last_seen_remote_ip, last_seen_at
		   FROM gateways WHERE id = $1 AND account_id = $2 AND disabled_at IS NULL AND deleted_at IS NULL`,
		gatewayID, accountID,
	).Scan(&g.ID, &g.AccountID, &g.GroupID, &g.LastSeenRemoteIP, &lastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, flow.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load gateway %s: %w", gatewayID, err)
	}
	g.LastSeenAt = lastSeen
	return &g, nil
}
