package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	mw "github.com/firezone/firezone-sub013/internal/api/middleware"
	"github.com/firezone/firezone-sub013/internal/api/response"
	"github.com/firezone/firezone-sub013/internal/flow"
	"github.com/firezone/firezone-sub013/internal/model"
	"github.com/firezone/firezone-sub013/internal/pubsub"
)

const writeTimeout = 10 * time.Second

// DB is the query surface session setup needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Sessions upgrades authenticated clients to a live change-stream
// connection. Each session subscribes to its account topic for entity
// change envelopes and to its own session topic for forced disconnects.
type Sessions struct {
	db     DB
	engine *flow.Engine
	bus    *pubsub.Bus
	logger zerolog.Logger
}

func NewSessions(db DB, engine *flow.Engine, bus *pubsub.Bus, logger zerolog.Logger) *Sessions {
	return &Sessions{
		db:     db,
		engine: engine,
		bus:    bus,
		logger: logger.With().Str("component", "transport").Logger(),
	}
}

// Connect upgrades to WebSocket and streams change messages until the
// client leaves or its session is revoked. The client announces the
// resources it still holds flows for; everything else is reconciled away
// before the stream starts.
func (s *Sessions) Connect(w http.ResponseWriter, r *http.Request) {
	subject := mw.GetSubject(r.Context())

	clientID, err := uuid.Parse(r.URL.Query().Get("client_id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, "missing or invalid client_id")
		return
	}
	resourceIDs, err := parseResourceIDs(r.URL.Query().Get("resource_ids"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	client, err := s.loadClient(r.Context(), subject.AccountID, clientID)
	if err != nil {
		if errors.Is(err, flow.ErrNotFound) {
			response.WriteError(w, http.StatusNotFound, "not found")
		} else {
			s.logger.Error().Err(err).Msg("load client for connect failed")
			response.WriteError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	if client.ActorID != subject.ActorID {
		response.WriteError(w, http.StatusNotFound, "not found")
		return
	}

	if _, err := s.engine.DeleteStaleOnConnect(r.Context(), client, resourceIDs); err != nil {
		s.logger.Error().Err(err).Msg("stale flow reconciliation failed")
		response.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Origin differs from Host when proxied.
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer ws.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	changes := s.bus.Subscribe(ctx, pubsub.AccountTopic(subject.AccountID))
	control := s.bus.Subscribe(ctx, pubsub.SessionTopic(subject.TokenID))

	// Drain client frames so pings are answered and closure is noticed.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	s.logger.Debug().
		Str("account_id", subject.AccountID.String()).
		Str("client_id", client.ID.String()).
		Msg("session connected")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-control:
			if !ok {
				return
			}
			if msg.Op == pubsub.OpDisconnect {
				ws.Close(websocket.StatusNormalClosure, "session revoked")
				return
			}
		case msg, ok := <-changes:
			if !ok {
				return
			}
			if err := s.write(ctx, ws, msg); err != nil {
				return
			}
		}
	}
}

func (s *Sessions) write(ctx context.Context, ws *websocket.Conn, msg pubsub.Message) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(wctx, ws, msg)
}

func (s *Sessions) loadClient(ctx context.Context, accountID, clientID uuid.UUID) (*model.Client, error) {
	var c model.Client
	err := s.db.QueryRow(ctx,
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

// parseResourceIDs splits the comma-separated announced resource set. An
// empty parameter means the client holds no flows.
func parseResourceIDs(raw string) ([]uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid resource id %q", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
