// Package hooks holds the per-entity cascade handlers: each one translates
// a row mutation into flow-store pruning and pub/sub broadcasts, keeping
// granted flows consistent with the policy/resource/identity graph.
//
// Handlers never fail past the dispatcher for data reasons. A prune that
// matches zero rows is the correct outcome for a replayed or already
// reconciled event; only store unavailability propagates, which parks the
// stream cursor for retry.
package hooks

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/firezone/firezone-sub013/internal/events"
	"github.com/firezone/firezone-sub013/internal/metrics"
	"github.com/firezone/firezone-sub013/internal/pubsub"
)

// FlowStore is the slice of the flow store the cascades prune through.
type FlowStore interface {
	DeleteForAccount(ctx context.Context, accountID uuid.UUID) (int64, error)
	DeleteForPolicy(ctx context.Context, accountID, policyID uuid.UUID) (int64, error)
	DeleteForResource(ctx context.Context, accountID, resourceID uuid.UUID) (int64, error)
	DeleteForResourceGatewayGroup(ctx context.Context, accountID, resourceID, gatewayGroupID uuid.UUID) (int64, error)
	DeleteForClient(ctx context.Context, accountID, clientID uuid.UUID) (int64, error)
	DeleteForGateway(ctx context.Context, accountID, gatewayID uuid.UUID) (int64, error)
	DeleteForGatewayGroup(ctx context.Context, accountID, gatewayGroupID uuid.UUID) (int64, error)
	DeleteForToken(ctx context.Context, accountID, tokenID uuid.UUID) (int64, error)
}

// Broadcaster is the pub/sub surface the cascades notify through.
type Broadcaster interface {
	Broadcast(topic string, msg pubsub.Message)
	Disconnect(tokenID uuid.UUID)
}

// SessionIndex resolves which live sessions an auth provider backs.
type SessionIndex interface {
	TokenIDsForProvider(ctx context.Context, accountID, providerID uuid.UUID) ([]uuid.UUID, error)
}

// Hooks bundles the dependencies shared by every entity handler.
type Hooks struct {
	flows    FlowStore
	bus      Broadcaster
	sessions SessionIndex
	logger   zerolog.Logger
}

func New(flows FlowStore, bus Broadcaster, sessions SessionIndex, logger zerolog.Logger) *Hooks {
	return &Hooks{
		flows:    flows,
		bus:      bus,
		sessions: sessions,
		logger:   logger.With().Str("component", "change-hooks").Logger(),
	}
}

// All returns one handler per tracked table, ready for dispatcher
// registration.
func (h *Hooks) All() []events.Handler {
	return []events.Handler{
		&AccountHook{h},
		&MembershipHook{h},
		&PolicyHook{h},
		&ResourceHook{h},
		&ResourceConnectionHook{h},
		&ClientHook{h},
		&GatewayHook{h},
		&GatewayGroupHook{h},
		&TokenHook{h},
		&AuthProviderHook{h},
		&FlowHook{h},
	}
}

// broadcast publishes a change envelope on the owning account's topic. The
// account id is read from whichever row image is present.
func (h *Hooks) broadcast(op pubsub.Op, seq uint64, table string, old, new events.Row) {
	row := new
	if row == nil {
		row = old
	}
	accountID := row.UUID("account_id")
	if table == "accounts" {
		accountID = row.UUID("id")
	}
	if accountID == uuid.Nil {
		h.logger.Warn().Str("table", table).Uint64("seq", seq).Msg("change row carries no account id")
		return
	}
	h.bus.Broadcast(pubsub.AccountTopic(accountID), pubsub.Message{
		Op:    op,
		Seq:   seq,
		Table: table,
		Old:   old,
		New:   new,
	})
}

func (h *Hooks) pruned(entity string, count int64) {
	if count > 0 {
		metrics.FlowsPruned.WithLabelValues(entity).Add(float64(count))
		h.logger.Debug().Str("entity", entity).Int64("flows", count).Msg("flows pruned")
	}
}
