package hooks

import (
	"context"

	"github.com/firezone/firezone-sub013/internal/events"
	"github.com/firezone/firezone-sub013/internal/model"
	"github.com/firezone/firezone-sub013/internal/pubsub"
)

// TokenHook cascades credential revocation: pruning dependent flows and
// force-disconnecting the live session the token backs. Email and
// relay-group tokens never carry flows or peer sessions.
type TokenHook struct {
	*Hooks
}

func (h *TokenHook) Table() string { return "tokens" }

func (h *TokenHook) OnInsert(ctx context.Context, seq uint64, new events.Row) error {
	h.broadcast(pubsub.OpInsert, seq, h.Table(), nil, new)
	return nil
}

func (h *TokenHook) OnUpdate(ctx context.Context, seq uint64, old, new events.Row) error {
	if model.Transition(old.Lifecycle(), new.Lifecycle()) == model.TransitionDeactivate {
		return h.revoke(ctx, seq, old, new)
	}
	h.broadcast(pubsub.OpUpdate, seq, h.Table(), old, new)
	return nil
}

func (h *TokenHook) OnDelete(ctx context.Context, seq uint64, old events.Row) error {
	return h.revoke(ctx, seq, old, nil)
}

func (h *TokenHook) revoke(ctx context.Context, seq uint64, old, new events.Row) error {
	tokenID := old.UUID("id")
	if model.TokenCarriesFlows(old.String("type")) {
		count, err := h.flows.DeleteForToken(ctx, old.UUID("account_id"), tokenID)
		if err != nil {
			return err
		}
		h.pruned("token", count)
		h.bus.Disconnect(tokenID)
	}
	h.broadcast(pubsub.OpDelete, seq, h.Table(), old, new)
	return nil
}
