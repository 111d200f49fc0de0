package hooks

import (
	"context"

	"github.com/firezone/firezone-sub013/internal/events"
	"github.com/firezone/firezone-sub013/internal/model"
	"github.com/firezone/firezone-sub013/internal/pubsub"
)

// ClientHook cascades device changes. Losing verification is breaking
// because policies may require a verified device; the flows are pruned and
// the client must authorize again.
type ClientHook struct {
	*Hooks
}

func (h *ClientHook) Table() string { return "clients" }

func (h *ClientHook) OnInsert(ctx context.Context, seq uint64, new events.Row) error {
	h.broadcast(pubsub.OpInsert, seq, h.Table(), nil, new)
	return nil
}

func (h *ClientHook) OnUpdate(ctx context.Context, seq uint64, old, new events.Row) error {
	if model.Transition(old.Lifecycle(), new.Lifecycle()) == model.TransitionDeactivate {
		if err := h.prune(ctx, old); err != nil {
			return err
		}
		h.broadcast(pubsub.OpDelete, seq, h.Table(), old, new)
		return nil
	}

	if old.Time("verified_at") != nil && new.Time("verified_at") == nil {
		if err := h.prune(ctx, old); err != nil {
			return err
		}
	}
	h.broadcast(pubsub.OpUpdate, seq, h.Table(), old, new)
	return nil
}

func (h *ClientHook) OnDelete(ctx context.Context, seq uint64, old events.Row) error {
	if err := h.prune(ctx, old); err != nil {
		return err
	}
	h.broadcast(pubsub.OpDelete, seq, h.Table(), old, nil)
	return nil
}

func (h *ClientHook) prune(ctx context.Context, row events.Row) error {
	count, err := h.flows.DeleteForClient(ctx, row.UUID("account_id"), row.UUID("id"))
	if err != nil {
		return err
	}
	h.pruned("client", count)
	return nil
}
