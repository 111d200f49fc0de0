package hooks

import (
	"context"

	"github.com/firezone/firezone-sub013/internal/events"
	"github.com/firezone/firezone-sub013/internal/model"
	"github.com/firezone/firezone-sub013/internal/pubsub"
)

// AccountHook cascades account lifecycle changes. Disabling or deleting a
// tenant invalidates every flow it owns.
type AccountHook struct {
	*Hooks
}

func (h *AccountHook) Table() string { return "accounts" }

func (h *AccountHook) OnInsert(ctx context.Context, seq uint64, new events.Row) error {
	h.broadcast(pubsub.OpInsert, seq, h.Table(), nil, new)
	return nil
}

func (h *AccountHook) OnUpdate(ctx context.Context, seq uint64, old, new events.Row) error {
	switch model.Transition(old.Lifecycle(), new.Lifecycle()) {
	case model.TransitionDeactivate:
		return h.prune(ctx, seq, old, new)
	case model.TransitionActivate:
		h.broadcast(pubsub.OpInsert, seq, h.Table(), old, new)
	default:
		h.broadcast(pubsub.OpUpdate, seq, h.Table(), old, new)
	}
	return nil
}

func (h *AccountHook) OnDelete(ctx context.Context, seq uint64, old events.Row) error {
	return h.prune(ctx, seq, old, nil)
}

func (h *AccountHook) prune(ctx context.Context, seq uint64, old, new events.Row) error {
	row := old
	if row == nil {
		row = new
	}
	count, err := h.flows.DeleteForAccount(ctx, row.UUID("id"))
	if err != nil {
		return err
	}
	h.pruned("account", count)
	h.broadcast(pubsub.OpDelete, seq, h.Table(), old, new)
	return nil
}
