package hooks

import (
	"context"

	"github.com/firezone/firezone-sub013/internal/events"
	"github.com/firezone/firezone-sub013/internal/pubsub"
)

// FlowHook broadcasts flow grants and revocations so connected peers learn
// about access changes the moment the row lands. Flow rows are the object
// of pruning, never its trigger, so this hook prunes nothing.
type FlowHook struct {
	*Hooks
}

func (h *FlowHook) Table() string { return "flows" }

func (h *FlowHook) OnInsert(ctx context.Context, seq uint64, new events.Row) error {
	h.broadcast(pubsub.OpInsert, seq, h.Table(), nil, new)
	return nil
}

func (h *FlowHook) OnUpdate(ctx context.Context, seq uint64, old, new events.Row) error {
	h.broadcast(pubsub.OpUpdate, seq, h.Table(), old, new)
	return nil
}

func (h *FlowHook) OnDelete(ctx context.Context, seq uint64, old events.Row) error {
	h.broadcast(pubsub.OpDelete, seq, h.Table(), old, nil)
	return nil
}
