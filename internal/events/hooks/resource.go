package hooks

import (
	"context"

	"github.com/firezone/firezone-sub013/internal/events"
	"github.com/firezone/firezone-sub013/internal/model"
	"github.com/firezone/firezone-sub013/internal/pubsub"
)

// ResourceHook cascades resource changes. Type, address and ip_stack are
// breaking; filter changes are applied live by gateways and prune nothing.
type ResourceHook struct {
	*Hooks
}

func (h *ResourceHook) Table() string { return "resources" }

var resourceBreaking = []string{"type", "address", "ip_stack"}

func (h *ResourceHook) OnInsert(ctx context.Context, seq uint64, new events.Row) error {
	h.broadcast(pubsub.OpInsert, seq, h.Table(), nil, new)
	return nil
}

func (h *ResourceHook) OnUpdate(ctx context.Context, seq uint64, old, new events.Row) error {
	if model.Transition(old.Lifecycle(), new.Lifecycle()) == model.TransitionDeactivate {
		if err := h.prune(ctx, old); err != nil {
			return err
		}
		h.broadcast(pubsub.OpDelete, seq, h.Table(), old, new)
		return nil
	}

	for _, attr := range resourceBreaking {
		if events.Changed(old, new, attr) {
			if err := h.prune(ctx, old); err != nil {
				return err
			}
			break
		}
	}
	h.broadcast(pubsub.OpUpdate, seq, h.Table(), old, new)
	return nil
}

func (h *ResourceHook) OnDelete(ctx context.Context, seq uint64, old events.Row) error {
	if err := h.prune(ctx, old); err != nil {
		return err
	}
	h.broadcast(pubsub.OpDelete, seq, h.Table(), old, nil)
	return nil
}

func (h *ResourceHook) prune(ctx context.Context, row events.Row) error {
	count, err := h.flows.DeleteForResource(ctx, row.UUID("account_id"), row.UUID("id"))
	if err != nil {
		return err
	}
	h.pruned("resource", count)
	return nil
}

// ResourceConnectionHook prunes flows routed through a gateway group when
// the resource is detached from it.
type ResourceConnectionHook struct {
	*Hooks
}

func (h *ResourceConnectionHook) Table() string { return "resource_connections" }

func (h *ResourceConnectionHook) OnInsert(ctx context.Context, seq uint64, new events.Row) error {
	h.broadcast(pubsub.OpInsert, seq, h.Table(), nil, new)
	return nil
}

func (h *ResourceConnectionHook) OnUpdate(ctx context.Context, seq uint64, old, new events.Row) error {
	h.broadcast(pubsub.OpUpdate, seq, h.Table(), old, new)
	return nil
}

func (h *ResourceConnectionHook) OnDelete(ctx context.Context, seq uint64, old events.Row) error {
	count, err := h.flows.DeleteForResourceGatewayGroup(ctx,
		old.UUID("account_id"), old.UUID("resource_id"), old.UUID("gateway_group_id"))
	if err != nil {
		return err
	}
	h.pruned("resource_connection", count)
	h.broadcast(pubsub.OpDelete, seq, h.Table(), old, nil)
	return nil
}
