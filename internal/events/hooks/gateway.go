package hooks

import (
	"context"

	"github.com/firezone/firezone-sub013/internal/events"
	"github.com/firezone/firezone-sub013/internal/model"
	"github.com/firezone/firezone-sub013/internal/pubsub"
)

// GatewayHook cascades egress node removal: flows through a gone gateway
// are dead and must not linger.
type GatewayHook struct {
	*Hooks
}

func (h *GatewayHook) Table() string { return "gateways" }

func (h *GatewayHook) OnInsert(ctx context.Context, seq uint64, new events.Row) error {
	h.broadcast(pubsub.OpInsert, seq, h.Table(), nil, new)
	return nil
}

func (h *GatewayHook) OnUpdate(ctx context.Context, seq uint64, old, new events.Row) error {
	if model.Transition(old.Lifecycle(), new.Lifecycle()) == model.TransitionDeactivate {
		count, err := h.flows.DeleteForGateway(ctx, old.UUID("account_id"), old.UUID("id"))
		if err != nil {
			return err
		}
		h.pruned("gateway", count)
		h.broadcast(pubsub.OpDelete, seq, h.Table(), old, new)
		return nil
	}
	h.broadcast(pubsub.OpUpdate, seq, h.Table(), old, new)
	return nil
}

func (h *GatewayHook) OnDelete(ctx context.Context, seq uint64, old events.Row) error {
	count, err := h.flows.DeleteForGateway(ctx, old.UUID("account_id"), old.UUID("id"))
	if err != nil {
		return err
	}
	h.pruned("gateway", count)
	h.broadcast(pubsub.OpDelete, seq, h.Table(), old, nil)
	return nil
}

// GatewayGroupHook cascades site removal across every gateway it groups.
type GatewayGroupHook struct {
	*Hooks
}

func (h *GatewayGroupHook) Table() string { return "gateway_groups" }

func (h *GatewayGroupHook) OnInsert(ctx context.Context, seq uint64, new events.Row) error {
	h.broadcast(pubsub.OpInsert, seq, h.Table(), nil, new)
	return nil
}

func (h *GatewayGroupHook) OnUpdate(ctx context.Context, seq uint64, old, new events.Row) error {
	if model.Transition(old.Lifecycle(), new.Lifecycle()) == model.TransitionDeactivate {
		count, err := h.flows.DeleteForGatewayGroup(ctx, old.UUID("account_id"), old.UUID("id"))
		if err != nil {
			return err
		}
		h.pruned("gateway_group", count)
		h.broadcast(pubsub.OpDelete, seq, h.Table(), old, new)
		return nil
	}
	h.broadcast(pubsub.OpUpdate, seq, h.Table(), old, new)
	return nil
}

func (h *GatewayGroupHook) OnDelete(ctx context.Context, seq uint64, old events.Row) error {
	count, err := h.flows.DeleteForGatewayGroup(ctx, old.UUID("account_id"), old.UUID("id"))
	if err != nil {
		return err
	}
	h.pruned("gateway_group", count)
	h.broadcast(pubsub.OpDelete, seq, h.Table(), old, nil)
	return nil
}
