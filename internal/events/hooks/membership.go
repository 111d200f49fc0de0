package hooks

import (
	"context"

	"github.com/firezone/firezone-sub013/internal/events"
	"github.com/firezone/firezone-sub013/internal/pubsub"
)

// MembershipHook broadcasts group membership changes. Membership loss does
// not prune flows by itself: a flow stays valid until a resource or policy
// cascade removes it, and connected peers re-resolve their policy matches
// from the broadcast.
type MembershipHook struct {
	*Hooks
}

func (h *MembershipHook) Table() string { return "actor_group_memberships" }

func (h *MembershipHook) OnInsert(ctx context.Context, seq uint64, new events.Row) error {
	h.broadcast(pubsub.OpInsert, seq, h.Table(), nil, new)
	return nil
}

func (h *MembershipHook) OnUpdate(ctx context.Context, seq uint64, old, new events.Row) error {
	h.broadcast(pubsub.OpUpdate, seq, h.Table(), old, new)
	return nil
}

func (h *MembershipHook) OnDelete(ctx context.Context, seq uint64, old events.Row) error {
	h.broadcast(pubsub.OpDelete, seq, h.Table(), old, nil)
	return nil
}
