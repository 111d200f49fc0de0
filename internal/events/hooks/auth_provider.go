package hooks

import (
	"context"

	"github.com/firezone/firezone-sub013/internal/events"
	"github.com/firezone/firezone-sub013/internal/model"
	"github.com/firezone/firezone-sub013/internal/pubsub"
)

// AuthProviderHook force-disconnects every live session backed by a
// provider when the provider is disabled or its session lifetimes change.
// Token rows themselves are revoked by their own change events; this hook
// only terminates the sockets.
type AuthProviderHook struct {
	*Hooks
}

func (h *AuthProviderHook) Table() string { return "auth_providers" }

// sessionLifetimeAttrs are the fields whose change invalidates sessions
// issued under the previous lifetime.
var sessionLifetimeAttrs = []string{"client_session_duration", "portal_session_duration"}

func (h *AuthProviderHook) OnInsert(ctx context.Context, seq uint64, new events.Row) error {
	h.broadcast(pubsub.OpInsert, seq, h.Table(), nil, new)
	return nil
}

func (h *AuthProviderHook) OnUpdate(ctx context.Context, seq uint64, old, new events.Row) error {
	if model.Transition(old.Lifecycle(), new.Lifecycle()) == model.TransitionDeactivate {
		if err := h.disconnectSessions(ctx, old); err != nil {
			return err
		}
		h.broadcast(pubsub.OpDelete, seq, h.Table(), old, new)
		return nil
	}

	for _, attr := range sessionLifetimeAttrs {
		if events.Changed(old, new, attr) {
			if err := h.disconnectSessions(ctx, old); err != nil {
				return err
			}
			break
		}
	}
	h.broadcast(pubsub.OpUpdate, seq, h.Table(), old, new)
	return nil
}

func (h *AuthProviderHook) OnDelete(ctx context.Context, seq uint64, old events.Row) error {
	if err := h.disconnectSessions(ctx, old); err != nil {
		return err
	}
	h.broadcast(pubsub.OpDelete, seq, h.Table(), old, nil)
	return nil
}

func (h *AuthProviderHook) disconnectSessions(ctx context.Context, row events.Row) error {
	tokenIDs, err := h.sessions.TokenIDsForProvider(ctx, row.UUID("account_id"), row.UUID("id"))
	if err != nil {
		return err
	}
	for _, tokenID := range tokenIDs {
		h.bus.Disconnect(tokenID)
	}
	return nil
}
