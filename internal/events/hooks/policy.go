package hooks

import (
	"context"
	"encoding/json"

	"github.com/firezone/firezone-sub013/internal/events"
	"github.com/firezone/firezone-sub013/internal/model"
	"github.com/firezone/firezone-sub013/internal/policy"
	"github.com/firezone/firezone-sub013/internal/pubsub"
)

// PolicyHook cascades policy changes. Disabling behaves exactly like
// deletion, re-enabling like insertion, and a change to any breaking
// attribute invalidates the flows granted under the old policy identity.
type PolicyHook struct {
	*Hooks
}

func (h *PolicyHook) Table() string { return "policies" }

// policyBreaking lists the attributes whose change invalidates granted
// flows.
var policyBreaking = []string{"conditions", "actor_group_id", "resource_id"}

func (h *PolicyHook) OnInsert(ctx context.Context, seq uint64, new events.Row) error {
	h.warnInvalidConditions(seq, new)
	h.broadcast(pubsub.OpInsert, seq, h.Table(), nil, new)
	return nil
}

// warnInvalidConditions re-parses the stored condition set and logs when it
// would not evaluate. The stream never fails over it; authorize-time
// evaluation rejects the malformed condition on its own.
func (h *PolicyHook) warnInvalidConditions(seq uint64, row events.Row) {
	raw, ok := row["conditions"]
	if !ok || raw == nil {
		return
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return
	}
	var conditions []model.Condition
	if err := json.Unmarshal(buf, &conditions); err != nil {
		h.logger.Warn().
			Uint64("seq", seq).
			Str("policy_id", row.UUID("id").String()).
			Err(err).
			Msg("stored policy conditions do not parse")
		return
	}
	if err := policy.ValidateConditions(conditions); err != nil {
		h.logger.Warn().
			Uint64("seq", seq).
			Str("policy_id", row.UUID("id").String()).
			Err(err).
			Msg("stored policy conditions are invalid")
	}
}

func (h *PolicyHook) OnUpdate(ctx context.Context, seq uint64, old, new events.Row) error {
	h.warnInvalidConditions(seq, new)
	switch model.Transition(old.Lifecycle(), new.Lifecycle()) {
	case model.TransitionDeactivate:
		count, err := h.flows.DeleteForPolicy(ctx, old.UUID("account_id"), old.UUID("id"))
		if err != nil {
			return err
		}
		h.pruned("policy", count)
		h.broadcast(pubsub.OpDelete, seq, h.Table(), old, new)
		return nil

	case model.TransitionActivate:
		// Re-enabling restores nothing; peers authorize afresh.
		h.broadcast(pubsub.OpInsert, seq, h.Table(), old, new)
		return nil
	}

	for _, attr := range policyBreaking {
		if events.Changed(old, new, attr) {
			// Prune under the old identity: the flows were granted by the
			// policy as it was.
			count, err := h.flows.DeleteForPolicy(ctx, old.UUID("account_id"), old.UUID("id"))
			if err != nil {
				return err
			}
			h.pruned("policy", count)
			break
		}
	}
	h.broadcast(pubsub.OpUpdate, seq, h.Table(), old, new)
	return nil
}

func (h *PolicyHook) OnDelete(ctx context.Context, seq uint64, old events.Row) error {
	count, err := h.flows.DeleteForPolicy(ctx, old.UUID("account_id"), old.UUID("id"))
	if err != nil {
		return err
	}
	h.pruned("policy", count)
	h.broadcast(pubsub.OpDelete, seq, h.Table(), old, nil)
	return nil
}
