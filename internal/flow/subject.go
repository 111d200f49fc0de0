package flow

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Permissions the engine checks. The identifier is carried on
// authorization failures for observability.
const (
	PermissionCreateFlows = "flows:create"
)

// Subject is the authenticated caller of the engine: the actor and token
// behind a live client or gateway connection.
type Subject struct {
	AccountID   uuid.UUID
	ActorID     uuid.UUID
	TokenID     uuid.UUID
	ProviderID  string
	Permissions []string
	// ExpiresAt bounds every flow the subject creates; nil for tokens
	// without an expiry.
	ExpiresAt *time.Time
}

func (s *Subject) HasPermission(permission string) bool {
	return slices.Contains(s.Permissions, permission)
}
