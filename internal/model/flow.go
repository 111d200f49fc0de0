package model

import (
	"time"

	"github.com/google/uuid"
)

// Flow records that a client, through a gateway, is authorized to reach a
// resource under a policy until ExpiresAt. Rows are immutable once
// inserted; re-authorization creates a new row, invalidation deletes.
type Flow struct {
	ID           uuid.UUID `json:"id" db:"id"`
	AccountID    uuid.UUID `json:"account_id" db:"account_id"`
	ClientID     uuid.UUID `json:"client_id" db:"client_id"`
	GatewayID    uuid.UUID `json:"gateway_id" db:"gateway_id"`
	ResourceID   uuid.UUID `json:"resource_id" db:"resource_id"`
	PolicyID     uuid.UUID `json:"policy_id" db:"policy_id"`
	MembershipID uuid.UUID `json:"membership_id" db:"membership_id"`
	TokenID      uuid.UUID `json:"token_id" db:"token_id"`
	// Connection snapshots, kept for audit.
	ClientRemoteIP  string `json:"client_remote_ip" db:"client_remote_ip"`
	ClientUserAgent string `json:"client_user_agent" db:"client_user_agent"`
	GatewayRemoteIP string `json:"gateway_remote_ip" db:"gateway_remote_ip"`

	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	InsertedAt time.Time  `json:"inserted_at" db:"inserted_at"`
}

// Expired reports whether the flow is past its expiry at the given instant.
// A flow with no expiry never expires.
func (f *Flow) Expired(now time.Time) bool {
	return f.ExpiresAt != nil && f.ExpiresAt.Before(now)
}
