package model

import (
	"time"

	"github.com/google/uuid"
)

// GatewayGroup (a site) groups gateways that can serve the same resources.
type GatewayGroup struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Name      string    `json:"name" db:"name"`
	Lifecycle
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Gateway is an egress node. Its group id, combined with a
// ResourceConnection, determines which resources it can serve.
type Gateway struct {
	ID               uuid.UUID `json:"id" db:"id"`
	AccountID        uuid.UUID `json:"account_id" db:"account_id"`
	GroupID          uuid.UUID `json:"group_id" db:"group_id"`
	Name             string    `json:"name" db:"name"`
	PublicKey        string    `json:"public_key" db:"public_key"`
	LastSeenRemoteIP string    `json:"last_seen_remote_ip" db:"last_seen_remote_ip"`
	Lifecycle
	LastSeenAt *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}
