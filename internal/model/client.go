package model

import (
	"time"

	"github.com/google/uuid"
)

// Client is a connected device instance. VerifiedAt going from set to unset
// is a breaking change for flows that required verification.
type Client struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	AccountID  uuid.UUID  `json:"account_id" db:"account_id"`
	ActorID    uuid.UUID  `json:"actor_id" db:"actor_id"`
	IdentityID *uuid.UUID `json:"identity_id,omitempty" db:"identity_id"`
	Name       string     `json:"name" db:"name"`
	PublicKey  string     `json:"public_key" db:"public_key"`
	VerifiedAt *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	// Last-seen connection context, used by the condition evaluator.
	LastSeenRemoteIP       string `json:"last_seen_remote_ip" db:"last_seen_remote_ip"`
	LastSeenRemoteIPRegion string `json:"last_seen_remote_ip_region" db:"last_seen_remote_ip_region"`
	LastSeenUserAgent      string `json:"last_seen_user_agent" db:"last_seen_user_agent"`
	Lifecycle
	LastSeenAt *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Verified reports whether the device has passed admin verification.
func (c *Client) Verified() bool { return c.VerifiedAt != nil }
