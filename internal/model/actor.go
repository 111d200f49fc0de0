package model

import (
	"time"

	"github.com/google/uuid"
)

// Actor is an identity principal: a person or service account that policies
// grant access to, always through group membership.
type Actor struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Type      string    `json:"type" db:"type"` // account_user, account_admin_user, service_account
	Name      string    `json:"name" db:"name"`
	Lifecycle
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ActorGroup collects actors so policies can target them as a unit.
type ActorGroup struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Name      string    `json:"name" db:"name"`
	// ProviderID is set for groups mirrored from a directory-sync provider.
	ProviderID *uuid.UUID `json:"provider_id,omitempty" db:"provider_id"`
	Lifecycle
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Membership joins an actor into a group. It is the pivot used to resolve
// which policies apply to an actor.
type Membership struct {
	ID           uuid.UUID `json:"id" db:"id"`
	AccountID    uuid.UUID `json:"account_id" db:"account_id"`
	ActorID      uuid.UUID `json:"actor_id" db:"actor_id"`
	ActorGroupID uuid.UUID `json:"actor_group_id" db:"actor_group_id"`
}
