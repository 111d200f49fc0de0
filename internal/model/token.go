package model

import (
	"time"

	"github.com/google/uuid"
)

// Token types. Email and relay_group tokens never carry flows; every other
// type binds a live session whose revocation must cascade.
const (
	TokenTypeBrowser   = "browser"
	TokenTypeClient    = "client"
	TokenTypeGateway   = "gateway_group"
	TokenTypeRelay     = "relay_group"
	TokenTypeEmail     = "email"
	TokenTypeAPIClient = "api_client"
)

// Token is a credential grant. Revocation is a soft delete and must
// terminate live sessions and dependent flows.
type Token struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	AccountID  uuid.UUID  `json:"account_id" db:"account_id"`
	Type       string     `json:"type" db:"type"`
	ActorID    *uuid.UUID `json:"actor_id,omitempty" db:"actor_id"`
	IdentityID *uuid.UUID `json:"identity_id,omitempty" db:"identity_id"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	Lifecycle
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CarriesFlows reports whether revoking a token of this type must prune
// flows and force-disconnect its session.
func TokenCarriesFlows(tokenType string) bool {
	switch tokenType {
	case TokenTypeEmail, TokenTypeRelay:
		return false
	default:
		return true
	}
}
