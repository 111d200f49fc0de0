package model

import (
	"time"

	"github.com/google/uuid"
)

// AuthProvider is an identity-provider instance for an account, populated
// and mutated by the directory-sync collaborators.
type AuthProvider struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Adapter   string    `json:"adapter" db:"adapter"` // email, openid_connect, google_workspace, okta, entra, workos
	Name      string    `json:"name" db:"name"`
	// Session lifetime knobs; changing either invalidates live sessions.
	ClientSessionDuration *time.Duration `json:"client_session_duration,omitempty" db:"client_session_duration"`
	PortalSessionDuration *time.Duration `json:"portal_session_duration,omitempty" db:"portal_session_duration"`
	Lifecycle
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Identity links an actor to an auth provider; one per (account, provider).
type Identity struct {
	ID         uuid.UUID `json:"id" db:"id"`
	AccountID  uuid.UUID `json:"account_id" db:"account_id"`
	ActorID    uuid.UUID `json:"actor_id" db:"actor_id"`
	ProviderID uuid.UUID `json:"provider_id" db:"provider_id"`
	// ProviderIdentifier is the subject claim or email at the provider.
	ProviderIdentifier string `json:"provider_identifier" db:"provider_identifier"`
	Lifecycle
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
