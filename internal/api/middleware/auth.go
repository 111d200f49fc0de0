package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/firezone/firezone-sub013/internal/api/response"
	"github.com/firezone/firezone-sub013/internal/flow"
	"github.com/firezone/firezone-sub013/internal/model"
)

type contextKey string

const subjectKey contextKey = "subject"

// DB is the narrow query surface token authentication needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetSubject returns the authenticated subject, or nil outside an
// authenticated request.
func GetSubject(ctx context.Context) *flow.Subject {
	s, _ := ctx.Value(subjectKey).(*flow.Subject)
	return s
}

// WithSubject injects a subject directly; test use only.
func WithSubject(ctx context.Context, s *flow.Subject) context.Context {
	return context.WithValue(ctx, subjectKey, s)
}

// Auth validates the session token and resolves it into the subject. The
// token travels in the Authorization header, or in the "token" query
// parameter for websocket clients that cannot set headers.
func Auth(db DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := bearerToken(r)
			if secret == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing token")
				return
			}

			hash := sha256.Sum256([]byte(secret))
			secretHash := hex.EncodeToString(hash[:])

			var (
				tokenID   uuid.UUID
				accountID uuid.UUID
				tokenType string
				actorID   *uuid.UUID
				expiresAt *time.Time
				provider  *uuid.UUID
			)
			err := db.QueryRow(r.Context(),
				`SELECT t.id, t.account_id, t.type, t.actor_id, t.expires_at, i.provider_id
				   FROM tokens t
				   LEFT JOIN identities i ON i.id = t.identity_id
				  WHERE t.secret_hash = $1 AND t.disabled_at IS NULL AND t.deleted_at IS NULL
				    AND (t.expires_at IS NULL OR t.expires_at > now())`,
				secretHash,
			).Scan(&tokenID, &accountID, &tokenType, &actorID, &expiresAt, &provider)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			subject := &flow.Subject{
				AccountID:   accountID,
				TokenID:     tokenID,
				Permissions: permissionsFor(tokenType),
				ExpiresAt:   expiresAt,
			}
			if actorID != nil {
				subject.ActorID = *actorID
			}
			if provider != nil {
				subject.ProviderID = provider.String()
			}

			next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), subject)))
		})
	}
}

// permissionsFor maps a token type to the permissions its sessions hold.
// Gateway and relay tokens drive the data plane and never create flows.
func permissionsFor(tokenType string) []string {
	switch tokenType {
	case model.TokenTypeClient, model.TokenTypeBrowser, model.TokenTypeAPIClient:
		return []string{flow.PermissionCreateFlows}
	default:
		return nil
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return after
		}
		return ""
	}
	return r.URL.Query().Get("token")
}
