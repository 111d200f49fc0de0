package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/firezone/firezone-sub013/internal/flow"
	"github.com/firezone/firezone-sub013/internal/model"
)

type mockDB struct {
	mock.Mock
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (m *mockRow) Scan(dest ...any) error {
	return m.scanFunc(dest...)
}

func authedSubject(t *testing.T, db *mockDB, r *http.Request) (*flow.Subject, int) {
	t.Helper()

	var captured *flow.Subject
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetSubject(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	w := httptest.NewRecorder()
	Auth(db)(next).ServeHTTP(w, r)
	return captured, w.Code
}

func TestAuth_MissingToken(t *testing.T) {
	db := &mockDB{}
	r := httptest.NewRequest(http.MethodGet, "/v1/connect", nil)

	subject, code := authedSubject(t, db, r)
	assert.Nil(t, subject)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAuth_UnknownToken(t *testing.T) {
	db := &mockDB{}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			return pgx.ErrNoRows
		}})

	r := httptest.NewRequest(http.MethodGet, "/v1/connect", nil)
	r.Header.Set("Authorization", "Bearer nope")

	subject, code := authedSubject(t, db, r)
	assert.Nil(t, subject)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAuth_ClientTokenResolvesSubject(t *testing.T) {
	tokenID, accountID, actorID, providerID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	expiry := time.Now().Add(time.Hour)

	db := &mockDB{}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*dest[0].(*uuid.UUID) = tokenID
			*dest[1].(*uuid.UUID) = accountID
			*dest[2].(*string) = model.TokenTypeClient
			*dest[3].(**uuid.UUID) = &actorID
			*dest[4].(**time.Time) = &expiry
			*dest[5].(**uuid.UUID) = &providerID
			return nil
		}})

	r := httptest.NewRequest(http.MethodGet, "/v1/connect", nil)
	r.Header.Set("Authorization", "Bearer s3cret")

	subject, code := authedSubject(t, db, r)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, subject)
	assert.Equal(t, accountID, subject.AccountID)
	assert.Equal(t, actorID, subject.ActorID)
	assert.Equal(t, tokenID, subject.TokenID)
	assert.Equal(t, providerID.String(), subject.ProviderID)
	assert.True(t, subject.HasPermission(flow.PermissionCreateFlows))
	require.NotNil(t, subject.ExpiresAt)
	assert.Equal(t, expiry.Unix(), subject.ExpiresAt.Unix())
}

func TestAuth_QueryParamTokenForWebsockets(t *testing.T) {
	tokenID, accountID := uuid.New(), uuid.New()

	db := &mockDB{}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*dest[0].(*uuid.UUID) = tokenID
			*dest[1].(*uuid.UUID) = accountID
			*dest[2].(*string) = model.TokenTypeClient
			return nil
		}})

	r := httptest.NewRequest(http.MethodGet, "/v1/connect?token=s3cret", nil)

	subject, code := authedSubject(t, db, r)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, subject)
	assert.Equal(t, tokenID, subject.TokenID)
}

func TestAuth_GatewayTokenHasNoCreatePermission(t *testing.T) {
	db := &mockDB{}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*dest[0].(*uuid.UUID) = uuid.New()
			*dest[1].(*uuid.UUID) = uuid.New()
			*dest[2].(*string) = model.TokenTypeGateway
			return nil
		}})

	r := httptest.NewRequest(http.MethodGet, "/v1/connect", nil)
	r.Header.Set("Authorization", "Bearer s3cret")

	subject, code := authedSubject(t, db, r)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, subject)
	assert.False(t, subject.HasPermission(flow.PermissionCreateFlows))
}

func TestAuth_MalformedAuthorizationHeader(t *testing.T) {
	db := &mockDB{}
	r := httptest.NewRequest(http.MethodGet, "/v1/connect", nil)
	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	subject, code := authedSubject(t, db, r)
	assert.Nil(t, subject)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAuth_DBError(t *testing.T) {
	db := &mockDB{}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			return errors.New("connection refused")
		}})

	r := httptest.NewRequest(http.MethodGet, "/v1/connect", nil)
	r.Header.Set("Authorization", "Bearer s3cret")

	subject, code := authedSubject(t, db, r)
	assert.Nil(t, subject)
	assert.Equal(t, http.StatusUnauthorized, code)
}
