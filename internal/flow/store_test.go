package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/firezone/firezone-sub013/internal/model"
)

func testFlow(accountID uuid.UUID) *model.Flow {
	return &model.Flow{
		ID:              uuid.New(),
		AccountID:       accountID,
		ClientID:        uuid.New(),
		GatewayID:       uuid.New(),
		ResourceID:      uuid.New(),
		PolicyID:        uuid.New(),
		MembershipID:    uuid.New(),
		TokenID:         uuid.New(),
		ClientRemoteIP:  "189.172.73.153",
		ClientUserAgent: "connlib/1.4.0",
		GatewayRemoteIP: "203.0.113.10",
		InsertedAt:      time.Now(),
	}
}

// ---------- Insert ----------

func TestStore_Insert_Success(t *testing.T) {
	db := &mockDB{}
	store := NewStore(db)
	ctx := context.Background()
	f := testFlow(uuid.New())

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := store.Insert(ctx, f)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestStore_Insert_DBError(t *testing.T) {
	db := &mockDB{}
	store := NewStore(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := store.Insert(ctx, testFlow(uuid.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert flow")
}

// ---------- Scoped deletes ----------

func TestStore_DeleteForAccount(t *testing.T) {
	db := &mockDB{}
	store := NewStore(db)
	ctx := context.Background()
	accountID := uuid.New()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{accountID}).Return(pgconn.NewCommandTag("DELETE 4"), nil)

	deleted, err := store.DeleteForAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
	db.AssertExpectations(t)
}

func TestStore_DeleteForPolicy_NoRowsIsNoop(t *testing.T) {
	db := &mockDB{}
	store := NewStore(db)
	ctx := context.Background()
	accountID, policyID := uuid.New(), uuid.New()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{accountID, policyID}).Return(pgconn.NewCommandTag("DELETE 0"), nil)

	deleted, err := store.DeleteForPolicy(ctx, accountID, policyID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestStore_DeleteForResourceGatewayGroup(t *testing.T) {
	db := &mockDB{}
	store := NewStore(db)
	ctx := context.Background()
	accountID, resourceID, groupID := uuid.New(), uuid.New(), uuid.New()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any{accountID, resourceID, groupID}).Return(pgconn.NewCommandTag("DELETE 2"), nil)

	deleted, err := store.DeleteForResourceGatewayGroup(ctx, accountID, resourceID, groupID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)
}

func TestStore_DeleteForToken_DBError(t *testing.T) {
	db := &mockDB{}
	store := NewStore(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, errors.New("connection refused"))

	_, err := store.DeleteForToken(ctx, uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete flows for token")
}

// ---------- DeleteStale ----------

func TestStore_DeleteStale_EmptyKeepSetDeletesAll(t *testing.T) {
	db := &mockDB{}
	store := NewStore(db)
	ctx := context.Background()
	accountID, clientID := uuid.New(), uuid.New()

	// A nil keep set must never reach ANY(): pgx encodes it as SQL NULL and
	// NOT (resource_id = ANY(NULL)) matches nothing, so the reconcile would
	// silently keep every stale flow. The empty case is a plain scoped delete.
	db.On("Exec", ctx, sqlContains("DELETE FROM flows WHERE account_id = $1 AND client_id = $2"),
		[]any{accountID, clientID}).Return(pgconn.NewCommandTag("DELETE 3"), nil)

	deleted, err := store.DeleteStale(ctx, accountID, clientID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	for _, call := range db.Calls {
		assert.NotContains(t, call.Arguments.String(1), "ANY")
	}
}

func TestStore_DeleteStale_KeepSetForwarded(t *testing.T) {
	db := &mockDB{}
	store := NewStore(db)
	ctx := context.Background()
	accountID, clientID := uuid.New(), uuid.New()
	keep := []uuid.UUID{uuid.New(), uuid.New()}

	db.On("Exec", ctx, sqlContains("NOT (resource_id = ANY($3))"), []any{accountID, clientID, keep}).Return(pgconn.NewCommandTag("DELETE 1"), nil)

	deleted, err := store.DeleteStale(ctx, accountID, clientID, keep)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	db.AssertExpectations(t)
}

// ---------- DeleteExpired ----------

func TestStore_DeleteExpired(t *testing.T) {
	db := &mockDB{}
	store := NewStore(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), []any(nil)).Return(pgconn.NewCommandTag("DELETE 7"), nil)

	deleted, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), deleted)
}
