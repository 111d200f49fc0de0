package events

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ---------- Mock DB ----------

type mockDB struct {
	mock.Mock
}

func (m *mockDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDB) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(pgx.Rows), args.Error(1)
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

type mockRows struct {
	callIndex int
	scanFuncs []func(dest ...any) error
	err       error
}

func (m *mockRows) Next() bool {
	return m.callIndex < len(m.scanFuncs)
}

func (m *mockRows) Scan(dest ...any) error {
	fn := m.scanFuncs[m.callIndex]
	m.callIndex++
	return fn(dest...)
}

func (m *mockRows) Err() error                                   { return m.err }
func (m *mockRows) Close()                                       {}
func (m *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (m *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (m *mockRows) RawValues() [][]byte                          { return nil }
func (m *mockRows) Values() ([]any, error)                       { return nil, nil }
func (m *mockRows) Conn() *pgx.Conn                              { return nil }

// ---------- Cursor ----------

func TestPostgresSource_Cursor(t *testing.T) {
	db := &mockDB{}
	source := NewPostgresSource(db)

	db.On("QueryRow", context.Background(), mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*dest[0].(*uint64) = 42
			return nil
		}})

	cursor, err := source.Cursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cursor)
}

// ---------- Fetch ----------

func TestPostgresSource_FetchDecodesRowImages(t *testing.T) {
	db := &mockDB{}
	source := NewPostgresSource(db)

	rows := &mockRows{scanFuncs: []func(dest ...any) error{
		func(dest ...any) error {
			*dest[0].(*uint64) = 5
			*dest[1].(*string) = "update"
			*dest[2].(*string) = "policies"
			*dest[3].(*[]byte) = []byte(`{"id":"a","description":"old"}`)
			*dest[4].(*[]byte) = []byte(`{"id":"a","description":"new"}`)
			return nil
		},
		func(dest ...any) error {
			*dest[0].(*uint64) = 6
			*dest[1].(*string) = "delete"
			*dest[2].(*string) = "tokens"
			*dest[3].(*[]byte) = []byte(`{"id":"b"}`)
			*dest[4].(*[]byte) = nil
			return nil
		},
	}}
	db.On("Query", context.Background(), mock.AnythingOfType("string"), []any{uint64(4), 256}).
		Return(rows, nil)

	events, err := source.Fetch(context.Background(), 4, 256)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, uint64(5), events[0].Seq)
	assert.Equal(t, OpUpdate, events[0].Op)
	assert.Equal(t, "policies", events[0].Table)
	assert.Equal(t, "old", events[0].Old.String("description"))
	assert.Equal(t, "new", events[0].New.String("description"))

	assert.Equal(t, OpDelete, events[1].Op)
	assert.Nil(t, events[1].New)
}

func TestPostgresSource_FetchQueryError(t *testing.T) {
	db := &mockDB{}
	source := NewPostgresSource(db)

	db.On("Query", context.Background(), mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := source.Fetch(context.Background(), 0, 256)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch change events")
}

// ---------- Commit ----------

func TestPostgresSource_CommitAdvancesAndTrims(t *testing.T) {
	db := &mockDB{}
	source := NewPostgresSource(db)

	db.On("Exec", context.Background(), mock.MatchedBy(func(sql string) bool {
		return sqlContains(sql, "UPDATE change_cursor")
	}), []any{uint64(9)}).Return(pgconn.NewCommandTag("UPDATE 1"), nil)
	db.On("Exec", context.Background(), mock.MatchedBy(func(sql string) bool {
		return sqlContains(sql, "DELETE FROM change_log")
	}), []any{uint64(9)}).Return(pgconn.NewCommandTag("DELETE 9"), nil)

	require.NoError(t, source.Commit(context.Background(), 9))
	db.AssertExpectations(t)
}

func sqlContains(sql, substr string) bool {
	return strings.Contains(sql, substr)
}
