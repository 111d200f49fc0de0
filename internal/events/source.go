package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the narrow slice of pgxpool.Pool the events package needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresSource reads the change_log outbox, which row triggers populate
// in commit order with a monotonic sequence. The consumed position lives
// in the single-row change_cursor table.
type PostgresSource struct {
	db DB
}

func NewPostgresSource(db DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) Cursor(ctx context.Context) (uint64, error) {
	var seq uint64
	err := s.db.QueryRow(ctx, `SELECT seq FROM change_cursor`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read change cursor: %w", err)
	}
	return seq, nil
}

func (s *PostgresSource) Fetch(ctx context.Context, afterSeq uint64, limit int) ([]Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT seq, op, table_name, old_row, new_row
		   FROM change_log WHERE seq > $1 ORDER BY seq LIMIT $2`,
		afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch change events after %d: %w", afterSeq, err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var op string
		var oldRow, newRow []byte
		if err := rows.Scan(&ev.Seq, &op, &ev.Table, &oldRow, &newRow); err != nil {
			return nil, fmt.Errorf("scan change event: %w", err)
		}
		ev.Op = Op(op)
		if len(oldRow) > 0 {
			if err := json.Unmarshal(oldRow, &ev.Old); err != nil {
				return nil, fmt.Errorf("decode old row at seq %d: %w", ev.Seq, err)
			}
		}
		if len(newRow) > 0 {
			if err := json.Unmarshal(newRow, &ev.New); err != nil {
				return nil, fmt.Errorf("decode new row at seq %d: %w", ev.Seq, err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate change events: %w", err)
	}
	return events, nil
}

// Commit advances the cursor and trims acknowledged outbox rows.
func (s *PostgresSource) Commit(ctx context.Context, seq uint64) error {
	if _, err := s.db.Exec(ctx, `UPDATE change_cursor SET seq = $1 WHERE seq < $1`, seq); err != nil {
		return fmt.Errorf("advance change cursor to %d: %w", seq, err)
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM change_log WHERE seq <= $1`, seq); err != nil {
		return fmt.Errorf("trim change log to %d: %w", seq, err)
	}
	return nil
}
