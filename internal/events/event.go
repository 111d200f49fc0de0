// Package events consumes the database's ordered change stream and routes
// each row mutation to the handler registered for its table.
package events

import (
	"context"
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/firezone/firezone-sub013/internal/model"
)

// Op is a row-level mutation kind.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event is one committed row mutation. Seq is the position in the
// database's total commit order; Old and New are the row images as
// string-keyed maps (nil for the absent side of an insert or delete).
type Event struct {
	Seq   uint64
	Op    Op
	Table string
	Old   Row
	New   Row
}

// Handler reacts to mutations of one table. Implementations must be
// idempotent under replay: the stream is delivered at least once.
type Handler interface {
	Table() string
	OnInsert(ctx context.Context, seq uint64, new Row) error
	OnUpdate(ctx context.Context, seq uint64, old, new Row) error
	OnDelete(ctx context.Context, seq uint64, old Row) error
}

// Row is a JSON-decoded row image.
type Row map[string]any

// String returns the value for key as a string, or "" when absent or null.
func (r Row) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// UUID parses the value for key; the zero UUID marks absence.
func (r Row) UUID(key string) uuid.UUID {
	s, ok := r[key].(string)
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Time parses the value for key as an ISO 8601 timestamp, returning nil
// when absent, null or unparseable.
func (r Row) Time(key string) *time.Time {
	s, ok := r[key].(string)
	if !ok {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Lifecycle reads the soft-delete columns shared by most tracked tables.
func (r Row) Lifecycle() model.Lifecycle {
	return model.Lifecycle{DisabledAt: r.Time("disabled_at"), DeletedAt: r.Time("deleted_at")}
}

// Changed reports whether the value under key differs between two row
// images. Values are compared structurally so JSON columns (condition
// sets, filter lists) compare correctly.
func Changed(old, new Row, key string) bool {
	return !reflect.DeepEqual(old[key], new[key])
}
