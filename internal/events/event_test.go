package events

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firezone/firezone-sub013/internal/model"
)

// ---------- Row helpers ----------

func TestRowUUID(t *testing.T) {
	id := uuid.New()
	row := Row{"id": id.String(), "garbage": "not-a-uuid", "number": float64(7)}

	assert.Equal(t, id, row.UUID("id"))
	assert.Equal(t, uuid.Nil, row.UUID("garbage"))
	assert.Equal(t, uuid.Nil, row.UUID("number"))
	assert.Equal(t, uuid.Nil, row.UUID("missing"))
}

func TestRowTime(t *testing.T) {
	row := Row{
		"rfc3339":  "2026-03-01T12:30:00.123456Z",
		"postgres": "2026-03-01T12:30:00.123456-05",
		"null":     nil,
		"garbage":  "yesterday",
	}

	ts := row.Time("rfc3339")
	require.NotNil(t, ts)
	assert.Equal(t, 2026, ts.Year())

	ts = row.Time("postgres")
	require.NotNil(t, ts)
	assert.Equal(t, 12, ts.Hour())

	assert.Nil(t, row.Time("null"))
	assert.Nil(t, row.Time("garbage"))
	assert.Nil(t, row.Time("missing"))
}

func TestRowLifecycle(t *testing.T) {
	active := Row{"id": uuid.New().String()}
	assert.Equal(t, model.StateActive, active.Lifecycle().State())

	disabled := Row{"disabled_at": time.Now().UTC().Format(time.RFC3339)}
	assert.Equal(t, model.StateDisabled, disabled.Lifecycle().State())

	deleted := Row{"deleted_at": time.Now().UTC().Format(time.RFC3339)}
	assert.Equal(t, model.StateDeleted, deleted.Lifecycle().State())
}

func TestChanged_ComparesStructurally(t *testing.T) {
	conditions := func(region string) []any {
		return []any{map[string]any{
			"property": "remote_ip_location_region",
			"operator": "is_in",
			"values":   []any{region},
		}}
	}

	old := Row{"conditions": conditions("US"), "name": "office"}
	same := Row{"conditions": conditions("US"), "name": "office"}
	edited := Row{"conditions": conditions("DE"), "name": "office"}

	assert.False(t, Changed(old, same, "conditions"))
	assert.True(t, Changed(old, edited, "conditions"))
	assert.False(t, Changed(old, edited, "name"))
	assert.True(t, Changed(old, Row{}, "conditions"))
}
