package transport

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResourceIDs_Empty(t *testing.T) {
	ids, err := parseResourceIDs("")
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestParseResourceIDs_List(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	ids, err := parseResourceIDs(fmt.Sprintf("%s, %s", a, b))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, ids)
}

func TestParseResourceIDs_Invalid(t *testing.T) {
	_, err := parseResourceIDs("not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid resource id")
}
