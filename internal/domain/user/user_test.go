package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, value := range []string{"tourist", "Guide", " admin "} {
		role, err := ParseRole(value)
		require.NoError(t, err, value)
		assert.True(t, role.Valid())
	}

	_, err := ParseRole("host")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestNewActor(t *testing.T) {
	actor, err := NewActor(" u-1 ", RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, ID("u-1"), actor.ID)
	assert.True(t, actor.Is(RoleAdmin))

	_, err = NewActor("", RoleAdmin)
	assert.ErrorIs(t, err, ErrIDRequired)
	_, err = NewActor("u-1", Role("superuser"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}
