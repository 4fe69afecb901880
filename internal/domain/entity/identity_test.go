package entity_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tavily-register/internal/domain/entity"
)

func TestNewIdentity(t *testing.T) {
	id := entity.NewIdentity("user123", "2925.com", "pw")

	assert.Regexp(t, regexp.MustCompile(`^user123-[a-z0-9]{8}@2925\.com$`), id.Address)
	assert.Equal(t, "pw", id.Secret)
}

func TestNewIdentityIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := entity.NewIdentity("user123", "2925.com", "pw")
		require.False(t, seen[id.Address], "duplicate address %s", id.Address)
		seen[id.Address] = true
	}
}

func TestNewSession(t *testing.T) {
	id := entity.NewIdentity("user123", "2925.com", "pw")
	sess := entity.NewSession(id)

	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, entity.PhaseInit, sess.Phase)
	assert.Equal(t, id, sess.Identity)
	assert.False(t, sess.StartedAt.IsZero())

	other := entity.NewSession(id)
	assert.NotEqual(t, sess.ID, other.ID)
}
