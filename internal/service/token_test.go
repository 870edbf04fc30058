package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/services-marketplace/internal/models"
)

func TestTokenManager_AccessRoundTrip(t *testing.T) {
	m := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleServiceProvider}

	pair, _, _, err := m.GeneratePair(user)
	require.NoError(t, err)
	assert.Equal(t, int64(60), pair.ExpiresIn)

	id, role, err := m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id)
	assert.Equal(t, models.RoleServiceProvider, role)

	// refresh не подходит как access
	_, _, err = m.ParseAccess(pair.RefreshToken)
	assert.Error(t, err)
}

func TestTokenManager_Expired(t *testing.T) {
	m := NewTokenManager("a", "r", time.Minute, time.Hour)
	pair, _, _, err := m.GeneratePair(&models.User{ID: uuid.New()})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, _, err = m.ParseAccess(pair.AccessToken)
	assert.Error(t, err)

	claims, err := m.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
}
