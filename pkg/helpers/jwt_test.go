package helpers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("access-secret", "refresh-secret", time.Minute, time.Hour)

	access, exp, err := m.GenerateAccessToken("u-1", "sid-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	claims, err := m.ParseAccessToken(access)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "sid-1", claims.SessionID)
}

func TestJWTSecretsAreNotInterchangeable(t *testing.T) {
	m := NewJWTManager("access-secret", "refresh-secret", time.Minute, time.Hour)

	refresh, _, err := m.GenerateRefreshToken("u-1", "sid-1")
	require.NoError(t, err)

	_, err = m.ParseAccessToken(refresh)
	assert.Error(t, err, "refresh token must not pass as access token")

	claims, err := m.ParseRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
}

func TestJWTExpiry(t *testing.T) {
	m := NewJWTManager("access-secret", "refresh-secret", -time.Second, time.Hour)
	access, _, err := m.GenerateAccessToken("u-1", "sid-1")
	require.NoError(t, err)

	_, err = m.ParseAccessToken(access)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, CompareHashAndPassword(hash, "s3cret"))
	assert.False(t, CompareHashAndPassword(hash, "S3cret"))
	assert.False(t, CompareHashAndPassword("", "s3cret"))
}
