package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))
	u := NewUser("a@b.com", "hash", "Ana")
	u.Roles = []string{"admin", "stock_manager"}

	token, expiresAt, err := svc.GenerateAccessToken(u)
	require.NoError(t, err)
	assert.False(t, expiresAt.IsZero())

	actor, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), actor.UserID)
	assert.Equal(t, "a@b.com", actor.Email)
	assert.Equal(t, []string{"admin", "stock_manager"}, actor.Roles)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, _, err := NewJWTService(DefaultJWTConfig("secret-one")).GenerateAccessToken(NewUser("a@b.com", "hash", ""))
	require.NoError(t, err)

	_, err = NewJWTService(DefaultJWTConfig("secret-two")).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("test-secret"))

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
