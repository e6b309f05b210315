package services

import (
	"context"
	"testing"

	"nfl-pickem/database"
	"nfl-pickem/models"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestTokenRoundTrip(t *testing.T) {
	directory := database.NewMemoryUserDirectory(models.User{ID: 3, DisplayName: "Daniel", AvatarRef: "a/3.png"})
	auth := NewAuthService(directory, "secret", "")

	token, err := auth.GenerateToken(models.User{ID: 3, DisplayName: "ignored", IsAdmin: true})
	require.NoError(t, err)

	user, err := auth.GetUserFromToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "Daniel", user.DisplayName)
	assert.Equal(t, "a/3.png", user.AvatarRef)
	assert.True(t, user.IsAdmin)
}

func TestTokenForUnknownUser(t *testing.T) {
	auth := NewAuthService(database.NewMemoryUserDirectory(), "secret", "")

	token, err := auth.GenerateToken(models.User{ID: 8})
	require.NoError(t, err)

	user, err := auth.GetUserFromToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "User 8", user.DisplayName)
	assert.False(t, user.IsAdmin)
}

func TestTokenWrongSecret(t *testing.T) {
	issuer := NewAuthService(database.NewMemoryUserDirectory(), "one", "")
	verifier := NewAuthService(database.NewMemoryUserDirectory(), "two", "")

	token, err := issuer.GenerateToken(models.User{ID: 1})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = verifier.ValidateToken("not-a-token")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestCheckAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("let-me-in"), bcrypt.MinCost)
	require.NoError(t, err)
	auth := NewAuthService(database.NewMemoryUserDirectory(), "secret", string(hash))

	assert.True(t, auth.CheckAdminKey("let-me-in"))
	assert.False(t, auth.CheckAdminKey("nope"))
	assert.False(t, auth.CheckAdminKey(""))
	assert.False(t, NewAuthService(database.NewMemoryUserDirectory(), "secret", "").CheckAdminKey("let-me-in"))
}
