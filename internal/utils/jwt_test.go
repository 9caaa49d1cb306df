package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateJWTRoundTrip(t *testing.T) {
	SetJWTSecret("test-secret")
	userID := uuid.New()

	token, err := GenerateJWT(userID, "soca@limey.tt", true, time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)

	got, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, got)
	assert.Equal(t, "soca@limey.tt", claims.Email)
	assert.True(t, claims.IsAdmin())
}

func TestValidateJWTRejectsExpired(t *testing.T) {
	SetJWTSecret("test-secret")

	token, err := GenerateJWT(uuid.New(), "a@b.tt", false, -time.Minute)
	require.NoError(t, err)

	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestValidateJWTRejectsWrongSecret(t *testing.T) {
	SetJWTSecret("one")
	token, err := GenerateJWT(uuid.New(), "a@b.tt", false, time.Hour)
	require.NoError(t, err)

	SetJWTSecret("two")
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestValidateJWTRejectsNonUUIDSubject(t *testing.T) {
	SetJWTSecret("test-secret")
	claims := SupabaseClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "service-role",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestIsAdminWithoutMetadata(t *testing.T) {
	claims := &SupabaseClaims{}
	assert.False(t, claims.IsAdmin())
}
