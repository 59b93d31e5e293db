package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify(t *testing.T) {
	a := NewJWTAuthenticator("secret", "bookstore")

	token, err := a.GenerateToken(42, time.Hour)
	require.NoError(t, err)

	id, err := a.Identify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id.UserID)
	assert.Equal(t, token, id.Token)
	assert.False(t, id.IsGuest())
}

func TestIdentifyNumericSubject(t *testing.T) {
	a := NewJWTAuthenticator("secret", "")
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 7,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	id, err := a.Identify(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id.UserID)
}

func TestIdentifyRejects(t *testing.T) {
	a := NewJWTAuthenticator("secret", "bookstore")

	expired, err := a.GenerateToken(42, -time.Hour)
	require.NoError(t, err)
	otherKey, err := NewJWTAuthenticator("other", "bookstore").GenerateToken(42, time.Hour)
	require.NoError(t, err)
	otherIssuer, err := NewJWTAuthenticator("secret", "someone-else").GenerateToken(42, time.Hour)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "42", "iss": "bookstore"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	badSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
		"iss": "bookstore",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-jwt",
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"no expiry":    noExp,
		"bad subject":  badSub,
	} {
		t.Run(name, func(t *testing.T) {
			id, err := a.Identify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.True(t, id.IsGuest())
		})
	}
}
