package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("test-signing-key")

func signToken(t *testing.T, key []byte, claims jwt.MapClaims) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestJWTProviderResolve(t *testing.T) {
	p := NewJWTProvider(testKey)

	t.Run("valid token", func(t *testing.T) {
		tok := signToken(t, testKey, jwt.MapClaims{
			"user-id": "alice",
			"exp":     time.Now().Add(time.Hour).Unix(),
		})

		userId, err := p.Resolve(tok)
		require.NoError(t, err)
		assert.Equal(t, "alice", userId)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		tok := signToken(t, []byte("other-key"), jwt.MapClaims{"user-id": "alice"})

		_, err := p.Resolve(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		tok := signToken(t, testKey, jwt.MapClaims{
			"user-id": "alice",
			"exp":     time.Now().Add(-time.Hour).Unix(),
		})

		_, err := p.Resolve(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user id claim", func(t *testing.T) {
		tok := signToken(t, testKey, jwt.MapClaims{"sub": "alice"})

		_, err := p.Resolve(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := p.Resolve("not.a.jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
