// Package identity resolves a validated user id from a bearer token. Token
// issuance lives elsewhere; the relay only verifies what it is handed.
package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt"
)

var ErrInvalidToken = errors.New("invalid token")

const userIdClaim = "user-id"

type Provider interface {
	Resolve(token string) (string, error)
}

type JWTProvider struct {
	signingKey []byte
}

func NewJWTProvider(signingKey []byte) *JWTProvider {
	return &JWTProvider{signingKey: signingKey}
}

func (p *JWTProvider) Resolve(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return p.signingKey, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	userId, ok := claims[userIdClaim].(string)
	if !ok || userId == "" {
		return "", fmt.Errorf("%w: missing user id claim", ErrInvalidToken)
	}

	return userId, nil
}
