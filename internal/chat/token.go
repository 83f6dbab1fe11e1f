// Package chat integrates with the hosted chat service: it signs user tokens,
// mirrors user profiles and verifies inbound webhooks.
package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotConfigured is returned when no API key/secret is set.
var ErrNotConfigured = errors.New("chat service is not configured")

// TokenIssuer signs client tokens in the hosted service's format: HS256 with a
// user_id claim, keyed by the API secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer; an empty secret yields one that always
// fails with ErrNotConfigured.
func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type userClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// IssueToken returns a token the frontend passes to the chat SDK for userID.
func (i *TokenIssuer) IssueToken(userID string) (string, error) {
	if len(i.secret) == 0 {
		return "", ErrNotConfigured
	}
	claims := userClaims{UserID: userID}
	if i.ttl > 0 {
		now := i.now()
		claims.IssuedAt = jwt.NewNumericDate(now)
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign chat token: %w", err)
	}
	return signed, nil
}

// serverToken authorizes server-side REST calls.
func serverToken(secret []byte) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"server": true}).SignedString(secret)
}
