// internal/auth/session.go
package auth

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken covers malformed, badly signed and expired tokens.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrRevokedToken is returned for tokens invalidated by logout.
	ErrRevokedToken = errors.New("session token revoked")
)

// Claims are the registered claims carried by a session token: sub is the user
// id, jti identifies the token for revocation.
type Claims struct {
	jwt.RegisteredClaims
}

// Denylist records revoked token ids until their natural expiry.
type Denylist interface {
	// Revoke marks jti revoked. A zero until keeps the entry forever.
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// SessionManager signs and verifies EdDSA session tokens.
type SessionManager struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	ttl        time.Duration
	denylist   Denylist
	now        func() time.Time
}

// NewSessionManager builds a manager. seed is a base64 ed25519 seed; empty
// generates a fresh key pair, so tokens do not survive a restart. ttl zero means
// tokens carry no exp claim.
func NewSessionManager(seed string, ttl time.Duration, denylist Denylist) (*SessionManager, error) {
	var (
		priv ed25519.PrivateKey
		pub  ed25519.PublicKey
	)
	if seed == "" {
		var err error
		pub, priv, err = ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
		}
	} else {
		raw, err := base64.StdEncoding.DecodeString(seed)
		if err != nil {
			return nil, fmt.Errorf("decode JWT_KEY_SEED: %w", err)
		}
		if len(raw) != ed25519.SeedSize {
			return nil, fmt.Errorf("JWT_KEY_SEED must be %d bytes, got %d", ed25519.SeedSize, len(raw))
		}
		priv = ed25519.NewKeyFromSeed(raw)
		pub = priv.Public().(ed25519.PublicKey)
	}
	if denylist == nil {
		denylist = NewMemoryDenylist()
	}
	return &SessionManager{
		privateKey: priv,
		publicKey:  pub,
		ttl:        ttl,
		denylist:   denylist,
		now:        time.Now,
	}, nil
}

// TTL is the configured token lifetime; zero means no expiry.
func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Issue creates a signed token for userID.
func (m *SessionManager) Issue(userID string) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  userID,
		ID:       uuid.NewString(),
		IssuedAt: jwt.NewNumericDate(now),
	}}
	if m.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies the signature and expiry of tokenString without consulting the denylist.
func (m *SessionManager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.publicKey, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify parses tokenString and rejects revoked tokens.
func (m *SessionManager) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := m.Parse(tokenString)
	if err != nil {
		return nil, err
	}
	revoked, err := m.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke denylists the token until it would have expired anyway.
func (m *SessionManager) Revoke(ctx context.Context, claims *Claims) error {
	var until time.Time
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return m.denylist.Revoke(ctx, claims.ID, until)
}
