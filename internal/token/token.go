// Package token signs and verifies the access/refresh session token pair.
// Both kinds share the signing secret but carry independent lifetimes and a
// kind discriminator, so an access token can never stand in for a refresh
// token or vice versa.
package token

import (
	"errors"
	"time"

	"github.com/gatehouse-hq/apiserver/types"
	"github.com/golang-jwt/jwt/v5"
)

// Kind selects which of the two session tokens is being signed or verified.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// ErrInvalidToken is returned for any verification failure: expired,
// malformed, bad signature or wrong kind. Callers treat it as "token
// absent" and fall through to the next credential, never as fatal.
var ErrInvalidToken = errors.New("invalid session token")

// Payload is the identity carried inside both session tokens.
type Payload struct {
	AccountID string
	Email     string
	Roles     []types.Role
}

type sessionClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"role"`
	Kind  string   `json:"kind"`
	jwt.RegisteredClaims
}

// Manager issues and verifies session tokens.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(secret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// AccessTTL returns the configured access-token lifetime.
func (m *Manager) AccessTTL() time.Duration { return m.accessTTL }

// RefreshTTL returns the configured refresh-token lifetime.
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// Sign issues a token of the given kind for the payload.
func (m *Manager) Sign(payload Payload, kind Kind) (string, error) {
	ttl := m.accessTTL
	if kind == KindRefresh {
		ttl = m.refreshTTL
	}

	now := time.Now()
	claims := sessionClaims{
		Email: payload.Email,
		Roles: types.RoleStrings(payload.Roles),
		Kind:  string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.AccountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// SignPair issues a fresh access+refresh pair for the payload. The two are
// always issued together, never independently.
func (m *Manager) SignPair(payload Payload) (access, refresh string, err error) {
	access, err = m.Sign(payload, KindAccess)
	if err != nil {
		return "", "", err
	}
	refresh, err = m.Sign(payload, KindRefresh)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Verify parses a raw token of the given kind and returns its payload.
func (m *Manager) Verify(raw string, kind Kind) (Payload, error) {
	claims := sessionClaims{}
	parsed, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Payload{}, ErrInvalidToken
	}
	if claims.Kind != string(kind) {
		return Payload{}, ErrInvalidToken
	}
	if claims.Subject == "" {
		return Payload{}, ErrInvalidToken
	}

	roles, err := types.ParseRoles(claims.Roles)
	if err != nil {
		return Payload{}, ErrInvalidToken
	}

	return Payload{
		AccountID: claims.Subject,
		Email:     claims.Email,
		Roles:     roles,
	}, nil
}
