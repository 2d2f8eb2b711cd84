// Package token issues and verifies identity tokens for the transport edge.
//
// Tokens bind a connection to a session participant so reconnects restore
// the right seat. They authenticate identity only; the engine's own checks
// still gate every operation.
package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/oligibbons/one-mind-many-sub000/internal/platform/errors"
)

const issuer = "one-mind-many"

// Identity is the participant binding carried by a token.
type Identity struct {
	SessionID     string
	ParticipantID string
	DisplayName   string
}

// identityClaims is the internal claims type used for JWT parsing.
type identityClaims struct {
	jwt.RegisteredClaims
	SessionID   string `json:"session_id"`
	DisplayName string `json:"display_name"`
}

// Manager signs and verifies identity tokens with an HMAC key.
type Manager struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewManager builds a token manager. The key is required; a non-positive ttl
// defaults to 24 hours.
func NewManager(key []byte, ttl time.Duration, now func() time.Time) (*Manager, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("token key is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{key: key, ttl: ttl, now: now}, nil
}

// Issue signs a token for the identity.
func (m *Manager) Issue(identity Identity) (string, error) {
	if strings.TrimSpace(identity.SessionID) == "" {
		return "", fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(identity.ParticipantID) == "" {
		return "", fmt.Errorf("participant id is required")
	}

	issuedAt := m.now().UTC()
	claims := identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   identity.ParticipantID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(m.ttl)),
		},
		SessionID:   identity.SessionID,
		DisplayName: identity.DisplayName,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign identity token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the identity it carries.
func (m *Manager) Verify(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, apperrors.New(apperrors.CodeIdentityTokenInvalid, "identity token is required")
	}

	var parsed identityClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(token *jwt.Token) (any, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Identity{}, apperrors.Wrap(apperrors.CodeIdentityTokenInvalid, "verify identity token", err)
	}
	if parsed.Subject == "" || parsed.SessionID == "" {
		return Identity{}, apperrors.New(apperrors.CodeIdentityTokenInvalid, "identity token is missing claims")
	}
	return Identity{
		SessionID:     parsed.SessionID,
		ParticipantID: parsed.Subject,
		DisplayName:   parsed.DisplayName,
	}, nil
}
