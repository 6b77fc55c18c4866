// Package auth issues and verifies the bearer JWTs that authenticate the
// HTTP API and the WebSocket upgrade.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the subject (user id) and email on every access token,
// plus an optional Type discriminator used only by refresh tokens.
type Claims struct {
	Email string `json:"email"`
	Type  string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies access/refresh tokens with a single HMAC
// secret, matching the teacher-adjacent JWTManager shape.
type Manager struct {
	secret        []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewManager builds a Manager. refreshTTL is fixed at 7 days, matching
// the service this replaces; accessTTL is configurable.
func NewManager(secret string, accessTTL time.Duration) *Manager {
	return &Manager{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: 7 * 24 * time.Hour}
}

// IssueAccessToken signs a short-lived access token for userID/email.
func (m *Manager) IssueAccessToken(userID, email string) (string, error) {
	return m.sign(userID, email, "", m.accessTTL)
}

// IssueRefreshToken signs a 7-day refresh token carrying type=refresh.
func (m *Manager) IssueRefreshToken(userID, email string) (string, error) {
	return m.sign(userID, email, "refresh", m.refreshTTL)
}

func (m *Manager) sign(userID, email, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates a token, returning its claims.
func (m *Manager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ExtractFromHeader pulls a bearer token out of the Authorization header.
func ExtractFromHeader(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errors.New("authorization header missing or malformed")
	}
	return strings.TrimPrefix(header, prefix), nil
}

// ExtractFromQuery pulls a token out of the ?token= query parameter, the
// path a browser WebSocket upgrade must use since it cannot set headers.
func ExtractFromQuery(r *http.Request) (string, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return "", errors.New("token query parameter missing")
	}
	return token, nil
}

// FromRequest extracts a bearer token from the header first, falling back
// to the query parameter for WebSocket upgrades.
func (m *Manager) FromRequest(r *http.Request) (*Claims, error) {
	token, err := ExtractFromHeader(r)
	if err != nil {
		token, err = ExtractFromQuery(r)
		if err != nil {
			return nil, err
		}
	}
	return m.Verify(token)
}
