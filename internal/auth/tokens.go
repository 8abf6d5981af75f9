// Package auth issues and verifies the access and refresh JWTs.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
	ErrWrongType    = errors.New("wrong token type")
)

// Claims is the JWT payload. Refresh tokens carry the session id; access
// tokens carry the role at issue time.
type Claims struct {
	jwt.RegisteredClaims
	Role      string `json:"role,omitempty"`
	SessionID string `json:"sid,omitempty"`
	Type      string `json:"type"`
}

func (c *Claims) UserID() string {
	return c.Subject
}

type Manager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewManager(secret, issuer string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

// IssueAccess signs a short-lived access token.
func (m *Manager) IssueAccess(userID, role string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.accessTTL)
	token, err := m.sign(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: role,
		Type: TypeAccess,
	})
	return token, exp, err
}

// IssueRefresh signs a refresh token bound to a server-side session.
func (m *Manager) IssueRefresh(userID, sessionID string) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.refreshTTL)
	token, err := m.sign(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		SessionID: sessionID,
		Type:      TypeRefresh,
	})
	return token, exp, err
}

// Verify checks the signature, expiry, issuer and token type.
func (m *Manager) Verify(tokenString, wantType string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if claims.Type != wantType {
		return nil, ErrWrongType
	}
	return claims, nil
}

func (m *Manager) sign(c *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
}

// HashToken returns the hex SHA-256 of a token for server-side storage.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
