package services

import (
	"errors"
	"fmt"
	"time"

	"readthis-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrInvalidToken is returned for any token that fails verification
var ErrInvalidToken = errors.New("invalid token")

// Claims is the token payload. UserID is the canonical claim; LegacyID carries the
// "_id" claim of tokens minted before the rename and is only read.
type Claims struct {
	UserID   string `json:"id,omitempty"`
	LegacyID any    `json:"_id,omitempty"`
	Type     string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// ResolveUserID returns the user id, preferring the canonical claim. A non-string
// legacy claim resolves to "".
func (c *Claims) ResolveUserID() string {
	if c.UserID != "" {
		return c.UserID
	}
	if v, ok := c.LegacyID.(string); ok {
		return v
	}
	return ""
}

// TokenManager mints and verifies HS256 access and refresh tokens
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// Issue mints a new access/refresh pair for userID
func (m *TokenManager) Issue(userID string) (models.TokenPair, error) {
	access, err := m.sign(userID, tokenTypeAccess, m.accessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := m.sign(userID, tokenTypeRefresh, m.refreshTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (m *TokenManager) sign(userID, typ string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		UserID: userID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

func (m *TokenManager) parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id := claims.ResolveUserID()
	if id == "" {
		return nil, fmt.Errorf("%w: user id not found in token", ErrInvalidToken)
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: user id is not a uuid", ErrInvalidToken)
	}
	return claims, nil
}

// ParseAccess verifies an access token and returns the user id. Tokens without a type
// claim are accepted for compatibility with older sessions.
func (m *TokenManager) ParseAccess(tokenString string) (string, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Type == tokenTypeRefresh {
		return "", fmt.Errorf("%w: refresh token used as access token", ErrInvalidToken)
	}
	return claims.ResolveUserID(), nil
}

// ParseRefresh verifies a refresh token and returns the user id
func (m *TokenManager) ParseRefresh(tokenString string) (string, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Type == tokenTypeAccess {
		return "", fmt.Errorf("%w: access token used as refresh token", ErrInvalidToken)
	}
	return claims.ResolveUserID(), nil
}

// Stale returns the tokens in list that no longer verify, typically because they expired
func (m *TokenManager) Stale(list []string) []string {
	stale := []string{}
	for _, t := range list {
		if _, err := m.parse(t); err != nil {
			stale = append(stale, t)
		}
	}
	return stale
}
