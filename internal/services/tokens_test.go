package services

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testUserID = "6f1c2a9e-3b7d-4c1e-9a53-2f8d0b7e4a11"
)

func newTestTokens() *TokenManager {
	return NewTokenManager(testSecret, time.Hour, 7*24*time.Hour)
}

func signMap(t *testing.T, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func TestTokenManager_IssueAndParse(t *testing.T) {
	m := newTestTokens()

	pair, err := m.Issue(testUserID)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	id, err := m.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, testUserID, id)

	id, err = m.ParseRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, testUserID, id)
}

func TestTokenManager_IssueIsUnique(t *testing.T) {
	m := newTestTokens()
	a, err := m.Issue(testUserID)
	require.NoError(t, err)
	b, err := m.Issue(testUserID)
	require.NoError(t, err)
	assert.NotEqual(t, a.RefreshToken, b.RefreshToken)
}

func TestTokenManager_TypeConfusion(t *testing.T) {
	m := newTestTokens()
	pair, err := m.Issue(testUserID)
	require.NoError(t, err)

	_, err = m.ParseAccess(pair.RefreshToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = m.ParseRefresh(pair.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestTokenManager_Expired(t *testing.T) {
	m := newTestTokens()
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	pair, err := m.Issue(testUserID)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ParseAccess(pair.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	// The refresh token outlives the access token.
	_, err = m.ParseRefresh(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestTokenManager_LegacyClaim(t *testing.T) {
	m := newTestTokens()
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"string _id", jwt.MapClaims{"_id": testUserID, "exp": exp}, testUserID},
		{"id wins over _id", jwt.MapClaims{"id": testUserID, "_id": "6f1c2a9e-0000-4c1e-9a53-2f8d0b7e4a11", "exp": exp}, testUserID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := m.ParseAccess(signMap(t, jwt.SigningMethodHS256, tt.claims))
			require.NoError(t, err)
			assert.Equal(t, tt.want, id)
		})
	}
}

func TestTokenManager_Rejects(t *testing.T) {
	m := newTestTokens()
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{"no user id", signMap(t, jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp})},
		{"no expiry", signMap(t, jwt.SigningMethodHS256, jwt.MapClaims{"id": testUserID})},
		{"other algorithm", signMap(t, jwt.SigningMethodHS384, jwt.MapClaims{"id": testUserID, "exp": exp})},
		{"numeric _id", signMap(t, jwt.SigningMethodHS256, jwt.MapClaims{"_id": 42, "exp": exp})},
		{"non-uuid id", signMap(t, jwt.SigningMethodHS256, jwt.MapClaims{"id": "user-1", "exp": exp})},
		{"non-uuid _id", signMap(t, jwt.SigningMethodHS256, jwt.MapClaims{"_id": "507f1f77bcf86cd799439011", "exp": exp})},
		{"garbage", "not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.ParseAccess(tt.token)
			assert.True(t, errors.Is(err, ErrInvalidToken))
		})
	}

	other := NewTokenManager("other-secret", time.Hour, time.Hour)
	pair, err := other.Issue(testUserID)
	require.NoError(t, err)
	_, err = m.ParseAccess(pair.AccessToken)
	assert.Error(t, err)
}

func TestTokenManager_Stale(t *testing.T) {
	m := newTestTokens()
	live, err := m.Issue(testUserID)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }
	old, err := m.Issue(testUserID)
	require.NoError(t, err)
	m.now = time.Now

	stale := m.Stale([]string{live.RefreshToken, old.RefreshToken, "junk"})
	assert.ElementsMatch(t, []string{old.RefreshToken, "junk"}, stale)

	assert.NotNil(t, m.Stale(nil))
	assert.Empty(t, m.Stale(nil))
}
