package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_RoundTrip(t *testing.T) {
	m, err := NewTokenManager(secret, "report-portal", time.Hour)
	require.NoError(t, err)

	token, expiresAt, err := m.Issue("ops", RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_Rejects(t *testing.T) {
	m, _ := NewTokenManager(secret, "report-portal", time.Minute)
	token, _, _ := m.Issue("ops", RoleAdmin)

	other, _ := NewTokenManager(strings.Repeat("x", 32), "report-portal", time.Minute)
	_, err := other.Parse(token)
	assert.Error(t, err, "wrong secret")

	wrongIssuer, _ := NewTokenManager(secret, "someone-else", time.Minute)
	_, err = wrongIssuer.Parse(token)
	assert.Error(t, err, "wrong issuer")

	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "ops", "role": RoleAdmin, "iss": "report-portal"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	_, err = m.Parse(unsigned)
	assert.Error(t, err, "alg none")
}

func TestNewTokenManager_ShortSecret(t *testing.T) {
	_, err := NewTokenManager("short", "x", time.Minute)
	assert.Error(t, err)
}

func TestKeyMatches(t *testing.T) {
	assert.True(t, KeyMatches("k-123", "k-123"))
	assert.False(t, KeyMatches("k-124", "k-123"))
	assert.False(t, KeyMatches("", ""))
	assert.Len(t, HashHexSHA256("k"), 64)
}
