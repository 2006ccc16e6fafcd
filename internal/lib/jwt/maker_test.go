package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaker_GenerateAndParse(t *testing.T) {
	maker := NewMaker("test_secret_key_1234567890", 15*time.Minute)

	tests := []struct {
		name     string
		userID   string
		username string
		role     string
	}{
		{"admin", "11111111-1111-1111-1111-111111111111", "admin_user", "admin"},
		{"subscriber", "22222222-2222-2222-2222-222222222222", "sub", "subscriber"},
		{"normal", "33333333-3333-3333-3333-333333333333", "user@domain.com", "normal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.userID, tt.username, tt.role)
			require.NoError(t, err)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, claims.UserID())
			assert.Equal(t, tt.username, claims.Username)
			assert.Equal(t, tt.role, claims.Role)
			assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 2*time.Second)
		})
	}
}

func TestMaker_ParseToken_Invalid(t *testing.T) {
	maker := NewMaker("secret", time.Minute)

	expired := NewMaker("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expiredToken, err := expired.GenerateToken("u1", "name", "normal")
	require.NoError(t, err)

	foreign, err := NewMaker("other-secret", time.Minute).GenerateToken("u1", "name", "normal")
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", Issuer: issuer},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":          "",
		"garbage":        "not.a.token",
		"expired":        expiredToken,
		"wrong secret":   foreign,
		"none algorithm": noneToken,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := maker.ParseToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
