package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-billing-api/internal/models"
)

func signTestToken(t *testing.T, secret string, expiresAt time.Time) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID: "user-1",
		Role:   "parent",
		Email:  "parent@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService("secret")
	signed := signTestToken(t, "secret", time.Now().Add(time.Hour))

	claims, err := svc.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "parent", claims.Role)
}

func TestTokenServiceValidateTokenWrongSecret(t *testing.T) {
	svc := NewTokenService("secret")
	signed := signTestToken(t, "other", time.Now().Add(time.Hour))

	_, err := svc.ValidateToken(signed)
	require.Error(t, err)
}

func TestTokenServiceValidateTokenExpired(t *testing.T) {
	svc := NewTokenService("secret")
	signed := signTestToken(t, "secret", time.Now().Add(-time.Hour))

	_, err := svc.ValidateToken(signed)
	require.Error(t, err)
}
