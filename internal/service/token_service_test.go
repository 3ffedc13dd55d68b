package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dockwise/dockwise-api/internal/models"
	"github.com/dockwise/dockwise-api/pkg/config"
)

func signTestToken(t *testing.T, secret string, method jwt.SigningMethod, claims models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(method, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func testClaims(issuer string, expires time.Time) models.JWTClaims {
	return models.JWTClaims{
		UserID: "user-1",
		Role:   models.RoleDispatcher,
		Email:  "dispatch@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret", Issuer: "dockwise-portal"})
	raw := signTestToken(t, "test-secret", jwt.SigningMethodHS256, testClaims("dockwise-portal", time.Now().Add(time.Hour)))

	claims, err := svc.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleDispatcher, claims.Role)
}

func TestTokenServiceRejectsWrongSecret(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret"})
	raw := signTestToken(t, "other-secret", jwt.SigningMethodHS256, testClaims("", time.Now().Add(time.Hour)))

	_, err := svc.ValidateToken(raw)
	require.Error(t, err)
}

func TestTokenServiceRejectsExpiredToken(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret"})
	raw := signTestToken(t, "test-secret", jwt.SigningMethodHS256, testClaims("", time.Now().Add(-time.Hour)))

	_, err := svc.ValidateToken(raw)
	require.Error(t, err)
}

func TestTokenServiceRejectsWrongIssuer(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret", Issuer: "dockwise-portal"})
	raw := signTestToken(t, "test-secret", jwt.SigningMethodHS256, testClaims("someone-else", time.Now().Add(time.Hour)))

	_, err := svc.ValidateToken(raw)
	require.Error(t, err)
}

func TestTokenServiceRejectsWrongSigningMethod(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "test-secret"})
	raw := signTestToken(t, "test-secret", jwt.SigningMethodHS384, testClaims("", time.Now().Add(time.Hour)))

	_, err := svc.ValidateToken(raw)
	require.Error(t, err)
}
