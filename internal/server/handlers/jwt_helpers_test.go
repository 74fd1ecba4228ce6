package handlers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateAccessToken(t *testing.T) {
	cfg := testAuthJWTConfig()

	token, expiresIn, err := GenerateAccessToken(cfg, "user123", "testuser", "sess-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, int64(3600), expiresIn)

	claims, err := ValidateAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "user123", claims.UserID)
	assert.Equal(t, "testuser", claims.Username)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "tabkeeper", claims.Issuer)
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	token, _, err := GenerateAccessToken(testAuthJWTConfig(), "user123", "testuser", "sess-1")
	require.NoError(t, err)

	otherCfg := JWTConfig{Secret: []byte("other-secret"), AccessTokenTTL: time.Hour}
	_, err = ValidateAccessToken(otherCfg, token)
	assert.Error(t, err)
}

func TestValidateAccessToken_Expired(t *testing.T) {
	cfg := JWTConfig{Secret: []byte("test-secret"), AccessTokenTTL: -time.Minute}

	token, _, err := GenerateAccessToken(cfg, "user123", "testuser", "sess-1")
	require.NoError(t, err)

	_, err = ValidateAccessToken(cfg, token)
	assert.Error(t, err)
}

func TestValidateAccessToken_NoSessionClaim(t *testing.T) {
	cfg := testAuthJWTConfig()

	// Токен старого формата без session_id
	claims := CustomClaims{
		UserID:   "user123",
		Username: "testuser",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(cfg.Secret)
	require.NoError(t, err)

	_, err = ValidateAccessToken(cfg, token)
	assert.ErrorIs(t, err, ErrNoSessionClaim)
}

func TestValidateAccessToken_WrongSigningMethod(t *testing.T) {
	cfg := testAuthJWTConfig()

	// alg=none должен отклоняться проверкой метода подписи
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, CustomClaims{
		UserID:    "user123",
		SessionID: "sess-1",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateAccessToken(cfg, token)
	assert.Error(t, err)
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	_, err := ValidateAccessToken(testAuthJWTConfig(), "not.a.token")
	assert.Error(t, err)
}
