package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/event-calendar-api/internal/models"
	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims *models.JWTClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestTokenVerifierValidateToken(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	now := time.Now()

	token := signToken(t, jwt.SigningMethodHS256, []byte("secret"), &models.JWTClaims{
		Role:     models.RoleEditor,
		Email:    "editor@example.org",
		SpaceIDs: []string{"space-1"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleEditor, claims.Role)
	assert.True(t, claims.CanEditSpace("space-1"))
	assert.False(t, claims.CanEditSpace("space-2"))
}

func TestTokenVerifierDefaultsRole(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	token := signToken(t, jwt.SigningMethodHS256, []byte("secret"), &models.JWTClaims{UserID: "user-2"})

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, claims.Role)
}

func TestTokenVerifierRejects(t *testing.T) {
	verifier := NewTokenVerifier("secret")
	now := time.Now()

	cases := map[string]string{
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), &models.JWTClaims{UserID: "u"}),
		"wrong method": signToken(t, jwt.SigningMethodHS512, []byte("secret"), &models.JWTClaims{UserID: "u"}),
		"expired": signToken(t, jwt.SigningMethodHS256, []byte("secret"), &models.JWTClaims{
			UserID:           "u",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))},
		}),
		"garbage": "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.ValidateToken(token)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
		})
	}
}
