package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grouping-api/internal/models"
	appErrors "github.com/noah-isme/sma-grouping-api/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "sma"})
	token, expires, err := svc.Issue("user-1", models.RoleTeacher, "t@example.com", "Teacher One")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestTokenServiceRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService(TokenConfig{Secret: "one"})
	verifier := NewTokenService(TokenConfig{Secret: "two"})
	token, _, err := issuer.Issue("user-1", models.RoleAdmin, "", "")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestTokenServiceRejectsExpired(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Expiration: time.Minute})
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := svc.Issue("user-1", models.RoleTeacher, "", "")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestTokenServiceRejectsWrongIssuer(t *testing.T) {
	token, _, err := NewTokenService(TokenConfig{Secret: "s", Issuer: "other"}).Issue("u", models.RoleTeacher, "", "")
	require.NoError(t, err)

	_, err = NewTokenService(TokenConfig{Secret: "s", Issuer: "sma"}).ValidateToken(token)
	assert.Error(t, err)
}
