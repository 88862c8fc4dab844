package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskpulse/taskpulse/internal/config"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:            "0123456789abcdef0123456789abcdef",
		TokenLifetimeMinutes: 60,
	}
}

func TestNewTokenServiceRejectsShortSecret(t *testing.T) {
	_, err := NewTokenService(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 60})
	assert.Error(t, err)
}

func TestGenerateAndValidateRoundTrip(t *testing.T) {
	svc, err := NewTokenService(testConfig())
	require.NoError(t, err)
	ctx := context.Background()

	token, err := svc.GenerateToken(ctx, 42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}

func TestValidateGarbageToken(t *testing.T) {
	svc, err := NewTokenService(testConfig())
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateWrongKey(t *testing.T) {
	ctx := context.Background()
	svc, err := NewTokenService(testConfig())
	require.NoError(t, err)

	other, err := NewTokenService(config.AuthConfig{
		JWTSecret:            "ffffffffffffffffffffffffffffffff",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)

	token, err := other.GenerateToken(ctx, 42)
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpiredToken(t *testing.T) {
	ctx := context.Background()
	impl := &hmacTokenService{
		signingKey:    []byte(testConfig().JWTSecret),
		tokenLifetime: time.Hour,
		timeFunc:      time.Now,
		clockSkew:     0,
	}

	// Issue in the past, validate in the present.
	impl.timeFunc = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := impl.GenerateToken(ctx, 42)
	require.NoError(t, err)

	impl.timeFunc = time.Now
	_, err = impl.ValidateToken(ctx, token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}
