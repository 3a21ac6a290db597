package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
	require.EqualError(t, err, "jwt: secret must be provided")
}

func TestGenerateAndValidateKey(t *testing.T) {
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return current }

	svc, err := NewJWTService(JWTConfig{
		Secret: "super-secret",
		Issuer: "authgate",
		KeyTTL: time.Hour,
		Clock:  now,
	})
	require.NoError(t, err)

	key, err := svc.GenerateKey("user-123", "session-456")
	require.NoError(t, err)
	require.NotEmpty(t, key)

	claims, err := svc.ValidateKey(key)
	require.NoError(t, err)

	require.Equal(t, "user-123", claims.UserID)
	require.Equal(t, "session-456", claims.SessionID)
	require.Equal(t, "authgate", claims.Issuer)
	require.True(t, claims.IssuedAt.Time.Equal(current))
	require.True(t, claims.ExpiresAt.Time.Equal(current.Add(time.Hour)))
}

func TestGenerateKeyRequiresIdentifiers(t *testing.T) {
	svc, err := NewJWTService(JWTConfig{Secret: "secret"})
	require.NoError(t, err)

	_, err = svc.GenerateKey("", "session-1")
	require.Error(t, err)

	_, err = svc.GenerateKey("user-1", "")
	require.Error(t, err)
}

func TestValidateKeyInvalidSignature(t *testing.T) {
	now := func() time.Time { return time.Date(2025, 3, 1, 13, 0, 0, 0, time.UTC) }

	issuer, err := NewJWTService(JWTConfig{Secret: "issuer-secret", KeyTTL: time.Minute, Clock: now})
	require.NoError(t, err)

	key, err := issuer.GenerateKey("user-123", "session-456")
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "other-secret", KeyTTL: time.Minute, Clock: now})
	require.NoError(t, err)

	_, err = verifier.ValidateKey(key)
	require.Error(t, err)
}

func TestValidateKeyExpired(t *testing.T) {
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	svc, err := NewJWTService(JWTConfig{
		Secret: "secret",
		KeyTTL: time.Minute,
		Clock:  func() time.Time { return current },
	})
	require.NoError(t, err)

	key, err := svc.GenerateKey("user-123", "session-456")
	require.NoError(t, err)

	late, err := NewJWTService(JWTConfig{
		Secret: "secret",
		KeyTTL: time.Minute,
		Clock:  func() time.Time { return current.Add(2 * time.Minute) },
	})
	require.NoError(t, err)

	_, err = late.ValidateKey(key)
	require.Error(t, err)
}

func TestValidateKeyRejectsWrongIssuer(t *testing.T) {
	now := func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	issuer, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "other-service", KeyTTL: time.Minute, Clock: now})
	require.NoError(t, err)

	key, err := issuer.GenerateKey("user-123", "session-456")
	require.NoError(t, err)

	verifier, err := NewJWTService(JWTConfig{Secret: "secret", Issuer: "authgate", KeyTTL: time.Minute, Clock: now})
	require.NoError(t, err)

	_, err = verifier.ValidateKey(key)
	require.EqualError(t, err, "jwt: invalid issuer")
}
