package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/database/testutil"
	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/pkg/crypto"
)

func newLocalFixture(t *testing.T, cfg LocalConfig) (*LocalProvider, *gorm.DB, *models.User) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)

	hashed, err := crypto.HashPassword("correct horse")
	require.NoError(t, err)

	user := &models.User{
		Username: "bob",
		Email:    "bob@example.com",
		Password: hashed,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)

	provider, err := NewLocalProvider(db, cfg)
	require.NoError(t, err)

	return provider, db, user
}

func TestAuthenticateByUsernameAndEmail(t *testing.T) {
	provider, _, user := newLocalFixture(t, LocalConfig{})

	got, err := provider.Authenticate(AuthenticateInput{Identifier: "bob", Password: "correct horse", IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
	require.Equal(t, "10.0.0.1", got.LastLoginIP)
	require.NotNil(t, got.LastLoginAt)

	got, err = provider.Authenticate(AuthenticateInput{Identifier: "BOB@EXAMPLE.COM", Password: "correct horse"})
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

func TestAuthenticateRejectsBadPassword(t *testing.T) {
	provider, _, _ := newLocalFixture(t, LocalConfig{})

	_, err := provider.Authenticate(AuthenticateInput{Identifier: "bob", Password: "wrong"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateRejectsUnknownUser(t *testing.T) {
	provider, _, _ := newLocalFixture(t, LocalConfig{})

	_, err := provider.Authenticate(AuthenticateInput{Identifier: "nobody", Password: "whatever"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateRejectsDisabledUser(t *testing.T) {
	provider, db, user := newLocalFixture(t, LocalConfig{})

	require.NoError(t, db.Model(user).Update("is_active", false).Error)

	_, err := provider.Authenticate(AuthenticateInput{Identifier: "bob", Password: "correct horse"})
	require.ErrorIs(t, err, ErrAccountDisabled)
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	provider, _, _ := newLocalFixture(t, LocalConfig{
		LockoutThreshold: 3,
		LockoutDuration:  10 * time.Minute,
		Clock:            clock,
	})

	for i := 0; i < 2; i++ {
		_, err := provider.Authenticate(AuthenticateInput{Identifier: "bob", Password: "wrong"})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err := provider.Authenticate(AuthenticateInput{Identifier: "bob", Password: "wrong"})
	require.ErrorIs(t, err, ErrAccountLocked)

	// Correct credentials stay rejected while the lock holds.
	_, err = provider.Authenticate(AuthenticateInput{Identifier: "bob", Password: "correct horse"})
	require.ErrorIs(t, err, ErrAccountLocked)

	current = current.Add(11 * time.Minute)

	got, err := provider.Authenticate(AuthenticateInput{Identifier: "bob", Password: "correct horse"})
	require.NoError(t, err)
	require.Zero(t, got.FailedAttempts)
	require.Nil(t, got.LockedUntil)
}

func TestSetPassword(t *testing.T) {
	provider, _, user := newLocalFixture(t, LocalConfig{})

	require.NoError(t, provider.SetPassword(user.ID, "new password"))

	_, err := provider.Authenticate(AuthenticateInput{Identifier: "bob", Password: "correct horse"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	got, err := provider.Authenticate(AuthenticateInput{Identifier: "bob", Password: "new password"})
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

func TestSetPasswordUnknownUser(t *testing.T) {
	provider, _, _ := newLocalFixture(t, LocalConfig{})

	err := provider.SetPassword("00000000-0000-0000-0000-000000000000", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
