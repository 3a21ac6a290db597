package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/authgate/internal/auth"
	testutil "github.com/charlesng35/authgate/internal/database/testutil"
	"github.com/charlesng35/authgate/internal/models"
)

func seedUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hashed",
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func TestCleanupTokens(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	expired := seedUser(t, db, "expired")
	active := seedUser(t, db, "active")

	require.NoError(t, db.Create(&models.PasswordResetToken{
		UserID:    expired.ID,
		TokenHash: "reset-expired",
		ExpiresAt: now.Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.PasswordResetToken{
		UserID:    active.ID,
		TokenHash: "reset-active",
		ExpiresAt: now.Add(time.Hour),
	}).Error)

	require.NoError(t, db.Create(&models.EmailVerification{
		UserID:    expired.ID,
		TokenHash: "verify-expired",
		ExpiresAt: now.Add(-time.Hour),
	}).Error)
	require.NoError(t, db.Create(&models.EmailVerification{
		UserID:    active.ID,
		TokenHash: "verify-active",
		ExpiresAt: now.Add(time.Hour),
	}).Error)

	stats, err := CleanupTokens(context.Background(), db, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.PasswordResets)
	require.EqualValues(t, 1, stats.EmailVerifications)

	var count int64
	require.NoError(t, db.Model(&models.PasswordResetToken{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
	require.NoError(t, db.Model(&models.EmailVerification{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRunOncePurgesExpiredSessions(t *testing.T) {
	db := testutil.MustOpenTestDB(t)
	user := seedUser(t, db, "carol")

	current := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Clock: clock})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwtService, iauth.SessionConfig{SessionTTL: time.Hour, Clock: clock})
	require.NoError(t, err)

	_, stale, err := sessions.Issue(user.ID, iauth.SessionMetadata{})
	require.NoError(t, err)

	current = current.Add(2 * time.Hour)

	cleaner := NewCleaner(db, sessions, WithNow(clock))
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var count int64
	require.NoError(t, db.Model(&models.Session{}).Where("id = ?", stale.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestCleanerStartAndStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwtService, iauth.SessionConfig{})
	require.NoError(t, err)

	cleaner := NewCleaner(db, sessions)
	require.NoError(t, cleaner.Start())

	done := cleaner.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cleaner did not stop in time")
	}
}
