package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/database/testutil"
	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/pkg/crypto"
	"github.com/charlesng35/authgate/pkg/mail"
)

func newRegistrationFixture(t *testing.T) (*RegistrationService, *gorm.DB, *mail.Recorder) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	recorder := mail.NewRecorder()

	verification, err := NewEmailVerificationService(db, recorder)
	require.NoError(t, err)

	svc, err := NewRegistrationService(db, verification)
	require.NoError(t, err)

	return svc, db, recorder
}

func TestRegisterCreatesUnverifiedUserAndSendsEmail(t *testing.T) {
	svc, db, recorder := newRegistrationFixture(t)

	user, err := svc.Register(context.Background(), RegisterInput{
		Username:  "erin",
		Email:     "Erin@Example.com",
		Password:  "initial password",
		FirstName: "Erin",
		LastName:  "Moran",
	})
	require.NoError(t, err)
	require.Equal(t, "erin", user.Username)
	require.Equal(t, "erin@example.com", user.Email)
	require.Nil(t, user.EmailVerifiedAt)
	require.True(t, crypto.VerifyPassword(user.Password, "initial password"))

	msg, ok := recorder.Last()
	require.True(t, ok)
	require.Equal(t, []string{"erin@example.com"}, msg.To)

	var count int64
	require.NoError(t, db.Model(&models.EmailVerification{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc, _, _ := newRegistrationFixture(t)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "erin", Email: "erin@example.com", Password: "pw one"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{Username: "Erin", Email: "other@example.com", Password: "pw two"})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newRegistrationFixture(t)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "erin", Email: "erin@example.com", Password: "pw one"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{Username: "other", Email: "ERIN@example.com", Password: "pw two"})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterRequiresMandatoryFields(t *testing.T) {
	svc, _, _ := newRegistrationFixture(t)

	_, err := svc.Register(context.Background(), RegisterInput{Username: "", Email: "a@b.com", Password: "pw"})
	require.Error(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{Username: "a", Email: "", Password: "pw"})
	require.Error(t, err)

	_, err = svc.Register(context.Background(), RegisterInput{Username: "a", Email: "a@b.com", Password: ""})
	require.Error(t, err)
}
