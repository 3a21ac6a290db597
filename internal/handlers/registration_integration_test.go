package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/authgate/internal/handlers/testutil"
)

func registerPayload() map[string]string {
	return map[string]string{
		"username":  "newuser",
		"email":     "newuser@example.com",
		"password1": "a long password",
		"password2": "a long password",
	}
}

func TestRegistrationSendsVerificationEmail(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/auth/registration/", registerPayload(), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.JSONEq(t, `{"detail":"Verification e-mail sent."}`, w.Body.String())

	msg, ok := env.Mailer.Last()
	require.True(t, ok)
	require.Equal(t, []string{"newuser@example.com"}, msg.To)
}

func TestRegistrationThenConfirmAndLogin(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/auth/registration/", registerPayload(), "")
	require.Equal(t, http.StatusCreated, w.Code)

	// Login is blocked until the emailed key is confirmed.
	blocked := env.Request(http.MethodPost, "/auth/login/", map[string]string{
		"username": "newuser",
		"password": "a long password",
	}, "")
	require.Equal(t, http.StatusBadRequest, blocked.Code)
	require.JSONEq(t, `{"non_field_errors":["E-mail is not verified."]}`, blocked.Body.String())

	msg, ok := env.Mailer.Last()
	require.True(t, ok)
	key := extractConfirmKey(t, msg.Body)

	w = env.Request(http.MethodPost, "/auth/registration/account-confirm-email/"+key+"/", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.JSONEq(t, `{"detail":"ok"}`, w.Body.String())

	env.Login("newuser", "a long password")
}

func TestRegistrationConfirmKeyIsSingleUse(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/auth/registration/", registerPayload(), "")
	require.Equal(t, http.StatusCreated, w.Code)

	msg, ok := env.Mailer.Last()
	require.True(t, ok)
	key := extractConfirmKey(t, msg.Body)

	w = env.Request(http.MethodPost, "/auth/registration/account-confirm-email/"+key+"/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.Request(http.MethodPost, "/auth/registration/account-confirm-email/"+key+"/", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"key":["Invalid value."]}`, w.Body.String())
}

func TestRegistrationConfirmRejectsUnknownKey(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/auth/registration/account-confirm-email/garbage/", nil, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"key":["Invalid value."]}`, w.Body.String())
}

func TestRegistrationRejectsDuplicateUsername(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("newuser", "existing@example.com", "some password", true)

	w := env.Request(http.MethodPost, "/auth/registration/", registerPayload(), "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"username":["A user with that username already exists."]}`, w.Body.String())
}

func TestRegistrationRejectsDuplicateEmail(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateUser("existing", "newuser@example.com", "some password", true)

	w := env.Request(http.MethodPost, "/auth/registration/", registerPayload(), "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"email":["A user is already registered with this e-mail address."]}`, w.Body.String())
}

func TestRegistrationRejectsPasswordMismatch(t *testing.T) {
	env := testutil.NewEnv(t)

	payload := registerPayload()
	payload["password2"] = "a different password"

	w := env.Request(http.MethodPost, "/auth/registration/", payload, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"password2":["The two password fields didn’t match."]}`, w.Body.String())
}

func TestRegistrationRejectsShortPassword(t *testing.T) {
	env := testutil.NewEnv(t)

	payload := registerPayload()
	payload["password1"] = "short"
	payload["password2"] = "short"

	w := env.Request(http.MethodPost, "/auth/registration/", payload, "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "password1")
}

// extractConfirmKey pulls the verification key out of the mailed
// account-confirm-email link.
func extractConfirmKey(t *testing.T, body string) string {
	t.Helper()

	marker := "/auth/registration/account-confirm-email/"
	idx := strings.Index(body, marker)
	require.GreaterOrEqual(t, idx, 0, body)
	key := body[idx+len(marker):]
	if end := strings.IndexAny(key, "/\n \t"); end >= 0 {
		key = key[:end]
	}
	return key
}
