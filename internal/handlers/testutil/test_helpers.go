// Package testutil provisions a fully wired router against an in-memory
// database for handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/api"
	"github.com/charlesng35/authgate/internal/app"
	iauth "github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/internal/auth/providers"
	"github.com/charlesng35/authgate/internal/auth/social"
	sharedtestutil "github.com/charlesng35/authgate/internal/database/testutil"
	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/internal/services"
	"github.com/charlesng35/authgate/pkg/crypto"
	"github.com/charlesng35/authgate/pkg/mail"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	JWT      *iauth.JWTService
	Sessions *iauth.SessionService
	Mailer   *mail.Recorder
}

// Option adjusts the environment before the router is built.
type Option func(*app.Config, *envExtras)

type envExtras struct {
	google *social.GoogleAdapter
	mailer mail.Mailer
}

// WithoutVerifiedEmailRequirement relaxes the verified-email login gate.
func WithoutVerifiedEmailRequirement() Option {
	return func(cfg *app.Config, _ *envExtras) {
		cfg.Auth.Local.RequireVerifiedEmail = false
	}
}

// WithGoogleAdapter installs a Google adapter, typically one built against a
// local fake provider.
func WithGoogleAdapter(adapter *social.GoogleAdapter) Option {
	return func(_ *app.Config, extras *envExtras) {
		extras.google = adapter
	}
}

// WithMailer replaces the default recording mailer, e.g. with one that fails
// every send. Env.Mailer is nil when this option is used.
func WithMailer(mailer mail.Mailer) Option {
	return func(_ *app.Config, extras *envExtras) {
		extras.mailer = mailer
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...Option) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t)
	recorder := mail.NewRecorder()

	cfg := &app.Config{
		Server: app.ServerConfig{ExternalURL: "http://testserver"},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: "test-suite-super-secret-key-32-bytes!!",
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
			Session: app.SessionSettings{TTL: 24 * time.Hour},
			Local:   app.LocalAuthSettings{RequireVerifiedEmail: true},
		},
		Monitoring: app.MonitoringConfig{
			Health:     app.HealthConfig{Enabled: true},
			Prometheus: app.PrometheusConfig{Enabled: false},
		},
	}

	extras := &envExtras{}
	for _, opt := range opts {
		opt(cfg, extras)
	}

	var mailer mail.Mailer = recorder
	if extras.mailer != nil {
		mailer = extras.mailer
		recorder = nil
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	require.NoError(t, err)

	sessionSvc, err := iauth.NewSessionService(db, jwtSvc, cfg.Auth.SessionServiceConfig())
	require.NoError(t, err)

	localProvider, err := providers.NewLocalProvider(db, cfg.Auth.LocalProviderConfig())
	require.NoError(t, err)

	verificationSvc, err := services.NewEmailVerificationService(db, mailer,
		services.WithVerificationBaseURL(cfg.Server.ExternalURL))
	require.NoError(t, err)

	registrationSvc, err := services.NewRegistrationService(db, verificationSvc)
	require.NoError(t, err)

	resetSvc, err := services.NewPasswordResetService(db, mailer, sessionSvc,
		services.WithResetBaseURL(cfg.Server.ExternalURL))
	require.NoError(t, err)

	socialSvc, err := services.NewSocialLoginService(db, nil)
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		DB:           db,
		Config:       cfg,
		JWT:          jwtSvc,
		Sessions:     sessionSvc,
		Local:        localProvider,
		Registration: registrationSvc,
		Verification: verificationSvc,
		Reset:        resetSvc,
		SocialLogin:  socialSvc,
		Google:       extras.google,
	})
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Router:   router,
		JWT:      jwtSvc,
		Sessions: sessionSvc,
		Mailer:   recorder,
	}
}

// CreateUser inserts an active user with the given credentials. The account
// is created with a verified email unless verified is false.
func (e *Env) CreateUser(username, email, password string, verified bool) *models.User {
	e.T.Helper()

	hashed, err := crypto.HashPassword(password)
	require.NoError(e.T, err)

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hashed,
		IsActive: true,
	}
	if verified {
		now := time.Now().UTC()
		user.EmailVerifiedAt = &now
	}

	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// Login posts credentials and returns the issued key.
func (e *Env) Login(username, password string) string {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/auth/login/", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Key string `json:"key"`
	}
	require.NoError(e.T, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(e.T, body.Key)

	return body.Key
}

// Request executes an HTTP request against the test router, applying JSON
// encoding and the Authorization header automatically.
func (e *Env) Request(method, path string, body any, key string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
