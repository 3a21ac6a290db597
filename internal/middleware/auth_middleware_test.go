package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/internal/database/testutil"
	"github.com/charlesng35/authgate/internal/models"
)

func newAuthFixture(t *testing.T) (*gin.Engine, *iauth.SessionService, *models.User) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	user := &models.User{Username: "alice", Email: "alice@example.com", Password: "hashed", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	jwtService, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwtService, iauth.SessionConfig{})
	require.NoError(t, err)

	router := gin.New()
	router.GET("/protected", Auth(jwtService, sessions), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(CtxUserIDKey)})
	})

	return router, sessions, user
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	router, _, _ := newAuthFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"detail":"Authentication credentials were not provided."}`, rec.Body.String())
}

func TestAuthRejectsMalformedKey(t *testing.T) {
	router, _, _ := newAuthFixture(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer not-a-valid-key")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
}

func TestAuthAcceptsValidKey(t *testing.T) {
	router, sessions, user := newAuthFixture(t)

	key, _, err := sessions.Issue(user.ID, iauth.SessionMetadata{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, user.ID, body["user_id"])
}

func TestAuthRejectsRevokedSession(t *testing.T) {
	router, sessions, user := newAuthFixture(t)

	key, session, err := sessions.Issue(user.ID, iauth.SessionMetadata{})
	require.NoError(t, err)
	require.NoError(t, sessions.RevokeSession(session.ID))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+key)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.JSONEq(t, `{"detail":"Authentication credentials were not provided."}`, rec.Body.String())
}
