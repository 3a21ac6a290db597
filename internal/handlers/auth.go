package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/internal/auth/providers"
	"github.com/charlesng35/authgate/internal/middleware"
	"github.com/charlesng35/authgate/internal/models"
	"github.com/charlesng35/authgate/pkg/errors"
	"github.com/charlesng35/authgate/pkg/metrics"
	"github.com/charlesng35/authgate/pkg/response"
)

const (
	msgInvalidCredentials = "Unable to log in with provided credentials."
	msgEmailNotVerified   = "E-mail is not verified."
	msgLoggedOut          = "Successfully logged out."
)

// AuthHandler manages login, logout, the user detail endpoint, and the
// authenticated greeting.
type AuthHandler struct {
	db              *gorm.DB
	local           *providers.LocalProvider
	sessions        *iauth.SessionService
	jwt             *iauth.JWTService
	requireVerified bool
}

func NewAuthHandler(db *gorm.DB, local *providers.LocalProvider, jwt *iauth.JWTService, sessions *iauth.SessionService, requireVerified bool) *AuthHandler {
	return &AuthHandler{db: db, local: local, jwt: jwt, sessions: sessions, requireVerified: requireVerified}
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

// POST /auth/login/
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	identifier := strings.TrimSpace(req.Username)
	if identifier == "" {
		identifier = strings.TrimSpace(req.Email)
	}
	if identifier == "" {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, errors.NewNonFieldError(msgInvalidCredentials))
		return
	}

	user, err := h.local.Authenticate(providers.AuthenticateInput{
		Identifier: identifier,
		Password:   req.Password,
		IPAddress:  c.ClientIP(),
	})
	if err != nil {
		// Lockout and disabled accounts deliberately get the same message
		// as a wrong password.
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, errors.NewNonFieldError(msgInvalidCredentials))
		return
	}

	if h.requireVerified && !user.EmailVerified() {
		metrics.AuthAttempts.WithLabelValues("unverified").Inc()
		response.Error(c, errors.NewNonFieldError(msgEmailNotVerified))
		return
	}

	key, _, err := h.sessions.Issue(user.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		response.Error(c, errors.ErrInternalServer)
		return
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	response.Key(c, key)
}

// POST /auth/logout/
//
// Logout is idempotent: a missing, malformed, or already revoked key still
// yields the success message.
func (h *AuthHandler) Logout(c *gin.Context) {
	authz := c.GetHeader("Authorization")
	if len(authz) >= 8 && strings.EqualFold(authz[:7], "Bearer ") {
		if claims, err := h.jwt.ValidateKey(strings.TrimSpace(authz[7:])); err == nil {
			_ = h.sessions.RevokeSession(claims.SessionID)
		}
	}

	response.Detail(c, http.StatusOK, msgLoggedOut)
}

type userDetailResponse struct {
	PK        string `json:"pk"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// GET /auth/user/
func (h *AuthHandler) UserDetail(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	response.JSON(c, http.StatusOK, userDetailResponse{
		PK:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
}

type userUpdateRequest struct {
	Username  string `json:"username" validate:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// PUT /auth/user/
func (h *AuthHandler) UpdateUserDetail(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	var req userUpdateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	username := strings.TrimSpace(req.Username)
	if !strings.EqualFold(username, user.Username) {
		var count int64
		if err := h.db.Model(&models.User{}).
			Where("LOWER(username) = LOWER(?) AND id <> ?", username, user.ID).
			Count(&count).Error; err != nil {
			response.Error(c, errors.ErrInternalServer)
			return
		}
		if count > 0 {
			response.Error(c, errors.NewFieldError("username", "A user with that username already exists."))
			return
		}
	}

	updates := map[string]any{
		"username":   username,
		"first_name": strings.TrimSpace(req.FirstName),
		"last_name":  strings.TrimSpace(req.LastName),
	}
	if err := h.db.Model(user).Updates(updates).Error; err != nil {
		response.Error(c, errors.ErrInternalServer)
		return
	}

	response.JSON(c, http.StatusOK, userDetailResponse{
		PK:        user.ID,
		Username:  username,
		Email:     user.Email,
		FirstName: updates["first_name"].(string),
		LastName:  updates["last_name"].(string),
	})
}

// GET /hello/
func (h *AuthHandler) Hello(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"message": fmt.Sprintf("Hello %s!", user.Username)})
}

// currentUser loads the authenticated user placed in context by the auth
// middleware. A missing or dangling id renders a 401.
func (h *AuthHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return nil, false
	}

	var user models.User
	if err := h.db.Take(&user, "id = ?", userID).Error; err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return nil, false
	}

	return &user, true
}
