package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/authgate/internal/auth"
	"github.com/charlesng35/authgate/internal/auth/social"
	"github.com/charlesng35/authgate/internal/services"
	appErrors "github.com/charlesng35/authgate/pkg/errors"
	"github.com/charlesng35/authgate/pkg/response"
)

// SocialHandler drives the Google login code exchange.
type SocialHandler struct {
	google   *social.GoogleAdapter
	accounts *services.SocialLoginService
	sessions *iauth.SessionService
}

func NewSocialHandler(google *social.GoogleAdapter, accounts *services.SocialLoginService, sessions *iauth.SessionService) *SocialHandler {
	return &SocialHandler{google: google, accounts: accounts, sessions: sessions}
}

type googleLoginRequest struct {
	Code string `json:"code" validate:"required"`
}

// POST /auth/google/
func (h *SocialHandler) GoogleLogin(c *gin.Context) {
	if h.google == nil {
		response.Error(c, appErrors.NewNonFieldError("Google login is not configured."))
		return
	}

	var req googleLoginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	identity, err := h.google.Exchange(c.Request.Context(), req.Code)
	if errors.Is(err, social.ErrMissingCode) {
		response.Error(c, appErrors.NewFieldError("code", msgInvalidValue))
		return
	}
	if err != nil {
		response.Error(c, appErrors.ErrUpstream)
		return
	}

	user, err := h.accounts.Resolve(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, appErrors.ErrUpstream)
		return
	}

	key, _, err := h.sessions.Issue(user.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Key(c, key)
}
