package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/authgate/internal/auth/providers"
	"github.com/charlesng35/authgate/internal/middleware"
	"github.com/charlesng35/authgate/internal/services"
	appErrors "github.com/charlesng35/authgate/pkg/errors"
	"github.com/charlesng35/authgate/pkg/response"
)

const (
	msgPasswordSaved    = "New password has been saved."
	msgResetEmailSent   = "Password reset e-mail has been sent."
	msgPasswordReset    = "Password has been reset with the new password."
	msgPasswordMismatch = "The two password fields didn’t match."
	msgInvalidValue     = "Invalid value."
)

// PasswordHandler covers password change and the two-step reset flow.
type PasswordHandler struct {
	db    *gorm.DB
	local *providers.LocalProvider
	reset *services.PasswordResetService
}

func NewPasswordHandler(db *gorm.DB, local *providers.LocalProvider, reset *services.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{db: db, local: local, reset: reset}
}

type passwordChangeRequest struct {
	NewPassword1 string `json:"new_password1" validate:"required,min=8"`
	NewPassword2 string `json:"new_password2" validate:"required"`
}

// POST /auth/password/change/
func (h *PasswordHandler) Change(c *gin.Context) {
	var req passwordChangeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if req.NewPassword1 != req.NewPassword2 {
		response.Error(c, appErrors.NewFieldError("new_password2", msgPasswordMismatch))
		return
	}

	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.local.SetPassword(userID, req.NewPassword1); err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Detail(c, http.StatusOK, msgPasswordSaved)
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// POST /auth/password/reset/
//
// The success message is returned whether or not the address is registered.
func (h *PasswordHandler) ResetRequest(c *gin.Context) {
	var req passwordResetRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.reset.RequestReset(c.Request.Context(), req.Email); err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Detail(c, http.StatusOK, msgResetEmailSent)
}

type passwordResetConfirmRequest struct {
	UID          string `json:"uid" validate:"required"`
	Token        string `json:"token" validate:"required"`
	NewPassword1 string `json:"new_password1" validate:"required,min=8"`
	NewPassword2 string `json:"new_password2" validate:"required"`
}

// POST /auth/password/reset/confirm/
func (h *PasswordHandler) ResetConfirm(c *gin.Context) {
	var req passwordResetConfirmRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if req.NewPassword1 != req.NewPassword2 {
		response.Error(c, appErrors.NewFieldError("new_password2", msgPasswordMismatch))
		return
	}

	err := h.reset.ConfirmReset(c.Request.Context(), req.UID, req.Token, req.NewPassword1)
	if errors.Is(err, services.ErrResetTokenInvalid) {
		response.Error(c, appErrors.NewFieldError("token", msgInvalidValue))
		return
	}
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Detail(c, http.StatusOK, msgPasswordReset)
}
