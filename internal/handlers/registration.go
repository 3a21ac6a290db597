package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/authgate/internal/services"
	appErrors "github.com/charlesng35/authgate/pkg/errors"
	"github.com/charlesng35/authgate/pkg/response"
)

const (
	msgVerificationSent = "Verification e-mail sent."
	msgConfirmOK        = "ok"
	msgUsernameTaken    = "A user with that username already exists."
	msgEmailTaken       = "A user is already registered with this e-mail address."
)

// RegistrationHandler covers signup and email confirmation.
type RegistrationHandler struct {
	registration *services.RegistrationService
	verification *services.EmailVerificationService
}

func NewRegistrationHandler(registration *services.RegistrationService, verification *services.EmailVerificationService) *RegistrationHandler {
	return &RegistrationHandler{registration: registration, verification: verification}
}

type registerRequest struct {
	Username  string `json:"username" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password1 string `json:"password1" validate:"required,min=8"`
	Password2 string `json:"password2" validate:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// POST /auth/registration/
func (h *RegistrationHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if req.Password1 != req.Password2 {
		response.Error(c, appErrors.NewFieldError("password2", msgPasswordMismatch))
		return
	}

	_, err := h.registration.Register(c.Request.Context(), services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password1,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if errors.Is(err, services.ErrUsernameTaken) {
		response.Error(c, appErrors.NewFieldError("username", msgUsernameTaken))
		return
	}
	if errors.Is(err, services.ErrEmailTaken) {
		response.Error(c, appErrors.NewFieldError("email", msgEmailTaken))
		return
	}
	if err != nil {
		response.Error(c, appErrors.ErrInternalServer)
		return
	}

	response.Detail(c, http.StatusCreated, msgVerificationSent)
}

// POST /auth/registration/account-confirm-email/:key/
func (h *RegistrationHandler) ConfirmEmail(c *gin.Context) {
	key := c.Param("key")

	_, err := h.verification.Confirm(c.Request.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrVerificationNotFound),
			errors.Is(err, services.ErrVerificationExpired),
			errors.Is(err, services.ErrVerificationUsed):
			response.Error(c, appErrors.NewFieldError("key", msgInvalidValue))
		default:
			response.Error(c, appErrors.ErrInternalServer)
		}
		return
	}

	response.Detail(c, http.StatusOK, msgConfirmOK)
}
