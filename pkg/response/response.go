package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/authgate/pkg/errors"
)

// Detail writes the single-message payload used by most endpoints.
func Detail(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"detail": message})
}

// JSON writes an arbitrary success payload.
func JSON(c *gin.Context, statusCode int, payload any) {
	c.JSON(statusCode, payload)
}

// Key writes the credential payload returned on successful login.
func Key(c *gin.Context, key string) {
	c.JSON(http.StatusOK, gin.H{"key": key})
}

// FieldErrors writes a per-field validation failure map with HTTP 400.
func FieldErrors(c *gin.Context, fields appErrors.FieldErrors) {
	c.JSON(http.StatusBadRequest, fields)
}

// Error renders any error in the wire format clients expect: FieldErrors map
// to their per-field payload, AppErrors to {"detail": message} with their
// status code, and anything else to a generic 500.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	var fields appErrors.FieldErrors
	if errors.As(err, &fields) {
		FieldErrors(c, fields)
		return
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{"detail": appErr.Message})
}
