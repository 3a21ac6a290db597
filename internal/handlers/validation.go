package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	appErrors "github.com/charlesng35/authgate/pkg/errors"
	"github.com/charlesng35/authgate/pkg/response"
	appValidator "github.com/charlesng35/authgate/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation
// rules. When validation fails, a per-field error response is written and
// false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewNonFieldError("Invalid JSON payload."))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, fieldErrorsFromValidation(err))
		return false
	}

	return true
}

// fieldErrorsFromValidation converts validator failures into the per-field
// payload shape, one message list per offending field.
func fieldErrorsFromValidation(err error) appErrors.FieldErrors {
	fields := appErrors.FieldErrors{}

	ve, ok := err.(appValidator.ValidationErrors)
	if !ok {
		fields[appErrors.NonFieldKey] = []string{"Invalid request payload."}
		return fields
	}

	for _, failure := range ve {
		var message string
		switch failure.Tag {
		case "required":
			message = "This field is required."
		case "email":
			message = "Enter a valid email address."
		case "min":
			message = fmt.Sprintf("Ensure this field has at least %s characters.", failure.Param)
		case "max":
			message = fmt.Sprintf("Ensure this field has no more than %s characters.", failure.Param)
		default:
			message = "Invalid value."
		}
		fields[failure.Field] = append(fields[failure.Field], message)
	}

	if len(fields) == 0 {
		fields[appErrors.NonFieldKey] = []string{"Invalid request payload."}
	}

	return fields
}
