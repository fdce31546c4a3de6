package middleware

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/arcollect/backend/internal/domain/recovery"
	"github.com/arcollect/backend/internal/interfaces/http/dto"
)

// SetupValidator registers custom validators and makes validation
// errors report JSON field names instead of Go struct field names.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine type")
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("category", validateCategory); err != nil {
		return fmt.Errorf("register category validator: %w", err)
	}

	return nil
}

// validateCategory accepts only categories that may be assigned to a
// customer account. NEW is a starting state, never a target.
func validateCategory(fl validator.FieldLevel) bool {
	category := recovery.CustomerCategory(fl.Field().String())
	return category.IsAssignable()
}

// FormatValidationErrors converts validator errors into field-level
// detail entries for the error envelope.
func FormatValidationErrors(err error) []dto.ValidationDetail {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return []dto.ValidationDetail{{Field: "body", Message: err.Error()}}
	}

	details := make([]dto.ValidationDetail, 0, len(validationErrors))
	for _, fe := range validationErrors {
		details = append(details, dto.ValidationDetail{
			Field:   fe.Field(),
			Message: validationMessage(fe),
		})
	}
	return details
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "uuid":
		return "must be a valid UUID"
	case "category":
		return "must be one of ALPHA, BETA, GAMMA, DELTA"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "datetime":
		return fmt.Sprintf("must match the format %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation on '%s'", fe.Tag())
	}
}

// HandleValidationError writes a 400 response with field details
func HandleValidationError(c *gin.Context, err error) {
	requestID := c.GetString("request_id")
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"request validation failed",
		requestID,
		FormatValidationErrors(err),
	))
}
