package apperrors

import (
	stdErrors "errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FromValidation converts validator field errors, as returned by gin binding
// or a direct validator call, into a VALIDATION_ERROR with per-field details.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stdErrors.As(err, &validationErrors) {
		return Wrap(CodeValidation, err, "invalid request body")
	}

	details := make(map[string]string, len(validationErrors))
	for _, fieldError := range validationErrors {
		field := lowerCamel(fieldError.Field())
		switch fieldError.Tag() {
		case "required":
			details[field] = "required"
		case "email":
			details[field] = "must be a valid email"
		case "min":
			details[field] = "must be at least " + fieldError.Param()
		case "max":
			details[field] = "must be at most " + fieldError.Param()
		case "oneof":
			details[field] = "must be one of " + fieldError.Param()
		default:
			details[field] = "invalid"
		}
	}
	return New(CodeValidation, "validation failed").WithDetails(details)
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
