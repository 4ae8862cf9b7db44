package utils

import (
	"github.com/go-playground/validator/v10"
)

// ProcessValidationErrors flattens gin binding errors into field -> tag so
// clients see which constraint failed instead of one opaque string.
func ProcessValidationErrors(err error) map[string]string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"error": err.Error()}
	}

	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}
