package validator

import (
	"errors"
	"strings"
)

// ValidationErrors represents a collection of validation errors.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string      `json:"field"`           // Field name (from JSON/form tag)
	Tag     string      `json:"tag"`             // Validation tag that failed
	Value   interface{} `json:"value,omitempty"` // Actual value that failed
	Param   string      `json:"param,omitempty"` // Validation parameter
	Message string      `json:"message"`         // Human-readable error message
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("validation failed: ")
	for i, fe := range v.Errors {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fe.Message)
	}
	return sb.String()
}

// First returns the first error message, or empty string if no errors.
func (v *ValidationErrors) First() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	return v.Errors[0].Message
}

// FirstField returns the first error's field name, or empty string if no errors.
func (v *ValidationErrors) FirstField() string {
	if v == nil || len(v.Errors) == 0 {
		return ""
	}
	return v.Errors[0].Field
}

// IsValidationError reports whether err carries field validation errors.
func IsValidationError(err error) bool {
	var ve *ValidationErrors
	return errors.As(err, &ve)
}

// NewValidationError creates a new ValidationErrors with a single error.
func NewValidationError(field, tag, message string) *ValidationErrors {
	return &ValidationErrors{
		Errors: []FieldError{{Field: field, Tag: tag, Message: message}},
	}
}
