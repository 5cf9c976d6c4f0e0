// Package validator provides a unified validation component based on go-playground/validator.
// It offers a global validator, custom rules for the advisor API, English error
// messages and a gin binding adapter.
package validator

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Validator wraps go-playground/validator with translated error messages.
type Validator struct {
	validate *validator.Validate
	trans    ut.Translator
}

var (
	globalValidator *Validator
	once            sync.Once
)

// Global returns the global validator instance.
func Global() *Validator {
	once.Do(func() {
		globalValidator = New()
	})
	return globalValidator
}

// New creates a new Validator instance with default configuration.
func New() *Validator {
	v := &Validator{
		validate: validator.New(),
	}

	// Use JSON tag names for error field names
	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	v.trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v.validate, v.trans)

	v.registerCustomRules()
	return v
}

// Validate validates a struct and returns translated validation errors.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	return v.translate(err, "")
}

// ValidateVar validates a single variable.
func (v *Validator) ValidateVar(field interface{}, tag string) error {
	err := v.validate.Var(field, tag)
	if err == nil {
		return nil
	}
	return v.translate(err, "value")
}

// Engine returns the underlying validator.Validate instance.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

func (v *Validator) translate(err error, fallbackField string) *ValidationErrors {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return NewValidationError(fallbackField, "unknown", err.Error())
	}
	result := &ValidationErrors{Errors: make([]FieldError, 0, len(errs))}
	for _, fe := range errs {
		field := fe.Field()
		if field == "" {
			field = fallbackField
		}
		result.Errors = append(result.Errors, FieldError{
			Field:   field,
			Tag:     fe.Tag(),
			Value:   fe.Value(),
			Param:   fe.Param(),
			Message: fe.Translate(v.trans),
		})
	}
	return result
}

// Struct validates a struct with the global validator.
func Struct(s interface{}) error {
	return Global().Validate(s)
}

// Var validates a single variable with the global validator.
func Var(field interface{}, tag string) error {
	return Global().ValidateVar(field, tag)
}
