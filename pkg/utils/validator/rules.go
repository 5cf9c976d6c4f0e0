package validator

import (
	"net/url"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	TagHTTPURL = "httpurl" // absolute http(s) URL with a host
	TagTrimmed = "trimmed" // no leading/trailing whitespace
)

func (v *Validator) registerCustomRules() {
	v.register(TagHTTPURL, validateHTTPURL, "{0} must be an absolute http or https URL")
	v.register(TagTrimmed, validateTrimmed, "{0} must not have leading or trailing spaces")
}

func (v *Validator) register(tag string, fn validator.Func, message string) {
	_ = v.validate.RegisterValidation(tag, fn)
	_ = v.validate.RegisterTranslation(tag, v.trans,
		func(t ut.Translator) error {
			return t.Add(tag, message, true)
		},
		func(t ut.Translator, fe validator.FieldError) string {
			msg, _ := t.T(tag, fe.Field())
			return msg
		},
	)
}

// validateHTTPURL accepts absolute http/https URLs only.
func validateHTTPURL(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return IsHTTPURL(value)
}

func validateTrimmed(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == strings.TrimSpace(value)
}

// IsHTTPURL reports whether s parses as an absolute http or https URL with a host.
func IsHTTPURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
