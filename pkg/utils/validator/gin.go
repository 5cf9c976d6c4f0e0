package validator

import (
	"reflect"

	"github.com/gin-gonic/gin/binding"
)

// GinValidator adapts Validator to gin's binding.StructValidator.
type GinValidator struct {
	v *Validator
}

var _ binding.StructValidator = (*GinValidator)(nil)

// ValidateStruct validates structs (and pointers to structs); other kinds pass.
func (g *GinValidator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	value := reflect.ValueOf(obj)
	if value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return nil
	}
	return g.v.Validate(obj)
}

// Engine returns the underlying validator engine.
func (g *GinValidator) Engine() any {
	return g.v.Engine()
}

// InstallGin replaces gin's default binding validator with v.
func InstallGin(v *Validator) {
	binding.Validator = &GinValidator{v: v}
}
