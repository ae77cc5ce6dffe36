package services

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var ErrInvalidInput = errors.New("invalid input")

var validate = newValidator()

// newValidator lets numeric tags such as gt=0 apply to decimal fields.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// validateRequest checks req against its validate tags. The first failing
// field is reported, wrapped in ErrInvalidInput.
func validateRequest(req interface{}) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, fieldErrorMessage(errs[0]))
}

func fieldErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", e.Field())
	case "gt":
		return fmt.Sprintf("field '%s' must be greater than %s", e.Field(), e.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s characters long", e.Field(), e.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of [%s]", e.Field(), e.Param())
	}
	return fmt.Sprintf("field '%s' failed on the '%s' tag", e.Field(), e.Tag())
}
