package threedsecure

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

// Validate fails fast with an [InvalidArgument] error when the nonce or
// amount is missing, then applies the structural rules declared on the
// request's fields.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Nonce) == "" || strings.TrimSpace(r.Amount) == "" {
		return NewInvalidArgumentError(MissingNonceOrAmount, msgMissingNonceOrAmount)
	}
	if err := validate.Struct(r); err != nil {
		return normalizeValidationError(err)
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})

	if err := v.RegisterValidation("decimal_amount", func(fl validator.FieldLevel) bool {
		value, ok := fl.Field().Interface().(string)
		if !ok {
			return false
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return false
		}
		return !amount.IsNegative()
	}); err != nil {
		panic(err)
	}

	return v
}

func normalizeValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return NewInvalidArgumentError(InvalidRequestField, err.Error(), WithCause(err))
	}
	first := validationErrs[0]
	fieldPath := jsonPath(first)
	message := validationMessage(first)
	return NewInvalidArgumentError(InvalidRequestField, fmt.Sprintf("%s %s", fieldPath, message), WithOffendingParam(fieldPath), WithCause(err))
}

func jsonPath(fe validator.FieldError) string {
	path := fe.Namespace()
	if idx := strings.Index(path, "."); idx >= 0 {
		path = path[idx+1:]
	}
	if path == "" {
		return fe.Field()
	}
	return path
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("cannot exceed %s characters", fe.Param())
	case "numeric":
		return "must contain digits only"
	case "alpha":
		return "must contain letters only"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return "must be a valid email address"
	case "ip":
		return "must be a valid IP address"
	case "decimal_amount":
		return "must be a non-negative decimal amount"
	case "url":
		return "must be a valid URL"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
