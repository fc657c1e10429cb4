package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	id "vcregistry/pkg/domain"
	dErrors "vcregistry/pkg/domain-errors"
)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("nonul", func(fl validator.FieldLevel) bool {
		return !ContainsNUL(fl.Field().String())
	})
	_ = v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		_, err := id.ParseAddress(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("vcid", func(fl validator.FieldLevel) bool {
		_, err := id.ParseVCID(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks req against its validate tags and reports the first
// failing field as a CodeValidation error.
func Validate(req any) error {
	if err := defaultValidator.Struct(req); err != nil {
		return dErrors.New(dErrors.CodeValidation, ErrorMessage(err))
	}
	return nil
}

// ContainsNUL reports whether value carries a 0x00 byte, which PostgreSQL
// TEXT and JSONB columns cannot store.
func ContainsNUL(value string) bool {
	return strings.IndexByte(value, 0) >= 0
}

// CheckNoNUL rejects values that could not be committed to every store.
func CheckNoNUL(fieldName, value string) error {
	if ContainsNUL(value) {
		return dErrors.Newf(dErrors.CodeValidation, "%s must not contain NUL characters", fieldName)
	}
	return nil
}

// ErrorMessage describes the first field error using JSON field paths,
// e.g. "subject_info[2].name is required".
func ErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return "invalid request body"
	}
	fe := validationErrs[0]
	field := fieldPath(fe)

	switch fe.ActualTag() {
	case "required":
		return field + " is required"
	case "nonul":
		return field + " must not contain NUL characters"
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must have at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "address":
		return field + " must be a 20-byte hex address"
	case "vcid":
		return field + " must be a base-10 unsigned 128-bit integer"
	default:
		return field + " is invalid"
	}
}

// fieldPath drops the root struct name from the namespace the validator
// builds out of JSON tag names.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	if fe.Field() != "" {
		return fe.Field()
	}
	return ns
}
