// Package validate checks request structs tagged with `validate:"..."`.
package validate

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// report json names so messages match the request body
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return val
}

// Error lists the fields that failed validation. Missing holds fields that
// were required but empty, Invalid holds fields that failed any other rule.
type Error struct {
	Missing []string
	Invalid []string
}

func (e *Error) Error() string {
	if len(e.Missing) > 0 {
		return "Please fill in all required fields: " + strings.Join(e.Missing, ", ")
	}
	return "invalid value for " + strings.Join(e.Invalid, ", ")
}

// Struct validates s and returns *Error when any rule fails.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &Error{}
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			out.Missing = append(out.Missing, fe.Field())
		} else {
			out.Invalid = append(out.Invalid, fe.Field())
		}
	}
	return out
}

// IsValidation reports whether err came from Struct.
func IsValidation(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}
