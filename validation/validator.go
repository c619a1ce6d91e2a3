// Package validation checks portal form input before it is sent to the remote API.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DateTimeLayout is the format of a booking slot as submitted by a datetime-local input.
const DateTimeLayout = "2006-01-02T15:04"

// FieldErrors maps a form field (by its json name) to a human-readable message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fe[k])
	}
	return strings.Join(parts, "; ")
}

// Validator wraps a configured go-playground validator.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// New returns a Validator that reports fields by their json tag names.
func New() *Validator {
	v := &Validator{validate: validator.New(), now: time.Now}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return strings.ToLower(fld.Name)
		}
		return name
	})

	_ = v.validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "PATIENT" || s == "DOCTOR"
	})
	_ = v.validate.RegisterValidation("future", func(fl validator.FieldLevel) bool {
		t, err := time.ParseInLocation(DateTimeLayout, fl.Field().String(), time.Local)
		if err != nil {
			return false
		}
		return t.After(v.now())
	})

	return v
}

// Struct validates s. A validation failure is returned as [FieldErrors].
func (v *Validator) Struct(s interface{}) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return formatValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func formatValidationErrors(errs validator.ValidationErrors) FieldErrors {
	out := make(FieldErrors, len(errs))
	for _, err := range errs {
		field := err.Field()
		if _, seen := out[field]; seen {
			continue
		}

		var message string
		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", field, err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", field, err.Param())
		case "url":
			message = fmt.Sprintf("%s must be a valid URL", field)
		case "oneof":
			message = fmt.Sprintf("%s must be one of %s", field, err.Param())
		case "role":
			message = fmt.Sprintf("%s must be PATIENT or DOCTOR", field)
		case "future":
			message = fmt.Sprintf("%s must be a future date and time", field)
		default:
			message = fmt.Sprintf("%s failed validation for %s", field, err.Tag())
		}
		out[field] = message
	}
	return out
}
