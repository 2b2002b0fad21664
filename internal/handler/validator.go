package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// ValidationError carries field-specific messages for a 400 response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v           *validator.Validate
	minPassword int
}

// NewValidator registers the "password" tag, which requires at least
// minPasswordLength characters.
func NewValidator(minPasswordLength int) *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) >= minPasswordLength
	}); err != nil {
		panic(fmt.Sprintf("handler: register password validation: %v", err))
	}
	return &Validator{v: v, minPassword: minPasswordLength}
}

// Validate implements echo.Validator. Failures come back as
// *ValidationError with one "field: message" entry per violation.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Message: "invalid request"}
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Field()+": "+cv.message(fe))
	}
	return &ValidationError{Message: strings.Join(msgs, "; ")}
}

func (cv *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "password":
		return "must be at least " + strconv.Itoa(cv.minPassword) + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
