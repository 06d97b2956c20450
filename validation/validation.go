// Package validation checks request bodies, playlist entries and
// configuration with go-playground/validator struct tags.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrMissingBody = errors.New("missing body")
	ErrInvalidBody = errors.New("invalid body")
)

// Validator wraps a configured validator.Validate.
type Validator struct {
	validate *validator.Validate
}

// New returns a Validator with the custom tags registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("regex", validateRegex)
	_ = v.RegisterValidation("notblank", validateNotBlank)
	return &Validator{validate: v}
}

// Default is shared by every package; validator.Validate caches struct
// metadata and is safe for concurrent use.
var Default = New()

// Validate checks a struct and returns an *Error for tag failures.
func (v *Validator) Validate(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return NewError(verrs)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// Validate checks s with Default.
func Validate(s any) error { return Default.Validate(s) }

// DecodeJSON reads a JSON document from r into dest and validates it.
func DecodeJSON[T any](r io.Reader, dest *T) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrMissingBody
		}
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return Default.Validate(dest)
}

func validateRegex(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	_, err := regexp.Compile(val)
	return err == nil
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}
