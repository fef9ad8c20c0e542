// Package validation adapts go-playground/validator to echo's Validator
// interface so handlers can call c.Validate on bound request bodies.
package validation

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
)

// RequestValidator validates request bodies using struct tags
type RequestValidator struct {
	validate *validator.Validate
}

// New creates a new request validator
func New() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate implements echo.Validator
func (v *RequestValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
