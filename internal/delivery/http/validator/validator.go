// Package validator adapts go-playground/validator to echo's Validator
// interface so handlers can validate bound request structs via struct tags.
package validator

import (
	domainerrors "backoffice/internal/domain/errors"

	pv "github.com/go-playground/validator/v10"
)

type echoValidator struct {
	validate *pv.Validate
}

// New creates the request validator installed on the echo server.
func New() *echoValidator {
	return &echoValidator{validate: pv.New(pv.WithRequiredStructEnabled())}
}

// Validate implements echo.Validator. Failures surface as the shared
// validation error so the error handler maps them to a 400 with details.
func (v *echoValidator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return domainerrors.ErrValidationFailed.WithDetails(err.Error())
	}

	return nil
}
