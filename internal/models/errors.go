package models

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated = errors.New("not logged in")
	ErrExpired         = errors.New("session expired")
	ErrSuperseded      = errors.New("session superseded by a newer login")

	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrValidationFailed = errors.New("validation failed")

	ErrUnresolvable        = errors.New("location could not be resolved")
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrEmailTaken          = errors.New("email already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)

// ValidationError names the offending field. It matches ErrValidationFailed
// under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
