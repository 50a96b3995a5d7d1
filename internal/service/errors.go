package service

import (
	"errors"
	"fmt"
)

var (
	// Device authentication. Every failure mode maps to this one error so
	// callers cannot tell which check failed.
	ErrInvalidAPIKey = errors.New("invalid or expired API key")

	// ErrValidation wraps any rejected input; the wrapped message is safe to
	// return to clients.
	ErrValidation = errors.New("validation failed")

	ErrEventNotFound    = errors.New("event not found")
	ErrEventForbidden   = errors.New("event does not belong to this device")
	ErrPhotoNotUploaded = errors.New("photo has not been uploaded")

	ErrDeviceNotFound      = errors.New("device not found")
	ErrDeviceForbidden     = errors.New("not allowed to manage this device")
	ErrDeviceAlreadyExists = errors.New("device id already registered")
	ErrCredentialNotFound  = errors.New("api key not found")

	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
	ErrEmailAlreadyExists     = errors.New("email already exists")
	ErrInvalidToken           = errors.New("invalid or expired token")
	ErrRegistrationDisabled   = errors.New("registration is disabled")

	ErrStatsUnavailable = errors.New("statistics not available yet")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
