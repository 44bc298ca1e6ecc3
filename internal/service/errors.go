package service

import (
	"errors"
	"fmt"

	"github.com/shiva/ridepool/internal/repository"
)

// Sentinel errors returned by the services. Handlers map these onto HTTP
// status codes; everything else surfaces as an internal error.
var (
	ErrValidation       = errors.New("invalid request")
	ErrNotFound         = errors.New("not found")
	ErrInvalidState     = errors.New("invalid state for operation")
	ErrOtpMismatch      = errors.New("otp mismatch")
	ErrCapacityExceeded = errors.New("vehicle capacity exceeded")
	ErrForbidden        = errors.New("operation not permitted for caller")
)

// validationf wraps ErrValidation with a detail message.
func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// mapStoreErr translates repository sentinels into service sentinels. A
// store-level state conflict means another actor won the race, which callers
// see as an invalid-state error.
func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrStateConflict):
		return ErrInvalidState
	case errors.Is(err, repository.ErrCapacityFull):
		return ErrCapacityExceeded
	default:
		return err
	}
}
