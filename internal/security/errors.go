package security

import (
	"errors"

	"github.com/mybeatfi/securegate/internal/ratelimit"
)

var (
	// Re-exported so callers only need this package to classify gate errors
	ErrRateLimited = ratelimit.ErrRateLimited

	ErrValidation     = errors.New("validation failed")
	ErrFileValidation = errors.New("file validation failed")
	ErrBlocked        = errors.New("session blocked after repeated security violations")
)

// Reports whether err was raised by the gate itself rather than by the
// wrapped operation.
func IsSecurityError(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrFileValidation) ||
		errors.Is(err, ErrBlocked)
}
