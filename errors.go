package goAccess

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/goAccess/internal/rate"
	"github.com/MrEthical07/goAccess/otp"
	"github.com/MrEthical07/goAccess/permission"
	"github.com/MrEthical07/goAccess/session"
	"github.com/MrEthical07/goAccess/store"
)

// Failure kinds. Every error returned by [Engine] matches exactly one of these
// with errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuthentication = errors.New("authentication failed")
	ErrAuthorization  = errors.New("not authorized")
	ErrNotFound       = errors.New("not found")
	ErrStorage        = errors.New("storage unavailable")
)

var (
	ErrInvalidInput         = fmt.Errorf("%w: malformed input", ErrValidation)
	ErrUsernameTaken        = fmt.Errorf("%w: username already exists", ErrValidation)
	ErrEmailTaken           = fmt.Errorf("%w: email already exists", ErrValidation)
	ErrEmailAlreadyVerified = fmt.Errorf("%w: email already verified", ErrValidation)
	ErrRoleAlreadyHeld      = fmt.Errorf("%w: role already held", ErrValidation)
	ErrCannotBlockSelf      = fmt.Errorf("%w: cannot block yourself", ErrValidation)
	ErrAccessAlreadyActive  = fmt.Errorf("%w: access already active", ErrValidation)
	ErrAccessPending        = fmt.Errorf("%w: access request already pending", ErrValidation)
	ErrGrantNotPending      = fmt.Errorf("%w: grant not pending", ErrValidation)

	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrAuthentication)
	ErrEmailNotVerified   = fmt.Errorf("%w: email not verified", ErrAuthentication)
	ErrAccountBlocked     = fmt.Errorf("%w: account blocked", ErrAuthentication)
	ErrLoginRateLimited   = fmt.Errorf("%w: login rate limited", ErrAuthentication)
	ErrInvalidCode        = fmt.Errorf("%w: invalid or expired code", ErrAuthentication)
	ErrCodeAttempts       = fmt.Errorf("%w: too many wrong codes", ErrAuthentication)
	ErrInvalidSession     = fmt.Errorf("%w: invalid session", ErrAuthentication)

	ErrPermissionDenied = fmt.Errorf("%w: permission denied", ErrAuthorization)
	ErrPolicyDenied     = fmt.Errorf("%w: access request denied by policy", ErrAuthorization)

	ErrUserNotFound  = fmt.Errorf("%w: user", ErrNotFound)
	ErrRoleNotFound  = fmt.Errorf("%w: role", ErrNotFound)
	ErrGrantNotFound = fmt.Errorf("%w: access request", ErrNotFound)

	// ErrRedisUnavailable wraps failures of the session, code and limiter
	// backends.
	ErrRedisUnavailable = fmt.Errorf("%w: redis unavailable", ErrStorage)

	// ErrEngineNotReady is returned by methods called on a nil Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Kind returns the failure kind err belongs to, or nil.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrAuthentication, ErrAuthorization, ErrNotFound, ErrStorage} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// StatusCode maps an Engine error to an HTTP status.
func StatusCode(err error) int {
	switch Kind(err) {
	case nil:
		if err == nil {
			return http.StatusOK
		}
		return http.StatusInternalServerError
	case ErrValidation:
		return http.StatusBadRequest
	case ErrAuthentication:
		return http.StatusUnauthorized
	case ErrAuthorization:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

// storageErr classifies a collaborator failure. Errors that already carry a
// kind pass through, denials become ErrPermissionDenied and everything else
// is a storage failure.
func storageErr(err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != nil {
		return err
	}
	switch {
	case errors.Is(err, permission.ErrDenied):
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case errors.Is(err, session.ErrRedisUnavailable),
		errors.Is(err, otp.ErrRedisUnavailable),
		errors.Is(err, rate.ErrRedisUnavailable):
		return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
}
