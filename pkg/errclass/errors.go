package errclass

import "fmt"

// CoordError is a stable, machine-readable error class.
type CoordError struct {
	Code    string
	Message string
}

func (e *CoordError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CoordError) Is(target error) bool {
	t, ok := target.(*CoordError)
	return ok && e.Code == t.Code
}

// WithMessage returns a new CoordError with the same Code but a specific message.
func (e *CoordError) WithMessage(msg string) *CoordError {
	return &CoordError{Code: e.Code, Message: msg}
}

// WithMessagef returns a new CoordError with a formatted message.
func (e *CoordError) WithMessagef(format string, args ...any) *CoordError {
	return &CoordError{Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

// All stable error classes.
var (
	// ErrStoreUnavailable is transient: the shared store could not be
	// reached. Callers retry; it never means "no lock held".
	ErrStoreUnavailable = &CoordError{Code: "E_STORE_UNAVAILABLE"}

	// ErrRaceLost marks a concurrent Acquire that another client won.
	// Expected outcome of contention, not a failure.
	ErrRaceLost = &CoordError{Code: "E_RACE_LOST"}

	// ErrSessionSuperseded means this client's session was reclaimed or
	// force-unlocked while it still believed it held the write lock.
	ErrSessionSuperseded = &CoordError{Code: "E_SESSION_SUPERSEDED"}

	// ErrLockHeld reports an active, non-stale holder.
	ErrLockHeld = &CoordError{Code: "E_LOCK_HELD"}

	ErrUnauthorized    = &CoordError{Code: "E_UNAUTHORIZED"}
	ErrConfigInvalid   = &CoordError{Code: "E_CONFIG_INVALID"}
	ErrIdentityInvalid = &CoordError{Code: "E_IDENTITY_INVALID"}
	ErrUserNotFound    = &CoordError{Code: "E_USER_NOT_FOUND"}
	ErrUserExists      = &CoordError{Code: "E_USER_EXISTS"}
)
