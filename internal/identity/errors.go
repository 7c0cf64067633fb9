package identity

import "errors"

var (
	ErrNotFound        = errors.New("identity: not found")
	ErrInvalidInput    = errors.New("identity: invalid input")
	ErrUsernameTaken   = errors.New("identity: username already taken")
	ErrDepartmentFull  = errors.New("identity: department is at capacity")
	ErrUnauthorized    = errors.New("identity: unauthorized")
	ErrForbidden       = errors.New("identity: forbidden")
	ErrInvalidToken    = errors.New("identity: invalid token")
	ErrPendingApproval = errors.New("identity: account pending approval")

	// ErrTxConflict is returned when a serializable transaction could not
	// commit. Callers may retry.
	ErrTxConflict = errors.New("identity: transaction conflict")
)
