package shared

import "errors"

// Error taxonomy shared by every aggregate. Callers wrap these with
// fmt.Errorf("%w: reason", ...) so the reason survives while errors.Is keeps working.
var (
	// ErrValidation marks malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition marks a target state that is unreachable from the current one.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrForbidden marks a missing capability or assignment.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict marks an operation incompatible with the current status.
	ErrConflict = errors.New("conflict")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConfiguration marks a missing deployment step, such as an unregistered sequence counter.
	ErrConfiguration = errors.New("configuration error")
	// ErrUnauthenticated occurs when no actor could be resolved for the request.
	ErrUnauthenticated = errors.New("unauthenticated")
)
