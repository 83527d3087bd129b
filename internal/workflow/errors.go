package workflow

import "errors"

var (
	ErrNotFound      = errors.New("submission not found")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidState  = errors.New("operation not allowed in current state")
	ErrValidation    = errors.New("validation failed")
	ErrNotAMember    = errors.New("not a member of this submission")
	ErrConflict      = errors.New("submission was modified concurrently")

	// ErrSideEffect wraps notification and registrar failures. It is logged by
	// the dispatcher and never returned from a workflow operation.
	ErrSideEffect = errors.New("side effect failed")
)
