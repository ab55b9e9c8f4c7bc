package httpx

import "errors"

// Sentinel errors for the domain layer. Services wrap these with context so
// handlers can route any error through RespondError.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrDuplicate         = errors.New("duplicate entry")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMutationFailed    = errors.New("stock mutation failed")
)
