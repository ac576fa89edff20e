package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrValidation      = errors.New("validation failed")
	ErrPolicyViolation = errors.New("merge policy violation")
	ErrStaleGroup      = errors.New("duplicate group is stale")
	ErrUnknownSource   = errors.New("unknown source system")
)
