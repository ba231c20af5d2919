package model

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every operation. Callers classify with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidState     = errors.New("invalid state")
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Specific invalid-state conditions.
var (
	ErrImmutable        = fmt.Errorf("message is immutable once read: %w", ErrInvalidState)
	ErrDeleted          = fmt.Errorf("message was deleted: %w", ErrInvalidState)
	ErrAlreadyRequested = fmt.Errorf("connection already requested: %w", ErrInvalidState)
	ErrAlreadyConnected = fmt.Errorf("users are already connected: %w", ErrInvalidState)
	ErrSelfConnection   = fmt.Errorf("cannot connect a user to itself: %w", ErrValidation)
	ErrNotConnected     = fmt.Errorf("users are not connected: %w", ErrForbidden)
	ErrNotAddressee     = fmt.Errorf("only the receiver may accept a request: %w", ErrForbidden)
)

// Stable error codes for transport surfaces.
const (
	CodeNotFound     = "not_found"
	CodeForbidden    = "forbidden"
	CodeInvalidState = "invalid_state"
	CodeValidation   = "validation"
	CodeUnavailable  = "store_unavailable"
	CodeInternal     = "internal"
)

// Code classifies err into one of the stable codes.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrStoreUnavailable):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}
