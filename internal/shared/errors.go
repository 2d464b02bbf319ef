package shared

import (
	"errors"
	"fmt"
)

// Kind is the stable, client-facing classification of an error.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindConflict          Kind = "conflict"
	KindInsufficientStock Kind = "insufficient_stock"
	KindInvariant         Kind = "invariant"
	KindUnauthorized      Kind = "unauthorized"
	KindInternal          Kind = "internal"
)

var (
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the caller's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict indicates a state precondition was not met.
	ErrConflict = errors.New("conflict")
	// ErrInsufficientStock indicates on-hand quantity cannot cover a fulfillment.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvariant indicates an internal consistency check failed.
	ErrInvariant = errors.New("invariant violated")
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	// ErrContention is a retryable conflict raised when a transaction keeps losing lock races.
	ErrContention = fmt.Errorf("%w: concurrent update in progress, retry", ErrConflict)
)

// KindOf classifies err against the sentinel taxonomy.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrInvariant):
		return KindInvariant
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	default:
		return KindInternal
	}
}

// Retryable reports whether the caller may safely retry the same operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrContention)
}
