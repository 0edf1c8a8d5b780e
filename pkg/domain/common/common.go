// Package common holds error classification shared by every domain package.
package common

import "errors"

// Kind buckets domain errors by how the caller should react.
type Kind uint8

const (
	// KindUnknown is anything the taxonomy does not recognise.
	KindUnknown Kind = iota
	// KindValidation is bad input shape or amount; the caller's fault and not
	// retryable as submitted.
	KindValidation
	// KindStateConflict means the entity moved under the caller; re-fetch
	// state before retrying.
	KindStateConflict
	// KindResource is a business-rule rejection such as insufficient funds.
	KindResource
	// KindExternal is a gateway or transport failure; safe to retry with
	// backoff.
	KindExternal
	// KindIntegrity is ledger corruption; fatal for the affected account and
	// never auto-repaired.
	KindIntegrity
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindResource:
		return "resource"
	case KindExternal:
		return "external"
	case KindIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidAmount is returned when an operation amount is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrDuplicateOperation is returned when an idempotency key was already
	// used with a different payload.
	ErrDuplicateOperation = errors.New("duplicate operation")

	// ErrMissingIdempotencyKey is returned when a mutating operation arrives
	// without an idempotency key.
	ErrMissingIdempotencyKey = errors.New("idempotency key is required")
)
