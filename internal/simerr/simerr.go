// Package simerr enumerates the sentinel error categories for the
// simulator, one per fatal-error bucket, so cmd/batsim can map any failure
// to a human-readable message and a single non-zero exit code without
// inspecting error strings.
package simerr

import "errors"

// Category classifies a fatal simulation error.
type Category int

const (
	Configuration Category = iota
	WorkloadInvalid
	ProtocolViolation
	InvariantViolation
	TransportLoss
	WalltimeExceeded
)

func (c Category) String() string {
	switch c {
	case Configuration:
		return "configuration error"
	case WorkloadInvalid:
		return "workload invalid"
	case ProtocolViolation:
		return "EDC protocol violation"
	case InvariantViolation:
		return "internal invariant violation"
	case TransportLoss:
		return "EDC transport lost"
	case WalltimeExceeded:
		return "walltime exceeded"
	default:
		return "unknown error"
	}
}

// Error wraps an underlying cause with the taxonomy category it belongs to.
type Error struct {
	Category Category
	Cause    error
}

func (e *Error) Error() string { return e.Category.String() + ": " + e.Cause.Error() }

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause under category.
func New(category Category, cause error) *Error {
	return &Error{Category: category, Cause: cause}
}

// CategoryOf returns the Category of err if it (or something it wraps) is a
// *Error, and false otherwise.
func CategoryOf(err error) (Category, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.Category, true
	}
	return 0, false
}
