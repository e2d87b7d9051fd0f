// Package fault defines the domain error taxonomy shared by all webshop
// services. Domain packages declare sentinels and typed errors carrying a
// Kind; the transport layer maps kinds to HTTP statuses. Errors without a kind
// are infrastructure failures.
package fault

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Kind classifies an expected domain failure.
type Kind string

const (
	Unauthorized           Kind = "unauthorized"
	Forbidden              Kind = "forbidden"
	NotFound               Kind = "not_found"
	InvalidQuantity        Kind = "invalid_quantity"
	EmptyBasket            Kind = "empty_basket"
	OrderLocked            Kind = "order_locked"
	InvalidStateTransition Kind = "invalid_state_transition"
	Validation             Kind = "validation_error"
	Conflict               Kind = "conflict"
)

// Error is a domain failure with a stable kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

// New returns a new *Error. Sentinels created with New compare by identity.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf returns a new *Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string { return e.Message }

// FaultKind implements Kinded.
func (e *Error) FaultKind() Kind { return e.Kind }

// Kinded is implemented by every error that belongs to the taxonomy.
type Kinded interface {
	error
	FaultKind() Kind
}

// KindOf returns the kind of the first classified error in err's chain.
// The second result is false for unclassified (infrastructure) errors.
func KindOf(err error) (Kind, bool) {
	var k Kinded
	if errors.As(err, &k) {
		return k.FaultKind(), true
	}
	return "", false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// Invalid is shorthand for a validation failure.
func Invalid(format string, args ...any) *Error {
	return Errorf(Validation, format, args...)
}
