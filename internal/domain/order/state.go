package order

import (
	"strings"

	"github.com/xenking/webshop/internal/domain/fault"
)

// State is the fulfillment state of an order.
type State string

const (
	StateCreated   State = "CREATED"
	StateConfirmed State = "CONFIRMED"
	StateShipped   State = "SHIPPED"
	StateDelivered State = "DELIVERED"
	StateCancelled State = "CANCELLED"
)

// forward holds the single legal forward edge out of each state.
var forward = map[State]State{
	StateCreated:   StateConfirmed,
	StateConfirmed: StateShipped,
	StateShipped:   StateDelivered,
}

// ParseState parses a state name case-insensitively.
func ParseState(s string) (State, error) {
	st := State(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StateCreated, StateConfirmed, StateShipped, StateDelivered, StateCancelled:
		return st, nil
	}
	return "", fault.Invalid("unknown order state %q", s)
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDelivered || s == StateCancelled
}

// Editable reports whether fieldsets may still change in s.
func (s State) Editable() bool {
	return s == StateCreated || s == StateConfirmed
}

// CanTransitionTo reports whether s -> next is an edge of the state machine:
// the next forward state, or CANCELLED from any non-terminal state.
func (s State) CanTransitionTo(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateCancelled {
		return true
	}
	return forward[s] == next
}

// InvalidTransitionError is returned for a transition that is not an edge of
// the state machine.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "cannot change order state from " + string(e.From) + " to " + string(e.To)
}

// FaultKind implements fault.Kinded.
func (e *InvalidTransitionError) FaultKind() fault.Kind { return fault.InvalidStateTransition }
