package fault

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

type typedErr struct{ id string }

func (e *typedErr) Error() string   { return "thing " + e.id + " missing" }
func (e *typedErr) FaultKind() Kind { return NotFound }

func TestKindOf(t *testing.T) {
	sentinel := New(OrderLocked, "order is locked")

	tests := []struct {
		name   string
		err    error
		kind   Kind
		hasKey bool
	}{
		{name: "sentinel", err: sentinel, kind: OrderLocked, hasKey: true},
		{name: "wrapped sentinel", err: errors.Wrap(sentinel, "change fieldset"), kind: OrderLocked, hasKey: true},
		{name: "typed", err: errors.Wrap(&typedErr{id: "a1"}, "add item"), kind: NotFound, hasKey: true},
		{name: "infrastructure", err: errors.New("connection reset"), hasKey: false},
		{name: "nil", err: nil, hasKey: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := KindOf(tt.err)
			assert.Equal(t, tt.hasKey, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestIs(t *testing.T) {
	err := errors.Wrap(Invalid("zip %q is malformed", "x"), "decode")
	assert.True(t, Is(err, Validation))
	assert.False(t, Is(err, NotFound))
	assert.Equal(t, `decode: zip "x" is malformed`, err.Error())
}
