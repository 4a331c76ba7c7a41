package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("items[] and deliveryAddressId are required"), KindValidation},
		{"not found", NotFound("address"), KindNotFound},
		{"service unavailable", ServiceUnavailable("delivery not available in this area"), KindServiceUnavailable},
		{"conflict", Conflict("%s already exists", "useremail"), KindConflict},
		{"auth", Auth("no token provided"), KindAuth},
		{"forbidden", Forbidden("admin access required"), KindForbidden},
		{"plain error", errors.New("boom"), KindUnexpected},
		{"wrapped", fmt.Errorf("create order: %w", NotFound("order")), KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestUnexpectedKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Unexpected(cause, "create order")

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "failed to create order", Message(err))
	assert.Contains(t, err.Error(), "connection reset")
	assert.Nil(t, Unexpected(nil, "noop"))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "address not found", Message(NotFound("address")))
	assert.Equal(t, "internal server error", Message(errors.New("driver: socket closed")))
	assert.True(t, Is(Validation("bad"), KindValidation))
	assert.False(t, Is(nil, KindValidation))
}
