package floorerr

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("start: %w", Invalid("pricing", "select a pricing option"))

	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrRemote))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "pricing", ve.Field)
	assert.Equal(t, "pricing: select a pricing option", Message(err))
}

func TestRemoteErrorUnwrapsBoth(t *testing.T) {
	cause := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	err := &RemoteError{Operation: "list machines", Err: cause}

	assert.True(t, errors.Is(err, ErrRemote))
	var op *net.OpError
	assert.ErrorAs(t, err, &op)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "Floor service unavailable, please retry", Message(err))
}

func TestRemoteErrorWithBody(t *testing.T) {
	err := &RemoteError{Operation: "stop session", Status: 502, Body: "upstream down"}

	assert.Equal(t, "stop session: remote service error (HTTP 502): upstream down", err.Error())
	assert.Equal(t, "Floor service error during stop session: upstream down", Message(err))
}

func TestConflict(t *testing.T) {
	err := Conflict("session %d is no longer active", 7)

	assert.True(t, errors.Is(err, ErrStateConflict))
	assert.Contains(t, Message(err), "session 7 is no longer active")
}

func TestMessageFallback(t *testing.T) {
	assert.Empty(t, Message(nil))
	assert.Equal(t, "boom", Message(errors.New("boom")))
	assert.Equal(t, "select a game", Message(&ValidationError{Reason: "select a game"}))
}
