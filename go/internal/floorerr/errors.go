package floorerr

import (
	"errors"
	"fmt"
)

var (
	// Sentinel errors for errors.Is checks at the boundary.
	ErrValidation    = errors.New("validation failed")
	ErrRemote        = errors.New("remote service error")
	ErrStateConflict = errors.New("state conflict")
)

// ValidationError reports a missing or invalid operator selection. It is
// raised before any remote call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Invalid builds a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RemoteError wraps a failed call to the floor service.
type RemoteError struct {
	Operation string
	Status    int
	Body      string
	Err       error // Nested lower-level error (e.g. net.Error)
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Operation, ErrRemote)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemote}
	}
	return []error{ErrRemote, e.Err}
}

// Conflict reports an action on a session whose state has diverged from the
// local snapshot.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStateConflict, fmt.Sprintf(format, args...))
}

// Message renders err as a short operator-facing message.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		if ve.Field == "" {
			return ve.Reason
		}
		return fmt.Sprintf("%s: %s", ve.Field, ve.Reason)
	}

	switch {
	case errors.Is(err, ErrStateConflict):
		return "The machine changed state, refresh and try again: " + err.Error()
	case errors.Is(err, ErrRemote):
		var re *RemoteError
		if errors.As(err, &re) && re.Body != "" {
			return fmt.Sprintf("Floor service error during %s: %s", re.Operation, re.Body)
		}
		return "Floor service unavailable, please retry"
	default:
		return err.Error()
	}
}
