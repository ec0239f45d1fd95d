// Package errs provides the component-scoped error type shared across the
// conductor runtime, plus the sentinel errors that control flow depends on.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Error is a typed, component-scoped error. It identifies which component
// and operation failed, carries a human message, and wraps the underlying
// cause so callers can still errors.Is/errors.As through it.
type Error struct {
	Component string
	Operation string
	Message   string
	Err       error
	Timestamp time.Time
}

func New(component, operation, message string, cause error) *Error {
	return &Error{
		Component: component,
		Operation: operation,
		Message:   message,
		Err:       cause,
		Timestamp: time.Now().UTC(),
	}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Component, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Component, e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Sentinel errors for control-flow-relevant conditions. Components wrap
// these into an *Error so callers get both errors.Is compatibility and a
// readable message.
var (
	ErrVetoed           = errors.New("node vetoed")
	ErrMaxToolRounds    = errors.New("max tool rounds reached")
	ErrGuardrailBlocked = errors.New("guardrail blocked tool call")
	ErrAdversarialReject = errors.New("adversarial guard rejected output")
	ErrMaxReloops       = errors.New("max reloops exhausted")
	ErrMaxResumeAttempts = errors.New("max resume attempts exhausted")
	ErrTimeout          = errors.New("operation timed out")
	ErrNotFound         = errors.New("not found")
)
