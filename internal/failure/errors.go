// Package failure defines the error kinds shared by the owner thread, the
// loop, the marshaller and the harness.
//
// Errors are local to the call that produced them: none of them tear down
// the owner thread. Callers classify them with the IsXxx helpers, which use
// errors.As so wrapped errors are recognised.
package failure

import (
	"errors"
	"fmt"
	"time"
)

// Code categorizes harness errors.
type Code string

const (
	// CodeInvalidState indicates an operation was attempted in the wrong lifecycle state.
	CodeInvalidState Code = "INVALID_STATE"

	// CodeTimeout indicates the owner thread did not signal readiness in time.
	CodeTimeout Code = "TIMEOUT"

	// CodeReadyTimeout indicates the node under test never raised its ready event in time.
	CodeReadyTimeout Code = "READY_TIMEOUT"

	// CodeLoopClosed indicates work was submitted to a stopped loop.
	CodeLoopClosed Code = "LOOP_CLOSED"

	// CodeLoopAlreadyRunning indicates a second consumer tried to run the loop.
	CodeLoopAlreadyRunning Code = "LOOP_ALREADY_RUNNING"

	// CodePanic marks a recovered panic. Carried by *PanicError, not *Error.
	CodePanic Code = "PANIC"
)

// Error is the typed error returned by this module.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Op is the operation that failed ("start", "execute", ...).
	Op string

	// Message is a human-readable description.
	Message string

	// State names the lifecycle state at the time of failure (INVALID_STATE).
	State string

	// After is the bound that elapsed (TIMEOUT, READY_TIMEOUT).
	After time.Duration

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.State != "" {
		msg += fmt.Sprintf(" (state=%s)", e.State)
	}
	if e.After > 0 {
		msg += fmt.Sprintf(" (after=%s)", e.After)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches against the sentinel errors by code, so
// errors.Is(err, failure.ErrTimeout) works for any timeout.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidState       = &Error{Code: CodeInvalidState}
	ErrTimeout            = &Error{Code: CodeTimeout}
	ErrReadyTimeout       = &Error{Code: CodeReadyTimeout}
	ErrLoopClosed         = &Error{Code: CodeLoopClosed}
	ErrLoopAlreadyRunning = &Error{Code: CodeLoopAlreadyRunning}
)

// InvalidState creates an INVALID_STATE error naming the current state.
func InvalidState(op, state string) *Error {
	return &Error{
		Code:    CodeInvalidState,
		Op:      op,
		Message: fmt.Sprintf("cannot %s when in state %q", op, state),
		State:   state,
	}
}

// Timeout creates a TIMEOUT error carrying the elapsed bound.
func Timeout(op string, after time.Duration) *Error {
	return &Error{
		Code:    CodeTimeout,
		Op:      op,
		Message: "did not start in the given time interval",
		After:   after,
	}
}

// ReadyTimeout creates a READY_TIMEOUT error carrying the elapsed bound.
func ReadyTimeout(op string, after time.Duration) *Error {
	return &Error{
		Code:    CodeReadyTimeout,
		Op:      op,
		Message: "node did not become ready in the given time interval",
		After:   after,
	}
}

// LoopClosed creates a LOOP_CLOSED error.
func LoopClosed(op string) *Error {
	return &Error{
		Code:    CodeLoopClosed,
		Op:      op,
		Message: "loop is stopped",
	}
}

// LoopAlreadyRunning creates a LOOP_ALREADY_RUNNING error.
func LoopAlreadyRunning() *Error {
	return &Error{
		Code:    CodeLoopAlreadyRunning,
		Op:      "run",
		Message: "loop already has a consumer",
	}
}

// IsInvalidState returns true if the error is an INVALID_STATE error.
func IsInvalidState(err error) bool {
	return hasCode(err, CodeInvalidState)
}

// IsTimeout returns true if the error is a startup TIMEOUT error.
func IsTimeout(err error) bool {
	return hasCode(err, CodeTimeout)
}

// IsReadyTimeout returns true if the error is a READY_TIMEOUT error.
func IsReadyTimeout(err error) bool {
	return hasCode(err, CodeReadyTimeout)
}

// IsLoopClosed returns true if the error is a LOOP_CLOSED error.
func IsLoopClosed(err error) bool {
	return hasCode(err, CodeLoopClosed)
}

func hasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf classifies err for logs and the journal. Returns "" for nil and
// for errors that carry no code, such as an action's own error.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if IsPanic(err) {
		return CodePanic
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
