package failure

import (
	"errors"
	"fmt"
)

// PanicError wraps a value recovered from a panicking work item.
//
// The loop keeps running after a panic; the error is delivered to whoever
// is waiting on the item.
type PanicError struct {
	Label string
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("PANIC: work item %q panicked: %v", e.Label, e.Value)
	}
	return fmt.Sprintf("PANIC: work item panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsPanic returns true if the error came from a recovered panic.
func IsPanic(err error) bool {
	var pe *PanicError
	return errors.As(err, &pe)
}
