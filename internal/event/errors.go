package event

import (
	"errors"

	"go.uber.org/multierr"
)

// Sentinel errors for the registry.
var (
	// ErrNilListener is returned when a nil listener is subscribed.
	ErrNilListener = errors.New("listener cannot be nil")

	// ErrListenerPanic matches PanicError values with errors.Is.
	ErrListenerPanic = errors.New("listener panicked")

	// ErrBufferFull is returned when a held emission would exceed the buffer limit.
	ErrBufferFull = errors.New("event buffer is full")

	// ErrMetricsRegistered is returned when registry metrics are registered twice
	// with the same prometheus registerer.
	ErrMetricsRegistered = errors.New("event metrics already registered")
)

// ListenerError wraps an error returned by a listener.
type ListenerError struct {
	// SubscriptionID identifies the failing registration.
	SubscriptionID string

	// Event is the emitted name.
	Event string

	// Pattern is the matching pattern for pattern deliveries, empty otherwise.
	Pattern string

	// Err is the listener's error.
	Err error
}

// Error implements the error interface.
func (e *ListenerError) Error() string {
	s := "listener " + e.SubscriptionID + " failed on " + e.Event
	if e.Pattern != "" {
		s += " (pattern " + e.Pattern + ")"
	}
	return s + ": " + e.Err.Error()
}

// Unwrap returns the listener's error.
func (e *ListenerError) Unwrap() error {
	return e.Err
}

// PanicError reports a recovered listener panic.
type PanicError struct {
	// SubscriptionID identifies the panicking registration.
	SubscriptionID string

	// Event is the emitted name.
	Event string

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return "listener " + e.SubscriptionID + " panicked on " + e.Event
}

// Is allows errors.Is to match PanicError with ErrListenerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrListenerPanic
}

// Failures unpacks the listener failures aggregated into an Emit error.
// It returns nil for a nil error and a single element for a plain error.
func Failures(err error) []error {
	return multierr.Errors(err)
}
