package dispatch

import (
	"context"
	"time"
)

// Handler is invoked by a dispatcher.
// This mirrors the event.Listener contract without importing it.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, event any) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// Dispatcher runs a single handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, event any, handler Handler) Result
}

// Result represents the outcome of one handler call.
type Result struct {
	// Success is true if the handler returned nil without panicking.
	Success bool

	// Error is the error returned by the handler, or the context error for
	// skipped handlers.
	Error error

	// Panicked is true if the handler panicked.
	Panicked bool

	// PanicValue is the value passed to panic().
	PanicValue any

	// PanicStack is the stack trace captured at the panic.
	PanicStack []byte

	// Duration is how long the handler ran.
	Duration time.Duration

	// Skipped is true if the handler did not run.
	Skipped bool
}

// IsSuccess returns true if the handler completed without error or panic.
func (r Result) IsSuccess() bool {
	return r.Success && !r.Panicked && r.Error == nil
}

// IsError returns true if the handler returned an error (not a panic).
func (r Result) IsError() bool {
	return r.Error != nil && !r.Panicked && !r.Skipped
}

// IsPanic returns true if the handler panicked.
func (r Result) IsPanic() bool {
	return r.Panicked
}

// PanicHandler is notified of recovered panics with the event, the panic
// value and the stack trace.
type PanicHandler func(event any, panicValue any, stack []byte)
