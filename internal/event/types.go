package event

import (
	"context"
	"time"

	"github.com/dshills/relay/internal/event/topic"
)

// Event is one delivery of an emission to a listener.
type Event struct {
	// Name is the emitted identifier. Pattern listeners receive it ahead of
	// the payload.
	Name topic.Name

	// Args is the emitted payload tuple, unpacked as given to Emit.
	Args []any

	// Pattern is the pattern that matched for pattern deliveries and the zero
	// Pattern for exact deliveries.
	Pattern topic.Pattern

	// ID identifies the emission. All listeners reached by one Emit call see
	// the same ID.
	ID string

	// Time is when the emission started.
	Time time.Time
}

// Arg returns the i-th payload argument, or nil if out of range.
func (e Event) Arg(i int) any {
	if i < 0 || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// Matched returns true if the event was delivered through a pattern.
func (e Event) Matched() bool {
	return !e.Pattern.IsZero()
}

// Listener receives events.
//
// A listener whose dynamic value is comparable (a pointer, a comparable
// struct) has identity: subscribing it twice under the same name is a no-op.
// SubscribeOnce of the same listener is a separate one-shot entry.
// Function values have no identity in Go, so every ListenerFunc registration
// is a separate entry.
type Listener interface {
	Handle(ctx context.Context, e Event) error
}

// ListenerFunc is a function adapter for Listener.
type ListenerFunc func(ctx context.Context, e Event) error

// Handle implements the Listener interface.
func (f ListenerFunc) Handle(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// Emitter is the emission half of the registry, accepted by collaborators
// that only fire events.
type Emitter interface {
	Emit(ctx context.Context, name topic.Name, args ...any) error
}

// TransformFunc rewrites the event a listener receives. It gets its own copy
// of Args.
type TransformFunc func(e Event) Event

// FilterFunc is a predicate for filtering events.
// Return true to deliver the event, false to skip the listener.
type FilterFunc func(e Event) bool

// PanicHandler is notified when a listener panics.
type PanicHandler func(e Event, subscriptionID string, recovered any)

// Stats contains registry statistics.
type Stats struct {
	// Emitted is the number of Emit calls that reached the dispatch phase.
	Emitted uint64

	// Delivered is the number of listener calls that succeeded.
	Delivered uint64

	// Failed is the number of listener calls that returned an error.
	Failed uint64

	// Panicked is the number of listener calls that panicked.
	Panicked uint64

	// Skipped is the number of listener calls skipped by cancellation.
	Skipped uint64

	// AvgListenerTime is the mean listener call duration.
	AvgListenerTime time.Duration

	// ExactListeners is the number of entries in the exact table.
	ExactListeners int

	// PatternListeners is the number of entries in the pattern table.
	PatternListeners int

	// Names is the number of exact identifiers with listeners.
	Names int
}
