package event

import (
	"context"
	"reflect"
	"sync/atomic"

	"github.com/dshills/relay/internal/event/topic"
)

// SubscriptionConfig contains per-registration settings.
type SubscriptionConfig struct {
	// Filter is an optional predicate. The listener is skipped for events it
	// rejects.
	Filter FilterFunc

	// Once makes the registration fire at most once and then remove itself.
	Once bool

	// Transform rewrites the event before the listener sees it. It runs
	// after Filter accepted the emitted event.
	Transform TransformFunc
}

// SubscriptionOption configures a registration.
type SubscriptionOption func(*SubscriptionConfig)

// WithFilter sets a filter predicate.
func WithFilter(f FilterFunc) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Filter = f
	}
}

// WithTransform sets a transformer applied to every event delivered through
// this registration. Other listeners of the same emission are unaffected.
func WithTransform(fn TransformFunc) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Transform = fn
	}
}

// WithOnce makes the registration one-shot.
func WithOnce() SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Once = true
	}
}

// Subscription is the token for one registration. It stays valid after the
// registration is removed; Active then reports false.
type Subscription struct {
	e *entry
}

// ID returns the unique registration identifier.
func (s *Subscription) ID() string {
	return s.e.id
}

// Identifier returns the name or pattern the listener is registered under.
func (s *Subscription) Identifier() topic.Identifier {
	if s.e.isPattern() {
		return s.e.pattern
	}
	return s.e.name
}

// Listener returns the registered listener.
func (s *Subscription) Listener() Listener {
	return s.e.listener
}

// Once returns true for one-shot registrations.
func (s *Subscription) Once() bool {
	return s.e.config.Once
}

// Active returns true while the registration is in the registry.
func (s *Subscription) Active() bool {
	return !s.e.removed.Load()
}

// Cancel removes this registration only, leaving other listeners under the
// same identifier in place. Returns false if it was already removed.
func (s *Subscription) Cancel() bool {
	return s.e.registry.removeEntry(s.e)
}

// entry is one row of the exact or pattern table.
type entry struct {
	id       string
	name     topic.Name
	pattern  topic.Pattern
	listener Listener
	key      any
	config   SubscriptionConfig
	registry *Registry

	fired   atomic.Bool
	removed atomic.Bool
}

func (e *entry) isPattern() bool {
	return !e.pattern.IsZero()
}

// eventFor returns the event as this entry sees it.
func (e *entry) eventFor(evt Event) Event {
	if e.isPattern() {
		evt.Pattern = e.pattern
	}
	return evt
}

// accepts reports whether the entry should be called for evt.
func (e *entry) accepts(evt Event) bool {
	if e.config.Once && e.fired.Load() {
		return false
	}
	if e.config.Filter != nil && !e.config.Filter(e.eventFor(evt)) {
		return false
	}
	return true
}

// Handle adapts the entry to dispatch.Handler.
func (e *entry) Handle(ctx context.Context, ev any) error {
	evt := e.eventFor(ev.(Event))

	if e.config.Once {
		// re-entrant emissions may have snapshotted this entry too
		if !e.fired.CompareAndSwap(false, true) {
			return nil
		}
		defer e.registry.consumeOnce(e)
	}

	if e.config.Transform != nil {
		evt.Args = append([]any(nil), evt.Args...)
		evt = e.config.Transform(evt)
	}
	return e.listener.Handle(ctx, evt)
}

// identityOf returns the key used to deduplicate a listener, or nil when the
// listener has no usable identity.
func identityOf(l Listener) any {
	v := reflect.ValueOf(l)
	if v.Kind() == reflect.Func || !v.Comparable() {
		return nil
	}
	return l
}
