package event

import (
	"context"

	"github.com/dshills/relay/internal/event/topic"
)

// Key binds an event name to its payload type so that subscribers and
// emitters agree at compile time.
//
//	var UserLogin = event.NewKey[Login]("user:login")
//	event.On(reg, UserLogin, func(ctx context.Context, l Login) error { ... })
//	event.Emit(ctx, reg, UserLogin, Login{ID: 7})
type Key[T any] struct {
	name topic.Name
}

// NewKey creates a typed key for name.
func NewKey[T any](name topic.Name) Key[T] {
	return Key[T]{name: name}
}

// Name returns the event name.
func (k Key[T]) Name() topic.Name {
	return k.name
}

// String implements fmt.Stringer.
func (k Key[T]) String() string {
	return k.name.String()
}

// TypedListenerFunc handles the payload of a typed event.
type TypedListenerFunc[T any] func(ctx context.Context, payload T) error

// AsListener adapts fn to a Listener. Events whose first argument is not a T
// are skipped silently.
func AsListener[T any](fn TypedListenerFunc[T]) Listener {
	return ListenerFunc(func(ctx context.Context, e Event) error {
		payload, ok := PayloadOf[T](e)
		if !ok {
			return nil
		}
		return fn(ctx, payload)
	})
}

// On subscribes fn to key.
func On[T any](r *Registry, key Key[T], fn TypedListenerFunc[T], opts ...SubscriptionOption) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilListener
	}
	return r.Subscribe(key.name, AsListener(fn), opts...)
}

// Once subscribes fn to key for a single delivery.
func Once[T any](r *Registry, key Key[T], fn TypedListenerFunc[T], opts ...SubscriptionOption) (*Subscription, error) {
	return On(r, key, fn, append(opts, WithOnce())...)
}

// Emit emits payload under key.
func Emit[T any](ctx context.Context, em Emitter, key Key[T], payload T) error {
	return em.Emit(ctx, key.name, payload)
}

// PayloadOf returns the first argument of e as a T.
func PayloadOf[T any](e Event) (T, bool) {
	var zero T
	if len(e.Args) == 0 {
		return zero, false
	}
	v, ok := e.Args[0].(T)
	if !ok {
		return zero, false
	}
	return v, true
}
