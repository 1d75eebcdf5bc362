// Package wrap decorates functions so that calling them also emits an event.
//
// The emission and the call happen on different turns of a loop. With
// Immediate the event is emitted during the call and the function runs on
// the next turn; otherwise the function runs during the call and the event
// is emitted on the next turn.
package wrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/relay/internal/event"
	"github.com/dshills/relay/internal/event/topic"
	"github.com/dshills/relay/internal/eventloop"
)

var (
	// ErrNoEvent is returned when a Config has no event name.
	ErrNoEvent = errors.New("wrap: event name required")

	// ErrNilFunc is returned when the function to wrap is nil.
	ErrNilFunc = errors.New("wrap: function cannot be nil")
)

// Scheduler queues a task for a later turn. *eventloop.Loop implements it.
type Scheduler interface {
	Post(task eventloop.Task)
}

// Config describes the emission attached to a wrapped function.
type Config struct {
	// Event is the name to emit.
	Event topic.Name

	// Args is the payload passed to Emit.
	Args []any

	// Immediate emits during the call and defers the function to the next
	// turn. The default runs the function first and defers the emission.
	Immediate bool
}

// Wrapper binds an emitter and a scheduler.
type Wrapper struct {
	emitter event.Emitter
	sched   Scheduler
	logger  *zap.Logger
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Wrapper) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a Wrapper.
func New(em event.Emitter, sched Scheduler, opts ...Option) *Wrapper {
	w := &Wrapper{
		emitter: em,
		sched:   sched,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wrap returns fn decorated with the emission in cfg.
//
// An error from the part that runs during the call is returned and the
// paired part is not scheduled. Errors from the deferred part surface
// through the scheduler.
func (w *Wrapper) Wrap(cfg Config, fn func(ctx context.Context) error) (func(ctx context.Context) error, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	if !cfg.Event.IsValid() {
		return nil, ErrNoEvent
	}
	args := append([]any(nil), cfg.Args...)

	emit := func(ctx context.Context) error {
		if err := w.emitter.Emit(ctx, cfg.Event, args...); err != nil {
			return fmt.Errorf("emit %s: %w", cfg.Event, err)
		}
		return nil
	}

	if cfg.Immediate {
		return func(ctx context.Context) error {
			if err := emit(ctx); err != nil {
				return err
			}
			w.logger.Debug("call deferred", zap.String("event", cfg.Event.String()))
			w.sched.Post(eventloop.Task(fn))
			return nil
		}, nil
	}

	return func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		w.logger.Debug("emission deferred", zap.String("event", cfg.Event.String()))
		w.sched.Post(emit)
		return nil
	}, nil
}

// Wrap1 is Wrap for functions taking one argument. The argument is captured
// at call time for deferred calls.
func Wrap1[A any](w *Wrapper, cfg Config, fn func(ctx context.Context, a A) error) (func(ctx context.Context, a A) error, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	// validate once up front
	if _, err := w.Wrap(cfg, func(context.Context) error { return nil }); err != nil {
		return nil, err
	}

	return func(ctx context.Context, a A) error {
		call, err := w.Wrap(cfg, func(ctx context.Context) error {
			return fn(ctx, a)
		})
		if err != nil {
			return err
		}
		return call(ctx)
	}, nil
}
