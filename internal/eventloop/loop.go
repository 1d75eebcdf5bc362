// Package eventloop provides a single-threaded turn loop.
//
// Each task runs alone in its own turn. A task posted while another runs is
// queued for a later turn, never the current one. The loop ends when the
// queue is empty and no reservation is outstanding.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrRunning is returned by Start when the loop is already running.
var ErrRunning = errors.New("event loop already running")

// Task is one unit of work run on the loop.
type Task func(ctx context.Context) error

// Loop runs tasks one per turn on the goroutine that called Start.
type Loop struct {
	logger *zap.Logger

	mu       sync.Mutex
	queue    []Task
	reserved int
	running  bool
	wakeup   chan struct{}

	turn atomic.Uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// New creates an idle loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		logger: zap.NewNop(),
		wakeup: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post queues task for a later turn. It is safe to call from any goroutine.
// Tasks posted while the loop is idle run on the next Start.
func (l *Loop) Post(task Task) {
	if task == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, task)
	l.mu.Unlock()
	l.notify()
}

// Reserve keeps the loop alive until the returned function is called. The
// function posts its task (nil only releases the reservation) and may be
// called from another goroutine. Only the first call has an effect.
func (l *Loop) Reserve() func(Task) {
	l.mu.Lock()
	l.reserved++
	l.mu.Unlock()

	var once sync.Once
	return func(task Task) {
		once.Do(func() {
			l.mu.Lock()
			l.reserved--
			if task != nil {
				l.queue = append(l.queue, task)
			}
			l.mu.Unlock()
			l.notify()
		})
	}
}

func (l *Loop) notify() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// Turn returns the number of the turn being run, starting at 1 for the first
// task of a Start call. It is 0 before the first Start.
func (l *Loop) Turn() uint64 {
	return l.turn.Load()
}

// Start runs first as turn 1 and then every queued task in order, one per
// turn, until the queue is empty and no reservation is outstanding. first
// may be nil. A task error or ctx cancellation stops the loop and drops the
// remaining tasks.
func (l *Loop) Start(ctx context.Context, first Task) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return ErrRunning
	}
	l.running = true
	l.mu.Unlock()

	l.turn.Store(0)
	err := l.run(ctx, first)

	l.mu.Lock()
	l.running = false
	if err != nil {
		l.queue = nil
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Debug("event loop stopped", zap.Uint64("turn", l.Turn()), zap.Error(err))
	}
	return err
}

func (l *Loop) run(ctx context.Context, first Task) error {
	if first != nil {
		if err := l.runTask(ctx, first); err != nil {
			return err
		}
	}

	for {
		task, ok, err := l.next(ctx)
		if err != nil || !ok {
			return err
		}
		if err := l.runTask(ctx, task); err != nil {
			return err
		}
	}
}

func (l *Loop) runTask(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.turn.Add(1)
	return task(ctx)
}

// next waits for the next task. ok is false when the loop has nothing left.
func (l *Loop) next(ctx context.Context) (task Task, ok bool, err error) {
	for {
		l.mu.Lock()
		if len(l.queue) > 0 {
			task = l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			return task, true, nil
		}
		waiting := l.reserved > 0
		l.mu.Unlock()

		if !waiting {
			return nil, false, nil
		}

		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-l.wakeup:
		}
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
