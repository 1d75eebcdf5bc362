package event

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/dshills/relay/internal/event/topic"
)

// Buffer wraps an Emitter and can hold emissions back until Flush.
type Buffer struct {
	target Emitter
	limit  int

	mu      sync.Mutex
	holding bool
	all     bool
	names   map[topic.Name]struct{}
	queue   []pending
}

type pending struct {
	name topic.Name
	args []any
}

// BufferOption configures a Buffer.
type BufferOption func(*Buffer)

// WithBufferLimit bounds the number of held emissions. Zero means unbounded.
func WithBufferLimit(n int) BufferOption {
	return func(b *Buffer) {
		if n >= 0 {
			b.limit = n
		}
	}
}

// NewBuffer creates a buffer in front of target. It passes emissions through
// until Hold is called.
func NewBuffer(target Emitter, opts ...BufferOption) *Buffer {
	b := &Buffer{target: target}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Hold starts queueing emissions of the given names, or of every name when
// none are given. Calls accumulate.
func (b *Buffer) Hold(names ...topic.Name) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.holding = true
	if len(names) == 0 {
		b.all = true
		return
	}
	if b.names == nil {
		b.names = make(map[topic.Name]struct{}, len(names))
	}
	for _, n := range names {
		b.names[n] = struct{}{}
	}
}

// Emit queues the emission when its name is held and forwards it otherwise.
func (b *Buffer) Emit(ctx context.Context, name topic.Name, args ...any) error {
	b.mu.Lock()
	if b.held(name) {
		if b.limit > 0 && len(b.queue) >= b.limit {
			b.mu.Unlock()
			return ErrBufferFull
		}
		b.queue = append(b.queue, pending{name: name, args: append([]any(nil), args...)})
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	return b.target.Emit(ctx, name, args...)
}

func (b *Buffer) held(name topic.Name) bool {
	if !b.holding {
		return false
	}
	if b.all {
		return true
	}
	_, ok := b.names[name]
	return ok
}

// Flush emits the queued emissions in order and empties the queue. Holding
// continues. Errors are aggregated; a cancelled ctx stops the flush and the
// unsent emissions stay queued.
func (b *Buffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	queue := b.queue
	b.queue = nil
	b.mu.Unlock()

	var errs error
	for i, p := range queue {
		if err := ctx.Err(); err != nil {
			b.requeue(queue[i:])
			return multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, b.target.Emit(ctx, p.name, p.args...))
	}
	return errs
}

// requeue puts unsent emissions back in front of anything queued since.
func (b *Buffer) requeue(rest []pending) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue = append(append([]pending(nil), rest...), b.queue...)
}

// Release stops holding and flushes the queue.
func (b *Buffer) Release(ctx context.Context) error {
	b.mu.Lock()
	b.holding = false
	b.all = false
	b.names = nil
	b.mu.Unlock()

	return b.Flush(ctx)
}

// Len returns the number of held emissions.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queue)
}
