package dispatch

import (
	"context"
	"sync/atomic"
	"time"
)

// outcome classifies a Result for the statistics.
type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeFailed
	outcomePanicked
	outcomeSkipped
	numOutcomes
)

func outcomeOf(r Result) outcome {
	switch {
	case r.Skipped:
		return outcomeSkipped
	case r.Panicked:
		return outcomePanicked
	case r.Error != nil:
		return outcomeFailed
	default:
		return outcomeSucceeded
	}
}

var _ Dispatcher = (*SyncDispatcher)(nil)

// SyncDispatcher runs handlers one after another in the caller's goroutine.
type SyncDispatcher struct {
	executor *Executor
	timeout  time.Duration

	counts  [numOutcomes]atomic.Uint64
	elapsed atomic.Int64
}

// SyncOption configures a SyncDispatcher.
type SyncOption func(*SyncDispatcher)

// WithPanicHandler sets the callback notified of recovered panics.
func WithPanicHandler(h PanicHandler) SyncOption {
	return func(d *SyncDispatcher) {
		d.executor = NewExecutor(WithExecutorPanicHandler(h))
	}
}

// WithTimeout bounds every handler call. Zero disables the bound.
func WithTimeout(timeout time.Duration) SyncOption {
	return func(d *SyncDispatcher) {
		d.timeout = timeout
	}
}

// NewSyncDispatcher creates a dispatcher.
func NewSyncDispatcher(opts ...SyncOption) *SyncDispatcher {
	d := &SyncDispatcher{executor: NewExecutor()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch runs one handler and records its outcome.
func (d *SyncDispatcher) Dispatch(ctx context.Context, event any, handler Handler) Result {
	r := d.executor.ExecuteWithTimeout(ctx, event, handler, d.timeout)
	d.record(r)
	return r
}

// DispatchAll runs every handler in order. Once ctx is cancelled the
// remaining handlers are reported as skipped.
func (d *SyncDispatcher) DispatchAll(ctx context.Context, event any, handlers []Handler) []Result {
	results := make([]Result, len(handlers))
	for i, h := range handlers {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(results); j++ {
				results[j] = Result{Error: err, Skipped: true}
				d.record(results[j])
			}
			break
		}
		results[i] = d.Dispatch(ctx, event, h)
	}
	return results
}

// DispatchUntilError runs handlers in order up to and including the first
// one that does not succeed. The returned slice ends there.
func (d *SyncDispatcher) DispatchUntilError(ctx context.Context, event any, handlers []Handler) []Result {
	results := make([]Result, 0, len(handlers))
	for _, h := range handlers {
		r := d.Dispatch(ctx, event, h)
		results = append(results, r)
		if !r.IsSuccess() {
			break
		}
	}
	return results
}

func (d *SyncDispatcher) record(r Result) {
	d.counts[outcomeOf(r)].Add(1)
	d.elapsed.Add(int64(r.Duration))
}

// Stats summarizes every call made through a dispatcher.
type Stats struct {
	Dispatched    uint64
	Succeeded     uint64
	Failed        uint64
	Panicked      uint64
	Skipped       uint64
	TotalDuration time.Duration
	AvgDuration   time.Duration
}

// Stats returns a snapshot. Counters are loaded one by one, so a snapshot
// taken during dispatch may be off by the calls in flight.
func (d *SyncDispatcher) Stats() Stats {
	s := Stats{
		Succeeded:     d.counts[outcomeSucceeded].Load(),
		Failed:        d.counts[outcomeFailed].Load(),
		Panicked:      d.counts[outcomePanicked].Load(),
		Skipped:       d.counts[outcomeSkipped].Load(),
		TotalDuration: time.Duration(d.elapsed.Load()),
	}
	s.Dispatched = s.Succeeded + s.Failed + s.Panicked + s.Skipped
	if s.Dispatched > 0 {
		s.AvgDuration = s.TotalDuration / time.Duration(s.Dispatched)
	}
	return s
}

// ResetStats zeroes the counters.
func (d *SyncDispatcher) ResetStats() {
	for i := range d.counts {
		d.counts[i].Store(0)
	}
	d.elapsed.Store(0)
}
