package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok() Handler {
	return HandlerFunc(func(ctx context.Context, event any) error { return nil })
}

func failing(err error) Handler {
	return HandlerFunc(func(ctx context.Context, event any) error { return err })
}

func panicking(v any) Handler {
	return HandlerFunc(func(ctx context.Context, event any) error { panic(v) })
}

func TestResult_Predicates(t *testing.T) {
	tests := []struct {
		name    string
		result  Result
		success bool
		isErr   bool
		isPanic bool
	}{
		{"success", Result{Success: true}, true, false, false},
		{"error", Result{Error: errors.New("boom")}, false, true, false},
		{"panic", Result{Panicked: true, PanicValue: "x"}, false, false, true},
		{"skipped", Result{Skipped: true, Error: context.Canceled}, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.success, tt.result.IsSuccess())
			assert.Equal(t, tt.isErr, tt.result.IsError())
			assert.Equal(t, tt.isPanic, tt.result.IsPanic())
		})
	}
}

func TestExecutor_Execute_PassesEvent(t *testing.T) {
	var got any
	h := HandlerFunc(func(ctx context.Context, event any) error {
		got = event
		return nil
	})

	result := NewExecutor().Execute(context.Background(), "payload", h)

	assert.True(t, result.IsSuccess())
	assert.Equal(t, "payload", got)
}

func TestExecutor_Execute_Error(t *testing.T) {
	boom := errors.New("boom")
	result := NewExecutor().Execute(context.Background(), nil, failing(boom))

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, boom)
}

func TestExecutor_Execute_Panic(t *testing.T) {
	var (
		gotEvent any
		gotValue any
		gotStack []byte
	)
	e := NewExecutor(WithExecutorPanicHandler(func(event any, v any, stack []byte) {
		gotEvent, gotValue, gotStack = event, v, stack
	}))

	result := e.Execute(context.Background(), "evt", panicking("kaboom"))

	assert.True(t, result.Panicked)
	assert.Equal(t, "kaboom", result.PanicValue)
	assert.NotEmpty(t, result.PanicStack)
	assert.Equal(t, "evt", gotEvent)
	assert.Equal(t, "kaboom", gotValue)
	assert.NotEmpty(t, gotStack)
}

func TestExecutor_Execute_PanicHandlerPanics(t *testing.T) {
	e := NewExecutor(WithExecutorPanicHandler(func(any, any, []byte) {
		panic("handler also panics")
	}))

	assert.NotPanics(t, func() {
		result := e.Execute(context.Background(), nil, panicking("first"))
		assert.True(t, result.Panicked)
	})
}

func TestExecutor_Execute_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	h := HandlerFunc(func(ctx context.Context, event any) error {
		called = true
		return nil
	})

	result := NewExecutor().Execute(ctx, nil, h)

	assert.False(t, called)
	assert.True(t, result.Skipped)
	assert.ErrorIs(t, result.Error, context.Canceled)
}

func TestExecutor_ExecuteWithTimeout(t *testing.T) {
	slow := HandlerFunc(func(ctx context.Context, event any) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	result := NewExecutor().ExecuteWithTimeout(context.Background(), nil, slow, 10*time.Millisecond)

	assert.ErrorIs(t, result.Error, context.DeadlineExceeded)
}

func TestSyncDispatcher_DispatchAll(t *testing.T) {
	d := NewSyncDispatcher()
	boom := errors.New("boom")

	results := d.DispatchAll(context.Background(), nil, []Handler{ok(), failing(boom), panicking("p"), ok()})

	require.Len(t, results, 4)
	assert.True(t, results[0].IsSuccess())
	assert.ErrorIs(t, results[1].Error, boom)
	assert.True(t, results[2].Panicked)
	assert.True(t, results[3].IsSuccess())
}

func TestSyncDispatcher_DispatchAll_CancelledMidway(t *testing.T) {
	d := NewSyncDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	canceller := HandlerFunc(func(ctx context.Context, event any) error {
		cancel()
		return nil
	})

	results := d.DispatchAll(ctx, nil, []Handler{canceller, ok(), ok()})

	require.Len(t, results, 3)
	assert.True(t, results[0].IsSuccess())
	assert.True(t, results[1].Skipped)
	assert.True(t, results[2].Skipped)
	assert.Equal(t, uint64(2), d.Stats().Skipped)
}

func TestSyncDispatcher_DispatchUntilError(t *testing.T) {
	d := NewSyncDispatcher()
	boom := errors.New("boom")

	called := false
	last := HandlerFunc(func(ctx context.Context, event any) error {
		called = true
		return nil
	})

	results := d.DispatchUntilError(context.Background(), nil, []Handler{ok(), failing(boom), last})

	require.Len(t, results, 2)
	assert.ErrorIs(t, results[1].Error, boom)
	assert.False(t, called)
}

func TestSyncDispatcher_DispatchUntilError_StopsOnPanic(t *testing.T) {
	d := NewSyncDispatcher()

	results := d.DispatchUntilError(context.Background(), nil, []Handler{panicking("p"), ok()})

	require.Len(t, results, 1)
	assert.True(t, results[0].Panicked)
}

func TestSyncDispatcher_WithTimeout(t *testing.T) {
	d := NewSyncDispatcher(WithTimeout(5 * time.Millisecond))

	var deadline bool
	h := HandlerFunc(func(ctx context.Context, event any) error {
		_, deadline = ctx.Deadline()
		return nil
	})

	d.Dispatch(context.Background(), nil, h)
	assert.True(t, deadline)
}

func TestSyncDispatcher_WithPanicHandler(t *testing.T) {
	var reported any
	d := NewSyncDispatcher(WithPanicHandler(func(event any, v any, stack []byte) {
		reported = v
	}))

	d.Dispatch(context.Background(), nil, panicking("oops"))
	assert.Equal(t, "oops", reported)
}

func TestSyncDispatcher_Stats(t *testing.T) {
	d := NewSyncDispatcher()

	d.Dispatch(context.Background(), nil, ok())
	d.Dispatch(context.Background(), nil, ok())
	d.Dispatch(context.Background(), nil, failing(errors.New("x")))
	d.Dispatch(context.Background(), nil, panicking("y"))

	stats := d.Stats()
	assert.Equal(t, uint64(4), stats.Dispatched)
	assert.Equal(t, uint64(2), stats.Succeeded)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Panicked)

	d.ResetStats()
	assert.Equal(t, Stats{}, d.Stats())
}

func TestSyncDispatcher_Concurrent(t *testing.T) {
	d := NewSyncDispatcher()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.DispatchAll(context.Background(), nil, []Handler{ok(), ok()})
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(100), d.Stats().Succeeded)
}

func TestSyncDispatcher_AsDispatcher(t *testing.T) {
	var d Dispatcher = NewSyncDispatcher()

	r := d.Dispatch(context.Background(), "evt", HandlerFunc(func(ctx context.Context, event any) error {
		assert.Equal(t, "evt", event)
		return nil
	}))
	assert.True(t, r.IsSuccess())
}
