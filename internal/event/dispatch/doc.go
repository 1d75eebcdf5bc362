// Package dispatch invokes listeners for the event registry.
//
// The SyncDispatcher runs handlers in the caller's goroutine, one after the
// other, recovering panics and timing each call. Two pass strategies are
// provided:
//
//   - DispatchUntilError stops at the first handler that fails or panics.
//   - DispatchAll runs every handler and reports each outcome.
//
// Both stop early when the context is cancelled; handlers that did not run
// are reported as skipped.
//
// # Usage
//
//	d := dispatch.NewSyncDispatcher(
//	    dispatch.WithPanicHandler(func(event any, v any, stack []byte) {
//	        logger.Error("listener panic", zap.Any("value", v))
//	    }),
//	)
//	results := d.DispatchAll(ctx, evt, handlers)
//	for _, r := range results {
//	    if !r.IsSuccess() {
//	        // inspect r.Error, r.PanicValue
//	    }
//	}
package dispatch
