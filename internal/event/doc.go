// Package event provides the in-process dispatch registry for relay.
//
// A Registry maps identifiers to listeners and delivers emissions to them
// synchronously, in the caller's goroutine. Identifiers come from the topic
// subpackage: an exact topic.Name or a topic.Pattern (the wildcard "*", a
// glob such as "user:*", or a regular expression).
//
// # Tables
//
// The registry keeps two tables:
//
//   - exact: name -> insertion-ordered set of listeners. A listener whose
//     dynamic value is comparable is stored once per name. Function
//     listeners have no identity and are always added.
//   - patterns: insertion-ordered list of (pattern, listener) entries,
//     never deduplicated.
//
// # Emission
//
// Emit snapshots the exact set of the name followed by every matching
// pattern entry, then calls them in that order. No lock is held while a
// listener runs, so listeners may subscribe, unsubscribe and emit. A listener
// removed during a pass still runs in that pass if it was snapshotted.
//
// Pattern listeners see the emitted name in Event.Name and the pattern that
// matched in Event.Pattern.
//
// # Basic Usage
//
//	reg := event.NewRegistry(event.WithLogger(logger))
//
//	sub, err := reg.Subscribe(topic.Name("user:login"), event.ListenerFunc(
//	    func(ctx context.Context, e event.Event) error {
//	        fmt.Println("login", e.Arg(0))
//	        return nil
//	    }))
//
//	_, err = reg.Subscribe(topic.MustGlob("user:*"), auditor)
//
//	err = reg.Emit(ctx, "user:login", userID)
//
//	sub.Cancel()
//
// # Failures
//
// Listener errors are wrapped in *ListenerError and recovered panics are
// reported as *PanicError. With FailFast (the default) the first failure ends
// the pass. With Isolate every listener runs and the failures are aggregated;
// Failures unpacks them.
//
// # Typed Keys
//
// Key binds a name to a payload type:
//
//	var Login = event.NewKey[LoginEvent]("user:login")
//
//	event.On(reg, Login, func(ctx context.Context, l LoginEvent) error { ... })
//	event.Emit(ctx, reg, Login, LoginEvent{User: "ada"})
//
// # Subpackages
//
//   - topic: names, patterns and identifier parsing
//   - dispatch: synchronous execution with panic recovery and statistics
//   - payload: JSON payload helpers and payload filters
package event
