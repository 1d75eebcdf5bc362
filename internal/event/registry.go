package event

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/dshills/relay/internal/event/dispatch"
	"github.com/dshills/relay/internal/event/topic"
)

// listenerSet holds the entries of one exact name in insertion order.
type listenerSet struct {
	entries []*entry
}

// find returns the live entry holding the listener identified by key with
// the same one-shot setting. A one-shot entry and a permanent entry of the
// same listener are distinct registrations.
func (s *listenerSet) find(key any, once bool) *entry {
	if key == nil {
		return nil
	}
	for _, e := range s.entries {
		if e.key != key || e.config.Once != once {
			continue
		}
		if once && e.fired.Load() {
			// consumed, about to be removed
			continue
		}
		return e
	}
	return nil
}

// Registry maps identifiers to listeners and fans emissions out to them
// synchronously. It is safe for concurrent use; no lock is held while a
// listener runs, so listeners may subscribe, unsubscribe and emit.
type Registry struct {
	mu       sync.RWMutex
	exact    map[topic.Name]*listenerSet
	patterns []*entry

	cfg        registryConfig
	dispatcher *dispatch.SyncDispatcher
	emitted    atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Registry{
		exact:      make(map[topic.Name]*listenerSet),
		cfg:        cfg,
		dispatcher: dispatch.NewSyncDispatcher(dispatch.WithTimeout(cfg.listenerTimeout)),
	}
}

// Subscribe registers l under id. Names register in the exact table, where a
// listener with identity is stored once per name and one-shot setting;
// subscribing it again returns the existing subscription, while a one-shot
// and a permanent registration of the same listener coexist. Patterns register in the pattern table
// and are never deduplicated.
func (r *Registry) Subscribe(id topic.Identifier, l Listener, opts ...SubscriptionOption) (*Subscription, error) {
	if isNil(l) {
		return nil, ErrNilListener
	}

	norm, err := topic.Normalize(id)
	if err != nil {
		return nil, err
	}

	var cfg SubscriptionConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &entry{
		id:       uuid.NewString(),
		listener: l,
		key:      identityOf(l),
		config:   cfg,
		registry: r,
	}

	r.mu.Lock()
	switch v := norm.(type) {
	case topic.Name:
		e.name = v
		set, ok := r.exact[v]
		if !ok {
			set = &listenerSet{}
			r.exact[v] = set
		}
		if existing := set.find(e.key, cfg.Once); existing != nil {
			r.mu.Unlock()
			return &Subscription{e: existing}, nil
		}
		set.entries = append(set.entries, e)
	case topic.Pattern:
		e.pattern = v
		r.patterns = append(r.patterns, e)
	}
	r.mu.Unlock()

	r.cfg.logger.Debug("listener subscribed",
		zap.String("identifier", norm.String()),
		zap.String("subscription", e.id),
		zap.Bool("once", cfg.Once),
	)

	return &Subscription{e: e}, nil
}

// SubscribeOnce registers a listener that fires at most once.
func (r *Registry) SubscribeOnce(id topic.Identifier, l Listener, opts ...SubscriptionOption) (*Subscription, error) {
	return r.Subscribe(id, l, append(opts, WithOnce())...)
}

// SubscribeFunc registers a function listener.
func (r *Registry) SubscribeFunc(id topic.Identifier, fn func(ctx context.Context, e Event) error, opts ...SubscriptionOption) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilListener
	}
	return r.Subscribe(id, ListenerFunc(fn), opts...)
}

// Emit delivers args to the listeners of name: first the exact listeners in
// insertion order, then the matching pattern listeners in insertion order.
// The listener lists are snapshotted before the first call.
//
// Under FailFast the first failure ends the pass and is returned. Under
// Isolate every listener runs and failures are aggregated. A cancelled ctx
// ends the pass and ctx.Err() is part of the returned error.
func (r *Registry) Emit(ctx context.Context, name topic.Name, args ...any) error {
	if !name.IsValid() {
		return fmt.Errorf("emit: %w", topic.ErrInvalidIdentifier)
	}

	start := time.Now()
	r.emitted.Add(1)
	r.cfg.metrics.emitted(name)

	snapshot := r.snapshot(name)
	if len(snapshot) == 0 {
		return nil
	}

	evt := Event{
		Name: name,
		Args: args,
		ID:   uuid.NewString(),
		Time: start,
	}

	targets := make([]*entry, 0, len(snapshot))
	handlers := make([]dispatch.Handler, 0, len(snapshot))
	for _, e := range snapshot {
		if !e.accepts(evt) {
			continue
		}
		targets = append(targets, e)
		handlers = append(handlers, e)
	}

	var results []dispatch.Result
	if r.cfg.failurePolicy == Isolate {
		results = r.dispatcher.DispatchAll(ctx, evt, handlers)
	} else {
		results = r.dispatcher.DispatchUntilError(ctx, evt, handlers)
	}

	err := r.collect(evt, targets, results)
	r.cfg.metrics.observe(name, time.Since(start))
	return err
}

// snapshot copies the entries an emission of name reaches.
func (r *Registry) snapshot(name topic.Name) []*entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entry
	if set, ok := r.exact[name]; ok {
		out = append(out, set.entries...)
	}
	for _, e := range r.patterns {
		if e.pattern.Match(name.String()) {
			out = append(out, e)
		}
	}
	return out
}

// collect converts dispatch results into the Emit error.
func (r *Registry) collect(evt Event, targets []*entry, results []dispatch.Result) error {
	var errs error

	for i, res := range results {
		e := targets[i]
		r.cfg.metrics.call(evt.Name)

		switch {
		case res.Skipped:
			r.cfg.metrics.failure(evt.Name, "skipped")
			return multierr.Append(errs, res.Error)

		case res.Panicked:
			perr := &PanicError{
				SubscriptionID: e.id,
				Event:          evt.Name.String(),
				Value:          res.PanicValue,
				Stack:          string(res.PanicStack),
			}
			r.cfg.metrics.failure(evt.Name, "panic")
			r.cfg.logger.Error("listener panicked",
				zap.String("event", evt.Name.String()),
				zap.String("subscription", e.id),
				zap.String("pattern", e.pattern.String()),
				zap.Any("panic", res.PanicValue),
			)
			r.notifyPanic(e.eventFor(evt), e.id, res.PanicValue)
			errs = multierr.Append(errs, perr)

		case res.Error != nil:
			lerr := &ListenerError{
				SubscriptionID: e.id,
				Event:          evt.Name.String(),
				Pattern:        e.pattern.String(),
				Err:            res.Error,
			}
			r.cfg.metrics.failure(evt.Name, "error")
			r.cfg.logger.Error("listener failed",
				zap.String("event", evt.Name.String()),
				zap.String("subscription", e.id),
				zap.String("pattern", e.pattern.String()),
				zap.Error(res.Error),
			)
			errs = multierr.Append(errs, lerr)
		}
	}

	return errs
}

func (r *Registry) notifyPanic(evt Event, subID string, recovered any) {
	if r.cfg.panicHandler == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.cfg.logger.Error("panic handler panicked", zap.Any("panic", p))
		}
	}()
	r.cfg.panicHandler(evt, subID, recovered)
}

// Unsubscribe removes the listeners registered under id and returns how many
// entries were removed. A name removes its whole exact set. A pattern removes
// pattern entries selected by the registry's PatternRemoval mode.
func (r *Registry) Unsubscribe(id topic.Identifier) int {
	norm, err := topic.Normalize(id)
	if err != nil {
		return 0
	}

	var removed []*entry

	r.mu.Lock()
	switch v := norm.(type) {
	case topic.Name:
		if set, ok := r.exact[v]; ok {
			removed = set.entries
			delete(r.exact, v)
		}
	case topic.Pattern:
		r.patterns = slices.DeleteFunc(r.patterns, func(e *entry) bool {
			if r.removesPattern(v, e.pattern) {
				removed = append(removed, e)
				return true
			}
			return false
		})
	}
	r.mu.Unlock()

	for _, e := range removed {
		e.removed.Store(true)
	}

	if len(removed) > 0 {
		r.cfg.logger.Debug("listeners unsubscribed",
			zap.String("identifier", norm.String()),
			zap.Int("count", len(removed)),
		)
	}
	return len(removed)
}

func (r *Registry) removesPattern(given, stored topic.Pattern) bool {
	if stored.Equal(given) {
		return true
	}
	return r.cfg.patternRemoval == RemoveMatching && given.Match(stored.Expr())
}

// UnsubscribeAll clears the exact table. Pattern entries are kept; use Clear
// to remove them too.
func (r *Registry) UnsubscribeAll() {
	r.mu.Lock()
	old := r.exact
	r.exact = make(map[topic.Name]*listenerSet)
	r.mu.Unlock()

	for _, set := range old {
		for _, e := range set.entries {
			e.removed.Store(true)
		}
	}
	r.cfg.logger.Debug("exact listeners cleared")
}

// Clear removes every listener from both tables.
func (r *Registry) Clear() {
	r.mu.Lock()
	old := r.exact
	patterns := r.patterns
	r.exact = make(map[topic.Name]*listenerSet)
	r.patterns = nil
	r.mu.Unlock()

	for _, set := range old {
		for _, e := range set.entries {
			e.removed.Store(true)
		}
	}
	for _, e := range patterns {
		e.removed.Store(true)
	}
}

// removeEntry removes one registration. It returns false if the entry was
// no longer registered.
func (r *Registry) removeEntry(target *entry) bool {
	r.mu.Lock()
	found := false
	if target.isPattern() {
		if i := slices.Index(r.patterns, target); i >= 0 {
			r.patterns = slices.Delete(r.patterns, i, i+1)
			found = true
		}
	} else if set, ok := r.exact[target.name]; ok {
		if i := slices.Index(set.entries, target); i >= 0 {
			set.entries = slices.Delete(set.entries, i, i+1)
			found = true
			if len(set.entries) == 0 {
				delete(r.exact, target.name)
			}
		}
	}
	r.mu.Unlock()

	if found {
		target.removed.Store(true)
	}
	return found
}

// consumeOnce removes a one-shot entry after it fired.
func (r *Registry) consumeOnce(e *entry) {
	if r.cfg.onceMode == OnceRemoveIdentifier && !e.isPattern() {
		if e.removed.Load() {
			return
		}
		r.Unsubscribe(e.name)
		return
	}
	r.removeEntry(e)
}

// ListenerCount returns the number of exact listeners under name.
// Pattern listeners are not counted.
func (r *Registry) ListenerCount(name topic.Name) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if set, ok := r.exact[name]; ok {
		return len(set.entries)
	}
	return 0
}

// HasListeners returns true if name has at least one exact listener.
func (r *Registry) HasListeners(name topic.Name) bool {
	return r.ListenerCount(name) > 0
}

// Listeners returns a copy of the exact listeners under name in insertion
// order. The second result is false when there are none.
func (r *Registry) Listeners(name topic.Name) ([]Listener, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.exact[name]
	if !ok || len(set.entries) == 0 {
		return nil, false
	}

	out := make([]Listener, len(set.entries))
	for i, e := range set.entries {
		out[i] = e.listener
	}
	return out, true
}

// Names returns the exact identifiers with listeners, sorted.
func (r *Registry) Names() []topic.Name {
	r.mu.RLock()
	names := make([]topic.Name, 0, len(r.exact))
	for name := range r.exact {
		names = append(names, name)
	}
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// PatternCount returns the number of pattern entries.
func (r *Registry) PatternCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.patterns)
}

// Stats returns registry statistics.
func (r *Registry) Stats() Stats {
	ds := r.dispatcher.Stats()

	r.mu.RLock()
	exact := 0
	for _, set := range r.exact {
		exact += len(set.entries)
	}
	stats := Stats{
		ExactListeners:   exact,
		PatternListeners: len(r.patterns),
		Names:            len(r.exact),
	}
	r.mu.RUnlock()

	stats.Emitted = r.emitted.Load()
	stats.Delivered = ds.Succeeded
	stats.Failed = ds.Failed
	stats.Panicked = ds.Panicked
	stats.Skipped = ds.Skipped
	stats.AvgListenerTime = ds.AvgDuration
	return stats
}

// isNil reports whether l is nil or a typed nil.
func isNil(l Listener) bool {
	if l == nil {
		return true
	}
	v := reflect.ValueOf(l)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}
