// Package luabind exposes a Registry and an event loop to Lua scripts.
//
// New installs a global table (relay by default) with:
//
//	relay.on(id, fn)         -> subscription id
//	relay.once(id, fn)       -> subscription id
//	relay.emit(name, ...)
//	relay.off(id)            -> number removed
//	relay.cancel(sub_id)     -> boolean
//	relay.off_all()
//	relay.count(name)        -> number
//	relay.has(name)          -> boolean
//	relay.defer(fn)          runs fn on the next turn
//	relay.wrap(fn, opts)     -> function
//	relay.turn()             -> current turn number
//
// Identifiers are strings: plain names, "*", globs ("user:*") and regular
// expressions ("/^user:/"). Pattern listeners are
// called with the emitted name followed by the payload. Exact listeners get
// the payload only.
//
// A Binding is not safe for concurrent use. Emit into a registry with Lua
// listeners only from the goroutine running the loop.
package luabind

import (
	"context"
	"fmt"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/dshills/relay/internal/event"
	"github.com/dshills/relay/internal/event/topic"
	"github.com/dshills/relay/internal/eventloop"
	"github.com/dshills/relay/internal/wrap"
)

// DefaultGlobal is the name of the installed table.
const DefaultGlobal = "relay"

// Binding owns a Lua state wired to a registry and a loop.
type Binding struct {
	L       *lua.LState
	reg     *event.Registry
	loop    *eventloop.Loop
	wrapper *wrap.Wrapper
	logger  *zap.Logger
	global  string

	// ctx is the context of the Go call currently running Lua code.
	ctx context.Context

	mu   sync.Mutex
	subs map[string]*event.Subscription
}

// Option configures a Binding.
type Option func(*Binding)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Binding) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithGlobal sets the name of the installed table.
func WithGlobal(name string) Option {
	return func(b *Binding) {
		if name != "" {
			b.global = name
		}
	}
}

// New creates a Lua state with the base, table, string and math libraries
// and installs the relay table.
func New(reg *event.Registry, loop *eventloop.Loop, opts ...Option) *Binding {
	b := &Binding{
		reg:    reg,
		loop:   loop,
		logger: zap.NewNop(),
		global: DefaultGlobal,
		ctx:    context.Background(),
		subs:   make(map[string]*event.Subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.wrapper = wrap.New(reg, loop, wrap.WithLogger(b.logger))

	b.L = lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(b.L)
	lua.OpenTable(b.L)
	lua.OpenString(b.L)
	lua.OpenMath(b.L)

	b.install()
	return b
}

func (b *Binding) install() {
	L := b.L
	mod := L.NewTable()
	L.SetField(mod, "on", L.NewFunction(b.luaOn))
	L.SetField(mod, "once", L.NewFunction(b.luaOnce))
	L.SetField(mod, "emit", L.NewFunction(b.luaEmit))
	L.SetField(mod, "off", L.NewFunction(b.luaOff))
	L.SetField(mod, "cancel", L.NewFunction(b.luaCancel))
	L.SetField(mod, "off_all", L.NewFunction(b.luaOffAll))
	L.SetField(mod, "count", L.NewFunction(b.luaCount))
	L.SetField(mod, "has", L.NewFunction(b.luaHas))
	L.SetField(mod, "defer", L.NewFunction(b.luaDefer))
	L.SetField(mod, "wrap", L.NewFunction(b.luaWrap))
	L.SetField(mod, "turn", L.NewFunction(b.luaTurn))
	L.SetGlobal(b.global, mod)
}

// DoString runs a chunk with ctx as the context for emissions it makes.
func (b *Binding) DoString(ctx context.Context, code string) error {
	restore := b.enter(ctx)
	defer restore()
	return b.L.DoString(code)
}

// DoFile runs a script file with ctx as the context for emissions it makes.
func (b *Binding) DoFile(ctx context.Context, path string) error {
	restore := b.enter(ctx)
	defer restore()
	b.logger.Debug("running script", zap.String("path", path))
	if err := b.L.DoFile(path); err != nil {
		return fmt.Errorf("script %s: %w", path, err)
	}
	return nil
}

// Close cancels every subscription made from Lua and closes the state.
func (b *Binding) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*event.Subscription)
	b.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
	b.L.Close()
}

func (b *Binding) enter(ctx context.Context) func() {
	prev := b.ctx
	b.ctx = ctx
	return func() { b.ctx = prev }
}

// call invokes fn in protected mode.
func (b *Binding) call(ctx context.Context, fn *lua.LFunction, args ...lua.LValue) error {
	restore := b.enter(ctx)
	defer restore()
	return b.L.CallByParam(lua.P{Fn: fn, NRet: 0, Protect: true}, args...)
}

// luaListener is comparable, so the same Lua function subscribed twice to
// one name is a single entry.
type luaListener struct {
	fn *lua.LFunction
	b  *Binding
}

func (l luaListener) Handle(ctx context.Context, e event.Event) error {
	args := make([]lua.LValue, 0, len(e.Args)+1)
	if e.Matched() {
		args = append(args, lua.LString(e.Name))
	}
	for _, a := range e.Args {
		args = append(args, ToLua(l.b.L, a))
	}
	return l.b.call(ctx, l.fn, args...)
}

func (b *Binding) checkIdentifier(L *lua.LState, n int) topic.Identifier {
	id, err := topic.Parse(L.CheckString(n))
	if err != nil {
		L.ArgError(n, err.Error())
		return nil
	}
	return id
}

func (b *Binding) subscribe(L *lua.LState, once bool) int {
	id := b.checkIdentifier(L, 1)
	fn := L.CheckFunction(2)

	var opts []event.SubscriptionOption
	if once {
		opts = append(opts, event.WithOnce())
	}
	sub, err := b.reg.Subscribe(id, luaListener{fn: fn, b: b}, opts...)
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}

	b.mu.Lock()
	b.prune()
	b.subs[sub.ID()] = sub
	b.mu.Unlock()

	L.Push(lua.LString(sub.ID()))
	return 1
}

// prune drops subscriptions that are no longer registered. Callers hold mu.
func (b *Binding) prune() {
	for id, s := range b.subs {
		if !s.Active() {
			delete(b.subs, id)
		}
	}
}

func (b *Binding) luaOn(L *lua.LState) int {
	return b.subscribe(L, false)
}

func (b *Binding) luaOnce(L *lua.LState) int {
	return b.subscribe(L, true)
}

func (b *Binding) luaEmit(L *lua.LState) int {
	name := topic.Name(L.CheckString(1))
	if !name.IsValid() {
		L.ArgError(1, "event name must not be empty")
		return 0
	}

	args := make([]any, 0, L.GetTop()-1)
	for i := 2; i <= L.GetTop(); i++ {
		args = append(args, FromLua(L.Get(i)))
	}

	if err := b.reg.Emit(b.ctx, name, args...); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (b *Binding) luaOff(L *lua.LState) int {
	id := b.checkIdentifier(L, 1)
	n := b.reg.Unsubscribe(id)

	b.mu.Lock()
	b.prune()
	b.mu.Unlock()

	L.Push(lua.LNumber(n))
	return 1
}

func (b *Binding) luaCancel(L *lua.LState) int {
	subID := L.CheckString(1)

	b.mu.Lock()
	sub, ok := b.subs[subID]
	delete(b.subs, subID)
	b.mu.Unlock()

	L.Push(lua.LBool(ok && sub.Cancel()))
	return 1
}

func (b *Binding) luaOffAll(L *lua.LState) int {
	b.reg.UnsubscribeAll()

	b.mu.Lock()
	b.prune()
	b.mu.Unlock()
	return 0
}

func (b *Binding) luaCount(L *lua.LState) int {
	L.Push(lua.LNumber(b.reg.ListenerCount(topic.Name(L.CheckString(1)))))
	return 1
}

func (b *Binding) luaHas(L *lua.LState) int {
	L.Push(lua.LBool(b.reg.HasListeners(topic.Name(L.CheckString(1)))))
	return 1
}

func (b *Binding) luaDefer(L *lua.LState) int {
	fn := L.CheckFunction(1)
	b.loop.Post(func(ctx context.Context) error {
		return b.call(ctx, fn)
	})
	return 0
}

func (b *Binding) luaTurn(L *lua.LState) int {
	L.Push(lua.LNumber(b.loop.Turn()))
	return 1
}

// luaWrap implements relay.wrap(fn, {event=, args=, immediate=}).
func (b *Binding) luaWrap(L *lua.LState) int {
	fn := L.CheckFunction(1)
	opts := L.CheckTable(2)

	cfg := wrap.Config{
		Event:     topic.Name(lua.LVAsString(opts.RawGetString("event"))),
		Immediate: lua.LVAsBool(opts.RawGetString("immediate")),
	}
	if args, ok := opts.RawGetString("args").(*lua.LTable); ok {
		for i := 1; i <= args.Len(); i++ {
			cfg.Args = append(cfg.Args, FromLua(args.RawGetInt(i)))
		}
	}

	// validate now so a bad table fails at wrap time
	if _, err := b.wrapper.Wrap(cfg, func(context.Context) error { return nil }); err != nil {
		L.ArgError(2, err.Error())
		return 0
	}

	wrapped := L.NewFunction(func(L *lua.LState) int {
		callArgs := make([]lua.LValue, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			callArgs = append(callArgs, L.Get(i))
		}

		run, err := b.wrapper.Wrap(cfg, func(ctx context.Context) error {
			return b.call(ctx, fn, callArgs...)
		})
		if err == nil {
			err = run(b.ctx)
		}
		if err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	})

	L.Push(wrapped)
	return 1
}
