package luabind

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/relay/internal/event"
	"github.com/dshills/relay/internal/event/payload"
	"github.com/dshills/relay/internal/event/topic"
	"github.com/dshills/relay/internal/eventloop"
)

func setup(t *testing.T) (*event.Registry, *eventloop.Loop, *Binding) {
	t.Helper()

	reg := event.NewRegistry()
	loop := eventloop.New()
	b := New(reg, loop)
	t.Cleanup(b.Close)

	require.NoError(t, b.DoString(context.Background(), "log = {}"))
	return reg, loop, b
}

// run executes code as the first turn of the loop.
func run(t *testing.T, loop *eventloop.Loop, b *Binding, code string) error {
	t.Helper()
	return loop.Start(context.Background(), func(ctx context.Context) error {
		return b.DoString(ctx, code)
	})
}

func logged(b *Binding) []any {
	v, _ := FromLua(b.L.GetGlobal("log")).([]any)
	return v
}

func TestBinding_OnEmit(t *testing.T) {
	_, loop, b := setup(t)

	require.NoError(t, run(t, loop, b, `
		relay.on("tick", function(a, b)
			table.insert(log, "tick " .. a .. " " .. b)
		end)
		relay.emit("tick", 1, "x")
		relay.emit("other", 2)
	`))

	assert.Equal(t, []any{"tick 1 x"}, logged(b))
}

func TestBinding_PatternListenerGetsName(t *testing.T) {
	_, loop, b := setup(t)

	require.NoError(t, run(t, loop, b, `
		relay.on("user:*", function(name, id)
			table.insert(log, name .. "=" .. id)
		end)
		relay.on("/^order:/", function(name)
			table.insert(log, name)
		end)
		relay.emit("user:login", 7)
		relay.emit("order:placed")
		relay.emit("admin:login", 1)
	`))

	assert.Equal(t, []any{"user:login=7", "order:placed"}, logged(b))
}

func TestBinding_SameFunctionSubscribedOnce(t *testing.T) {
	reg, loop, b := setup(t)

	require.NoError(t, run(t, loop, b, `
		local function f() table.insert(log, "f") end
		local a = relay.on("e", f)
		local b = relay.on("e", f)
		relay.on("e", function() table.insert(log, "g") end)
		assert(a == b)
		relay.emit("e")
	`))

	assert.Equal(t, 2, reg.ListenerCount("e"))
	assert.Equal(t, []any{"f", "g"}, logged(b))
}

func TestBinding_Once(t *testing.T) {
	reg, loop, b := setup(t)

	require.NoError(t, run(t, loop, b, `
		relay.once("e", function(n) table.insert(log, n) end)
		relay.emit("e", "first")
		relay.emit("e", "second")
	`))

	assert.Equal(t, []any{"first"}, logged(b))
	assert.False(t, reg.HasListeners("e"))
}

func TestBinding_OnceAndOnSameFunction(t *testing.T) {
	tests := []struct {
		name  string
		code  string
		calls []any
	}{
		{
			"once then on",
			`relay.once("tick", f)
			 relay.on("tick", f)`,
			[]any{"f", "f", "f"},
		},
		{
			"on then once",
			`relay.on("tick", f)
			 relay.once("tick", f)`,
			[]any{"f", "f", "f"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, loop, b := setup(t)

			require.NoError(t, run(t, loop, b, `
				function f() table.insert(log, "f") end
				`+tt.code+`
				relay.emit("tick")
				relay.emit("tick")
			`))

			assert.Equal(t, tt.calls, logged(b))
			assert.Equal(t, 1, reg.ListenerCount("tick"))
		})
	}
}

func TestBinding_OffAndCancel(t *testing.T) {
	reg, loop, b := setup(t)

	require.NoError(t, run(t, loop, b, `
		relay.on("a", function() end)
		relay.on("a", function() end)
		local id = relay.on("b", function() end)
		table.insert(log, relay.off("a"))
		table.insert(log, relay.cancel(id))
		table.insert(log, relay.cancel(id))
		table.insert(log, relay.has("b"))
	`))

	assert.Equal(t, []any{float64(2), true, false, false}, logged(b))
	assert.Empty(t, reg.Names())
}

func TestBinding_OffAll(t *testing.T) {
	reg, loop, b := setup(t)

	require.NoError(t, run(t, loop, b, `
		relay.on("a", function() end)
		relay.on("b", function() end)
		relay.off_all()
		table.insert(log, relay.count("a") + relay.count("b"))
	`))

	assert.Equal(t, []any{float64(0)}, logged(b))
	assert.Empty(t, reg.Names())
}

func TestBinding_Defer(t *testing.T) {
	_, loop, b := setup(t)

	require.NoError(t, run(t, loop, b, `
		table.insert(log, "now " .. relay.turn())
		relay.defer(function()
			table.insert(log, "later " .. relay.turn())
		end)
	`))

	assert.Equal(t, []any{"now 1", "later 2"}, logged(b))
}

func TestBinding_Wrap(t *testing.T) {
	_, loop, b := setup(t)

	require.NoError(t, run(t, loop, b, `
		relay.on("saved", function(path)
			table.insert(log, "saved " .. path .. " " .. relay.turn())
		end)
		local save = relay.wrap(function(path)
			table.insert(log, "save " .. path .. " " .. relay.turn())
		end, { event = "saved", args = { "a.txt" } })
		save("a.txt")

		local load = relay.wrap(function()
			table.insert(log, "load " .. relay.turn())
		end, { event = "saved", args = { "b.txt" }, immediate = true })
		load()
	`))

	assert.Equal(t, []any{
		"save a.txt 1",
		"saved b.txt 1",
		"saved a.txt 2",
		"load 3",
	}, logged(b))
}

func TestBinding_WrapRequiresEvent(t *testing.T) {
	_, loop, b := setup(t)

	err := run(t, loop, b, `relay.wrap(function() end, {})`)
	assert.Error(t, err)
}

func TestBinding_ListenerErrorFailsEmit(t *testing.T) {
	_, loop, b := setup(t)

	err := run(t, loop, b, `
		relay.on("e", function() error("boom") end)
		relay.emit("e")
		table.insert(log, "unreachable")
	`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Empty(t, logged(b))
}

func TestBinding_ListenerErrorReachesGo(t *testing.T) {
	reg, _, b := setup(t)

	require.NoError(t, b.DoString(context.Background(), `
		relay.on("e", function() error("bad") end)
	`))

	err := reg.Emit(context.Background(), "e")
	var lerr *event.ListenerError
	require.ErrorAs(t, err, &lerr)
	var apiErr *lua.ApiError
	assert.ErrorAs(t, err, &apiErr)
}

func TestBinding_InvalidIdentifier(t *testing.T) {
	_, loop, b := setup(t)

	for _, code := range []string{
		`relay.on("", function() end)`,
		`relay.on("/[/", function() end)`,
		`relay.emit("")`,
		`relay.on("e", 42)`,
	} {
		assert.Error(t, run(t, loop, b, code), code)
	}
}

func TestBinding_GoEmitsJSONPayload(t *testing.T) {
	reg, _, b := setup(t)

	require.NoError(t, b.DoString(context.Background(), `
		relay.on("order", function(o)
			table.insert(log, o.id .. ":" .. o.items[2])
		end)
	`))

	err := reg.Emit(context.Background(), topic.Name("order"), payload.JSON(`{"id":"o1","items":["a","b"]}`))
	require.NoError(t, err)
	assert.Equal(t, []any{"o1:b"}, logged(b))
}

func TestBinding_CloseCancelsSubscriptions(t *testing.T) {
	reg := event.NewRegistry()
	b := New(reg, eventloop.New())

	require.NoError(t, b.DoString(context.Background(), `
		relay.on("a", function() end)
		relay.on("*", function() end)
	`))
	require.True(t, reg.HasListeners("a"))

	b.Close()
	assert.False(t, reg.HasListeners("a"))
	assert.Zero(t, reg.PatternCount())
}

func TestBinding_WithGlobal(t *testing.T) {
	reg := event.NewRegistry()
	b := New(reg, eventloop.New(), WithGlobal("bus"))
	defer b.Close()

	require.NoError(t, b.DoString(context.Background(), `bus.on("x", function() end)`))
	assert.True(t, reg.HasListeners("x"))
	assert.Equal(t, lua.LNil, b.L.GetGlobal(DefaultGlobal))
}

func TestConvert(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	in := map[string]any{
		"n":    float64(3),
		"s":    "x",
		"ok":   true,
		"list": []any{"a", float64(1)},
		"nested": map[string]any{
			"k": nil,
		},
	}
	out := FromLua(ToLua(L, in))

	want := map[string]any{
		"n":      float64(3),
		"s":      "x",
		"ok":     true,
		"list":   []any{"a", float64(1)},
		"nested": map[string]any{},
	}
	assert.Equal(t, want, out)

	assert.Equal(t, "user:x", FromLua(ToLua(L, topic.Name("user:x"))))
	assert.Nil(t, FromLua(lua.LNil))
}
