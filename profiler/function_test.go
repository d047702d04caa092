package profiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/common"
)

func TestWrapIsIdempotent(t *testing.T) {
	p1, h, _ := newTestProfiler(t)
	p2, _, _ := newTestProfiler(t)

	w := p1.wrapFunction("f", spender(h, "f", 1))
	require.True(t, w.IsProfiled())
	assert.Same(t, p1, w.Profiler())

	again := p2.wrapFunction("other", w)
	assert.Same(t, w, again)
	assert.Same(t, p2, again.Profiler())
	assert.Equal(t, "f", again.Label())
	assert.False(t, again.Original().IsProfiled())
}

func TestFastPathIsTransparent(t *testing.T) {
	p, _, _ := newTestProfiler(t)
	boom := errors.New("boom")
	orig := NewFunction("echo", func(this interface{}, args ...interface{}) (interface{}, error) {
		if len(args) == 0 {
			return nil, boom
		}
		return []interface{}{this, args[0]}, nil
	})
	w := p.wrapFunction("echo", orig)

	got, err := w.Call("self", 42)
	require.NoError(t, err)
	want, _ := orig.Call("self", 42)
	assert.Equal(t, want, got)

	_, err = w.Call(nil)
	assert.Same(t, boom, err)
	assert.Nil(t, p.Session())
}

func TestRecordsCalls(t *testing.T) {
	p, h, _ := newTestProfiler(t)
	p.Enable()
	require.NoError(t, p.Console().Background(""))
	f := p.wrapFunction("f", spender(h, "f", 2))

	tick(p, h, func() {
		for i := 0; i < 5; i++ {
			_, _ = f.Call(nil)
		}
	})

	m := p.Session().Map
	require.Contains(t, m, "f")
	assert.EqualValues(t, 5, m["f"].Calls)
	assert.InDelta(t, 10.0, m["f"].Time, 1e-9)
	assert.EqualValues(t, 5, m[TickLabel].Subs["f"].Calls)
	assert.EqualValues(t, 0, m[TickLabel].Calls)
}

func TestParentChildAttribution(t *testing.T) {
	p, h, _ := newTestProfiler(t)
	p.Enable()
	require.NoError(t, p.Console().Background(""))

	child := p.wrapFunction("child", spender(h, "child", 2))
	parent := p.wrapFunction("parent", NewFunction("parent", func(interface{}, ...interface{}) (interface{}, error) {
		h.spend(1)
		for i := 0; i < 5; i++ {
			_, _ = child.Call(nil)
		}
		return nil, nil
	}))

	tick(p, h, func() {
		_, _ = parent.Call(nil)
		_, _ = child.Call(nil)
	})

	m := p.Session().Map
	assert.EqualValues(t, 1, m["parent"].Calls)
	assert.InDelta(t, 11.0, m["parent"].Time, 1e-9)
	assert.EqualValues(t, 5, m["parent"].Subs["child"].Calls)
	assert.InDelta(t, 10.0, m["parent"].Subs["child"].Time, 1e-9)
	assert.EqualValues(t, 6, m["child"].Calls)
	assert.EqualValues(t, 1, m[TickLabel].Subs["child"].Calls)
	assert.Equal(t, TickLabel, p.parent)
}

func TestRecursionIsCounted(t *testing.T) {
	p, h, _ := newTestProfiler(t)
	p.Enable()
	require.NoError(t, p.Console().Background(""))

	var fact *Function
	fact = p.wrapFunction("fact", NewFunction("fact", func(_ interface{}, args ...interface{}) (interface{}, error) {
		n := args[0].(int)
		h.spend(1)
		if n <= 1 {
			return 1, nil
		}
		r, err := fact.Call(nil, n-1)
		return n * r.(int), err
	}))

	var got interface{}
	tick(p, h, func() { got, _ = fact.Call(nil, 4) })

	assert.Equal(t, 24, got)
	m := p.Session().Map
	assert.EqualValues(t, 4, m["fact"].Calls)
	assert.EqualValues(t, 3, m["fact"].Subs["fact"].Calls)
}

func TestFilterLimitsRecording(t *testing.T) {
	p, h, _ := newTestProfiler(t)
	p.Enable()
	require.NoError(t, p.Console().Background("outer"))

	inner := p.wrapFunction("inner", spender(h, "inner", 1))
	outer := p.wrapFunction("outer", NewFunction("outer", func(interface{}, ...interface{}) (interface{}, error) {
		_, _ = inner.Call(nil)
		return nil, nil
	}))

	tick(p, h, func() {
		_, _ = inner.Call(nil)
		_, _ = outer.Call(nil)
		_, _ = inner.Call(nil)
	})

	m := p.Session().Map
	assert.EqualValues(t, 1, m["inner"].Calls)
	assert.EqualValues(t, 1, m["outer"].Calls)
	assert.EqualValues(t, 1, m["outer"].Subs["inner"].Calls)
	assert.NotContains(t, m[TickLabel].Subs, "inner")
	assert.Equal(t, 0, p.depth)
}

func TestErrorsPassThrough(t *testing.T) {
	p, h, _ := newTestProfiler(t)
	p.Enable()
	require.NoError(t, p.Console().Background(""))
	boom := errors.New("boom")
	f := p.wrapFunction("f", NewFunction("f", func(interface{}, ...interface{}) (interface{}, error) {
		h.spend(3)
		return "partial", boom
	}))

	var (
		res interface{}
		err error
	)
	tick(p, h, func() { res, err = f.Call(nil) })

	assert.Same(t, boom, err)
	assert.Equal(t, "partial", res)
	assert.EqualValues(t, 1, p.Session().Map["f"].Calls)
}

func TestPanicLeavesScratchUntilNextTick(t *testing.T) {
	p, h, _ := newTestProfiler(t)
	p.Enable()
	require.NoError(t, p.Console().Background("f"))
	f := p.wrapFunction("f", NewFunction("f", func(interface{}, ...interface{}) (interface{}, error) {
		panic("host error")
	}))

	assert.PanicsWithValue(t, "host error", func() {
		_ = p.Loop(func() error {
			_, _ = f.Call(nil)
			return nil
		})
	})
	assert.Equal(t, "f", p.parent)
	assert.Equal(t, 1, p.depth)
	assert.NotContains(t, p.Session().Map, "f")

	h.advance()
	tick(p, h, nil)
	assert.Equal(t, TickLabel, p.parent)
	assert.Equal(t, 0, p.depth)
}

func TestConstructorPath(t *testing.T) {
	p, h, _ := newTestProfiler(t)
	p.Enable()
	require.NoError(t, p.Console().Background(""))

	type point struct{ x, y int }
	ctor := NewConstructor("Point", nil, func(args ...interface{}) (interface{}, error) {
		h.spend(1)
		return &point{args[0].(int), args[1].(int)}, nil
	})
	w, err := p.RegisterFunction(ctor, "")
	require.NoError(t, err)
	assert.True(t, w.IsConstructor())

	var v interface{}
	tick(p, h, func() { v, err = w.New(1, 2) })
	require.NoError(t, err)
	assert.Equal(t, &point{1, 2}, v)
	assert.EqualValues(t, 1, p.Session().Map["Point"].Calls)

	_, err = w.Call(nil)
	assert.ErrorIs(t, err, ErrNotCallable)

	plain := p.wrapFunction("plain", spender(h, "plain", 0))
	_, err = plain.New()
	assert.ErrorIs(t, err, ErrNotConstructor)
}

func TestWrapperPropsAndString(t *testing.T) {
	p, h, _ := newTestProfiler(t)
	orig := spender(h, "move", 0).WithSource("function move(dir) { ... }")
	orig.SetProp("length", 1).SetProp("prototype", "x").SetProp(profilerKey, p).SetProp("doc", "moves")

	w := p.wrapFunction("Creep.move", orig)
	v, ok := w.Prop("doc")
	assert.True(t, ok)
	assert.Equal(t, "moves", v)
	for _, k := range []string{"length", "prototype", profilerKey} {
		_, ok := w.Prop(k)
		assert.False(t, ok, k)
	}

	s := w.String()
	assert.True(t, strings.HasPrefix(s, "// tick-profiler wrapped function:\n"))
	assert.True(t, strings.HasSuffix(s, "function move(dir) { ... }"))
	assert.Equal(t, "func anon() { [native code] }", NewFunction("anon", nil).String())
}

func TestSessionSwapAffectsExistingWrappers(t *testing.T) {
	p, h, _ := newTestProfiler(t)
	p.Enable()
	f := p.wrapFunction("f", spender(h, "f", 1))

	tick(p, h, func() { _, _ = f.Call(nil) })
	assert.Nil(t, p.Session())

	require.NoError(t, p.StartSession(common.SessionTypeBackground, 0, ""))
	tick(p, h, func() { _, _ = f.Call(nil) })
	assert.EqualValues(t, 1, p.Session().Map["f"].Calls)
}
