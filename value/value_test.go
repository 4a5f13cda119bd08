package value

import (
	"testing"

	"github.com/rcrsr/rill/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarKindsAndStrings(t *testing.T) {
	testCases := []struct {
		name     string
		v        Value
		wantKind Kind
		wantStr  string
	}{
		{"string", String("hi"), KindString, "hi"},
		{"number", Number(3.5), KindNumber, "3.5"},
		{"integral number", Number(4), KindNumber, "4"},
		{"bool true", Bool(true), KindBool, "true"},
		{"null", Null{}, KindNull, "null"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantKind, tc.v.Kind())
			assert.Equal(t, tc.wantStr, tc.v.String())
		})
	}
}

func TestListAtNegativeIndex(t *testing.T) {
	l := NewList(Number(1), Number(2), Number(3))
	v, ok := l.At(-1)
	require.True(t, ok)
	assert.Equal(t, Number(3), v)

	v, ok = l.At(-3)
	require.True(t, ok)
	assert.Equal(t, Number(1), v)

	_, ok = l.At(-4)
	assert.False(t, ok)

	_, ok = l.At(3)
	assert.False(t, ok)
}

func TestDictMultiKeyFirstMatchWins(t *testing.T) {
	d := NewDict()
	d.SetIfAbsent(StringKey("a"), Number(1))
	d.SetIfAbsent(StringKey("b"), Number(1))
	// A later attempt to bind a key that is already present must not
	// clobber the first value (spec §3 "first-match wins").
	d.SetIfAbsent(StringKey("a"), Number(99))

	v, ok := d.Get(StringKey("a"))
	require.True(t, ok)
	assert.Equal(t, Number(1), v)

	v, ok = d.Get(StringKey("b"))
	require.True(t, ok)
	assert.Equal(t, Number(1), v)
}

func TestDictPreservesInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set(StringKey("z"), Number(1))
	d.Set(StringKey("a"), Number(2))
	d.Set(StringKey("m"), Number(3))

	keys := d.Keys()
	require.Len(t, keys, 3)
	assert.Equal(t, []DictKey{StringKey("z"), StringKey("a"), StringKey("m")}, keys)

	// Overwriting an existing key keeps its original position.
	d.Set(StringKey("a"), Number(20))
	keys = d.Keys()
	assert.Equal(t, []DictKey{StringKey("z"), StringKey("a"), StringKey("m")}, keys)
	v, _ := d.Get(StringKey("a"))
	assert.Equal(t, Number(20), v)
}

func TestEqualScalars(t *testing.T) {
	assert.True(t, Equal(String("a"), String("a")))
	assert.False(t, Equal(String("a"), String("b")))
	assert.True(t, Equal(Number(1), Number(1)))
	assert.False(t, Equal(Number(1), Number(2)))
	assert.True(t, Equal(Bool(true), Bool(true)))
	assert.True(t, Equal(Null{}, Null{}))
	assert.False(t, Equal(Number(1), String("1")))
}

func TestEqualListOrderSensitive(t *testing.T) {
	a := NewList(Number(1), Number(2))
	b := NewList(Number(2), Number(1))
	assert.False(t, Equal(a, b))
	assert.True(t, Equal(a, NewList(Number(1), Number(2))))
}

func TestEqualDictOrderIndependent(t *testing.T) {
	a := NewDict()
	a.Set(StringKey("x"), Number(1))
	a.Set(StringKey("y"), Number(2))

	b := NewDict()
	b.Set(StringKey("y"), Number(2))
	b.Set(StringKey("x"), Number(1))

	assert.True(t, Equal(a, b))

	b.Set(StringKey("y"), Number(99))
	assert.False(t, Equal(a, b))
}

func TestEqualTupleOrderAndNameSensitive(t *testing.T) {
	a := &Tuple{
		Positional: []Value{Number(1), Number(2)},
		Named:      []NamedValue{{Name: "k", Value: String("v")}},
	}
	b := &Tuple{
		Positional: []Value{Number(1), Number(2)},
		Named:      []NamedValue{{Name: "k", Value: String("v")}},
	}
	assert.True(t, Equal(a, b))

	c := &Tuple{
		Positional: []Value{Number(2), Number(1)},
		Named:      []NamedValue{{Name: "k", Value: String("v")}},
	}
	assert.False(t, Equal(a, c))
}

func TestEqualHostClosureByIdentity(t *testing.T) {
	var fnA HostFunc = func(args []Value, ctx HostContext, callSite *token.Span) (Value, error) {
		return Null{}, nil
	}
	var fnB HostFunc = func(args []Value, ctx HostContext, callSite *token.Span) (Value, error) {
		return Null{}, nil
	}

	h1 := &Closure{Host: &HostClosure{Name: "f", Fn: fnA}}
	h2 := &Closure{Host: &HostClosure{Name: "f", Fn: fnA}}
	h3 := &Closure{Host: &HostClosure{Name: "f", Fn: fnB}}

	assert.True(t, Equal(h1, h2), "same underlying function pointer must compare equal")
	assert.False(t, Equal(h1, h3), "distinct function values must not compare equal")
}

func TestEqualScriptClosureStructural(t *testing.T) {
	scope := scopeStub{vals: map[string]Value{"captured": Number(5)}}

	a := &Closure{Script: &ScriptClosure{
		Params:        []Param{{Name: "x"}},
		Captured:      scope,
		CapturedNames: []string{"captured"},
	}}
	b := &Closure{Script: &ScriptClosure{
		Params:        []Param{{Name: "x"}},
		Captured:      scope,
		CapturedNames: []string{"captured"},
	}}
	assert.True(t, Equal(a, b))

	otherScope := scopeStub{vals: map[string]Value{"captured": Number(6)}}
	c := &Closure{Script: &ScriptClosure{
		Params:        []Param{{Name: "x"}},
		Captured:      otherScope,
		CapturedNames: []string{"captured"},
	}}
	assert.False(t, Equal(a, c), "differing captured values break structural equality")
}

func TestCloneDeepCopiesListsAndDicts(t *testing.T) {
	inner := NewList(Number(1))
	d := NewDict()
	d.Set(StringKey("inner"), inner)

	cloned := Clone(d).(*Dict)
	clonedInner, _ := cloned.Get(StringKey("inner"))
	clonedInner.(*List).Elements[0] = Number(99)

	orig, _ := d.Get(StringKey("inner"))
	assert.Equal(t, Number(1), orig.(*List).Elements[0], "mutating the clone must not affect the original")
}

func TestCloneScalarsReturnAsIs(t *testing.T) {
	assert.Equal(t, String("a"), Clone(String("a")))
	assert.Equal(t, Number(1), Clone(Number(1)))
	assert.Equal(t, Bool(true), Clone(Bool(true)))
	assert.Equal(t, Null{}, Clone(Null{}))
}

type scopeStub struct {
	vals map[string]Value
}

func (s scopeStub) Lookup(name string) (Value, bool) {
	v, ok := s.vals[name]
	return v, ok
}
