package rill_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rillcore "github.com/rcrsr/rill"
	"github.com/rcrsr/rill/token"
	"github.com/rcrsr/rill/value"
)

func run(t *testing.T, src string) rillcore.ExecuteResult {
	t.Helper()
	script, err := rillcore.Parse(src)
	require.NoError(t, err)
	ctx, err := rillcore.NewContext(rillcore.ContextOptions{MaxCallStackDepth: 100})
	require.NoError(t, err)
	res, err := rillcore.Execute(script, ctx)
	require.NoError(t, err)
	return res
}

func runErr(t *testing.T, src string) error {
	t.Helper()
	script, err := rillcore.Parse(src)
	require.NoError(t, err)
	ctx, err := rillcore.NewContext(rillcore.ContextOptions{MaxCallStackDepth: 100})
	require.NoError(t, err)
	_, err = rillcore.Execute(script, ctx)
	require.Error(t, err)
	return err
}

func TestCaptureAndRead(t *testing.T) {
	res := run(t, `"x" => $v
$v`)
	assert.Equal(t, value.String("x"), res.Value)
	assert.True(t, value.Equal(value.String("x"), res.Variables["v"]))
}

func TestSlice(t *testing.T) {
	res := run(t, `[1,2,3,4,5] -> /<1:4>`)
	assert.True(t, value.Equal(value.NewList(value.Number(2), value.Number(3), value.Number(4)), res.Value))

	res = run(t, `[1,2,3,4,5] -> /<::-1>`)
	assert.True(t, value.Equal(
		value.NewList(value.Number(5), value.Number(4), value.Number(3), value.Number(2), value.Number(1)),
		res.Value))

	err := runErr(t, `[1,2,3] -> /<::0>`)
	assert.Contains(t, err.Error(), "RILL-R009")
}

func TestWhileLoop(t *testing.T) {
	res := run(t, `0 -> ($ < 3) @ { $ + 1 }`)
	assert.Equal(t, value.Number(3), res.Value)
}

func TestClosureAutoInvocation(t *testing.T) {
	res := run(t, `|x|($x > 0) => $pos
5 -> (! $pos)`)
	assert.Equal(t, value.Bool(false), res.Value)

	err := runErr(t, `|x|($x > 0) => $pos
! $pos`)
	assert.Contains(t, err.Error(), "RILL-R006")
}

func TestDispatchTable(t *testing.T) {
	res := run(t, `"a" -> [a:1, b:2]`)
	assert.Equal(t, value.Number(1), res.Value)

	err := runErr(t, `"z" -> [a:1,b:2]`)
	assert.Contains(t, err.Error(), "RILL-R011")

	res = run(t, `"z" -> [a:1,b:2] ?? 0`)
	assert.Equal(t, value.Number(0), res.Value)
}

func TestDestructure(t *testing.T) {
	res := run(t, `[1,2,3] -> *<$a, _, $c>
[$a, $c]`)
	assert.True(t, value.Equal(value.NewList(value.Number(1), value.Number(3)), res.Value))

	err := runErr(t, `[1,2] -> *<$a,$b,$c>`)
	assert.Contains(t, err.Error(), "RILL-R012")
}

func TestCollectionMethodsBreak(t *testing.T) {
	res := run(t, `[1,2,3,4,5] -> $.each(|x| (x == 3) ? break "stopped" ! pass)`)
	assert.Equal(t, value.String("stopped"), res.Value)

	res = run(t, `[1,2,3] -> $.map(|x| x * 2)`)
	assert.True(t, value.Equal(value.NewList(value.Number(2), value.Number(4), value.Number(6)), res.Value))

	res = run(t, `[1,2,3,4] -> $.filter(|x| x > 2)`)
	assert.True(t, value.Equal(value.NewList(value.Number(3), value.Number(4)), res.Value))

	res = run(t, `[1,2,3,4] -> $.fold(0, |acc, x| acc + x)`)
	assert.Equal(t, value.Number(10), res.Value)
}

func TestKeysAndFirstMethods(t *testing.T) {
	res := run(t, `[a:1,b:2] -> $.keys()`)
	assert.True(t, value.Equal(value.NewList(value.String("a"), value.String("b")), res.Value))

	res = run(t, `[1,2,3] -> $.first()`)
	assert.Equal(t, value.Number(1), res.Value)
}

func TestJSONBuiltin(t *testing.T) {
	res := run(t, `json("\{\"a\":1}")`)
	d, ok := res.Value.(*value.Dict)
	require.True(t, ok)
	v, ok := d.Get(value.StringKey("a"))
	require.True(t, ok)
	assert.Equal(t, value.Number(1), v)

	res = run(t, `[a:1,b:2] -> json($)`)
	s, ok := res.Value.(value.String)
	require.True(t, ok)
	assert.Contains(t, string(s), "\"a\":1")
}

func TestUUIDBuiltin(t *testing.T) {
	res := run(t, `uuid()`)
	s, ok := res.Value.(value.String)
	require.True(t, ok)
	assert.Len(t, string(s), 36)
}

func TestStepper(t *testing.T) {
	script, err := rillcore.Parse("1 -> $ + 1 => $a\n$a + 1")
	require.NoError(t, err)
	ctx, err := rillcore.NewContext(rillcore.ContextOptions{MaxCallStackDepth: 100})
	require.NoError(t, err)
	stepper := rillcore.NewStepper(script, ctx)

	res, err := stepper.Step()
	require.NoError(t, err)
	assert.Equal(t, 0, res.Index)
	assert.False(t, res.Done)
	require.NotNil(t, res.Captured)
	assert.Equal(t, "a", *res.Captured)

	res, err = stepper.Step()
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, value.Number(3), res.Value)

	final, vars := stepper.GetResult()
	assert.Equal(t, value.Number(3), final)
	assert.True(t, value.Equal(value.Number(2), vars["a"]))
}

// TestCollectionMethodsCheckAbort confirms each/map/filter/fold notice an
// abort signal fired mid-iteration, not just at the top-level statement
// boundary: the script signals abort while processing the first element, and
// the second element must never run its closure.
func TestCollectionMethodsCheckAbort(t *testing.T) {
	aborted := make(chan struct{})
	signalAbort := func(args []value.Value, ctx value.HostContext, site *token.Span) (value.Value, error) {
		select {
		case <-aborted:
		default:
			close(aborted)
		}
		return value.Null{}, nil
	}

	script, err := rillcore.Parse(`[1,2,3,4,5] -> $.each(|x| (x == 1) ? signal_abort() ! pass)`)
	require.NoError(t, err)
	ctx, err := rillcore.NewContext(rillcore.ContextOptions{
		MaxCallStackDepth: 100,
		AbortSignal:       aborted,
		Functions: map[string]rillcore.FunctionSpec{
			"signal_abort": {Fn: signalAbort},
		},
	})
	require.NoError(t, err)
	_, err = rillcore.Execute(script, ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RILL-R013")
}

func TestTimeout(t *testing.T) {
	script, err := rillcore.Parse(`0 -> true @ { $ }`)
	require.NoError(t, err)
	ctx, err := rillcore.NewContext(rillcore.ContextOptions{
		MaxCallStackDepth: 100,
		Timeout:           20 * time.Millisecond,
	})
	require.NoError(t, err)
	_, err = rillcore.Execute(script, ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RILL-R013")
}

func TestPropertyStyleDictBinding(t *testing.T) {
	greet := func(args []value.Value, ctx value.HostContext, site *token.Span) (value.Value, error) {
		owner, ok := args[0].(*value.Dict)
		if !ok {
			return nil, fmt.Errorf("expected bound dict as first argument, got %T", args[0])
		}
		name, _ := owner.Get(value.StringKey("name"))
		return value.String("hello, " + name.String()), nil
	}
	d := value.NewDict()
	d.Set(value.StringKey("name"), value.String("ada"))
	d.Set(value.StringKey("greet"), &value.Closure{
		Host:       &value.HostClosure{Name: "greet", Fn: greet},
		IsProperty: true,
	})

	script, err := rillcore.Parse(`$d.greet`)
	require.NoError(t, err)
	ctx, err := rillcore.NewContext(rillcore.ContextOptions{
		Variables: map[string]value.Value{"d": d},
	})
	require.NoError(t, err)
	res, err := rillcore.Execute(script, ctx)
	require.NoError(t, err)
	assert.Equal(t, value.String("hello, ada"), res.Value)
}

func TestLookupOptional(t *testing.T) {
	ctx, err := rillcore.NewContext(rillcore.ContextOptions{
		Variables: map[string]value.Value{"known": value.Number(1)},
	})
	require.NoError(t, err)
	v, ok := ctx.LookupOptional("known")
	require.True(t, ok)
	assert.Equal(t, value.Number(1), v)

	v, ok = ctx.LookupOptional("missing")
	assert.False(t, ok)
	assert.Equal(t, value.Null{}, v)
}
