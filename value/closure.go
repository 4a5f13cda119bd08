package value

import (
	"strings"

	"github.com/rcrsr/rill/ast"
	"github.com/rcrsr/rill/token"
)

// Scope is the minimal read surface a captured lexical environment needs to
// expose to value equality and closure invocation. runtime.Scope implements
// it; the value package cannot import runtime (runtime imports value), so
// the interface lives here instead, with runtime supplying the concrete
// implementation — the usual way to break an import cycle between a data
// type and the engine that evaluates it.
type Scope interface {
	// Lookup returns the current binding of name, walking parent frames.
	Lookup(name string) (Value, bool)
}

// HostContext is the minimal context surface exposed to an application
// callable (spec §4.3 "Host callable signature"; §6 "Host callable
// signature").
type HostContext interface {
	PipeValue() (Value, bool)
	Done() <-chan struct{}
}

// HostFunc is an application callable's native implementation. Rill's
// cooperative-suspension model (spec §5, §9 "async host calls") is only
// necessary for a single-threaded non-blocking host; a Go HostFunc that
// needs to do I/O simply blocks the calling goroutine and returns its result
// synchronously, checking ctx.Done() if it supports cancellation — no
// separate future/fiber type is needed (documented as an Open Question
// resolution in DESIGN.md).
type HostFunc func(args []Value, ctx HostContext, callSite *token.Span) (Value, error)

// Param is one closure parameter: a name, an optional type constraint, and
// an optional default expression evaluated per call (spec §4.4 "Late
// binding: ... defaults are evaluated per call").
type Param struct {
	Name    string
	Type    string
	Default ast.Expr // nil if no default
}

// ScriptClosure is a closure written in Rill source: late-binding (spec
// §4.4), structurally comparable on (Params, Body, captured values) rather
// than by identity (spec §3 "Value semantics").
type ScriptClosure struct {
	Name      string // empty for anonymous closures
	Params    []Param
	Body      ast.Expr
	Captured  Scope
	CapturedNames []string // free variable names snapshotted for structural equality, see Equal
}

// HostClosure is an application callable: a native Go function. Equality is
// by identity per spec §3 ("Reference identity is observable only for
// application callables") — see Equal.
type HostClosure struct {
	Name        string
	Fn          HostFunc
	ParamTypes  []string
	ReturnType  string
	Description string
	// Bound is the dict this callable was read off of. It is set only on
	// the copy made when a property-style callable is read as a dict field
	// (see WithBound); assigning a dict to a variable does not set it.
	Bound *Dict
}

// Closure wraps exactly one of Script or Host, mirroring spec §3 "closure
// (either script callable ... or application callable ...)". IsProperty
// marks either kind auto-invoked on dict field access (spec §3 "with an
// optional isProperty flag").
type Closure struct {
	Script     *ScriptClosure
	Host       *HostClosure
	IsProperty bool
}

func (*Closure) Kind() Kind { return KindClosure }

func (c *Closure) String() string {
	switch {
	case c.Script != nil:
		names := make([]string, len(c.Script.Params))
		for i, p := range c.Script.Params {
			names[i] = p.Name
		}
		return "|" + strings.Join(names, ", ") + "| ..."
	case c.Host != nil:
		if c.Host.Name != "" {
			return "<host fn " + c.Host.Name + ">"
		}
		return "<host fn>"
	default:
		return "<closure>"
	}
}

// Arity reports the number of declared parameters, used for arity-mismatch
// checks (spec §4.4 "Arity mismatches during auto-invocation produce a
// runtime error").
func (c *Closure) Arity() int {
	if c.Script != nil {
		return len(c.Script.Params)
	}
	return len(c.Host.ParamTypes)
}

// WithBound returns a copy of c with its host closure's Bound dict set,
// implementing dict binding (spec §4.3) without mutating the original.
func (c *Closure) WithBound(d *Dict) *Closure {
	if c.Host == nil {
		return c
	}
	h := *c.Host
	h.Bound = d
	return &Closure{Host: &h, IsProperty: c.IsProperty}
}
