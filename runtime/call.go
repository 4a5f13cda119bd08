package runtime

import (
	"github.com/rcrsr/rill/ast"
	"github.com/rcrsr/rill/rillerr"
	"github.com/rcrsr/rill/token"
	"github.com/rcrsr/rill/value"
)

// buildClosure turns a ClosureLit into a script closure, snapshotting the
// set of free variable names it reads so structural equality (spec §3) can
// later compare captured values without re-walking the body.
func (e *Evaluator) buildClosure(n *ast.ClosureLit, scope *Scope) *value.Closure {
	bound := map[string]bool{}
	for _, p := range n.Params {
		bound[p.Name] = true
	}
	return &value.Closure{Script: &value.ScriptClosure{
		Params:        n.Params,
		Body:          n.Body,
		Captured:      scope,
		CapturedNames: freeVarNames(n.Body, bound),
	}}
}

func (e *Evaluator) evalCallExpr(n *ast.CallExpr, scope *Scope, pv PipeValue) (Outcome, error) {
	args, esc, err := e.evalExprList(n.Args, scope, pv)
	if err != nil {
		return Outcome{}, err
	}
	if esc.escapes() {
		return esc, nil
	}
	name := n.Name
	if len(n.Namespace) > 0 {
		full := ""
		for _, ns := range n.Namespace {
			full += ns + "::"
		}
		name = full + n.Name
	}
	spec, ok := e.ctx.Functions[name]
	if !ok {
		return Outcome{}, newErr(ErrUnknownFunction, "undefined function %q", name).At(n.SpanValue.Start)
	}
	if len(spec.Params) > 0 && len(args) > len(spec.Params) {
		return Outcome{}, newErr(ErrArityMismatch, "function %q takes at most %d argument(s), got %d", name, len(spec.Params), len(args)).At(n.SpanValue.Start)
	}
	v, err := e.invokeHost(spec.Fn, args, pv, name, callSiteSpan(n))
	if err != nil {
		return Outcome{}, err
	}
	return just(v), nil
}

func (e *Evaluator) evalInvokeExpr(n *ast.InvokeExpr, scope *Scope, pv PipeValue) (Outcome, error) {
	co, err := e.eval(n.Callee, scope, pv)
	if err != nil || co.escapes() {
		return co, err
	}
	cl, ok := co.Value.(*value.Closure)
	if !ok {
		return Outcome{}, newErr(ErrTypeMismatch, "cannot invoke value of kind %s", value.TypeName(co.Value)).At(n.SpanValue.Start)
	}
	args, esc, err := e.evalExprList(n.Args, scope, pv)
	if err != nil {
		return Outcome{}, err
	}
	if esc.escapes() {
		return esc, nil
	}
	v, err := e.callClosure(cl, args, pv, callSiteSpan(n))
	if err != nil {
		return Outcome{}, err
	}
	return just(v), nil
}

func (e *Evaluator) evalMethodCall(n *ast.MethodCall, scope *Scope, pv PipeValue) (Outcome, error) {
	to, err := e.eval(n.Target, scope, pv)
	if err != nil || to.escapes() {
		return to, err
	}
	args, esc, err := e.evalExprList(n.Args, scope, pv)
	if err != nil {
		return Outcome{}, err
	}
	if esc.escapes() {
		return esc, nil
	}
	fn, ok := e.ctx.Methods[n.Name]
	if !ok {
		return Outcome{}, newErr(ErrUnknownMethod, "unknown method %q on %s", n.Name, value.TypeName(to.Value)).At(n.SpanValue.Start)
	}
	if e.ctx.Aborted() {
		return Outcome{}, newErr(ErrAborted, "execution aborted").At(n.SpanValue.Start)
	}
	if e.ctx.CallStack.Len() >= e.ctx.MaxCallStackDepth {
		return Outcome{}, newErr(ErrCallStackOverflow, "call stack exceeds bound of %d", e.ctx.MaxCallStackDepth).At(n.SpanValue.Start)
	}
	e.ctx.CallStack.Push(rillerr.Frame{Location: n.SpanValue.Start, FunctionName: n.Name})
	v, err := fn(to.Value, args, e, scope)
	if err != nil {
		if rerr, ok := err.(*rillerr.Error); ok && rerr.Location == nil {
			err = rerr.At(n.SpanValue.Start)
		}
		return Outcome{}, err
	}
	e.ctx.CallStack.Pop()
	return just(v), nil
}

// callClosure invokes cl with args, pushing a call-stack frame on entry and
// popping it only on success (spec §5 "Call-stack bound": on error the
// frame stays in place so attachCallStackAndReset sees the full depth active
// at the moment of failure).
func (e *Evaluator) callClosure(cl *value.Closure, args []value.Value, pv PipeValue, site *token.Span) (value.Value, error) {
	switch {
	case cl.Script != nil:
		return e.callScriptClosure(cl.Script, args, pv, site)
	case cl.Host != nil:
		return e.invokeHost(cl.Host.Fn, args, pv, cl.Host.Name, site)
	default:
		return nil, newErr(ErrTypeMismatch, "closure has neither script nor host implementation").At(site.Start)
	}
}

func (e *Evaluator) callScriptClosure(sc *value.ScriptClosure, args []value.Value, pv PipeValue, site *token.Span) (value.Value, error) {
	o, err := e.callScriptClosureRaw(sc, args, pv, site)
	if err != nil {
		return nil, err
	}
	// A plain closure call boundary absorbs both return and break signals:
	// the caller only ever sees the resulting value (spec §4.4 "return exits
	// the closure body with a value"). Collection methods (each/map/filter/
	// fold, spec §4.5) need to tell break apart from a normal result, so they
	// call callScriptClosureRaw directly instead of going through here.
	return o.Value, nil
}

// callScriptClosureRaw is callScriptClosure without the return/break
// collapse, used by the each/map/filter/fold host methods so a `break`
// inside the passed closure can terminate the whole collection operation
// (spec §4.5 "break terminates iteration and returns the break value as the
// operator result") instead of just ending one element's evaluation.
func (e *Evaluator) callScriptClosureRaw(sc *value.ScriptClosure, args []value.Value, pv PipeValue, site *token.Span) (Outcome, error) {
	if e.ctx.CallStack.Len() >= e.ctx.MaxCallStackDepth {
		return Outcome{}, newErr(ErrCallStackOverflow, "call stack exceeds bound of %d", e.ctx.MaxCallStackDepth).At(site.Start)
	}
	if len(args) > len(sc.Params) {
		return Outcome{}, newErr(ErrArityMismatch, "closure takes at most %d argument(s), got %d", len(sc.Params), len(args)).At(site.Start)
	}
	parent, _ := sc.Captured.(*Scope)
	call := &Scope{vars: map[string]value.Value{}, parent: parent}
	for i, p := range sc.Params {
		var v value.Value
		switch {
		case i < len(args):
			v = args[i]
		case p.Default != nil:
			o, err := e.eval(p.Default, call, pv)
			if err != nil {
				return Outcome{}, err
			}
			v = o.Value
		default:
			return Outcome{}, newErr(ErrArityMismatch, "missing argument %q", p.Name).At(site.Start)
		}
		if p.Type != "" && !typeMatches(v, p.Type) {
			return Outcome{}, newErr(ErrTypeMismatch, "argument %q expects type %s, got %s", p.Name, p.Type, value.TypeName(v)).At(site.Start)
		}
		call.Set(p.Name, v)
	}
	e.ctx.CallStack.Push(rillerr.Frame{Location: site.Start, FunctionName: sc.Name})
	o, err := e.eval(sc.Body, call, pv)
	if err != nil {
		return Outcome{}, err
	}
	e.ctx.CallStack.Pop()
	return o, nil
}

// invokeClosureElement calls cl with a single argument, reporting break
// distinctly from a normal return for collection-method callers (spec
// §4.5). Host closures have no break concept, so they always come back as
// SigNone.
func (e *Evaluator) invokeClosureElement(cl *value.Closure, args []value.Value, pv PipeValue, site *token.Span) (Outcome, error) {
	switch {
	case cl.Script != nil:
		return e.callScriptClosureRaw(cl.Script, args, pv, site)
	case cl.Host != nil:
		v, err := e.invokeHost(cl.Host.Fn, args, pv, cl.Host.Name, site)
		if err != nil {
			return Outcome{}, err
		}
		return just(v), nil
	default:
		return Outcome{}, newErr(ErrTypeMismatch, "closure has neither script nor host implementation").At(site.Start)
	}
}

// invokeHost calls a native function, checking cancellation before the call
// (spec §5 "abort is checked before every ... host-function call").
func (e *Evaluator) invokeHost(fn value.HostFunc, args []value.Value, pv PipeValue, name string, site *token.Span) (value.Value, error) {
	if e.ctx.Aborted() {
		return nil, newErr(ErrAborted, "execution aborted").At(site.Start)
	}
	if e.ctx.CallStack.Len() >= e.ctx.MaxCallStackDepth {
		return nil, newErr(ErrCallStackOverflow, "call stack exceeds bound of %d", e.ctx.MaxCallStackDepth).At(site.Start)
	}
	e.ctx.CallStack.Push(rillerr.Frame{Location: site.Start, FunctionName: name})
	v, err := fn(args, hostContext{ctx: e.ctx, pv: pv}, site)
	if err != nil {
		if _, ok := err.(*rillerr.Error); !ok {
			err = newErr(ErrExplicitError, "%s", err.Error()).At(site.Start)
		}
		return nil, err
	}
	e.ctx.CallStack.Pop()
	return v, nil
}

// typeMatches checks a value against a built-in type name constraint
// (spec §4.4 "typed parameters reject at call time on mismatch").
func typeMatches(v value.Value, typ string) bool {
	switch typ {
	case "string":
		_, ok := v.(value.String)
		return ok
	case "number":
		_, ok := v.(value.Number)
		return ok
	case "bool":
		_, ok := v.(value.Bool)
		return ok
	case "closure":
		_, ok := v.(*value.Closure)
		return ok
	case "list":
		_, ok := v.(*value.List)
		return ok
	case "dict":
		_, ok := v.(*value.Dict)
		return ok
	case "tuple":
		_, ok := v.(*value.Tuple)
		return ok
	default:
		return true
	}
}
