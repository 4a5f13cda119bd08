package runtime

import (
	"github.com/rcrsr/rill/ast"
	"github.com/rcrsr/rill/rillerr"
	"github.com/rcrsr/rill/value"
)

// evalPipeChain threads $ through a head followed by pipe stages (spec
// §4.4 "Pipe chain evaluation"). Two stage kinds are handled specially
// before falling back to the generic dispatcher: a dict literal target is a
// dispatch table matched against the incoming $ without evaluating every
// branch, and a bare closure literal target is invoked immediately rather
// than merely constructed as a value.
func (e *Evaluator) evalPipeChain(n *ast.PipeChain, scope *Scope, pv PipeValue) (Outcome, error) {
	o, err := e.eval(n.Head, scope, pv)
	if err != nil {
		return Outcome{}, err
	}
	if o.escapes() {
		return o, nil
	}
	cur := With(o.Value)
	for _, stage := range n.Stages {
		if e.ctx.Aborted() {
			return Outcome{}, newErr(ErrAborted, "execution aborted").At(stage.SpanValue.Start)
		}
		so, err := e.evalPipeStage(stage, scope, cur)
		if err != nil {
			return Outcome{}, err
		}
		if so.escapes() {
			return so, nil
		}
		cur = With(so.Value)
	}
	return just(cur.Value), nil
}

func (e *Evaluator) evalPipeStage(stage ast.PipeStage, scope *Scope, pv PipeValue) (Outcome, error) {
	switch t := stage.Target.(type) {
	case *ast.DictLit:
		return e.evalDispatchTable(t, scope, pv)
	case *ast.ClosureLit:
		cl := e.buildClosure(t, scope)
		v, err := e.callClosure(cl, nil, pv, callSiteSpan(t))
		if err != nil {
			return Outcome{}, err
		}
		return just(v), nil
	case *ast.DefaultExpr:
		if dt, ok := t.Target.(*ast.DictLit); ok {
			o, err := e.evalDispatchTable(dt, scope, pv)
			if err == nil {
				return o, nil
			}
			if rerr, ok := err.(*rillerr.Error); ok && rerr.ErrorID == ErrDispatchMiss {
				return e.eval(t.Default, scope, pv)
			}
			return Outcome{}, err
		}
		return e.eval(stage.Target, scope, pv)
	default:
		return e.eval(stage.Target, scope, pv)
	}
}

// evalDispatchTable matches pv against a dict literal's keys, first-match
// among single- and multi-key entries (spec §4.4 "Dict literal used as pipe
// target is a dispatch table"). Only the matching entry's value expression
// is evaluated — other branches are never touched.
func (e *Evaluator) evalDispatchTable(t *ast.DictLit, scope *Scope, pv PipeValue) (Outcome, error) {
	if !pv.Has {
		return Outcome{}, newErr(ErrUndefinedTopLevel, "dispatch table requires a bound $").At(t.SpanValue.Start)
	}
	matchKey, err := dictKeyFromValue(pv.Value)
	if err != nil {
		return Outcome{}, newErr(ErrDispatchMiss, "dispatch value of kind %s cannot match any key", value.TypeName(pv.Value)).At(t.SpanValue.Start)
	}
	for _, entry := range t.Entries {
		for _, k := range entry.Keys {
			ak, err := astDictKey(k)
			if err != nil {
				return Outcome{}, err
			}
			if ak == matchKey {
				o, err := e.eval(entry.Value, scope, pv)
				if err != nil {
					return Outcome{}, err
				}
				if o.escapes() {
					return o, nil
				}
				v, err := e.resolveDispatchValue(o.Value, pv, t)
				if err != nil {
					return Outcome{}, err
				}
				return just(v), nil
			}
		}
	}
	return Outcome{}, newErr(ErrDispatchMiss, "no dispatch entry matches key %s", matchKey.String()).At(t.SpanValue.Start)
}

// resolveDispatchValue auto-invokes a matched closure value with the
// original $ bound (spec §4.4 "return the value (auto-invoking a closure
// value with the original $ bound)").
func (e *Evaluator) resolveDispatchValue(v value.Value, pv PipeValue, site ast.Node) (value.Value, error) {
	cl, ok := v.(*value.Closure)
	if !ok {
		return v, nil
	}
	return e.callClosure(cl, nil, pv, callSiteSpan(site))
}
