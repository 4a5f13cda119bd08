package runtime

import (
	"github.com/rcrsr/rill/ast"
	"github.com/rcrsr/rill/rillerr"
	"github.com/rcrsr/rill/value"
)

// dictKeyFromValue converts a first-class value used as a computed/index
// key back into a value.DictKey (spec §3 "dict: ... string/number/boolean
// key").
func dictKeyFromValue(v value.Value) (value.DictKey, error) {
	switch vv := v.(type) {
	case value.String:
		return value.StringKey(string(vv)), nil
	case value.Number:
		return value.NumberKey(float64(vv)), nil
	case value.Bool:
		return value.BoolKey(bool(vv)), nil
	default:
		return value.DictKey{}, newErr(ErrTypeMismatch, "dict key must be string, number, or bool, got %s", value.TypeName(v))
	}
}

// invokePropertyField resolves a dict field's stored value, auto-invoking it
// with zero arguments (bound to the owning dict) when it is a property
// closure (spec §3 "closure ... with an optional isProperty flag").
func (e *Evaluator) invokePropertyField(v value.Value, owner *value.Dict, pv PipeValue, site ast.Node) (value.Value, error) {
	cl, ok := v.(*value.Closure)
	if !ok || !cl.IsProperty {
		return v, nil
	}
	bound := cl.WithBound(owner)
	return e.callClosure(bound, []value.Value{owner}, pv, callSiteSpan(site))
}

func (e *Evaluator) evalFieldAccess(n *ast.FieldAccess, scope *Scope, pv PipeValue) (Outcome, error) {
	to, err := e.eval(n.Target, scope, pv)
	if err != nil || to.escapes() {
		return to, err
	}
	d, ok := to.Value.(*value.Dict)
	if !ok {
		return Outcome{}, newErr(ErrTypeMismatch, "cannot access field %q on %s", n.Name, value.TypeName(to.Value)).At(n.SpanValue.Start)
	}
	v, ok := d.Get(value.StringKey(n.Name))
	if !ok {
		return Outcome{}, newErr(ErrMissingDictField, "no field %q", n.Name).At(n.SpanValue.Start)
	}
	v, err = e.invokePropertyField(v, d, pv, n)
	if err != nil {
		return Outcome{}, err
	}
	return just(v), nil
}

func (e *Evaluator) evalIndexAccess(n *ast.IndexAccess, scope *Scope, pv PipeValue) (Outcome, error) {
	to, err := e.eval(n.Target, scope, pv)
	if err != nil || to.escapes() {
		return to, err
	}
	io, err := e.eval(n.Index, scope, pv)
	if err != nil || io.escapes() {
		return io, err
	}
	switch t := to.Value.(type) {
	case *value.List:
		idxNum, ok := io.Value.(value.Number)
		if !ok {
			return Outcome{}, newErr(ErrTypeMismatch, "list index must be a number, got %s", value.TypeName(io.Value)).At(n.SpanValue.Start)
		}
		v, ok := t.At(int(idxNum))
		if !ok {
			return Outcome{}, newErr(ErrMissingDictField, "list index %v out of range", idxNum).At(n.SpanValue.Start)
		}
		return just(v), nil
	case *value.Dict:
		key, err := dictKeyFromValue(io.Value)
		if err != nil {
			return Outcome{}, err
		}
		v, ok := t.Get(key)
		if !ok {
			return Outcome{}, newErr(ErrMissingDictField, "no entry for key %s", key.String()).At(n.SpanValue.Start)
		}
		v, err = e.invokePropertyField(v, t, pv, n)
		if err != nil {
			return Outcome{}, err
		}
		return just(v), nil
	default:
		return Outcome{}, newErr(ErrTypeMismatch, "cannot index %s", value.TypeName(to.Value)).At(n.SpanValue.Start)
	}
}

func (e *Evaluator) evalExistenceCheck(n *ast.ExistenceCheck, scope *Scope, pv PipeValue) (Outcome, error) {
	to, err := e.eval(n.Target, scope, pv)
	if err != nil || to.escapes() {
		return to, err
	}
	d, ok := to.Value.(*value.Dict)
	if !ok {
		return just(value.Bool(false)), nil
	}
	v, ok := d.Get(value.StringKey(n.Name))
	if !ok {
		return just(value.Bool(false)), nil
	}
	if n.GuardType != "" && !typeMatches(v, n.GuardType) {
		return just(value.Bool(false)), nil
	}
	return just(value.Bool(true)), nil
}

// evalAnnotAccess looks up key in the nearest enclosing `^(...)` annotation
// dict (spec §4.2 "AnnotatedStatement"), independent of Target's own
// value — Target still evaluates (for escape propagation) but an
// annotation belongs to the statement, not to the accessed value.
func (e *Evaluator) evalAnnotAccess(n *ast.AnnotAccess, scope *Scope, pv PipeValue) (Outcome, error) {
	to, err := e.eval(n.Target, scope, pv)
	if err != nil || to.escapes() {
		return to, err
	}
	annots, ok := scope.Lookup("$@")
	if !ok {
		return just(value.Null{}), nil
	}
	d, ok := annots.(*value.Dict)
	if !ok {
		return just(value.Null{}), nil
	}
	v, ok := d.Get(value.StringKey(n.Key))
	if !ok {
		return just(value.Null{}), nil
	}
	return just(v), nil
}

// evalAlternatives evaluates each option with $ bound to the Target's
// resolved value, returning the first option that evaluates without an
// undefined-variable/missing-field/dispatch-miss error (spec §4.2 "alternatives, returns first
// present").
func (e *Evaluator) evalAlternatives(n *ast.Alternatives, scope *Scope, pv PipeValue) (Outcome, error) {
	to, err := e.eval(n.Target, scope, pv)
	if err != nil || to.escapes() {
		return to, err
	}
	inner := With(to.Value)
	var lastErr error
	for _, opt := range n.Options {
		o, err := e.eval(opt, scope, inner)
		if err == nil {
			return o, nil
		}
		rerr, ok := err.(*rillerr.Error)
		if !ok || (rerr.ErrorID != ErrMissingDictField && rerr.ErrorID != ErrDispatchMiss && rerr.ErrorID != ErrUndefinedVariable) {
			return Outcome{}, err
		}
		lastErr = err
	}
	return Outcome{}, lastErr
}

func (e *Evaluator) evalComputedAccess(n *ast.ComputedAccess, scope *Scope, pv PipeValue) (Outcome, error) {
	to, err := e.eval(n.Target, scope, pv)
	if err != nil || to.escapes() {
		return to, err
	}
	ko, err := e.eval(n.KeyExpr, scope, pv)
	if err != nil || ko.escapes() {
		return ko, err
	}
	d, ok := to.Value.(*value.Dict)
	if !ok {
		return Outcome{}, newErr(ErrTypeMismatch, "computed access requires a dict, got %s", value.TypeName(to.Value)).At(n.SpanValue.Start)
	}
	key, err := dictKeyFromValue(ko.Value)
	if err != nil {
		return Outcome{}, err
	}
	v, ok := d.Get(key)
	if !ok {
		return Outcome{}, newErr(ErrMissingDictField, "no entry for key %s", key.String()).At(n.SpanValue.Start)
	}
	v, err = e.invokePropertyField(v, d, pv, n)
	if err != nil {
		return Outcome{}, err
	}
	return just(v), nil
}

func (e *Evaluator) evalBlockAccess(n *ast.BlockAccess, scope *Scope, pv PipeValue) (Outcome, error) {
	to, err := e.eval(n.Target, scope, pv)
	if err != nil || to.escapes() {
		return to, err
	}
	return e.evalBlock(n.Body, scope, With(to.Value))
}
