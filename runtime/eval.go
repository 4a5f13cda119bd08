// Package runtime implements Rill's value/scope runtime and tree-walking
// evaluator (spec §4.3, §4.4): it tree-walks a parsed *ast.Script, threading
// the pipe value `$` through pipe stages, blocks, conditionals, and loops,
// and emits RILL-R### runtime errors (see errors.go).
package runtime

import (
	"strings"

	"github.com/rcrsr/rill/ast"
	"github.com/rcrsr/rill/rillerr"
	"github.com/rcrsr/rill/token"
	"github.com/rcrsr/rill/value"
)

// Evaluator tree-walks a Script against a Context (spec §4.4): a single
// exported entry point walks the AST once, dispatching on each node's
// concrete type via eval's central switch below.
type Evaluator struct {
	ctx *Context
}

func NewEvaluator(ctx *Context) *Evaluator { return &Evaluator{ctx: ctx} }

func (e *Evaluator) Context() *Context { return e.ctx }

// EvalScript runs every top-level statement (spec §4.4 "Tree-walks a
// Script. For each top-level statement it establishes a pipe value
// (initially the context's configured initial value), evaluates, and
// updates the context"). Returns the last statement's value and the
// top-level captured variable map.
func (e *Evaluator) EvalScript(script *ast.Script) (value.Value, map[string]value.Value, error) {
	defer e.ctx.acquireExec()()
	scope := e.ctx.RootScope
	var last value.Value = value.Null{}
	for _, stmt := range script.Statements {
		if e.ctx.Aborted() {
			return nil, nil, newErr(ErrAborted, "execution aborted")
		}
		outcome, err := e.evalStatement(stmt, scope, e.ctx.InitialPipe)
		e.attachCallStackAndReset(&err)
		if err != nil {
			return nil, nil, err
		}
		last = outcome.Value
		if outcome.escapes() {
			break
		}
	}
	return last, scope.Snapshot(), nil
}

// attachCallStackAndReset attaches the live call stack to a propagating
// runtime error exactly once (spec §5 "Call-stack bound ... the stack
// reported on errors is always a slice of the most recent frames up to the
// bound") and resets the stack for the next top-level statement. Frames are
// deliberately left un-popped on the error path all the way up to here (see
// callClosure/evalCallExpr) so this is the one place that sees the full
// depth active at the moment of failure.
func (e *Evaluator) attachCallStackAndReset(errp *error) {
	if *errp != nil {
		if rerr, ok := (*errp).(*rillerr.Error); ok && rerr.CallStack == nil {
			rerr.CallStack = e.ctx.CallStack.Frames()
		}
	}
	e.ctx.CallStack = NewCallStack(e.ctx.MaxCallStackDepth)
}

func (e *Evaluator) evalStatement(stmt ast.Statement, scope *Scope, pv PipeValue) (Outcome, error) {
	switch n := stmt.(type) {
	case *ast.ExprStatement:
		return e.eval(n.Expr, scope, pv)
	case *ast.AnnotatedStatement:
		annotScope := scope.Child()
		annots, err := e.buildAnnotationDict(n.Annotations, scope, pv)
		if err != nil {
			return Outcome{}, err
		}
		annotScope.Set("$@", annots)
		return e.evalStatement(n.Inner, annotScope, pv)
	case *ast.RecoveryError:
		return Outcome{}, newErr(ErrRecoveryNode, "cannot evaluate a recovery placeholder: %s", n.Message).At(n.SpanValue.Start)
	default:
		return Outcome{}, newErr(ErrTypeMismatch, "unknown statement node %T", stmt)
	}
}

func (e *Evaluator) buildAnnotationDict(annots []ast.Annotation, scope *Scope, pv PipeValue) (*value.Dict, error) {
	d := value.NewDict()
	for _, a := range annots {
		if a.Spread != nil {
			o, err := e.eval(a.Spread, scope, pv)
			if err != nil {
				return nil, err
			}
			if spread, ok := o.Value.(*value.Dict); ok {
				for _, entry := range spread.Entries() {
					d.SetIfAbsent(entry.Key, entry.Value)
				}
			}
			continue
		}
		o, err := e.eval(a.Value, scope, pv)
		if err != nil {
			return nil, err
		}
		d.Set(value.StringKey(a.Name), o.Value)
	}
	return d, nil
}

// eval is the central dispatch for every expression node kind.
func (e *Evaluator) eval(node ast.Expr, scope *Scope, pv PipeValue) (Outcome, error) {
	switch n := node.(type) {
	case *ast.NumberLit:
		return just(value.Number(n.Value)), nil
	case *ast.BoolLit:
		return just(value.Bool(n.Value)), nil
	case *ast.StringLit:
		return e.evalStringLit(n, scope, pv)
	case *ast.ListLit:
		return e.evalListLit(n, scope, pv)
	case *ast.DictLit:
		return e.evalDictLit(n, scope, pv)
	case *ast.VarRef:
		return e.evalVarRef(n, scope, pv)
	case *ast.SpreadExpr:
		return e.evalSpreadExpr(n, scope, pv)
	case *ast.ClosureLit:
		return just(e.buildClosure(n, scope)), nil
	case *ast.FieldAccess:
		return e.evalFieldAccess(n, scope, pv)
	case *ast.IndexAccess:
		return e.evalIndexAccess(n, scope, pv)
	case *ast.ExistenceCheck:
		return e.evalExistenceCheck(n, scope, pv)
	case *ast.AnnotAccess:
		return e.evalAnnotAccess(n, scope, pv)
	case *ast.Alternatives:
		return e.evalAlternatives(n, scope, pv)
	case *ast.ComputedAccess:
		return e.evalComputedAccess(n, scope, pv)
	case *ast.BlockAccess:
		return e.evalBlockAccess(n, scope, pv)
	case *ast.MethodCall:
		return e.evalMethodCall(n, scope, pv)
	case *ast.CallExpr:
		return e.evalCallExpr(n, scope, pv)
	case *ast.InvokeExpr:
		return e.evalInvokeExpr(n, scope, pv)
	case *ast.Block:
		return e.evalBlock(n, scope, pv)
	case *ast.Conditional:
		return e.evalConditional(n, scope, pv)
	case *ast.WhileLoop:
		return e.evalWhileLoop(n, scope, pv)
	case *ast.DoWhileLoop:
		return e.evalDoWhileLoop(n, scope, pv)
	case *ast.PipeChain:
		return e.evalPipeChain(n, scope, pv)
	case *ast.InlineCapture:
		scope.Set(n.Name, value.Clone(pv.Value))
		if !pv.Has {
			return Outcome{}, newErr(ErrUndefinedTopLevel, "no pipe value bound to capture").At(n.SpanValue.Start)
		}
		return just(pv.Value), nil
	case *ast.Capture:
		o, err := e.eval(n.Value, scope, pv)
		if err != nil || o.escapes() {
			return o, err
		}
		scope.Set(n.Name, value.Clone(o.Value))
		return o, nil
	case *ast.BinaryExpr:
		return e.evalBinaryExpr(n, scope, pv)
	case *ast.UnaryExpr:
		return e.evalUnaryExpr(n, scope, pv)
	case *ast.TypeAssertion:
		return e.evalTypeAssertion(n, scope, pv)
	case *ast.TypeCheck:
		return e.evalTypeCheck(n, scope, pv)
	case *ast.DestructureExpr:
		return e.evalDestructureExpr(n, scope, pv)
	case *ast.SliceExpr:
		return e.evalSliceExpr(n, scope, pv)
	case *ast.BreakExpr:
		return e.evalBreakExpr(n, scope, pv)
	case *ast.ReturnExpr:
		return e.evalReturnExpr(n, scope, pv)
	case *ast.AssertExpr:
		return e.evalAssertExpr(n, scope, pv)
	case *ast.ErrorExpr:
		return e.evalErrorExpr(n, scope, pv)
	case *ast.PassExpr:
		if !pv.Has {
			return just(value.Null{}), nil
		}
		return just(pv.Value), nil
	case *ast.DefaultExpr:
		return e.evalDefaultExpr(n, scope, pv)
	case *ast.GroupExpr:
		return e.eval(n.Inner, scope, pv)
	default:
		return Outcome{}, newErr(ErrTypeMismatch, "unknown expression node %T", node).At(node.Span().Start)
	}
}

func (e *Evaluator) evalStringLit(n *ast.StringLit, scope *Scope, pv PipeValue) (Outcome, error) {
	var b strings.Builder
	for _, part := range n.Parts {
		if part.Expr == nil {
			b.WriteString(part.Literal)
			continue
		}
		o, err := e.eval(part.Expr, scope, pv)
		if err != nil {
			return Outcome{}, err
		}
		if o.escapes() {
			return o, nil
		}
		b.WriteString(o.Value.String())
	}
	return just(value.String(b.String())), nil
}

func (e *Evaluator) evalListLit(n *ast.ListLit, scope *Scope, pv PipeValue) (Outcome, error) {
	vals, esc, err := e.evalExprList(n.Elements, scope, pv)
	if err != nil {
		return Outcome{}, err
	}
	if esc.escapes() {
		return esc, nil
	}
	return just(value.NewList(vals...)), nil
}

func (e *Evaluator) evalDictLit(n *ast.DictLit, scope *Scope, pv PipeValue) (Outcome, error) {
	d := value.NewDict()
	for _, entry := range n.Entries {
		o, err := e.eval(entry.Value, scope, pv)
		if err != nil {
			return Outcome{}, err
		}
		if o.escapes() {
			return o, nil
		}
		for _, k := range entry.Keys {
			dk, err := astDictKey(k)
			if err != nil {
				return Outcome{}, err
			}
			d.SetIfAbsent(dk, o.Value)
		}
	}
	return just(d), nil
}

func astDictKey(k ast.DictKey) (value.DictKey, error) {
	switch {
	case k.Ident != "":
		return value.StringKey(k.Ident), nil
	case k.String != nil:
		return value.StringKey(*k.String), nil
	case k.Number != nil:
		return value.NumberKey(*k.Number), nil
	case k.Bool != nil:
		return value.BoolKey(*k.Bool), nil
	default:
		return value.DictKey{}, newErr(ErrTypeMismatch, "empty dict key")
	}
}

func (e *Evaluator) evalVarRef(n *ast.VarRef, scope *Scope, pv PipeValue) (Outcome, error) {
	switch {
	case n.Name == "$":
		if !pv.Has {
			return Outcome{}, newErr(ErrUndefinedTopLevel, "$ is not bound here").At(n.SpanValue.Start)
		}
		return just(pv.Value), nil
	case n.Name == "$@":
		if v, ok := scope.Lookup("$@"); ok {
			return just(v), nil
		}
		return just(value.NewDict()), nil
	case len(n.Name) > 1 && n.Name[0] == '$':
		name := n.Name[1:]
		if v, ok := scope.Lookup(name); ok {
			return just(v), nil
		}
		return Outcome{}, newErr(ErrUndefinedVariable, "undefined variable %q", name).At(n.SpanValue.Start)
	default:
		if v, ok := scope.Lookup(n.Name); ok {
			return just(v), nil
		}
		return Outcome{}, newErr(ErrUndefinedVariable, "undefined variable %q", n.Name).At(n.SpanValue.Start)
	}
}

func (e *Evaluator) evalSpreadExpr(n *ast.SpreadExpr, scope *Scope, pv PipeValue) (Outcome, error) {
	o, err := e.eval(n.Inner, scope, pv)
	if err != nil || o.escapes() {
		return o, err
	}
	switch v := o.Value.(type) {
	case *value.List:
		return just(&value.Tuple{Positional: append([]value.Value{}, v.Elements...)}), nil
	case *value.Dict:
		named := make([]value.NamedValue, 0, v.Len())
		for _, entry := range v.Entries() {
			named = append(named, value.NamedValue{Name: entry.Key.String(), Value: entry.Value})
		}
		return just(&value.Tuple{Named: named}), nil
	default:
		return Outcome{}, newErr(ErrTypeMismatch, "cannot spread value of kind %s", value.TypeName(o.Value)).At(n.SpanValue.Start)
	}
}

func (e *Evaluator) evalBlock(n *ast.Block, scope *Scope, pv PipeValue) (Outcome, error) {
	inner := scope.Child()
	var result Outcome = just(pv.Value)
	for _, stmt := range n.Statements {
		o, err := e.evalStatement(stmt, inner, pv)
		if err != nil {
			return Outcome{}, err
		}
		result = o
		if o.escapes() {
			return o, nil
		}
	}
	return result, nil
}

func (e *Evaluator) evalDefaultExpr(n *ast.DefaultExpr, scope *Scope, pv PipeValue) (Outcome, error) {
	o, err := e.eval(n.Target, scope, pv)
	if err == nil {
		return o, nil
	}
	rerr, ok := err.(*rillerr.Error)
	if !ok || (rerr.ErrorID != ErrDispatchMiss && rerr.ErrorID != ErrMissingDictField) {
		return Outcome{}, err
	}
	return e.eval(n.Default, scope, pv)
}

func (e *Evaluator) evalBreakExpr(n *ast.BreakExpr, scope *Scope, pv PipeValue) (Outcome, error) {
	if n.Value != nil {
		o, err := e.eval(n.Value, scope, pv)
		if err != nil {
			return Outcome{}, err
		}
		if o.Signal != SigNone {
			return o, nil
		}
		return breakOutcome(o.Value), nil
	}
	if pv.Has {
		return breakOutcome(pv.Value), nil
	}
	return breakOutcome(value.Null{}), nil
}

func (e *Evaluator) evalReturnExpr(n *ast.ReturnExpr, scope *Scope, pv PipeValue) (Outcome, error) {
	if n.Value != nil {
		o, err := e.eval(n.Value, scope, pv)
		if err != nil {
			return Outcome{}, err
		}
		if o.Signal != SigNone {
			return o, nil
		}
		return returnOutcome(o.Value), nil
	}
	if pv.Has {
		return returnOutcome(pv.Value), nil
	}
	return returnOutcome(value.Null{}), nil
}

func (e *Evaluator) evalAssertExpr(n *ast.AssertExpr, scope *Scope, pv PipeValue) (Outcome, error) {
	o, err := e.eval(n.Cond, scope, pv)
	if err != nil || o.escapes() {
		return o, err
	}
	b, ok := o.Value.(value.Bool)
	if !ok {
		return Outcome{}, newErr(ErrTypeMismatch, "assert requires a boolean condition, got %s", value.TypeName(o.Value)).At(n.SpanValue.Start)
	}
	if bool(b) {
		return just(value.Bool(true)), nil
	}
	msg := "assertion failed"
	if n.Message != nil {
		mo, err := e.eval(n.Message, scope, pv)
		if err != nil {
			return Outcome{}, err
		}
		if mo.escapes() {
			return mo, nil
		}
		msg = mo.Value.String()
	}
	return Outcome{}, newErr(ErrAssertionFailed, "%s", msg).At(n.SpanValue.Start)
}

func (e *Evaluator) evalErrorExpr(n *ast.ErrorExpr, scope *Scope, pv PipeValue) (Outcome, error) {
	o, err := e.eval(n.Message, scope, pv)
	if err != nil || o.escapes() {
		return o, err
	}
	return Outcome{}, newErr(ErrExplicitError, "%s", o.Value.String()).At(n.SpanValue.Start)
}

// evalExprList evaluates es left to right, splicing *ast.SpreadExpr
// elements in place (spec §5 "Ordering: within a list/dict literal,
// elements execute left to right"). If an element escapes via break/return,
// evaluation stops and the escape bubbles to the caller.
func (e *Evaluator) evalExprList(es []ast.Expr, scope *Scope, pv PipeValue) ([]value.Value, Outcome, error) {
	vals := make([]value.Value, 0, len(es))
	for _, expr := range es {
		if spread, ok := expr.(*ast.SpreadExpr); ok {
			o, err := e.eval(spread.Inner, scope, pv)
			if err != nil {
				return nil, Outcome{}, err
			}
			if o.escapes() {
				return nil, o, nil
			}
			switch v := o.Value.(type) {
			case *value.List:
				vals = append(vals, v.Elements...)
			case *value.Tuple:
				vals = append(vals, v.Positional...)
			default:
				return nil, Outcome{}, newErr(ErrTypeMismatch, "cannot spread value of kind %s", value.TypeName(o.Value)).At(spread.SpanValue.Start)
			}
			continue
		}
		o, err := e.eval(expr, scope, pv)
		if err != nil {
			return nil, Outcome{}, err
		}
		if o.escapes() {
			return nil, o, nil
		}
		vals = append(vals, o.Value)
	}
	return vals, Outcome{}, nil
}

func callSiteSpan(n ast.Node) *token.Span {
	s := n.Span()
	return &s
}
