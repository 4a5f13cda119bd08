package runtime

import (
	"github.com/rcrsr/rill/ast"
	"github.com/rcrsr/rill/value"
)

func (e *Evaluator) evalConditional(n *ast.Conditional, scope *Scope, pv PipeValue) (Outcome, error) {
	co, err := e.eval(n.Cond, scope, pv)
	if err != nil || co.escapes() {
		return co, err
	}
	cond, err := e.resolveOperand(co.Value, pv, n.Cond)
	if err != nil {
		return Outcome{}, err
	}
	b, ok := cond.(value.Bool)
	if !ok {
		return Outcome{}, newErr(ErrTypeMismatch, "condition must be bool, got %s", value.TypeName(cond)).At(n.SpanValue.Start)
	}
	if bool(b) {
		return e.eval(n.Then, scope, pv)
	}
	if n.Else != nil {
		return e.eval(n.Else, scope, pv)
	}
	return just(pv.Value), nil
}

// evalWhileLoop is `cond @ body` (spec §4.5): re-evaluates cond each
// iteration against the pipe value most recently produced by body, checking
// cancellation before every iteration (spec §5 "abort is checked before
// every ... loop iteration").
func (e *Evaluator) evalWhileLoop(n *ast.WhileLoop, scope *Scope, pv PipeValue) (Outcome, error) {
	cur := pv
	last := just(pv.Value)
	for {
		if e.ctx.Aborted() {
			return Outcome{}, newErr(ErrAborted, "execution aborted").At(n.SpanValue.Start)
		}
		co, err := e.eval(n.Cond, scope, cur)
		if err != nil {
			return Outcome{}, err
		}
		if co.escapes() {
			return co, nil
		}
		condVal, err := e.resolveOperand(co.Value, cur, n.Cond)
		if err != nil {
			return Outcome{}, err
		}
		b, ok := condVal.(value.Bool)
		if !ok {
			return Outcome{}, newErr(ErrTypeMismatch, "while condition must be bool, got %s", value.TypeName(condVal)).At(n.SpanValue.Start)
		}
		if !bool(b) {
			return last, nil
		}
		bo, err := e.eval(n.Body, scope, cur)
		if err != nil {
			return Outcome{}, err
		}
		if bo.Signal == SigBreak {
			return just(bo.Value), nil
		}
		if bo.Signal == SigReturn {
			return bo, nil
		}
		last = bo
		cur = With(bo.Value)
	}
}

// evalDoWhileLoop is `@ body ? cond` (spec §4.5): body runs at least once.
func (e *Evaluator) evalDoWhileLoop(n *ast.DoWhileLoop, scope *Scope, pv PipeValue) (Outcome, error) {
	cur := pv
	for {
		if e.ctx.Aborted() {
			return Outcome{}, newErr(ErrAborted, "execution aborted").At(n.SpanValue.Start)
		}
		bo, err := e.eval(n.Body, scope, cur)
		if err != nil {
			return Outcome{}, err
		}
		if bo.Signal == SigBreak {
			return just(bo.Value), nil
		}
		if bo.Signal == SigReturn {
			return bo, nil
		}
		cur = With(bo.Value)
		co, err := e.eval(n.Cond, scope, cur)
		if err != nil {
			return Outcome{}, err
		}
		if co.escapes() {
			return co, nil
		}
		condVal, err := e.resolveOperand(co.Value, cur, n.Cond)
		if err != nil {
			return Outcome{}, err
		}
		b, ok := condVal.(value.Bool)
		if !ok {
			return Outcome{}, newErr(ErrTypeMismatch, "do-while condition must be bool, got %s", value.TypeName(condVal)).At(n.SpanValue.Start)
		}
		if !bool(b) {
			return just(cur.Value), nil
		}
	}
}
