package runtime

import (
	"github.com/rcrsr/rill/ast"
	"github.com/rcrsr/rill/value"
)

// resolveOperand implements closure auto-invocation (spec §4.4 "Inside
// expression operators (arithmetic, comparison, logical, unary), and only
// when a pipe value $ is currently bound, a closure value is invoked with
// $ as the single argument (zero-parameter closures are invoked with zero
// args)"). With no $ bound the closure passes through untouched, which is
// what lets `! $pos` fail with a type mismatch rather than silently
// invoking with no argument.
func (e *Evaluator) resolveOperand(v value.Value, pv PipeValue, site ast.Node) (value.Value, error) {
	cl, ok := v.(*value.Closure)
	if !ok || !pv.Has {
		return v, nil
	}
	var args []value.Value
	if cl.Arity() > 0 {
		args = []value.Value{pv.Value}
	}
	return e.callClosure(cl, args, pv, callSiteSpan(site))
}

func (e *Evaluator) evalBinaryExpr(n *ast.BinaryExpr, scope *Scope, pv PipeValue) (Outcome, error) {
	lo, err := e.eval(n.Left, scope, pv)
	if err != nil || lo.escapes() {
		return lo, err
	}
	left, err := e.resolveOperand(lo.Value, pv, n.Left)
	if err != nil {
		return Outcome{}, err
	}

	// Short-circuit boolean operators evaluate Right only when needed (spec
	// §4.4 "&& and || short-circuit").
	if n.Op == ast.OpAnd || n.Op == ast.OpOr {
		lb, ok := left.(value.Bool)
		if !ok {
			return Outcome{}, newErr(ErrTypeMismatch, "left operand of %s must be bool, got %s", n.Op, value.TypeName(left)).At(n.SpanValue.Start)
		}
		if n.Op == ast.OpAnd && !bool(lb) {
			return just(value.Bool(false)), nil
		}
		if n.Op == ast.OpOr && bool(lb) {
			return just(value.Bool(true)), nil
		}
		ro, err := e.eval(n.Right, scope, pv)
		if err != nil || ro.escapes() {
			return ro, err
		}
		right, err := e.resolveOperand(ro.Value, pv, n.Right)
		if err != nil {
			return Outcome{}, err
		}
		rb, ok := right.(value.Bool)
		if !ok {
			return Outcome{}, newErr(ErrTypeMismatch, "right operand of %s must be bool, got %s", n.Op, value.TypeName(right)).At(n.SpanValue.Start)
		}
		return just(rb), nil
	}

	ro, err := e.eval(n.Right, scope, pv)
	if err != nil || ro.escapes() {
		return ro, err
	}
	right, err := e.resolveOperand(ro.Value, pv, n.Right)
	if err != nil {
		return Outcome{}, err
	}

	switch n.Op {
	case ast.OpEq:
		return just(value.Bool(value.Equal(left, right))), nil
	case ast.OpNe:
		return just(value.Bool(!value.Equal(left, right))), nil
	}

	switch n.Op {
	case ast.OpAdd:
		if ls, ok := left.(value.String); ok {
			rs, ok := right.(value.String)
			if !ok {
				return Outcome{}, newErr(ErrTypeMismatch, "cannot add %s to string", value.TypeName(right)).At(n.SpanValue.Start)
			}
			return just(ls + rs), nil
		}
		ln, lok := left.(value.Number)
		rn, rok := right.(value.Number)
		if !lok || !rok {
			return Outcome{}, newErr(ErrTypeMismatch, "+ requires two numbers or two strings, got %s and %s", value.TypeName(left), value.TypeName(right)).At(n.SpanValue.Start)
		}
		return just(ln + rn), nil
	case ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpLt, ast.OpGt, ast.OpLe, ast.OpGe:
		ln, lok := left.(value.Number)
		rn, rok := right.(value.Number)
		if !lok || !rok {
			return Outcome{}, newErr(ErrTypeMismatch, "%s requires two numbers, got %s and %s", n.Op, value.TypeName(left), value.TypeName(right)).At(n.SpanValue.Start)
		}
		switch n.Op {
		case ast.OpSub:
			return just(ln - rn), nil
		case ast.OpMul:
			return just(ln * rn), nil
		case ast.OpDiv:
			if rn == 0 {
				return Outcome{}, newErr(ErrDivisionByZero, "division by zero").At(n.SpanValue.Start)
			}
			return just(ln / rn), nil
		case ast.OpLt:
			return just(value.Bool(ln < rn)), nil
		case ast.OpGt:
			return just(value.Bool(ln > rn)), nil
		case ast.OpLe:
			return just(value.Bool(ln <= rn)), nil
		case ast.OpGe:
			return just(value.Bool(ln >= rn)), nil
		}
	}
	return Outcome{}, newErr(ErrTypeMismatch, "unsupported operator %s", n.Op).At(n.SpanValue.Start)
}

func (e *Evaluator) evalUnaryExpr(n *ast.UnaryExpr, scope *Scope, pv PipeValue) (Outcome, error) {
	o, err := e.eval(n.Operand, scope, pv)
	if err != nil || o.escapes() {
		return o, err
	}
	operand, err := e.resolveOperand(o.Value, pv, n.Operand)
	if err != nil {
		return Outcome{}, err
	}
	switch n.Op {
	case ast.OpNot:
		b, ok := operand.(value.Bool)
		if !ok {
			return Outcome{}, newErr(ErrTypeMismatch, "! requires bool, got %s", value.TypeName(operand)).At(n.SpanValue.Start)
		}
		return just(value.Bool(!bool(b))), nil
	case ast.OpNegate:
		nn, ok := operand.(value.Number)
		if !ok {
			return Outcome{}, newErr(ErrTypeMismatch, "unary - requires number, got %s", value.TypeName(operand)).At(n.SpanValue.Start)
		}
		return just(-nn), nil
	default:
		return Outcome{}, newErr(ErrTypeMismatch, "unsupported unary operator %s", n.Op).At(n.SpanValue.Start)
	}
}

func (e *Evaluator) evalTypeAssertion(n *ast.TypeAssertion, scope *Scope, pv PipeValue) (Outcome, error) {
	o, err := e.eval(n.Target, scope, pv)
	if err != nil || o.escapes() {
		return o, err
	}
	if !typeMatches(o.Value, n.Type) {
		return Outcome{}, newErr(ErrTypeMismatch, "expected type %s, got %s", n.Type, value.TypeName(o.Value)).At(n.SpanValue.Start)
	}
	return o, nil
}

func (e *Evaluator) evalTypeCheck(n *ast.TypeCheck, scope *Scope, pv PipeValue) (Outcome, error) {
	o, err := e.eval(n.Target, scope, pv)
	if err != nil || o.escapes() {
		return o, err
	}
	return just(value.Bool(typeMatches(o.Value, n.Type))), nil
}
