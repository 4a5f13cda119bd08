package runtime

import (
	"github.com/rcrsr/rill/ast"
	"github.com/rcrsr/rill/token"
	"github.com/rcrsr/rill/value"
)

// evalDestructureExpr matches `*< patterns >` against the implicit $ (spec
// §4.4 "Destructure and slice"). It passes $ through unchanged once binding
// succeeds, the same pass-through shape as Capture.
func (e *Evaluator) evalDestructureExpr(n *ast.DestructureExpr, scope *Scope, pv PipeValue) (Outcome, error) {
	if !pv.Has {
		return Outcome{}, newErr(ErrUndefinedTopLevel, "destructure requires a bound $").At(n.SpanValue.Start)
	}
	if err := e.matchPatterns(n.Patterns, pv.Value, scope, n.SpanValue.Start); err != nil {
		return Outcome{}, err
	}
	return just(pv.Value), nil
}

func (e *Evaluator) matchPatterns(patterns []ast.DestructurePattern, v value.Value, scope *Scope, at token.Position) error {
	switch target := v.(type) {
	case *value.List:
		if len(patterns) != len(target.Elements) {
			return newErr(ErrDestructureArity, "destructure expects %d element(s), got %d", len(patterns), len(target.Elements)).At(at)
		}
		for i, pat := range patterns {
			if err := e.bindPattern(pat, target.Elements[i], scope, at); err != nil {
				return err
			}
		}
		return nil
	case *value.Dict:
		for _, pat := range patterns {
			if pat.Key == "" {
				return newErr(ErrDestructureArity, "dict destructure pattern requires a `key: $var` form").At(at)
			}
			val, ok := target.Get(value.StringKey(pat.Key))
			if !ok {
				return newErr(ErrMissingDictField, "no field %q to destructure", pat.Key).At(at)
			}
			if err := e.bindPattern(pat, val, scope, at); err != nil {
				return err
			}
		}
		return nil
	default:
		return newErr(ErrTypeMismatch, "cannot destructure value of kind %s", value.TypeName(v)).At(at)
	}
}

func (e *Evaluator) bindPattern(pat ast.DestructurePattern, v value.Value, scope *Scope, at token.Position) error {
	if pat.Type != "" && !typeMatches(v, pat.Type) {
		return newErr(ErrTypeMismatch, "destructure pattern %q expects type %s, got %s", pat.Name, pat.Type, value.TypeName(v)).At(at)
	}
	if pat.Nested != nil {
		if err := e.matchPatterns(pat.Nested, v, scope, at); err != nil {
			return err
		}
	}
	if !pat.Wildcard && pat.Name != "" {
		scope.Set(pat.Name, v)
	}
	return nil
}
