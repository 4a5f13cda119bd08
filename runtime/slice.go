package runtime

import (
	"github.com/rcrsr/rill/ast"
	"github.com/rcrsr/rill/value"
)

// evalSliceExpr is `/< start : stop : step >` against the implicit $ (spec
// §4.4 "Destructure and slice"): negative indices index from the end, a
// zero step errors, a negative step reverses, and out-of-range bounds clamp
// to an empty result rather than erroring.
func (e *Evaluator) evalSliceExpr(n *ast.SliceExpr, scope *Scope, pv PipeValue) (Outcome, error) {
	if !pv.Has {
		return Outcome{}, newErr(ErrUndefinedTopLevel, "slice requires a bound $").At(n.SpanValue.Start)
	}
	step := 1
	if n.Step != nil {
		so, err := e.eval(n.Step, scope, pv)
		if err != nil || so.escapes() {
			return so, err
		}
		sn, ok := so.Value.(value.Number)
		if !ok {
			return Outcome{}, newErr(ErrTypeMismatch, "slice step must be a number, got %s", value.TypeName(so.Value)).At(n.SpanValue.Start)
		}
		step = int(sn)
		if step == 0 {
			return Outcome{}, newErr(ErrInvalidSlice, "slice step cannot be zero").At(n.SpanValue.Start)
		}
	}

	switch target := pv.Value.(type) {
	case *value.List:
		length := len(target.Elements)
		start, stop, err := e.resolveSliceBounds(n, scope, pv, length, step)
		if err != nil {
			return Outcome{}, err
		}
		out := sliceIndices(start, stop, step, length, func(i int) value.Value { return target.Elements[i] })
		return just(value.NewList(out...)), nil
	case value.String:
		runes := []rune(string(target))
		length := len(runes)
		start, stop, err := e.resolveSliceBounds(n, scope, pv, length, step)
		if err != nil {
			return Outcome{}, err
		}
		var b []rune
		if step > 0 {
			for i := start; i < stop; i += step {
				if i >= 0 && i < length {
					b = append(b, runes[i])
				}
			}
		} else {
			for i := start; i > stop; i += step {
				if i >= 0 && i < length {
					b = append(b, runes[i])
				}
			}
		}
		return just(value.String(string(b))), nil
	default:
		return Outcome{}, newErr(ErrTypeMismatch, "cannot slice value of kind %s", value.TypeName(pv.Value)).At(n.SpanValue.Start)
	}
}

// resolveSliceBounds evaluates Start/Stop (defaulting per step direction)
// and normalizes negative indices relative to length.
func (e *Evaluator) resolveSliceBounds(n *ast.SliceExpr, scope *Scope, pv PipeValue, length, step int) (start, stop int, err error) {
	start = 0
	stop = length
	if step < 0 {
		start = length - 1
		stop = -1
	}
	if n.Start != nil {
		o, evalErr := e.eval(n.Start, scope, pv)
		if evalErr != nil {
			return 0, 0, evalErr
		}
		num, ok := o.Value.(value.Number)
		if !ok {
			return 0, 0, newErr(ErrTypeMismatch, "slice start must be a number, got %s", value.TypeName(o.Value)).At(n.SpanValue.Start)
		}
		start = normalizeSliceIndex(int(num), length)
	}
	if n.Stop != nil {
		o, evalErr := e.eval(n.Stop, scope, pv)
		if evalErr != nil {
			return 0, 0, evalErr
		}
		num, ok := o.Value.(value.Number)
		if !ok {
			return 0, 0, newErr(ErrTypeMismatch, "slice stop must be a number, got %s", value.TypeName(o.Value)).At(n.SpanValue.Start)
		}
		stop = normalizeSliceIndex(int(num), length)
	}
	return start, stop, nil
}

func normalizeSliceIndex(idx, length int) int {
	if idx < 0 {
		idx += length
	}
	return idx
}

// sliceIndices clamps out-of-range bounds to an empty result rather than
// erroring (spec §4.4 "out-of-range clamps to empty").
func sliceIndices(start, stop, step, length int, at func(int) value.Value) []value.Value {
	var out []value.Value
	if step > 0 {
		for i := start; i < stop; i += step {
			if i < 0 || i >= length {
				continue
			}
			out = append(out, at(i))
		}
	} else {
		for i := start; i > stop; i += step {
			if i < 0 || i >= length {
				continue
			}
			out = append(out, at(i))
		}
	}
	return out
}
