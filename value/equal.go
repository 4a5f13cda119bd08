package value

import "reflect"

// Equal implements Rill's structural, order-aware-where-it-matters equality
// (spec §8 "Deep equality is structural"): dicts compare key-set plus
// per-key value regardless of insertion order; lists and tuples compare
// index-wise (order matters); application callables compare by identity;
// script callables compare by (params, body, captured values).
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case String:
		return av == b.(String)
	case Number:
		return av == b.(Number)
	case Bool:
		return av == b.(Bool)
	case Null:
		return true
	case *List:
		return equalList(av, b.(*List))
	case *Dict:
		return equalDict(av, b.(*Dict))
	case *Tuple:
		return equalTuple(av, b.(*Tuple))
	case *Closure:
		return equalClosure(av, b.(*Closure))
	default:
		return false
	}
}

func equalList(a, b *List) bool {
	if len(a.Elements) != len(b.Elements) {
		return false
	}
	for i := range a.Elements {
		if !Equal(a.Elements[i], b.Elements[i]) {
			return false
		}
	}
	return true
}

func equalDict(a, b *Dict) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, e := range a.Entries() {
		bv, ok := b.Get(e.Key)
		if !ok || !Equal(e.Value, bv) {
			return false
		}
	}
	return true
}

func equalTuple(a, b *Tuple) bool {
	if len(a.Positional) != len(b.Positional) || len(a.Named) != len(b.Named) {
		return false
	}
	for i := range a.Positional {
		if !Equal(a.Positional[i], b.Positional[i]) {
			return false
		}
	}
	for i := range a.Named {
		if a.Named[i].Name != b.Named[i].Name || !Equal(a.Named[i].Value, b.Named[i].Value) {
			return false
		}
	}
	return true
}

// equalClosure implements spec §8's split: application callables by
// identity, script callables structurally.
func equalClosure(a, b *Closure) bool {
	switch {
	case a.Host != nil && b.Host != nil:
		return reflect.ValueOf(a.Host.Fn).Pointer() == reflect.ValueOf(b.Host.Fn).Pointer() &&
			a.Host.Bound == b.Host.Bound
	case a.Script != nil && b.Script != nil:
		return equalScriptClosure(a.Script, b.Script)
	default:
		return false
	}
}

func equalScriptClosure(a, b *ScriptClosure) bool {
	if len(a.Params) != len(b.Params) || !reflect.DeepEqual(a.Body, b.Body) {
		return false
	}
	for i := range a.Params {
		pa, pb := a.Params[i], b.Params[i]
		if pa.Name != pb.Name || pa.Type != pb.Type || !reflect.DeepEqual(pa.Default, pb.Default) {
			return false
		}
	}
	if len(a.CapturedNames) != len(b.CapturedNames) {
		return false
	}
	for i, name := range a.CapturedNames {
		if name != b.CapturedNames[i] {
			return false
		}
		av, aok := a.Captured.Lookup(name)
		bv, bok := b.Captured.Lookup(name)
		if aok != bok {
			return false
		}
		if aok && !Equal(av, bv) {
			return false
		}
	}
	return true
}
