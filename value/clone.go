package value

// Clone implements Rill's value-copy semantics (spec §3 "Value semantics:
// assignment and parameter passing copy by value for list/dict; closures
// capture by reference"): scalars are immutable Go values returned as-is,
// lists and dicts are deep-cloned recursively, and closures are shallow
// copies since their captured scope chain is shared by reference, not
// copied, per spec §4.4's late-binding capture rule.
func Clone(v Value) Value {
	switch vv := v.(type) {
	case String, Number, Bool, Null, nil:
		return v
	case *List:
		out := make([]Value, len(vv.Elements))
		for i, e := range vv.Elements {
			out[i] = Clone(e)
		}
		return &List{Elements: out}
	case *Dict:
		return vv.Clone()
	case *Tuple:
		pos := make([]Value, len(vv.Positional))
		for i, e := range vv.Positional {
			pos[i] = Clone(e)
		}
		named := make([]NamedValue, len(vv.Named))
		for i, nv := range vv.Named {
			named[i] = NamedValue{Name: nv.Name, Value: Clone(nv.Value)}
		}
		return &Tuple{Positional: pos, Named: named}
	case *Closure:
		c := *vv
		return &c
	default:
		return v
	}
}
