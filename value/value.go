// Package value defines Rill's runtime value model (spec §3 "Data model"):
// string, number, bool, null, list, dict, closure, and tuple. Every concrete
// type is a small struct implementing the narrow Value interface, the same
// interface-with-concrete-structs shape the ast package follows.
//
// Values are immutable once constructed: List/Dict hold their elements by
// value-of-interface, and Clone produces an independent deep copy rather than
// letting two captures alias the same backing storage (spec §3 "Value
// semantics", §5 "Dict/list values are produced by pure construction").
package value

// Kind names a Value's dynamic type, used for type assertions (`:T`/`:?T`),
// error messages, and the `type` built-in.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindBool    Kind = "bool"
	KindNull    Kind = "null"
	KindList    Kind = "list"
	KindDict    Kind = "dict"
	KindClosure Kind = "closure"
	KindTuple   Kind = "tuple"
)

// Value is implemented by every Rill runtime value.
type Value interface {
	Kind() Kind
	String() string
}

// TypeName returns v's Rill-surface type name, the same spelling used by
// type assertions and built-in type names (spec §4.1 "type names").
func TypeName(v Value) string {
	if v == nil {
		return string(KindNull)
	}
	return string(v.Kind())
}
