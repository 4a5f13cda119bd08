package value

import "strings"

// NamedValue is one named entry of a Tuple, produced when the spread
// operator `*` splices a dict (spec §3 "tuple: positional and/or named
// argument pack").
type NamedValue struct {
	Name  string
	Value Value
}

// Tuple is a positional/named argument pack, produced only by the spread
// operator and not otherwise first-class (spec §3).
type Tuple struct {
	Positional []Value
	Named      []NamedValue
}

func (*Tuple) Kind() Kind { return KindTuple }

func (t *Tuple) String() string {
	var b strings.Builder
	b.WriteByte('(')
	first := true
	for _, v := range t.Positional {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(v.String())
	}
	for _, nv := range t.Named {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(nv.Name)
		b.WriteString(": ")
		b.WriteString(nv.Value.String())
	}
	b.WriteByte(')')
	return b.String()
}
