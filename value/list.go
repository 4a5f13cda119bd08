package value

import "strings"

// List is an ordered sequence of values (spec §3 "list").
type List struct {
	Elements []Value
}

func NewList(elems ...Value) *List { return &List{Elements: elems} }

func (*List) Kind() Kind { return KindList }

func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range l.Elements {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteByte(']')
	return b.String()
}

func (l *List) Len() int { return len(l.Elements) }

// At returns the element at idx, supporting negative indices (from the end,
// spec §4.4 "negative indices index from the end").
func (l *List) At(idx int) (Value, bool) {
	if idx < 0 {
		idx += len(l.Elements)
	}
	if idx < 0 || idx >= len(l.Elements) {
		return nil, false
	}
	return l.Elements[idx], true
}
