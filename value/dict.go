package value

import (
	"strconv"
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DictKey is a dict key: string, number, or bool (spec §3 "dict: ordered
// mapping from string/number/boolean key to value"). It is a plain
// comparable struct (not an interface) so it satisfies go-ordered-map's
// `comparable` type parameter directly.
type DictKey struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
}

func StringKey(s string) DictKey { return DictKey{Kind: KindString, Str: s} }
func NumberKey(n float64) DictKey { return DictKey{Kind: KindNumber, Num: n} }
func BoolKey(b bool) DictKey      { return DictKey{Kind: KindBool, Bool: b} }

func (k DictKey) String() string {
	switch k.Kind {
	case KindString:
		return k.Str
	case KindNumber:
		return strconv.FormatFloat(k.Num, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(k.Bool)
	default:
		return ""
	}
}

// ToValue converts the key back to a first-class Value, used by `.keys()`
// (spec §4.3 built-ins).
func (k DictKey) ToValue() Value {
	switch k.Kind {
	case KindString:
		return String(k.Str)
	case KindNumber:
		return Number(k.Num)
	case KindBool:
		return Bool(k.Bool)
	default:
		return Null{}
	}
}

// Dict is an insertion-ordered, unique-key mapping (spec §3 "dict"), backed
// by github.com/wk8/go-ordered-map/v2 per SPEC_FULL.md §B — the direct
// implementation of the "insertion-ordered; keys unique" invariant, in place
// of a hand-rolled slice-plus-index-map.
type Dict struct {
	entries *orderedmap.OrderedMap[DictKey, Value]
}

func NewDict() *Dict {
	return &Dict{entries: orderedmap.New[DictKey, Value]()}
}

func (*Dict) Kind() Kind { return KindDict }

func (d *Dict) String() string {
	var b strings.Builder
	b.WriteByte('[')
	first := true
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(pair.Key.String())
		b.WriteString(": ")
		b.WriteString(pair.Value.String())
	}
	b.WriteByte(']')
	return b.String()
}

func (d *Dict) Len() int { return d.entries.Len() }

func (d *Dict) Get(key DictKey) (Value, bool) { return d.entries.Get(key) }

// Set inserts or overwrites key, preserving its original insertion position
// on overwrite (go-ordered-map's documented Set semantics).
func (d *Dict) Set(key DictKey, v Value) { d.entries.Set(key, v) }

// SetIfAbsent inserts key only if not already present, implementing the
// "first-match wins" rule for a dict literal's multi-key entries (spec §3
// invariants: "multi-key entries expand to one logical entry reachable by
// any listed key, first-match wins").
func (d *Dict) SetIfAbsent(key DictKey, v Value) {
	if _, exists := d.entries.Get(key); !exists {
		d.entries.Set(key, v)
	}
}

func (d *Dict) Delete(key DictKey) bool {
	_, existed := d.entries.Delete(key)
	return existed
}

// Keys returns keys in insertion order.
func (d *Dict) Keys() []DictKey {
	out := make([]DictKey, 0, d.entries.Len())
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Values returns values in insertion order.
func (d *Dict) Values() []Value {
	out := make([]Value, 0, d.entries.Len())
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Entries returns key/value pairs in insertion order.
type Entry struct {
	Key   DictKey
	Value Value
}

func (d *Dict) Entries() []Entry {
	out := make([]Entry, 0, d.entries.Len())
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, Entry{Key: pair.Key, Value: pair.Value})
	}
	return out
}

// Clone returns a Dict with the same keys but deeply cloned values.
func (d *Dict) Clone() *Dict {
	c := NewDict()
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		c.entries.Set(pair.Key, Clone(pair.Value))
	}
	return c
}
