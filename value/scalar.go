package value

import "strconv"

// String is a Unicode string value.
type String string

func (String) Kind() Kind         { return KindString }
func (s String) String() string   { return string(s) }

// Number is an IEEE-754 double, Rill's only numeric kind (spec §3).
type Number float64

func (Number) Kind() Kind { return KindNumber }
func (n Number) String() string {
	return strconv.FormatFloat(float64(n), 'g', -1, 64)
}

// Bool is a boolean value.
type Bool bool

func (Bool) Kind() Kind       { return KindBool }
func (b Bool) String() string { return strconv.FormatBool(bool(b)) }

// Null is the empty sentinel (spec §3, §9 Open Question #2). Rill source has
// no null literal; Null is what Context.LookupOptional returns for a missing
// name, and scripts also receive it as the result of the log builtin, a JSON
// null decoded by json, and an annotation read that finds nothing.
type Null struct{}

func (Null) Kind() Kind     { return KindNull }
func (Null) String() string { return "null" }
