package runtime

import "github.com/rcrsr/rill/value"

// Signal is the non-error control-flow channel an evaluation step can
// produce (spec §9 design note: "the expression evaluator returns one of
// Value(v), Break(v), Return(v), or Err(e)" — Err is modeled as a normal Go
// error return instead of a fourth Outcome variant, since Go already has an
// idiomatic error channel).
type Signal int

const (
	SigNone Signal = iota
	SigBreak
	SigReturn
)

// Outcome is one evaluation step's non-error result: either a plain value,
// or a value carrying a break/return signal.
type Outcome struct {
	Value  value.Value
	Signal Signal
}

func just(v value.Value) Outcome { return Outcome{Value: v} }

func breakOutcome(v value.Value) Outcome { return Outcome{Value: v, Signal: SigBreak} }

func returnOutcome(v value.Value) Outcome { return Outcome{Value: v, Signal: SigReturn} }

// escapes reports whether o carries a break/return that must stop normal
// sequencing and bubble straight up to the nearest handler.
func (o Outcome) escapes() bool { return o.Signal != SigNone }
