package runtime

import "github.com/rcrsr/rill/value"

// Scope is a frame in the variable-lookup stack (spec §3 "Scope: a stack of
// frames; variable lookup walks parents"). It implements value.Scope so
// value.ScriptClosure can capture one without the value package importing
// runtime. The current pipe value `$` is deliberately NOT stored here — it
// is threaded through eval as an explicit PipeValue argument instead, so a
// pipe stage's inline capture (`=> $name`) writes into the same persistent
// frame later stages and statements still see, rather than a throwaway
// per-stage child (spec §3 "Variables are written... overwriting in the
// innermost frame", which must survive past the one pipe stage that wrote
// it).
type Scope struct {
	vars   map[string]value.Value
	parent *Scope
}

// NewRootScope creates the outermost frame, seeded with the given
// variables (spec §4.3 "variables: name → value — seed scope").
func NewRootScope(vars map[string]value.Value) *Scope {
	s := &Scope{vars: map[string]value.Value{}}
	for k, v := range vars {
		s.vars[k] = v
	}
	return s
}

// Child creates a new, isolated frame (spec §3 "Blocks produce isolated
// scopes... do not leak captures").
func (s *Scope) Child() *Scope {
	return &Scope{vars: map[string]value.Value{}, parent: s}
}

// Lookup walks parent frames for name, implementing value.Scope.
func (s *Scope) Lookup(name string) (value.Value, bool) {
	for f := s; f != nil; f = f.parent {
		if v, ok := f.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set writes name in the innermost (this) frame, implementing capture `=>`
// / `:>` (spec §3 "Variables are written ... overwriting in the innermost
// frame").
func (s *Scope) Set(name string, v value.Value) {
	s.vars[name] = v
}

// Snapshot returns the variables bound directly in this frame (not
// parents), used by the stepper's top-level captured-variable map (spec
// §4.6 "getResult() returns ... the top-level captured variable map").
func (s *Scope) Snapshot() map[string]value.Value {
	out := make(map[string]value.Value, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

// PipeValue is the current `$`, threaded explicitly through evaluation
// rather than stored on Scope (see Scope's doc comment).
type PipeValue struct {
	Value value.Value
	Has   bool
}

// With returns a PipeValue with v bound, used when entering a pipe stage,
// loop body, or dict-dispatch target.
func With(v value.Value) PipeValue { return PipeValue{Value: v, Has: true} }

// None is the unbound pipe value (spec §3 "reading $ at the top level
// without a bound value is a runtime error").
var None = PipeValue{}
