package runtime

import (
	"github.com/rcrsr/rill/ast"
	"github.com/rcrsr/rill/value"
)

// StepResult is what one Stepper.Step() call reports (spec §4.6
// "step() returns { value, captured?, index, total, done }").
type StepResult struct {
	Value    value.Value
	Captured *string
	Index    int
	Total    int
	Done     bool
}

// Stepper drives a Script one top-level statement at a time, exposing
// intermediate state for a host debugger or playground (spec §4.6,
// §2 "a driver that advances the evaluator one top-level statement at a
// time"). It shares the Evaluator's root scope with a plain EvalScript run,
// so captures made by one step are visible to the next (spec §3 "Scope").
type Stepper struct {
	e      *Evaluator
	script *ast.Script
	scope  *Scope
	index  int
	done   bool
	last   value.Value
}

// NewStepper creates a stepper over script using e's context (spec §6
// "create_stepper(script, context)").
func NewStepper(e *Evaluator, script *ast.Script) *Stepper {
	return &Stepper{e: e, script: script, scope: e.ctx.RootScope, last: value.Null{}}
}

func (s *Stepper) Done() bool         { return s.done }
func (s *Stepper) Index() int         { return s.index }
func (s *Stepper) Total() int         { return len(s.script.Statements) }
func (s *Stepper) Context() *Context  { return s.e.ctx }

// Step executes exactly one top-level statement (spec §4.6 "checks
// cancellation at every statement boundary").
func (s *Stepper) Step() (StepResult, error) {
	if s.done {
		return StepResult{Value: s.last, Index: s.index, Total: s.Total(), Done: true}, nil
	}
	defer s.e.ctx.acquireExec()()
	if s.e.ctx.Aborted() {
		return StepResult{}, newErr(ErrAborted, "execution aborted")
	}
	stmt := s.script.Statements[s.index]
	outcome, err := s.e.evalStatement(stmt, s.scope, s.e.ctx.InitialPipe)
	s.e.attachCallStackAndReset(&err)
	if err != nil {
		return StepResult{}, err
	}
	s.last = outcome.Value
	result := StepResult{
		Value:    outcome.Value,
		Captured: capturedName(stmt),
		Index:    s.index,
		Total:    s.Total(),
	}
	s.index++
	s.done = s.index >= len(s.script.Statements) || outcome.escapes()
	result.Done = s.done
	return result, nil
}

// GetResult returns the final value plus the top-level captured variable
// map (spec §4.6 "getResult() returns the final value plus the top-level
// captured variable map").
func (s *Stepper) GetResult() (value.Value, map[string]value.Value) {
	return s.last, s.scope.Snapshot()
}

// capturedName reports the variable name a statement captured into, if any
// (spec §4.6 "captured is present if the statement was a capture
// X => $name"), unwrapping annotations and trailing pipe stages to find the
// capture node a statement's expression bottoms out in.
func capturedName(stmt ast.Statement) *string {
	switch n := stmt.(type) {
	case *ast.ExprStatement:
		return capturedNameFromExpr(n.Expr)
	case *ast.AnnotatedStatement:
		return capturedName(n.Inner)
	default:
		return nil
	}
}

func capturedNameFromExpr(expr ast.Expr) *string {
	switch n := expr.(type) {
	case *ast.Capture:
		name := n.Name
		return &name
	case *ast.InlineCapture:
		name := n.Name
		return &name
	case *ast.PipeChain:
		if len(n.Stages) > 0 {
			return capturedNameFromExpr(n.Stages[len(n.Stages)-1].Target)
		}
		return capturedNameFromExpr(n.Head)
	default:
		return nil
	}
}
