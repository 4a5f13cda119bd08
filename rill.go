// Package rill is the public entry point over the language core: parse a
// script, build a context, execute it or step through it (spec §6
// "External interfaces"). Everything peripheral — CLI flags, file/module
// loading, host extensions — lives outside this package as an external
// collaborator (spec §1).
package rill

import (
	"github.com/rcrsr/rill/ast"
	"github.com/rcrsr/rill/parser"
	"github.com/rcrsr/rill/rillerr"
	"github.com/rcrsr/rill/runtime"
	"github.com/rcrsr/rill/value"
)

// Re-exported so callers only need to import this package for the common
// path; the concrete types still live in their owning packages.
type (
	Script            = ast.Script
	Value             = value.Value
	Context           = runtime.Context
	ContextOptions    = runtime.ContextOptions
	Callbacks         = runtime.Callbacks
	LogEvent          = runtime.LogEvent
	FunctionSpec      = runtime.FunctionSpec
	MethodFunc        = runtime.MethodFunc
	Stepper           = runtime.Stepper
	StepResult        = runtime.StepResult
	RillError         = rillerr.Error
)

// Parse scans and parses source in strict mode (spec §6 "parse(source) →
// Script | throws ParseError/LexerError").
func Parse(source string) (*Script, error) {
	return parser.Parse(source)
}

// ParseRecover parses source in recovery mode, collecting parse errors as
// RecoveryError placeholder statements instead of aborting on the first one
// (spec §4.2 "Recovery mode").
func ParseRecover(source string) (*Script, []*rillerr.Error) {
	return parser.ParseRecover(source)
}

// NewContext is create_context (spec §4.3, §6).
func NewContext(opts ContextOptions) (*Context, error) {
	return runtime.NewContext(opts)
}

// ExecuteResult is execute's return shape (spec §6 "execute(script,
// context) → { value, variables }").
type ExecuteResult struct {
	Value     value.Value
	Variables map[string]value.Value
}

// Execute runs script to completion against ctx (spec §6).
func Execute(script *Script, ctx *Context) (ExecuteResult, error) {
	e := runtime.NewEvaluator(ctx)
	v, vars, err := e.EvalScript(script)
	if err != nil {
		return ExecuteResult{}, err
	}
	return ExecuteResult{Value: v, Variables: vars}, nil
}

// NewStepper is create_stepper (spec §4.6, §6).
func NewStepper(script *Script, ctx *Context) *Stepper {
	return runtime.NewStepper(runtime.NewEvaluator(ctx), script)
}
