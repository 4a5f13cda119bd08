package runtime

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/rcrsr/rill/value"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// LogEvent is the structured payload passed to an optional onLogEvent
// callback (spec §6 "callbacks: { onLog, onLogEvent?, onOutput? }").
type LogEvent struct {
	Level   string
	Message string
	Fields  map[string]any
}

// Callbacks are the host-facing observability hooks. They stay plain Go
// func values — the core never forces a logging library on the embedding
// host (SPEC_FULL.md §A.1).
type Callbacks struct {
	OnLog      func(string)
	OnLogEvent func(LogEvent)
	OnOutput   func(value.Value)
}

// FunctionSpec registers one host function (spec §4.3 "application
// callable").
type FunctionSpec struct {
	Params      []value.Param
	Fn          value.HostFunc
	Description string
	ReturnType  string
}

// MethodFunc implements one `.name(...)` method dispatched by the type of
// the receiver (spec §4.3 "method implementations"). It receives the
// Evaluator (not just the Context) because collection methods like
// `each`/`map`/`filter`/`fold` (spec §4.5) invoke closure arguments
// themselves.
type MethodFunc func(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error)

// ContextOptions configures create_context (spec §4.3, §6).
type ContextOptions struct {
	Variables           map[string]value.Value
	Functions           map[string]FunctionSpec
	Methods             map[string]MethodFunc
	Callbacks           Callbacks
	InitialPipeValue    value.Value
	HasInitialPipeValue bool
	AbortSignal         <-chan struct{}
	Timeout             time.Duration
	MaxCallStackDepth   int
	RequireDescriptions bool
	AutoExceptions      []string // regex patterns (spec §6 "autoExceptions: [regex]")
}

// Context owns everything an evaluation shares across statements: scopes,
// host tables, callbacks, the abort signal, and the call stack (spec §4.3).
// Child contexts share Functions/Methods/Callbacks by reference and only
// get their own variable frame (spec §5 "Shared resources").
type Context struct {
	Functions map[string]FunctionSpec
	Methods   map[string]MethodFunc
	Callbacks Callbacks

	AbortSignal       <-chan struct{}
	MaxCallStackDepth int
	CallStack         *CallStack
	AutoExceptions    []*regexp.Regexp

	RequireDescriptions bool

	RootScope       *Scope
	InitialPipe     PipeValue

	// execSem serializes top-level Execute/Stepper.Step calls against this
	// Context: CallStack and RootScope are mutated in place as evaluation
	// proceeds (spec §5 "variables are written only by capture operators in
	// the current frame"), so two goroutines driving the same Context at
	// once would race on both. golang.org/x/sync/semaphore expresses the
	// acquire as a single blocking call at this one entry point, in place
	// of a hand-rolled mutex guarding scattered field access.
	execSem *semaphore.Weighted

	logger *zap.Logger
}

// NewContext is create_context (spec §4.3, §6).
func NewContext(opts ContextOptions) (*Context, error) {
	ctx := &Context{
		Functions:           map[string]FunctionSpec{},
		Methods:             map[string]MethodFunc{},
		AbortSignal:         opts.AbortSignal,
		MaxCallStackDepth:   opts.MaxCallStackDepth,
		RequireDescriptions: opts.RequireDescriptions,
		logger:              defaultLogger(),
	}
	// Timeouts are enforced through the same abort mechanism as a
	// host-provided signal (spec §5 "a timeout at the execution-entry level
	// is enforced by the host wrapping the top-level execute/step with the
	// same abort mechanism"): a timer-backed channel is fanned in with any
	// caller-supplied AbortSignal so either firing aborts execution.
	if opts.Timeout > 0 {
		deadline, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		abortIn := opts.AbortSignal
		merged := make(chan struct{})
		go func() {
			defer cancel()
			select {
			case <-deadline.Done():
			case <-abortIn:
			}
			close(merged)
		}()
		ctx.AbortSignal = merged
	}
	if ctx.MaxCallStackDepth <= 0 {
		ctx.MaxCallStackDepth = 100
	}
	ctx.CallStack = NewCallStack(ctx.MaxCallStackDepth)
	ctx.execSem = semaphore.NewWeighted(1)

	registerBuiltinFunctions(ctx.Functions)
	registerBuiltinMethods(ctx.Methods)
	for name, spec := range opts.Functions {
		if err := validateFunctionSpec(name, spec, opts.RequireDescriptions); err != nil {
			return nil, err
		}
		ctx.Functions[name] = spec
	}
	for name, fn := range opts.Methods {
		ctx.Methods[name] = fn
	}

	for _, pat := range opts.AutoExceptions {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "invalid autoExceptions pattern %q", pat)
		}
		ctx.AutoExceptions = append(ctx.AutoExceptions, re)
	}

	ctx.Callbacks = opts.Callbacks
	if ctx.Callbacks.OnLog == nil {
		ctx.Callbacks.OnLog = ctx.defaultOnLog
	}

	ctx.RootScope = NewRootScope(opts.Variables)
	if opts.HasInitialPipeValue {
		ctx.InitialPipe = With(opts.InitialPipeValue)
	}
	return ctx, nil
}

// Child creates a context that shares Functions/Methods/Callbacks/
// AbortSignal by reference but starts a fresh variable frame, call stack,
// and execution semaphore (spec §4.3 "Child contexts inherit function/
// method tables and callbacks by reference; only variables and a
// frame-local pipeValue are new") — the call stack and semaphore travel
// with whichever frame is actually executing, not the shared tables.
func (c *Context) Child(vars map[string]value.Value) *Context {
	child := *c
	child.RootScope = NewRootScope(vars)
	child.CallStack = NewCallStack(c.MaxCallStackDepth)
	child.execSem = semaphore.NewWeighted(1)
	return &child
}

// acquireExec blocks until this Context is not already driving a top-level
// Execute/Stepper.Step call, returning the release func to defer.
func (c *Context) acquireExec() func() {
	_ = c.execSem.Acquire(context.Background(), 1)
	return func() { c.execSem.Release(1) }
}

func (c *Context) defaultOnLog(msg string) {
	c.logger.Info(msg, zap.String("component", "rill"))
}

func defaultLogger() *zap.Logger {
	l, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Aborted reports whether the context's abort signal has fired (spec §5
// "Cancellation").
func (c *Context) Aborted() bool {
	if c.AbortSignal == nil {
		return false
	}
	select {
	case <-c.AbortSignal:
		return true
	default:
		return false
	}
}

// LookupOptional is the host-only escape hatch from the "undefined read is
// an error" default (§9 Open Question #2, SPEC_FULL.md §C): it reads a
// top-level variable and reports whether it was bound, returning
// value.Null{} instead of failing when it is not. Rill source itself has
// no way to reach this — only a host embedding the runtime can call it.
func (c *Context) LookupOptional(name string) (value.Value, bool) {
	if v, ok := c.RootScope.Lookup(name); ok {
		return v, true
	}
	return value.Null{}, false
}

// IsAutoException reports whether msg matches a configured autoException
// pattern (spec §6 "autoExceptions: [regex] — patterns that ... mark the
// runtime error as expected").
func (c *Context) IsAutoException(msg string) bool {
	for _, re := range c.AutoExceptions {
		if re.MatchString(msg) {
			return true
		}
	}
	return false
}

func validateFunctionSpec(name string, spec FunctionSpec, requireDescriptions bool) error {
	if spec.Fn == nil {
		return fmt.Errorf("rill: function %q registered with nil implementation", name)
	}
	if requireDescriptions && spec.Description == "" {
		return fmt.Errorf("rill: function %q missing required description", name)
	}
	for _, p := range spec.Params {
		if requireDescriptions {
			// Per-parameter descriptions are not modeled as a separate field
			// on value.Param; the function-level description is treated as
			// covering its parameters, so no further check here.
			_ = p
		}
		if p.Type != "" && !isBuiltinTypeName(p.Type) {
			return fmt.Errorf("rill: function %q parameter %q has unknown type %q", name, p.Name, p.Type)
		}
	}
	if spec.ReturnType != "" && !isBuiltinTypeName(spec.ReturnType) {
		return fmt.Errorf("rill: function %q has unknown return type %q", name, spec.ReturnType)
	}
	return nil
}

func isBuiltinTypeName(t string) bool {
	switch t {
	case "string", "number", "bool", "closure", "list", "dict", "tuple":
		return true
	default:
		return false
	}
}
