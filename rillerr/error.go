// Package rillerr defines the single structured error shape used by the
// lexer, parser, and runtime (spec §6 "Error shape", §7 "Error handling
// design"). Every RILL-L###/RILL-P###/RILL-R###/RILL-C### error is a
// *rillerr.Error so a host can type-switch once regardless of which stage
// produced it.
package rillerr

import (
	"fmt"
	"strings"

	"github.com/rcrsr/rill/token"

	pkgerrors "github.com/pkg/errors"
)

// Frame is one entry of a call stack attached to a runtime error as it
// unwinds through closure/host-function calls (spec §4.3 "Call stack").
type Frame struct {
	Location     token.Position
	FunctionName string // empty for anonymous closures
	ContextLabel string // optional host-supplied label, e.g. a pipeline step name
}

// Error is the structured error value returned by Parse, Execute, and every
// public entry point that can fail. It deliberately carries no formatting
// logic (snippet rendering, color, fuzzy suggestions are external
// collaborators per spec §1/§7) — only the data a formatter needs.
type Error struct {
	ErrorID   string // e.g. "RILL-L001", "RILL-P003", "RILL-R013", "RILL-C001"
	Message   string // no trailing location suffix (spec §6)
	Location  *token.Position
	Context   map[string]any
	CallStack []Frame

	cause error // wrapped underlying cause, if any; see Wrap
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.ErrorID)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Location != nil {
		fmt.Fprintf(&b, " (at %s)", e.Location)
	}
	return b.String()
}

// Unwrap lets errors.Is/errors.As reach a wrapped native cause.
func (e *Error) Unwrap() error { return e.cause }

// New builds an Error with no location/context/call stack.
func New(id, message string) *Error {
	return &Error{ErrorID: id, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(id, format string, args ...any) *Error {
	return New(id, fmt.Sprintf(format, args...))
}

// At returns a copy of e with Location set.
func (e *Error) At(pos token.Position) *Error {
	c := *e
	c.Location = &pos
	return &c
}

// WithContext returns a copy of e with a context key/value attached.
func (e *Error) WithContext(key string, value any) *Error {
	c := *e
	if c.Context == nil {
		c.Context = map[string]any{}
	} else {
		cp := make(map[string]any, len(c.Context)+1)
		for k, v := range c.Context {
			cp[k] = v
		}
		c.Context = cp
	}
	c.Context[key] = value
	return &c
}

// WithCause wraps a lower-level cause (e.g. a recovered host-function panic)
// using pkg/errors so the original stack trace survives Unwrap/Cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.cause = pkgerrors.WithStack(cause)
	return &c
}

// PushFrame returns a copy of e with frame prepended to the call stack (most
// recent call first), trimmed to maxDepth entries (spec §4.3/§5 "Call-stack
// bound").
func (e *Error) PushFrame(frame Frame, maxDepth int) *Error {
	c := *e
	stack := append([]Frame{frame}, c.CallStack...)
	if maxDepth > 0 && len(stack) > maxDepth {
		stack = stack[:maxDepth]
	}
	c.CallStack = stack
	return &c
}

// Is supports errors.Is(err, rillerr.New(id, "")) style matching on ErrorID
// alone, which is how callers typically want to compare structured errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.ErrorID == e.ErrorID
}
