package runtime

import "github.com/rcrsr/rill/rillerr"

// CallStack is a bounded, oldest-frame-dropped stack of call frames (spec
// §3 "Call stack", §5 "Call-stack bound"): a plain slice that drops its
// oldest entry once growth would exceed the bound, sized for exactly this
// push/pop/bound-report shape.
type CallStack struct {
	frames []rillerr.Frame
	max    int
}

// NewCallStack creates a stack bounded at max frames (spec §6
// "maxCallStackDepth: N — stack bound; default 100").
func NewCallStack(max int) *CallStack {
	if max <= 0 {
		max = 100
	}
	return &CallStack{max: max}
}

// Push records a new innermost call frame, dropping the oldest frame if the
// stack is already at its bound.
func (c *CallStack) Push(f rillerr.Frame) {
	c.frames = append(c.frames, f)
	if len(c.frames) > c.max {
		c.frames = c.frames[1:]
	}
}

// Pop removes the innermost frame on return from a call.
func (c *CallStack) Pop() {
	if len(c.frames) > 0 {
		c.frames = c.frames[:len(c.frames)-1]
	}
}

func (c *CallStack) Len() int { return len(c.frames) }

// Frames returns the current stack, most-recent call first, matching the
// order rillerr.Error.PushFrame prepends in.
func (c *CallStack) Frames() []rillerr.Frame {
	out := make([]rillerr.Frame, len(c.frames))
	for i, f := range c.frames {
		out[len(out)-1-i] = f
	}
	return out
}
