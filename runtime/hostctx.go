package runtime

import "github.com/rcrsr/rill/value"

// hostContext adapts one evaluation point (a Context plus the pipe value
// active at a call site) to value.HostContext, the narrow surface a
// value.HostFunc is allowed to see (spec §6 "Host callable signature").
type hostContext struct {
	ctx *Context
	pv  PipeValue
}

func (h hostContext) PipeValue() (value.Value, bool) { return h.pv.Value, h.pv.Has }

func (h hostContext) Done() <-chan struct{} { return h.ctx.AbortSignal }
