package runtime

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/rcrsr/rill/token"
	"github.com/rcrsr/rill/value"
)

// registerBuiltinFunctions installs the fixed host-function set (spec §4.3
// "Built-ins: ... identity, log, type, json, range, and collection
// primitives"). Host-supplied functions of the same name, registered
// through create_context, replace these entries (spec §4.3 "Host overrides
// replace built-ins").
func registerBuiltinFunctions(fns map[string]FunctionSpec) {
	fns["identity"] = FunctionSpec{Fn: builtinIdentity, Description: "returns its argument, or the piped value if called with none"}
	fns["log"] = FunctionSpec{Fn: builtinLog, Description: "writes a message through the context's onLog/onLogEvent callbacks"}
	fns["type"] = FunctionSpec{Fn: builtinType, Description: "returns the Rill type name of a value"}
	fns["json"] = FunctionSpec{Fn: builtinJSON, Description: "parses a JSON string into a Rill value, or serializes a value to JSON text"}
	fns["range"] = FunctionSpec{Fn: builtinRange, Description: "builds a list of numbers from (stop), (start, stop), or (start, stop, step)"}
	fns["uuid"] = FunctionSpec{Fn: builtinUUID, Description: "returns a freshly generated UUID string"}
}

func builtinIdentity(args []value.Value, ctx value.HostContext, site *token.Span) (value.Value, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if pv, ok := ctx.PipeValue(); ok {
		return pv, nil
	}
	return nil, newErr(ErrUndefinedTopLevel, "identity requires an argument or a bound $")
}

func builtinLog(args []value.Value, ctx value.HostContext, site *token.Span) (value.Value, error) {
	var msg string
	if len(args) > 0 {
		if s, ok := args[0].(value.String); ok {
			msg = string(s)
		} else {
			msg = args[0].String()
		}
	} else if pv, ok := ctx.PipeValue(); ok {
		msg = pv.String()
	}
	hc, ok := ctx.(hostContext)
	if !ok {
		return value.Null{}, nil
	}
	cb := hc.ctx.Callbacks
	if cb.OnLog != nil {
		cb.OnLog(msg)
	}
	if cb.OnLogEvent != nil {
		cb.OnLogEvent(LogEvent{
			Level:   "info",
			Message: msg,
			// A correlation id, not an equality- or control-flow-relevant
			// value — purely for the host's observability pipeline to
			// thread log lines back to the call that produced them.
			Fields: map[string]any{"correlationId": uuid.NewString()},
		})
	}
	return value.Null{}, nil
}

func builtinType(args []value.Value, ctx value.HostContext, site *token.Span) (value.Value, error) {
	var v value.Value
	if len(args) > 0 {
		v = args[0]
	} else if pv, ok := ctx.PipeValue(); ok {
		v = pv
	} else {
		return nil, newErr(ErrUndefinedTopLevel, "type requires an argument or a bound $")
	}
	return value.String(value.TypeName(v)), nil
}

func builtinJSON(args []value.Value, ctx value.HostContext, site *token.Span) (value.Value, error) {
	var v value.Value
	if len(args) > 0 {
		v = args[0]
	} else if pv, ok := ctx.PipeValue(); ok {
		v = pv
	} else {
		return nil, newErr(ErrUndefinedTopLevel, "json requires an argument or a bound $")
	}
	if s, ok := v.(value.String); ok {
		if !gjson.Valid(string(s)) {
			return nil, newErr(ErrTypeMismatch, "json: invalid JSON text")
		}
		return jsonToValue(gjson.Parse(string(s))), nil
	}
	raw, err := valueToJSONRaw(v)
	if err != nil {
		return nil, newErr(ErrTypeMismatch, "json: %s", err.Error())
	}
	return value.String(raw), nil
}

func builtinRange(args []value.Value, ctx value.HostContext, site *token.Span) (value.Value, error) {
	nums := make([]float64, len(args))
	for i, a := range args {
		n, ok := a.(value.Number)
		if !ok {
			return nil, newErr(ErrTypeMismatch, "range arguments must be numbers, got %s", value.TypeName(a))
		}
		nums[i] = float64(n)
	}
	var start, stop, step float64
	switch len(nums) {
	case 1:
		start, stop, step = 0, nums[0], 1
	case 2:
		start, stop, step = nums[0], nums[1], 1
	case 3:
		start, stop, step = nums[0], nums[1], nums[2]
	default:
		return nil, newErr(ErrArityMismatch, "range takes 1 to 3 arguments, got %d", len(nums))
	}
	if step == 0 {
		return nil, newErr(ErrInvalidSlice, "range step cannot be zero")
	}
	var out []value.Value
	if step > 0 {
		for v := start; v < stop; v += step {
			out = append(out, value.Number(v))
		}
	} else {
		for v := start; v > stop; v += step {
			out = append(out, value.Number(v))
		}
	}
	return value.NewList(out...), nil
}

func builtinUUID(args []value.Value, ctx value.HostContext, site *token.Span) (value.Value, error) {
	return value.String(uuid.NewString()), nil
}

// jsonToValue converts a parsed gjson.Result into a Rill value, walking in
// document order so object keys land in a *value.Dict in the order they
// were written (spec §3 "dict ... insertion-ordered").
func jsonToValue(r gjson.Result) value.Value {
	switch {
	case r.IsArray():
		var elems []value.Value
		r.ForEach(func(_, v gjson.Result) bool {
			elems = append(elems, jsonToValue(v))
			return true
		})
		return value.NewList(elems...)
	case r.IsObject():
		d := value.NewDict()
		r.ForEach(func(k, v gjson.Result) bool {
			d.Set(value.StringKey(k.String()), jsonToValue(v))
			return true
		})
		return d
	default:
		switch r.Type {
		case gjson.String:
			return value.String(r.String())
		case gjson.Number:
			return value.Number(r.Float())
		case gjson.True, gjson.False:
			return value.Bool(r.Bool())
		default:
			return value.Null{}
		}
	}
}

// valueToJSONRaw serializes a Rill value to JSON text via sjson, building
// containers incrementally with SetRaw/SetRawBytes rather than through an
// intermediate map[string]interface{} (SPEC_FULL.md §B).
func valueToJSONRaw(v value.Value) (string, error) {
	switch t := v.(type) {
	case nil:
		return "null", nil
	case value.Null:
		return "null", nil
	case value.Bool:
		if t {
			return "true", nil
		}
		return "false", nil
	case value.Number:
		doc, err := sjson.Set("{}", "v", float64(t))
		if err != nil {
			return "", err
		}
		return gjson.Get(doc, "v").Raw, nil
	case value.String:
		doc, err := sjson.Set("{}", "v", string(t))
		if err != nil {
			return "", err
		}
		return gjson.Get(doc, "v").Raw, nil
	case *value.List:
		doc := "[]"
		for _, elem := range t.Elements {
			raw, err := valueToJSONRaw(elem)
			if err != nil {
				return "", err
			}
			doc, err = sjson.SetRaw(doc, "-1", raw)
			if err != nil {
				return "", err
			}
		}
		return doc, nil
	case *value.Dict:
		doc := "{}"
		for _, entry := range t.Entries() {
			raw, err := valueToJSONRaw(entry.Value)
			if err != nil {
				return "", err
			}
			// sjson paths treat `.`/`*`/`#`/`:` specially; dict keys hitting
			// those are a known limitation of this best-effort serializer
			// rather than something the spec's json built-in promises to
			// round-trip losslessly.
			doc, err = sjson.SetRaw(doc, entry.Key.String(), raw)
			if err != nil {
				return "", err
			}
		}
		return doc, nil
	default:
		return "", newErr(ErrTypeMismatch, "cannot serialize value of kind %s to JSON", value.TypeName(v))
	}
}

// registerBuiltinMethods installs the fixed method table (spec §4.3
// "method implementations: .len .str .upper .lower .trim .contains .split
// .head .join .eq .empty .first, dict .keys/.values/.entries, list slicing,
// iterator helpers").
func registerBuiltinMethods(methods map[string]MethodFunc) {
	methods["len"] = methodLen
	methods["str"] = methodStr
	methods["upper"] = methodUpper
	methods["lower"] = methodLower
	methods["trim"] = methodTrim
	methods["contains"] = methodContains
	methods["split"] = methodSplit
	methods["head"] = methodHead
	methods["join"] = methodJoin
	methods["eq"] = methodEq
	methods["empty"] = methodEmpty
	methods["first"] = methodFirst
	methods["next"] = methodNext
	methods["keys"] = methodKeys
	methods["values"] = methodValues
	methods["entries"] = methodEntries
	methods["sort"] = methodSort
	methods["each"] = methodEach
	methods["map"] = methodMap
	methods["filter"] = methodFilter
	methods["fold"] = methodFold
}

func methodLen(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	switch t := self.(type) {
	case value.String:
		return value.Number(len([]rune(string(t)))), nil
	case *value.List:
		return value.Number(len(t.Elements)), nil
	case *value.Dict:
		return value.Number(t.Len()), nil
	default:
		return nil, newErr(ErrTypeMismatch, ".len requires string, list, or dict, got %s", value.TypeName(self))
	}
}

func methodStr(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	if self == nil {
		return value.String("null"), nil
	}
	return value.String(self.String()), nil
}

func methodUpper(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	s, ok := self.(value.String)
	if !ok {
		return nil, newErr(ErrTypeMismatch, ".upper requires a string, got %s", value.TypeName(self))
	}
	return value.String(strings.ToUpper(string(s))), nil
}

func methodLower(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	s, ok := self.(value.String)
	if !ok {
		return nil, newErr(ErrTypeMismatch, ".lower requires a string, got %s", value.TypeName(self))
	}
	return value.String(strings.ToLower(string(s))), nil
}

func methodTrim(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	s, ok := self.(value.String)
	if !ok {
		return nil, newErr(ErrTypeMismatch, ".trim requires a string, got %s", value.TypeName(self))
	}
	return value.String(strings.TrimSpace(string(s))), nil
}

func methodContains(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	if len(args) != 1 {
		return nil, newErr(ErrArityMismatch, ".contains takes exactly 1 argument, got %d", len(args))
	}
	switch t := self.(type) {
	case value.String:
		needle, ok := args[0].(value.String)
		if !ok {
			return nil, newErr(ErrTypeMismatch, ".contains on a string requires a string argument, got %s", value.TypeName(args[0]))
		}
		return value.Bool(strings.Contains(string(t), string(needle))), nil
	case *value.List:
		for _, elem := range t.Elements {
			if value.Equal(elem, args[0]) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	default:
		return nil, newErr(ErrTypeMismatch, ".contains requires a string or list, got %s", value.TypeName(self))
	}
}

func methodSplit(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	s, ok := self.(value.String)
	if !ok {
		return nil, newErr(ErrTypeMismatch, ".split requires a string, got %s", value.TypeName(self))
	}
	sep := ""
	if len(args) > 0 {
		sepStr, ok := args[0].(value.String)
		if !ok {
			return nil, newErr(ErrTypeMismatch, ".split separator must be a string, got %s", value.TypeName(args[0]))
		}
		sep = string(sepStr)
	}
	var parts []string
	if sep == "" {
		parts = strings.Fields(string(s))
	} else {
		parts = strings.Split(string(s), sep)
	}
	out := lo.Map(parts, func(p string, _ int) value.Value { return value.String(p) })
	return value.NewList(out...), nil
}

func methodHead(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	n := 1
	if len(args) > 0 {
		num, ok := args[0].(value.Number)
		if !ok {
			return nil, newErr(ErrTypeMismatch, ".head count must be a number, got %s", value.TypeName(args[0]))
		}
		n = int(num)
	}
	if n < 0 {
		n = 0
	}
	switch t := self.(type) {
	case *value.List:
		if n > len(t.Elements) {
			n = len(t.Elements)
		}
		return value.NewList(t.Elements[:n]...), nil
	case value.String:
		runes := []rune(string(t))
		if n > len(runes) {
			n = len(runes)
		}
		return value.String(string(runes[:n])), nil
	default:
		return nil, newErr(ErrTypeMismatch, ".head requires a list or string, got %s", value.TypeName(self))
	}
}

func methodJoin(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	l, ok := self.(*value.List)
	if !ok {
		return nil, newErr(ErrTypeMismatch, ".join requires a list, got %s", value.TypeName(self))
	}
	sep := ""
	if len(args) > 0 {
		sepStr, ok := args[0].(value.String)
		if !ok {
			return nil, newErr(ErrTypeMismatch, ".join separator must be a string, got %s", value.TypeName(args[0]))
		}
		sep = string(sepStr)
	}
	parts := make([]string, len(l.Elements))
	for i, elem := range l.Elements {
		s, ok := elem.(value.String)
		if !ok {
			return nil, newErr(ErrTypeMismatch, ".join requires a list of strings, element %d is %s", i, value.TypeName(elem))
		}
		parts[i] = string(s)
	}
	return value.String(strings.Join(parts, sep)), nil
}

func methodEq(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	if len(args) != 1 {
		return nil, newErr(ErrArityMismatch, ".eq takes exactly 1 argument, got %d", len(args))
	}
	return value.Bool(value.Equal(self, args[0])), nil
}

func methodEmpty(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	switch t := self.(type) {
	case value.String:
		return value.Bool(t == ""), nil
	case *value.List:
		return value.Bool(len(t.Elements) == 0), nil
	case *value.Dict:
		return value.Bool(t.Len() == 0), nil
	default:
		return nil, newErr(ErrTypeMismatch, ".empty requires a string, list, or dict, got %s", value.TypeName(self))
	}
}

func methodFirst(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	switch t := self.(type) {
	case *value.List:
		if len(t.Elements) == 0 {
			return nil, newErr(ErrIteratorShape, ".first on an empty list")
		}
		return t.Elements[0], nil
	case value.String:
		runes := []rune(string(t))
		if len(runes) == 0 {
			return nil, newErr(ErrIteratorShape, ".first on an empty string")
		}
		return value.String(string(runes[0])), nil
	case *value.Dict:
		return iteratorValue(t)
	default:
		return nil, newErr(ErrTypeMismatch, ".first requires a list, string, or iterator, got %s", value.TypeName(self))
	}
}

// methodNext advances an iterator dict (spec §3 "Iterator: {done, value?,
// next}... consumed by the .first()/.next() idiom"), invoking its `next`
// closure and returning the resulting iterator.
func methodNext(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	d, ok := self.(*value.Dict)
	if !ok {
		return nil, newErr(ErrTypeMismatch, ".next requires an iterator dict, got %s", value.TypeName(self))
	}
	nextField, ok := d.Get(value.StringKey("next"))
	if !ok {
		return nil, newErr(ErrIteratorShape, "iterator dict missing a `next` field")
	}
	cl, ok := nextField.(*value.Closure)
	if !ok {
		return nil, newErr(ErrIteratorShape, "iterator `next` field must be a closure, got %s", value.TypeName(nextField))
	}
	v, err := e.callClosure(cl, nil, None, &token.Span{})
	if err != nil {
		return nil, err
	}
	if _, ok := v.(*value.Dict); !ok {
		return nil, newErr(ErrIteratorShape, "iterator `next` must return an iterator dict, got %s", value.TypeName(v))
	}
	return v, nil
}

func iteratorValue(d *value.Dict) (value.Value, error) {
	doneField, ok := d.Get(value.StringKey("done"))
	if !ok {
		return nil, newErr(ErrIteratorShape, "iterator dict missing a `done` field")
	}
	done, ok := doneField.(value.Bool)
	if !ok {
		return nil, newErr(ErrIteratorShape, "iterator `done` field must be a bool, got %s", value.TypeName(doneField))
	}
	if bool(done) {
		return nil, newErr(ErrIteratorShape, ".first on an exhausted iterator")
	}
	v, ok := d.Get(value.StringKey("value"))
	if !ok {
		return nil, newErr(ErrIteratorShape, "iterator dict has done=false but no `value` field")
	}
	return v, nil
}

func methodKeys(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	d, ok := self.(*value.Dict)
	if !ok {
		return nil, newErr(ErrTypeMismatch, ".keys requires a dict, got %s", value.TypeName(self))
	}
	out := lo.Map(d.Keys(), func(k value.DictKey, _ int) value.Value { return k.ToValue() })
	return value.NewList(out...), nil
}

func methodValues(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	d, ok := self.(*value.Dict)
	if !ok {
		return nil, newErr(ErrTypeMismatch, ".values requires a dict, got %s", value.TypeName(self))
	}
	return value.NewList(d.Values()...), nil
}

func methodEntries(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	d, ok := self.(*value.Dict)
	if !ok {
		return nil, newErr(ErrTypeMismatch, ".entries requires a dict, got %s", value.TypeName(self))
	}
	out := lo.Map(d.Entries(), func(entry value.Entry, _ int) value.Value {
		return value.NewList(entry.Key.ToValue(), entry.Value)
	})
	return value.NewList(out...), nil
}

// methodSort sorts a list of numbers or strings ascending; not part of the
// spec's explicit method list, but a direct instance of a generic
// functional primitive the pack's samber/lo-based repos reach for rather
// than hand-rolling a comparator loop. Mixed-kind lists are a type error,
// matching the "no implicit coercion" invariant (spec §3).
func methodSort(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	l, ok := self.(*value.List)
	if !ok {
		return nil, newErr(ErrTypeMismatch, ".sort requires a list, got %s", value.TypeName(self))
	}
	out := append([]value.Value(nil), l.Elements...)
	var typeErr error
	sort.SliceStable(out, func(i, j int) bool {
		switch a := out[i].(type) {
		case value.Number:
			b, ok := out[j].(value.Number)
			if !ok {
				typeErr = newErr(ErrTypeMismatch, ".sort requires a uniform list, got %s and %s", value.TypeName(out[i]), value.TypeName(out[j]))
				return false
			}
			return a < b
		case value.String:
			b, ok := out[j].(value.String)
			if !ok {
				typeErr = newErr(ErrTypeMismatch, ".sort requires a uniform list, got %s and %s", value.TypeName(out[i]), value.TypeName(out[j]))
				return false
			}
			return a < b
		default:
			typeErr = newErr(ErrTypeMismatch, ".sort requires a list of numbers or strings, got %s", value.TypeName(out[i]))
			return false
		}
	})
	if typeErr != nil {
		return nil, typeErr
	}
	return value.NewList(out...), nil
}

// methodEach invokes fn once per element for side effects, returning the
// original list unless the closure breaks (spec §4.5 "break terminates
// iteration and returns the break value as the operator result").
func methodEach(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	l, cl, err := collectionArgs(self, args, ".each")
	if err != nil {
		return nil, err
	}
	for _, elem := range l.Elements {
		if e.ctx.Aborted() {
			return nil, newErr(ErrAborted, "execution aborted")
		}
		o, err := e.invokeClosureElement(cl, []value.Value{elem}, With(elem), &token.Span{})
		if err != nil {
			return nil, err
		}
		if o.Signal == SigBreak {
			return o.Value, nil
		}
	}
	return l, nil
}

// methodMap transforms each element, preserving input order (spec §5
// "each/map/filter/fold preserve input order in their output").
func methodMap(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	l, cl, err := collectionArgs(self, args, ".map")
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, 0, len(l.Elements))
	for _, elem := range l.Elements {
		if e.ctx.Aborted() {
			return nil, newErr(ErrAborted, "execution aborted")
		}
		o, err := e.invokeClosureElement(cl, []value.Value{elem}, With(elem), &token.Span{})
		if err != nil {
			return nil, err
		}
		if o.Signal == SigBreak {
			return o.Value, nil
		}
		out = append(out, o.Value)
	}
	return value.NewList(out...), nil
}

func methodFilter(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	l, cl, err := collectionArgs(self, args, ".filter")
	if err != nil {
		return nil, err
	}
	out := make([]value.Value, 0, len(l.Elements))
	for _, elem := range l.Elements {
		if e.ctx.Aborted() {
			return nil, newErr(ErrAborted, "execution aborted")
		}
		o, err := e.invokeClosureElement(cl, []value.Value{elem}, With(elem), &token.Span{})
		if err != nil {
			return nil, err
		}
		if o.Signal == SigBreak {
			return o.Value, nil
		}
		keep, ok := o.Value.(value.Bool)
		if !ok {
			return nil, newErr(ErrTypeMismatch, ".filter closure must return a bool, got %s", value.TypeName(o.Value))
		}
		if bool(keep) {
			out = append(out, elem)
		}
	}
	return value.NewList(out...), nil
}

// methodFold reduces a list to one value via an (accumulator, element)
// closure, seeded by the first of its two arguments (seed, closure).
func methodFold(self value.Value, args []value.Value, e *Evaluator, scope *Scope) (value.Value, error) {
	l, ok := self.(*value.List)
	if !ok {
		return nil, newErr(ErrTypeMismatch, ".fold requires a list, got %s", value.TypeName(self))
	}
	if len(args) != 2 {
		return nil, newErr(ErrArityMismatch, ".fold takes exactly 2 arguments (seed, fn), got %d", len(args))
	}
	acc := args[0]
	cl, ok := args[1].(*value.Closure)
	if !ok {
		return nil, newErr(ErrTypeMismatch, ".fold's second argument must be a closure, got %s", value.TypeName(args[1]))
	}
	for _, elem := range l.Elements {
		if e.ctx.Aborted() {
			return nil, newErr(ErrAborted, "execution aborted")
		}
		o, err := e.invokeClosureElement(cl, []value.Value{acc, elem}, With(elem), &token.Span{})
		if err != nil {
			return nil, err
		}
		if o.Signal == SigBreak {
			return o.Value, nil
		}
		acc = o.Value
	}
	return acc, nil
}

func collectionArgs(self value.Value, args []value.Value, name string) (*value.List, *value.Closure, error) {
	l, ok := self.(*value.List)
	if !ok {
		return nil, nil, newErr(ErrTypeMismatch, "%s requires a list, got %s", name, value.TypeName(self))
	}
	if len(args) != 1 {
		return nil, nil, newErr(ErrArityMismatch, "%s takes exactly 1 argument, got %d", name, len(args))
	}
	cl, ok := args[0].(*value.Closure)
	if !ok {
		return nil, nil, newErr(ErrTypeMismatch, "%s requires a closure argument, got %s", name, value.TypeName(args[0]))
	}
	return l, cl, nil
}
