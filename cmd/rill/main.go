// Command rill is a thin CLI runner over the language core (spec §1 "the
// CLI argument parser... external collaborators"; SPEC_FULL.md §C "a thin
// external-collaborator binary that parses a script path + --var key=value
// flags with pflag, builds a runtime.Context, calls rill.Execute, and
// prints the result"). It is not part of the core's public contract.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	rillcore "github.com/rcrsr/rill"
	"github.com/rcrsr/rill/rillerr"
	"github.com/rcrsr/rill/value"
)

func main() {
	var varFlags []string
	var step bool
	var maxDepth int
	var timeout time.Duration
	var prettyPrint bool

	pflag.StringArrayVar(&varFlags, "var", nil, "seed variable as key=value (repeatable)")
	pflag.BoolVar(&step, "step", false, "run through create_stepper, printing one line per step")
	pflag.IntVar(&maxDepth, "max-call-stack-depth", 100, "bound on the evaluator's call stack")
	pflag.DurationVar(&timeout, "timeout", 0, "abort execution after this long (0 disables)")
	pflag.BoolVar(&prettyPrint, "pretty", false, "pretty-print a string result that is valid JSON text")
	pflag.Parse()

	args := pflag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: rill [--var key=value]... [--step] <script.rill>")
		os.Exit(2)
	}

	src, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "rill:", err)
		os.Exit(1)
	}

	vars, err := parseVars(varFlags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "rill:", err)
		os.Exit(2)
	}

	script, err := rillcore.Parse(string(src))
	if err != nil {
		printErr(err)
		os.Exit(1)
	}

	ctx, err := rillcore.NewContext(rillcore.ContextOptions{
		Variables:         vars,
		MaxCallStackDepth: maxDepth,
		Timeout:           timeout,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "rill:", err)
		os.Exit(1)
	}

	if step {
		runStepped(script, ctx)
		return
	}

	result, err := rillcore.Execute(script, ctx)
	if err != nil {
		printErr(err)
		os.Exit(1)
	}
	fmt.Println(formatResult(result.Value, prettyPrint))
}

// formatResult applies --pretty (spec §6, SPEC_FULL.md §B "pretty for the
// CLI's --pretty output mode") when v is a string holding valid JSON text,
// e.g. the output of the json(...) builtin; anything else prints as-is.
func formatResult(v rillcore.Value, prettyPrint bool) string {
	if !prettyPrint {
		return v.String()
	}
	s, ok := v.(value.String)
	if !ok || !gjson.Valid(string(s)) {
		return v.String()
	}
	return string(pretty.Pretty([]byte(string(s))))
}

func runStepped(script *rillcore.Script, ctx *rillcore.Context) {
	stepper := rillcore.NewStepper(script, ctx)
	for !stepper.Done() {
		res, err := stepper.Step()
		if err != nil {
			printErr(err)
			os.Exit(1)
		}
		line := fmt.Sprintf("[%d/%d] %s", res.Index+1, res.Total, res.Value.String())
		if res.Captured != nil {
			line += fmt.Sprintf(" => $%s", *res.Captured)
		}
		fmt.Println(line)
	}
}

// parseVars converts `--var key=value` flags into seed variables, using
// spf13/cast to infer number/bool types from the literal text (spec §6
// "variables: name → value — seed scope; value types inferred").
func parseVars(flags []string) (map[string]value.Value, error) {
	out := make(map[string]value.Value, len(flags))
	for _, f := range flags {
		key, raw, ok := strings.Cut(f, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --var %q, expected key=value", f)
		}
		out[key] = inferValue(raw)
	}
	return out, nil
}

func inferValue(raw string) value.Value {
	if b, err := cast.ToBoolE(raw); err == nil && (raw == "true" || raw == "false") {
		return value.Bool(b)
	}
	if n, err := cast.ToFloat64E(raw); err == nil {
		return value.Number(n)
	}
	return value.String(raw)
}

func printErr(err error) {
	if rerr, ok := err.(*rillerr.Error); ok {
		loc := ""
		if rerr.Location != nil {
			loc = fmt.Sprintf(" at %d:%d", rerr.Location.Line, rerr.Location.Column)
		}
		fmt.Fprintf(os.Stderr, "rill: [%s] %s%s\n", rerr.ErrorID, rerr.Message, loc)
		return
	}
	fmt.Fprintln(os.Stderr, "rill:", err.Error())
}
