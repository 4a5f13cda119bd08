package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrsr/rill/ast"
)

func mustParse(t *testing.T, src string) *ast.Script {
	t.Helper()
	script, err := Parse(src)
	require.NoError(t, err)
	require.NotNil(t, script)
	return script
}

func firstExprStmt(t *testing.T, script *ast.Script) ast.Expr {
	t.Helper()
	require.Len(t, script.Statements, 1)
	stmt, ok := script.Statements[0].(*ast.ExprStatement)
	require.True(t, ok, "expected *ast.ExprStatement, got %T", script.Statements[0])
	return stmt.Expr
}

func TestParseLiterals(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		check func(t *testing.T, e ast.Expr)
	}{
		{"number", "42", func(t *testing.T, e ast.Expr) {
			n, ok := e.(*ast.NumberLit)
			require.True(t, ok)
			assert.Equal(t, 42.0, n.Value)
		}},
		{"bool true", "true", func(t *testing.T, e ast.Expr) {
			b, ok := e.(*ast.BoolLit)
			require.True(t, ok)
			assert.True(t, b.Value)
		}},
		{"simple string", `"hi"`, func(t *testing.T, e ast.Expr) {
			s, ok := e.(*ast.StringLit)
			require.True(t, ok)
			require.Len(t, s.Parts, 1)
			assert.Equal(t, "hi", s.Parts[0].Literal)
		}},
		{"interpolated string", `"count: {n}"`, func(t *testing.T, e ast.Expr) {
			s, ok := e.(*ast.StringLit)
			require.True(t, ok)
			require.Len(t, s.Parts, 2)
			assert.Equal(t, "count: ", s.Parts[0].Literal)
			require.NotNil(t, s.Parts[1].Expr)
		}},
		{"list", "[1, 2, 3]", func(t *testing.T, e ast.Expr) {
			l, ok := e.(*ast.ListLit)
			require.True(t, ok)
			assert.Len(t, l.Elements, 3)
		}},
		{"empty list", "[]", func(t *testing.T, e ast.Expr) {
			l, ok := e.(*ast.ListLit)
			require.True(t, ok)
			assert.Empty(t, l.Elements)
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			script := mustParse(t, tc.input)
			tc.check(t, firstExprStmt(t, script))
		})
	}
}

func TestParseDictLiteral(t *testing.T) {
	script := mustParse(t, `[a: 1, "b": 2, 3: "three", true: false]`)
	d, ok := firstExprStmt(t, script).(*ast.DictLit)
	require.True(t, ok)
	require.Len(t, d.Entries, 4)

	assert.Equal(t, "a", d.Entries[0].Keys[0].Ident)
	require.NotNil(t, d.Entries[1].Keys[0].String)
	assert.Equal(t, "b", *d.Entries[1].Keys[0].String)
	require.NotNil(t, d.Entries[2].Keys[0].Number)
	assert.Equal(t, 3.0, *d.Entries[2].Keys[0].Number)
	require.NotNil(t, d.Entries[3].Keys[0].Bool)
	assert.True(t, *d.Entries[3].Keys[0].Bool)
}

func TestParseDictLiteralMultiKey(t *testing.T) {
	script := mustParse(t, `[["a", "b"]: 1]`)
	d, ok := firstExprStmt(t, script).(*ast.DictLit)
	require.True(t, ok)
	require.Len(t, d.Entries, 1)
	require.Len(t, d.Entries[0].Keys, 2)
	assert.Equal(t, "a", *d.Entries[0].Keys[0].String)
	assert.Equal(t, "b", *d.Entries[0].Keys[1].String)
}

// TestParseDictValueWithTypeAssertionColon guards against the key/value `:`
// separator being swallowed by postfix type-assertion parsing.
func TestParseDictValueWithTypeAssertionColon(t *testing.T) {
	script := mustParse(t, `[a: 1, b: 2]`)
	d, ok := firstExprStmt(t, script).(*ast.DictLit)
	require.True(t, ok)
	require.Len(t, d.Entries, 2)
	n0, ok := d.Entries[0].Value.(*ast.NumberLit)
	require.True(t, ok)
	assert.Equal(t, 1.0, n0.Value)
}

func TestParseDictKeyRejectsDictAndClosure(t *testing.T) {
	_, err := Parse(`[[x: 1]: "nope"]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RILL-P007")
	assert.Contains(t, err.Error(), "not dict")

	_, err = Parse(`[|x| $x: "nope"]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RILL-P007")
	assert.Contains(t, err.Error(), "not closure")
}

func TestParsePipeChain(t *testing.T) {
	script := mustParse(t, `1 -> double -> triple()`)
	chain, ok := firstExprStmt(t, script).(*ast.PipeChain)
	require.True(t, ok)
	require.Len(t, chain.Stages, 2)
	_, ok = chain.Stages[0].Target.(*ast.CallExpr)
	assert.True(t, ok)
	_, ok = chain.Stages[1].Target.(*ast.CallExpr)
	assert.True(t, ok)
}

func TestParseInlineCapture(t *testing.T) {
	script := mustParse(t, `1 -> double -> => $x`)
	chain, ok := firstExprStmt(t, script).(*ast.PipeChain)
	require.True(t, ok)
	require.Len(t, chain.Stages, 2)
	cap, ok := chain.Stages[1].Target.(*ast.InlineCapture)
	require.True(t, ok)
	assert.Equal(t, "x", cap.Name)
}

func TestParseTrailingCapture(t *testing.T) {
	script := mustParse(t, `"x" => $v`)
	cap, ok := firstExprStmt(t, script).(*ast.Capture)
	require.True(t, ok)
	assert.Equal(t, "v", cap.Name)
	_, ok = cap.Value.(*ast.StringLit)
	assert.True(t, ok)
}

func TestParseConditional(t *testing.T) {
	script := mustParse(t, `$ > 0 ? "pos" ! "non-pos"`)
	cond, ok := firstExprStmt(t, script).(*ast.Conditional)
	require.True(t, ok)
	require.NotNil(t, cond.Then)
	require.NotNil(t, cond.Else)
}

func TestParseWhileAndDoWhile(t *testing.T) {
	script := mustParse(t, `$ < 10 @ { $ + 1 }`)
	w, ok := firstExprStmt(t, script).(*ast.WhileLoop)
	require.True(t, ok)
	assert.NotNil(t, w.Cond)

	script = mustParse(t, `@ { $ + 1 } ? $ < 10`)
	d, ok := firstExprStmt(t, script).(*ast.DoWhileLoop)
	require.True(t, ok)
	assert.NotNil(t, d.Body)
}

func TestParseClosureLit(t *testing.T) {
	script := mustParse(t, `|x|($x > 0)`)
	cl, ok := firstExprStmt(t, script).(*ast.ClosureLit)
	require.True(t, ok)
	require.Len(t, cl.Params, 1)
	assert.Equal(t, "x", cl.Params[0].Name)
}

func TestParseClosureLitWithTypedDefault(t *testing.T) {
	script := mustParse(t, `|x: number = 0| $x`)
	cl, ok := firstExprStmt(t, script).(*ast.ClosureLit)
	require.True(t, ok)
	require.Len(t, cl.Params, 1)
	assert.Equal(t, "number", cl.Params[0].Type)
	require.NotNil(t, cl.Params[0].Default)
}

func TestParseAccessChain(t *testing.T) {
	script := mustParse(t, `$.field.[0].?maybe & number.^note.(a | b).method(1, 2)`)
	expr := firstExprStmt(t, script)
	mc, ok := expr.(*ast.MethodCall)
	require.True(t, ok)
	assert.Equal(t, "method", mc.Name)
	require.Len(t, mc.Args, 2)
}

func TestParseComputedAccess(t *testing.T) {
	script := mustParse(t, `$.($key)`)
	ca, ok := firstExprStmt(t, script).(*ast.ComputedAccess)
	require.True(t, ok)
	assert.NotNil(t, ca.KeyExpr)
}

func TestParseTypeAssertionAndCheck(t *testing.T) {
	script := mustParse(t, `$ :number`)
	ta, ok := firstExprStmt(t, script).(*ast.TypeAssertion)
	require.True(t, ok)
	assert.Equal(t, "number", ta.Type)

	script = mustParse(t, `$ :?number`)
	tc, ok := firstExprStmt(t, script).(*ast.TypeCheck)
	require.True(t, ok)
	assert.Equal(t, "number", tc.Type)
}

func TestParseDestructure(t *testing.T) {
	script := mustParse(t, `*<$a, _, name: $b, *<$c, $d>>`)
	de, ok := firstExprStmt(t, script).(*ast.DestructureExpr)
	require.True(t, ok)
	require.Len(t, de.Patterns, 4)
	assert.Equal(t, "a", de.Patterns[0].Name)
	assert.True(t, de.Patterns[1].Wildcard)
	assert.Equal(t, "name", de.Patterns[2].Key)
	assert.Equal(t, "b", de.Patterns[2].Name)
}

func TestParseSlice(t *testing.T) {
	testCases := []struct {
		name               string
		input              string
		wantStart, wantStop, wantStep bool
	}{
		{"full", "/<1:4:2>", true, true, true},
		{"start and stop", "/<1:4>", true, true, false},
		{"start only implied stop", "/<1:>", true, false, false},
		{"empty", "/<>", false, false, false},
		{"step only via double colon", "/<::-1>", false, false, true},
		{"start and step, no stop", "/<1::2>", true, false, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			script := mustParse(t, tc.input)
			s, ok := firstExprStmt(t, script).(*ast.SliceExpr)
			require.True(t, ok)
			assert.Equal(t, tc.wantStart, s.Start != nil)
			assert.Equal(t, tc.wantStop, s.Stop != nil)
			assert.Equal(t, tc.wantStep, s.Step != nil)
		})
	}
}

func TestParseAnnotatedStatement(t *testing.T) {
	script := mustParse(t, `^(step: "double", *meta) 1 -> double`)
	require.Len(t, script.Statements, 1)
	as, ok := script.Statements[0].(*ast.AnnotatedStatement)
	require.True(t, ok)
	require.Len(t, as.Annotations, 2)
	assert.Equal(t, "step", as.Annotations[0].Name)
	assert.NotNil(t, as.Annotations[1].Spread)
}

func TestParseTerminators(t *testing.T) {
	script := mustParse(t, "break")
	_, ok := firstExprStmt(t, script).(*ast.BreakExpr)
	assert.True(t, ok)

	script = mustParse(t, `return 1 + 1`)
	r, ok := firstExprStmt(t, script).(*ast.ReturnExpr)
	require.True(t, ok)
	assert.NotNil(t, r.Value)

	script = mustParse(t, `assert $ > 0, "must be positive"`)
	a, ok := firstExprStmt(t, script).(*ast.AssertExpr)
	require.True(t, ok)
	assert.NotNil(t, a.Message)

	script = mustParse(t, `error "boom"`)
	_, ok = firstExprStmt(t, script).(*ast.ErrorExpr)
	assert.True(t, ok)

	script = mustParse(t, "pass")
	_, ok = firstExprStmt(t, script).(*ast.PassExpr)
	assert.True(t, ok)
}

func TestParseNamespacedCall(t *testing.T) {
	script := mustParse(t, `http::get("example")`)
	c, ok := firstExprStmt(t, script).(*ast.CallExpr)
	require.True(t, ok)
	assert.Equal(t, []string{"http"}, c.Namespace)
	assert.Equal(t, "get", c.Name)
}

func TestParseInvokeExpr(t *testing.T) {
	script := mustParse(t, `$fn(1, 2)`)
	inv, ok := firstExprStmt(t, script).(*ast.InvokeExpr)
	require.True(t, ok)
	callee, ok := inv.Callee.(*ast.VarRef)
	require.True(t, ok)
	assert.Equal(t, "$fn", callee.Name)
}

func TestParseDefaultOp(t *testing.T) {
	script := mustParse(t, `"z" -> [a: 1, b: 2] ?? 0`)
	chain, ok := firstExprStmt(t, script).(*ast.PipeChain)
	require.True(t, ok)
	require.Len(t, chain.Stages, 1)
	def, ok := chain.Stages[0].Target.(*ast.DefaultExpr)
	require.True(t, ok)
	_, ok = def.Target.(*ast.DictLit)
	assert.True(t, ok)
	n, ok := def.Default.(*ast.NumberLit)
	require.True(t, ok)
	assert.Equal(t, 0.0, n.Value)
}

func TestParseCollectionMethodKeywords(t *testing.T) {
	for _, name := range []string{"each", "map", "fold", "filter"} {
		script := mustParse(t, `$ -> $.`+name+`(|x| x)`)
		chain, ok := firstExprStmt(t, script).(*ast.PipeChain)
		require.True(t, ok)
		require.Len(t, chain.Stages, 1)
		mc, ok := chain.Stages[0].Target.(*ast.MethodCall)
		require.True(t, ok)
		assert.Equal(t, name, mc.Name)
	}
}

func TestParseFrontmatterPassthrough(t *testing.T) {
	script := mustParse(t, "---\nname: demo\n---\n1")
	require.NotNil(t, script.Frontmatter)
	assert.Equal(t, "name: demo", *script.Frontmatter)
}

func TestParseErrorMessages(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"unclosed list", "[1, 2", "RILL-P001"},
		{"unterminated call args", "foo(", "RILL-P004"},
		{"bad ellipsis", "foo(..., 1)", "RILL-P003"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestParseRecoveryMode(t *testing.T) {
	src := "1 -> double\n)bad(\n2 -> triple"
	script, errs := ParseRecover(src)
	require.NotNil(t, script)
	require.NotEmpty(t, errs)

	var sawRecovery bool
	for _, stmt := range script.Statements {
		if _, ok := stmt.(*ast.RecoveryError); ok {
			sawRecovery = true
		}
	}
	assert.True(t, sawRecovery, "expected a RecoveryError placeholder among statements")
}
