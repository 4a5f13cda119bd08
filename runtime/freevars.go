package runtime

import "github.com/rcrsr/rill/ast"

// freeVarNames walks body collecting every named-variable reference (a
// VarRef whose Name is "$something", stripped of its leading "$") not in
// bound, used to snapshot a script closure's captured free variables for
// structural equality (spec §3 "script callables compare structurally on
// parameters, body AST, and captured values"). A nested closure's own
// parameters are added to its bound set before its body is walked, so they
// never appear free. Any false-positive entry would be harmless, since
// equality only uses this list to decide which captured values to compare,
// and such an entry simply compares a value that was never actually read.
func freeVarNames(body ast.Expr, bound map[string]bool) []string {
	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if !bound[name] && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	var walkExpr func(e ast.Expr)
	var walkStmt func(s ast.Statement)

	walkExprs := func(es []ast.Expr) {
		for _, e := range es {
			walkExpr(e)
		}
	}
	walkStmts := func(ss []ast.Statement) {
		for _, s := range ss {
			walkStmt(s)
		}
	}

	walkStmt = func(s ast.Statement) {
		switch n := s.(type) {
		case *ast.ExprStatement:
			walkExpr(n.Expr)
		case *ast.AnnotatedStatement:
			for _, a := range n.Annotations {
				if a.Spread != nil {
					walkExpr(a.Spread)
				}
				if a.Value != nil {
					walkExpr(a.Value)
				}
			}
			walkStmt(n.Inner)
		case *ast.RecoveryError:
			// nothing to walk
		}
	}

	walkExpr = func(e ast.Expr) {
		if e == nil {
			return
		}
		switch n := e.(type) {
		case *ast.NumberLit, *ast.BoolLit:
		case *ast.StringLit:
			for _, p := range n.Parts {
				if p.Expr != nil {
					walkExpr(p.Expr)
				}
			}
		case *ast.ListLit:
			walkExprs(n.Elements)
		case *ast.DictLit:
			for _, ent := range n.Entries {
				walkExpr(ent.Value)
			}
		case *ast.VarRef:
			if len(n.Name) > 1 && n.Name[0] == '$' {
				add(n.Name[1:])
			}
		case *ast.SpreadExpr:
			walkExpr(n.Inner)
		case *ast.ClosureLit:
			inner := map[string]bool{}
			for k := range bound {
				inner[k] = true
			}
			for _, p := range n.Params {
				inner[p.Name] = true
				if p.Default != nil {
					walkExpr(p.Default)
				}
			}
			for _, name := range freeVarNames(n.Body, inner) {
				add(name)
			}
		case *ast.FieldAccess:
			walkExpr(n.Target)
		case *ast.IndexAccess:
			walkExpr(n.Target)
			walkExpr(n.Index)
		case *ast.ExistenceCheck:
			walkExpr(n.Target)
		case *ast.AnnotAccess:
			walkExpr(n.Target)
		case *ast.Alternatives:
			walkExpr(n.Target)
			walkExprs(n.Options)
		case *ast.ComputedAccess:
			walkExpr(n.Target)
			walkExpr(n.KeyExpr)
		case *ast.BlockAccess:
			walkExpr(n.Target)
			walkExpr(n.Body)
		case *ast.MethodCall:
			walkExpr(n.Target)
			walkExprs(n.Args)
		case *ast.CallExpr:
			walkExprs(n.Args)
		case *ast.InvokeExpr:
			walkExpr(n.Callee)
			walkExprs(n.Args)
		case *ast.Block:
			walkStmts(n.Statements)
		case *ast.Conditional:
			walkExpr(n.Cond)
			walkExpr(n.Then)
			walkExpr(n.Else)
		case *ast.WhileLoop:
			walkExpr(n.Cond)
			walkExpr(n.Body)
		case *ast.DoWhileLoop:
			walkExpr(n.Body)
			walkExpr(n.Cond)
		case *ast.PipeChain:
			walkExpr(n.Head)
			for _, st := range n.Stages {
				walkExpr(st.Target)
			}
		case *ast.InlineCapture:
		case *ast.Capture:
			walkExpr(n.Value)
		case *ast.BinaryExpr:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ast.UnaryExpr:
			walkExpr(n.Operand)
		case *ast.TypeAssertion:
			walkExpr(n.Target)
		case *ast.TypeCheck:
			walkExpr(n.Target)
		case *ast.DestructureExpr:
			var walkPattern func(p ast.DestructurePattern)
			walkPattern = func(p ast.DestructurePattern) {
				if p.Nested != nil {
					for _, np := range p.Nested {
						walkPattern(np)
					}
				}
			}
			for _, p := range n.Patterns {
				walkPattern(p)
			}
		case *ast.SliceExpr:
			walkExpr(n.Start)
			walkExpr(n.Stop)
			walkExpr(n.Step)
		case *ast.BreakExpr:
			walkExpr(n.Value)
		case *ast.ReturnExpr:
			walkExpr(n.Value)
		case *ast.AssertExpr:
			walkExpr(n.Cond)
			walkExpr(n.Message)
		case *ast.ErrorExpr:
			walkExpr(n.Message)
		case *ast.PassExpr:
		case *ast.DefaultExpr:
			walkExpr(n.Target)
			walkExpr(n.Default)
		case *ast.GroupExpr:
			walkExpr(n.Inner)
		}
	}

	walkExpr(body)
	return out
}
