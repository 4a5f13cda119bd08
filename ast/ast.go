// Package ast defines Rill's typed abstract syntax tree (spec §4.2).
//
// Every node type is a small struct implementing a narrow interface: the
// interface declares only what the evaluator actually needs (a span,
// mostly), and concrete node structs hold the data. There is no single
// generic "Node{Kind, ...}" struct — that would hide exactly the shape
// information the evaluator's type switches rely on.
package ast

import "github.com/rcrsr/rill/token"

// Node is implemented by every AST node; it exposes the node's source span
// for error reporting (spec §3 Invariants: "every AST node carries a span").
type Node interface {
	Span() token.Span
}

// Script is the root of a parsed program (spec §4.2).
type Script struct {
	Frontmatter *string // opaque text, nil if absent (spec §6, §9)
	Statements  []Statement
	SpanValue   token.Span
}

func (s *Script) Span() token.Span { return s.SpanValue }

// Statement is any top-level or block-level statement: an expression
// (almost always a pipe chain), optionally wrapped in annotations, or a
// RecoveryError placeholder inserted by the parser's recovery mode.
type Statement interface {
	Node
	statementNode()
}

// ExprStatement is a bare expression used as a statement.
type ExprStatement struct {
	Expr      Expr
	SpanValue token.Span
}

func (s *ExprStatement) Span() token.Span { return s.SpanValue }
func (*ExprStatement) statementNode()     {}

// Annotation is one `name: value` or spread `*expr` entry inside an
// annotation prefix `^(name: value, *expr, …)`.
type Annotation struct {
	Name      string // empty when Spread is set
	Spread    Expr   // non-nil for `*expr` entries
	Value     Expr   // nil when Spread is set
	SpanValue token.Span
}

func (a Annotation) Span() token.Span { return a.SpanValue }

// AnnotatedStatement decorates a single statement with a `^(...)` prefix.
type AnnotatedStatement struct {
	Annotations []Annotation
	Inner       Statement
	SpanValue   token.Span
}

func (s *AnnotatedStatement) Span() token.Span { return s.SpanValue }
func (*AnnotatedStatement) statementNode()     {}

// RecoveryError is a placeholder the parser inserts in recovery mode
// instead of aborting (spec §4.2 "Recovery mode"). Evaluating one is itself
// a runtime error (spec §7).
type RecoveryError struct {
	Message   string
	Text      string // the raw, unparsed source text that was skipped
	SpanValue token.Span
}

func (s *RecoveryError) Span() token.Span { return s.SpanValue }
func (*RecoveryError) statementNode()     {}

// Expr is any expression node.
type Expr interface {
	Node
	exprNode()
}

// ---- Literals ----

type NumberLit struct {
	Value     float64
	SpanValue token.Span
}

func (n *NumberLit) Span() token.Span { return n.SpanValue }
func (*NumberLit) exprNode()          {}

// StringPart is either a literal run of text or an interpolated expression
// inside a string/template literal.
type StringPart struct {
	Literal string
	Expr    Expr // non-nil for {…} interpolation segments
}

type StringLit struct {
	Parts     []StringPart
	Triple    bool
	SpanValue token.Span
}

func (s *StringLit) Span() token.Span { return s.SpanValue }
func (*StringLit) exprNode()          {}

type BoolLit struct {
	Value     bool
	SpanValue token.Span
}

func (b *BoolLit) Span() token.Span { return b.SpanValue }
func (*BoolLit) exprNode()          {}

// ListLit is `[a, b, c]`.
type ListLit struct {
	Elements  []Expr // SpreadExpr elements splice in-place
	SpanValue token.Span
}

func (l *ListLit) Span() token.Span { return l.SpanValue }
func (*ListLit) exprNode()          {}

// DictKey is one key in a DictLit entry; multiple keys on one entry expand
// to a single logical entry reachable by any of them (spec §3 invariants).
type DictKey struct {
	Ident  string  // identifier-form key, e.g. `a:`
	String *string // string-literal key
	Number *float64
	Bool   *bool
}

type DictEntry struct {
	Keys      []DictKey // >1 for multi-key entries `["a","b"]: v`
	Value     Expr
	SpanValue token.Span
}

// DictLit is `[a: 1, b: 2]`. Rill reuses `[...]` for both list and dict
// literals, disambiguated by whether entries carry a key (spec §4.2).
type DictLit struct {
	Entries   []DictEntry
	SpanValue token.Span
}

func (d *DictLit) Span() token.Span { return d.SpanValue }
func (*DictLit) exprNode()          {}

// VarRef is a bare variable reference, or the pipe variable itself when
// Name == "$".
type VarRef struct {
	Name      string
	SpanValue token.Span
}

func (v *VarRef) Span() token.Span { return v.SpanValue }
func (*VarRef) exprNode()          {}

// SpreadExpr is `*expr`, the spread operator (spec §3 "tuple... produced
// only by the spread operator").
type SpreadExpr struct {
	Inner     Expr
	SpanValue token.Span
}

func (s *SpreadExpr) Span() token.Span { return s.SpanValue }
func (*SpreadExpr) exprNode()          {}

// ---- Closures ----

type Param struct {
	Name      string
	Type      string // built-in type name, empty if unconstrained
	Default   Expr   // nil if no default
	SpanValue token.Span
}

// ClosureLit is `|x, y| body` or `|x: number = 0| body`.
type ClosureLit struct {
	Params     []Param
	Body       Expr
	ReturnType string
	SpanValue  token.Span
}

func (c *ClosureLit) Span() token.Span { return c.SpanValue }
func (*ClosureLit) exprNode()          {}

// ---- Access chains ----

// FieldAccess is `.field`.
type FieldAccess struct {
	Target    Expr
	Name      string
	SpanValue token.Span
}

func (f *FieldAccess) Span() token.Span { return f.SpanValue }
func (*FieldAccess) exprNode()          {}

// IndexAccess is `.[expr]`.
type IndexAccess struct {
	Target    Expr
	Index     Expr
	SpanValue token.Span
}

func (i *IndexAccess) Span() token.Span { return i.SpanValue }
func (*IndexAccess) exprNode()          {}

// ExistenceCheck is `.?field` or `.?field & type`.
type ExistenceCheck struct {
	Target    Expr
	Name      string
	GuardType string // optional type name after `&`, empty if absent
	SpanValue token.Span
}

func (e *ExistenceCheck) Span() token.Span { return e.SpanValue }
func (*ExistenceCheck) exprNode()          {}

// AnnotAccess is `.^key`.
type AnnotAccess struct {
	Target    Expr
	Key       string
	SpanValue token.Span
}

func (a *AnnotAccess) Span() token.Span { return a.SpanValue }
func (*AnnotAccess) exprNode()          {}

// Alternatives is `.(a | b | c)`: first present wins.
type Alternatives struct {
	Target    Expr
	Options   []Expr
	SpanValue token.Span
}

func (a *Alternatives) Span() token.Span { return a.SpanValue }
func (*Alternatives) exprNode()          {}

// ComputedAccess is `.($expr)`.
type ComputedAccess struct {
	Target    Expr
	KeyExpr   Expr
	SpanValue token.Span
}

func (c *ComputedAccess) Span() token.Span { return c.SpanValue }
func (*ComputedAccess) exprNode()          {}

// BlockAccess is `.{ block }`, a block used as an accessor.
type BlockAccess struct {
	Target    Expr
	Body      *Block
	SpanValue token.Span
}

func (b *BlockAccess) Span() token.Span { return b.SpanValue }
func (*BlockAccess) exprNode()          {}

// MethodCall terminates an access chain with `()`  — spec §4.2: "Access
// chains terminate at a method call with parentheses (because that is a
// pipe target, not a property)".
type MethodCall struct {
	Target    Expr
	Name      string
	Args      []Expr
	SpanValue token.Span
}

func (m *MethodCall) Span() token.Span { return m.SpanValue }
func (*MethodCall) exprNode()          {}

// ---- Calls & invocation ----

// CallExpr invokes a bare function name or namespaced `a::b::c` host call.
type CallExpr struct {
	Namespace []string // e.g. ["a","b"] for a::b::c, empty for bare `c`
	Name      string
	Args      []Expr
	SpanValue token.Span
}

func (c *CallExpr) Span() token.Span { return c.SpanValue }
func (*CallExpr) exprNode()          {}

// InvokeExpr is `$()` or `$name()`: invoke the current `$` (or a named
// variable) as a callable.
type InvokeExpr struct {
	Callee    Expr // VarRef for $ or $name
	Args      []Expr
	SpanValue token.Span
}

func (i *InvokeExpr) Span() token.Span { return i.SpanValue }
func (*InvokeExpr) exprNode()          {}

// ---- Blocks, conditionals, loops ----

// Block is `{ … }`, executed with $ inherited but captures isolated
// (spec §3 "Scope").
type Block struct {
	Statements []Statement
	SpanValue  token.Span
}

func (b *Block) Span() token.Span { return b.SpanValue }
func (*Block) exprNode()          {}

// Conditional is `cond ? then ! else`, `cond ? then`, or the braced forms.
type Conditional struct {
	Cond      Expr
	Then      Expr
	Else      Expr // nil if no `!` branch
	SpanValue token.Span
}

func (c *Conditional) Span() token.Span { return c.SpanValue }
func (*Conditional) exprNode()          {}

// WhileLoop is `cond @ body` (spec §4.5).
type WhileLoop struct {
	Cond      Expr
	Body      Expr
	SpanValue token.Span
}

func (w *WhileLoop) Span() token.Span { return w.SpanValue }
func (*WhileLoop) exprNode()          {}

// DoWhileLoop is `@ body ? cond` (spec §4.5).
type DoWhileLoop struct {
	Body      Expr
	Cond      Expr
	SpanValue token.Span
}

func (d *DoWhileLoop) Span() token.Span { return d.SpanValue }
func (*DoWhileLoop) exprNode()          {}

// ---- Pipe chains ----

// PipeStage is one `-> target` segment of a pipe chain.
type PipeStage struct {
	Target    Expr
	SpanValue token.Span
}

// PipeChain is `head -> stage -> stage -> …` (spec §4.2/§4.4).
type PipeChain struct {
	Head      Expr
	Stages    []PipeStage
	SpanValue token.Span
}

func (p *PipeChain) Span() token.Span { return p.SpanValue }
func (*PipeChain) exprNode()          {}

// InlineCapture is a pipe-stage-only form `=> $name` (or `:> $name`): bind
// the current pipe value to name, then forward it unchanged.
type InlineCapture struct {
	Name      string
	SpanValue token.Span
}

func (c *InlineCapture) Span() token.Span { return c.SpanValue }
func (*InlineCapture) exprNode()          {}

// Capture is the non-pipe-stage form `expr => $name` / `expr :> $name`: the
// preceding expression's value is evaluated and bound.
type Capture struct {
	Value     Expr
	Name      string
	SpanValue token.Span
}

func (c *Capture) Span() token.Span { return c.SpanValue }
func (*Capture) exprNode()          {}

// ---- Operators ----

type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
	OpEq  BinaryOp = "=="
	OpNe  BinaryOp = "!="
	OpLt  BinaryOp = "<"
	OpGt  BinaryOp = ">"
	OpLe  BinaryOp = "<="
	OpGe  BinaryOp = ">="
	OpAnd BinaryOp = "&&"
	OpOr  BinaryOp = "||"
)

type BinaryExpr struct {
	Op        BinaryOp
	Left      Expr
	Right     Expr
	SpanValue token.Span
}

func (b *BinaryExpr) Span() token.Span { return b.SpanValue }
func (*BinaryExpr) exprNode()          {}

type UnaryOp string

const (
	OpNot    UnaryOp = "!"
	OpNegate UnaryOp = "-"
)

type UnaryExpr struct {
	Op        UnaryOp
	Operand   Expr
	SpanValue token.Span
}

func (u *UnaryExpr) Span() token.Span { return u.SpanValue }
func (*UnaryExpr) exprNode()          {}

// ---- Type assertions ----

// TypeAssertion is `expr :T`.
type TypeAssertion struct {
	Target    Expr
	Type      string
	SpanValue token.Span
}

func (t *TypeAssertion) Span() token.Span { return t.SpanValue }
func (*TypeAssertion) exprNode()          {}

// TypeCheck is `expr :?T`.
type TypeCheck struct {
	Target    Expr
	Type      string
	SpanValue token.Span
}

func (t *TypeCheck) Span() token.Span { return t.SpanValue }
func (*TypeCheck) exprNode()          {}

// ---- Destructure & slice ----

// DestructurePattern is one element of `*< … >`.
type DestructurePattern struct {
	Wildcard  bool // `_`
	Name      string
	Type      string        // optional `:type` constraint
	Nested    []DestructurePattern // non-nil for nested `*<…>`
	Key       string        // non-empty when matching a dict by key: `name: $var`
	SpanValue token.Span
}

// DestructureExpr is `expr -> *<patterns>` represented as a pipe target; we
// model the pattern list itself as its own expr so it can also appear
// standalone where the grammar allows.
type DestructureExpr struct {
	Patterns  []DestructurePattern
	SpanValue token.Span
}

func (d *DestructureExpr) Span() token.Span { return d.SpanValue }
func (*DestructureExpr) exprNode()          {}

// SliceExpr is `/< start : stop : step >`. Nil fields mean omitted.
type SliceExpr struct {
	Start     Expr
	Stop      Expr
	Step      Expr
	SpanValue token.Span
}

func (s *SliceExpr) Span() token.Span { return s.SpanValue }
func (*SliceExpr) exprNode()          {}

// ---- Terminators ----

// BreakExpr is `break` or `value -> break`.
type BreakExpr struct {
	Value     Expr // nil if bare `break`
	SpanValue token.Span
}

func (b *BreakExpr) Span() token.Span { return b.SpanValue }
func (*BreakExpr) exprNode()          {}

// ReturnExpr is `return` or `value -> return`.
type ReturnExpr struct {
	Value     Expr
	SpanValue token.Span
}

func (r *ReturnExpr) Span() token.Span { return r.SpanValue }
func (*ReturnExpr) exprNode()          {}

// AssertExpr is `assert cond` or `assert cond, "message"`.
type AssertExpr struct {
	Cond      Expr
	Message   Expr // nil if no message
	SpanValue token.Span
}

func (a *AssertExpr) Span() token.Span { return a.SpanValue }
func (*AssertExpr) exprNode()          {}

// ErrorExpr is `error "message"`.
type ErrorExpr struct {
	Message   Expr
	SpanValue token.Span
}

func (e *ErrorExpr) Span() token.Span { return e.SpanValue }
func (*ErrorExpr) exprNode()          {}

// PassExpr is `pass`, a no-op pipe target that forwards $ unchanged.
type PassExpr struct {
	SpanValue token.Span
}

func (p *PassExpr) Span() token.Span { return p.SpanValue }
func (*PassExpr) exprNode()          {}

// DefaultExpr is `expr ?? default`: supplies a fallback value when expr
// fails with a missing-dict-field error or a dict-dispatch pipe target has
// no matching key (spec §4.4 "optional trailing `?? default`"; §4.4 "`??` supplies a
// default when a property is missing or when a dict-dispatch has no
// match"). Default values are not subject to closure auto-invocation.
type DefaultExpr struct {
	Target    Expr
	Default   Expr
	SpanValue token.Span
}

func (d *DefaultExpr) Span() token.Span { return d.SpanValue }
func (*DefaultExpr) exprNode()          {}

// GroupExpr is a parenthesized expression, kept as its own node so spans and
// precedence remain explicit rather than silently collapsing to the inner
// expression.
type GroupExpr struct {
	Inner     Expr
	SpanValue token.Span
}

func (g *GroupExpr) Span() token.Span { return g.SpanValue }
func (*GroupExpr) exprNode()          {}
