// Package parser implements Rill's recursive-descent parser (spec §4.2): it
// consumes the lexer's token stream and builds the typed AST defined by
// package ast. It can run in strict mode (the first error aborts) or
// recovery mode, where an error is recorded and the parser resynchronizes at
// the next statement boundary instead of aborting (spec §4.2 "Recovery
// mode").
package parser

import (
	"strconv"
	"strings"

	"github.com/rcrsr/rill/ast"
	"github.com/rcrsr/rill/lexer"
	"github.com/rcrsr/rill/rillerr"
	"github.com/rcrsr/rill/token"
)

// Parse scans and parses source in strict mode: the first lexer or parser
// error aborts and is returned.
func Parse(source string) (*ast.Script, error) {
	toks, fm, err := scan(source)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	script, err := p.parseScript(fm)
	if err != nil {
		return nil, err
	}
	return script, nil
}

// ParseRecover scans and parses source in recovery mode: parse errors are
// collected and represented as ast.RecoveryError placeholders in the
// statement list instead of aborting. A lexer error still aborts immediately
// (the lexer itself has no recovery mode, per spec §4.2).
func ParseRecover(source string) (*ast.Script, []*rillerr.Error) {
	toks, fm, err := scan(source)
	if err != nil {
		rerr, ok := err.(*rillerr.Error)
		if !ok {
			rerr = rillerr.New("RILL-L000", err.Error())
		}
		return nil, []*rillerr.Error{rerr}
	}
	p := &parser{toks: toks, recovery: true}
	script, _ := p.parseScript(fm)
	return script, p.errors
}

func scan(source string) (toks []token.Token, frontmatter *string, err error) {
	l := lexer.New(source)
	toks, err = l.Tokens()
	if err != nil {
		return nil, nil, err
	}
	if fm, ok := l.Frontmatter(); ok {
		frontmatter = &fm
	}
	return toks, frontmatter, nil
}

type parser struct {
	toks []token.Token
	pos  int

	recovery bool
	errors   []*rillerr.Error
}

// ---- token stream primitives ----

func (p *parser) peek() token.Token { return p.toks[p.pos] }

func (p *parser) peekAt(n int) token.Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1] // EOF
	}
	return p.toks[idx]
}

func (p *parser) atEnd() bool { return p.peek().Kind == token.EOF }

func (p *parser) check(k token.Kind) bool { return p.peek().Kind == k }

func (p *parser) checkAny(ks ...token.Kind) bool {
	for _, k := range ks {
		if p.check(k) {
			return true
		}
	}
	return false
}

func (p *parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) match(k token.Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(k token.Kind, message string) (token.Token, error) {
	if p.check(k) {
		return p.advance(), nil
	}
	return token.Token{}, p.errorAt(p.peek().Span.Start, "RILL-P001", message)
}

func (p *parser) errorAt(pos token.Position, id, message string) *rillerr.Error {
	return rillerr.New(id, message).At(pos)
}

func span(start, end token.Position) token.Span { return token.Span{Start: start, End: end} }

func (p *parser) skipNewlines() {
	for p.check(token.Newline) {
		p.advance()
	}
}

// ---- script & statements ----

func (p *parser) parseScript(frontmatter *string) (*ast.Script, error) {
	start := p.peek().Span.Start
	p.skipNewlines()
	stmts, err := p.parseStatements(token.EOF)
	if err != nil {
		return nil, err
	}
	return &ast.Script{
		Frontmatter: frontmatter,
		Statements:  stmts,
		SpanValue:   span(start, p.peek().Span.End),
	}, nil
}

// parseStatements parses statements until a token of kind terminator is
// reached (without consuming it), skipping separating newlines. In recovery
// mode a failing statement becomes a RecoveryError instead of aborting.
func (p *parser) parseStatements(terminator token.Kind) ([]ast.Statement, error) {
	var stmts []ast.Statement
	p.skipNewlines()
	for !p.atEnd() && !p.check(terminator) {
		stmt, err := p.parseStatement()
		if err != nil {
			if !p.recovery {
				return nil, err
			}
			rerr, ok := err.(*rillerr.Error)
			if !ok {
				rerr = rillerr.New("RILL-P000", err.Error())
			}
			p.errors = append(p.errors, rerr)
			stmts = append(stmts, p.recoverStatement(rerr))
			p.skipNewlines()
			continue
		}
		stmts = append(stmts, stmt)
		if !p.atEnd() && !p.check(terminator) {
			if _, err := p.expect(token.Newline, "Expected newline or end of block after statement"); err != nil {
				if !p.recovery {
					return nil, err
				}
				rerr := err.(*rillerr.Error)
				p.errors = append(p.errors, rerr)
			}
		}
		p.skipNewlines()
	}
	return stmts, nil
}

// recoverStatement records the raw skipped text of the failing statement and
// advances past it to the next newline (spec §4.2 "Recovery mode").
func (p *parser) recoverStatement(rerr *rillerr.Error) *ast.RecoveryError {
	start := p.peek().Span.Start
	var text strings.Builder
	for !p.atEnd() && !p.check(token.Newline) {
		text.WriteString(p.advance().Text)
		text.WriteByte(' ')
	}
	end := p.peek().Span.Start
	return &ast.RecoveryError{
		Message:   rerr.Message,
		Text:      strings.TrimSpace(text.String()),
		SpanValue: span(start, end),
	}
}

func (p *parser) parseStatement() (ast.Statement, error) {
	start := p.peek().Span.Start
	if p.check(token.Caret) {
		anns, err := p.parseAnnotations()
		if err != nil {
			return nil, err
		}
		inner, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		return &ast.AnnotatedStatement{
			Annotations: anns,
			Inner:       inner,
			SpanValue:   span(start, inner.Span().End),
		}, nil
	}

	expr, err := p.parseExprStatement()
	if err != nil {
		return nil, err
	}
	return &ast.ExprStatement{Expr: expr, SpanValue: span(start, expr.Span().End)}, nil
}

// parseAnnotations parses the `^(name: value, *expr, …)` prefix decorating a
// single statement (spec §4.2).
func (p *parser) parseAnnotations() ([]ast.Annotation, error) {
	p.advance() // '^'
	if _, err := p.expect(token.LParen, "Expected `(` after `^`"); err != nil {
		return nil, err
	}
	var anns []ast.Annotation
	p.skipNewlines()
	for !p.check(token.RParen) {
		start := p.peek().Span.Start
		if p.check(token.Star) {
			p.advance()
			inner, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			anns = append(anns, ast.Annotation{Spread: inner, SpanValue: span(start, inner.Span().End)})
		} else {
			name, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.Colon, "Expected `:` after annotation name"); err != nil {
				return nil, err
			}
			value, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			anns = append(anns, ast.Annotation{Name: name, Value: value, SpanValue: span(start, value.Span().End)})
		}
		p.skipNewlines()
		if !p.match(token.Comma) {
			break
		}
		p.skipNewlines()
	}
	if _, err := p.expect(token.RParen, "Expected `)` to close annotation list"); err != nil {
		return nil, err
	}
	return anns, nil
}

// parseExprStatement parses a pipe chain and, if followed by a trailing
// capture operator, wraps it in a Capture node (the non-pipe-stage form of
// capture, spec §4.2 "Capture ... expr => $name").
func (p *parser) parseExprStatement() (ast.Expr, error) {
	e, err := p.parsePipeChain()
	if err != nil {
		return nil, err
	}
	if p.check(token.CaptureArrow) || p.check(token.CaptureColon) {
		p.advance()
		name, err := p.expectDollarName()
		if err != nil {
			return nil, err
		}
		e = &ast.Capture{Value: e, Name: name, SpanValue: span(e.Span().Start, p.peekAt(-1).Span.End)}
	}
	return e, nil
}

// ---- pipe chains ----

func (p *parser) parsePipeChain() (ast.Expr, error) {
	head, err := p.parseCondOrLoop()
	if err != nil {
		return nil, err
	}
	var stages []ast.PipeStage
	for p.check(token.Arrow) {
		arrowStart := p.peek().Span.Start
		p.advance()
		target, err := p.parsePipeTarget()
		if err != nil {
			return nil, err
		}
		stages = append(stages, ast.PipeStage{Target: target, SpanValue: span(arrowStart, target.Span().End)})
	}
	if len(stages) == 0 {
		return head, nil
	}
	return &ast.PipeChain{
		Head:      head,
		Stages:    stages,
		SpanValue: span(head.Span().Start, stages[len(stages)-1].SpanValue.End),
	}, nil
}

// parsePipeTarget parses one `-> target` segment. Most target kinds (method
// calls, bare/namespaced function calls, invocation, blocks, conditionals,
// loops, closures, dict dispatch tables, grouped expressions) are ordinary
// expressions and fall through to the normal precedence chain; pipe-stage-only
// syntax is the inline-capture form `=> $name` and a bare identifier with no
// call parens (`-> double`), which is turned into a zero-argument call.
func (p *parser) parsePipeTarget() (ast.Expr, error) {
	if p.check(token.CaptureArrow) || p.check(token.CaptureColon) {
		start := p.peek().Span.Start
		p.advance()
		name, err := p.expectDollarName()
		if err != nil {
			return nil, err
		}
		return &ast.InlineCapture{Name: name, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
	}
	target, err := p.parseCondOrLoop()
	if err != nil {
		return nil, err
	}
	if ref, ok := target.(*ast.VarRef); ok && !strings.HasPrefix(ref.Name, "$") {
		return &ast.CallExpr{Name: ref.Name, SpanValue: ref.SpanValue}, nil
	}
	return target, nil
}

// ---- conditionals & loops ----

func (p *parser) parseCondOrLoop() (ast.Expr, error) { return p.parseCondOrLoopGuarded(true) }

// parseCondOrLoopGuarded threads allowColon down into its tail position (the
// final branch/cond parsed), since that tail can itself be the unterminated
// end of a closure body sitting at a tentative dict-key/slice-field boundary
// — see parseOrGuarded.
func (p *parser) parseCondOrLoopGuarded(allowColon bool) (ast.Expr, error) {
	if p.check(token.At) {
		start := p.peek().Span.Start
		p.advance()
		body, err := p.parseBranch()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Question, "Expected `?` after do-while body"); err != nil {
			return nil, err
		}
		cond, err := p.parseOrGuarded(allowColon)
		if err != nil {
			return nil, err
		}
		return &ast.DoWhileLoop{Body: body, Cond: cond, SpanValue: span(start, cond.Span().End)}, nil
	}

	cond, err := p.parseOrGuarded(allowColon)
	if err != nil {
		return nil, err
	}
	switch {
	case p.check(token.Question):
		p.advance()
		then, err := p.parseBranchGuarded(allowColon)
		if err != nil {
			return nil, err
		}
		var elseBranch ast.Expr
		if p.check(token.Bang) {
			p.advance()
			elseBranch, err = p.parseBranchGuarded(allowColon)
			if err != nil {
				return nil, err
			}
		}
		end := then.Span().End
		if elseBranch != nil {
			end = elseBranch.Span().End
		}
		return &ast.Conditional{Cond: cond, Then: then, Else: elseBranch, SpanValue: span(cond.Span().Start, end)}, nil
	case p.check(token.At):
		p.advance()
		body, err := p.parseBranchGuarded(allowColon)
		if err != nil {
			return nil, err
		}
		return &ast.WhileLoop{Cond: cond, Body: body, SpanValue: span(cond.Span().Start, body.Span().End)}, nil
	default:
		return cond, nil
	}
}

// parseBranch parses a conditional/loop body: a brace block or a nested
// expression (allowing chained conditionals like `a ? b ? c ! d ! e`).
func (p *parser) parseBranch() (ast.Expr, error) { return p.parseBranchGuarded(true) }

func (p *parser) parseBranchGuarded(allowColon bool) (ast.Expr, error) {
	if p.check(token.LBrace) {
		return p.parseBlock()
	}
	return p.parseCondOrLoopGuarded(allowColon)
}

func (p *parser) parseBlock() (*ast.Block, error) {
	start := p.peek().Span.Start
	p.advance() // '{'
	p.skipNewlines()
	stmts, err := p.parseStatements(token.RBrace)
	if err != nil {
		return nil, err
	}
	end, err := p.expect(token.RBrace, "Expected `}` to close block")
	if err != nil {
		return nil, err
	}
	return &ast.Block{Statements: stmts, SpanValue: span(start, end.Span.End)}, nil
}

// ---- operator precedence chain ----
// pipe -> or -> and -> comparison -> additive -> multiplicative -> unary -> postfix -> primary

func (p *parser) parseOr() (ast.Expr, error) { return p.parseOrGuarded(true) }

// parseOrGuarded is parseOr with control over whether a trailing `:type`
// suffix may be consumed as a type assertion/check. allowColon is false only
// while tentatively parsing a dict-literal key candidate (parseListOrDictLit),
// where a following `:` instead separates the key from its value and must
// not be swallowed by postfix type-assertion parsing.
func (p *parser) parseOrGuarded(allowColon bool) (ast.Expr, error) {
	left, err := p.parseAndGuarded(allowColon)
	if err != nil {
		return nil, err
	}
	for p.check(token.Or) {
		p.advance()
		right, err := p.parseAndGuarded(allowColon)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpOr, Left: left, Right: right, SpanValue: span(left.Span().Start, right.Span().End)}
	}
	return left, nil
}

func (p *parser) parseAndGuarded(allowColon bool) (ast.Expr, error) {
	left, err := p.parseComparisonGuarded(allowColon)
	if err != nil {
		return nil, err
	}
	for p.check(token.And) {
		p.advance()
		right, err := p.parseComparisonGuarded(allowColon)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: ast.OpAnd, Left: left, Right: right, SpanValue: span(left.Span().Start, right.Span().End)}
	}
	return left, nil
}

var comparisonOps = map[token.Kind]ast.BinaryOp{
	token.Eq: ast.OpEq, token.Ne: ast.OpNe,
	token.Lt: ast.OpLt, token.Gt: ast.OpGt,
	token.Le: ast.OpLe, token.Ge: ast.OpGe,
}

func (p *parser) parseComparisonGuarded(allowColon bool) (ast.Expr, error) {
	left, err := p.parseAdditiveGuarded(allowColon)
	if err != nil {
		return nil, err
	}
	for {
		op, ok := comparisonOps[p.peek().Kind]
		if !ok {
			return left, nil
		}
		p.advance()
		right, err := p.parseAdditiveGuarded(allowColon)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, SpanValue: span(left.Span().Start, right.Span().End)}
	}
}

func (p *parser) parseAdditiveGuarded(allowColon bool) (ast.Expr, error) {
	left, err := p.parseMultiplicativeGuarded(allowColon)
	if err != nil {
		return nil, err
	}
	for p.check(token.Plus) || p.check(token.Minus) {
		op := ast.OpAdd
		if p.check(token.Minus) {
			op = ast.OpSub
		}
		p.advance()
		right, err := p.parseMultiplicativeGuarded(allowColon)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, SpanValue: span(left.Span().Start, right.Span().End)}
	}
	return left, nil
}

func (p *parser) parseMultiplicativeGuarded(allowColon bool) (ast.Expr, error) {
	left, err := p.parseUnaryGuarded(allowColon)
	if err != nil {
		return nil, err
	}
	for p.check(token.Star) || p.check(token.Slash) {
		op := ast.OpMul
		if p.check(token.Slash) {
			op = ast.OpDiv
		}
		p.advance()
		right, err := p.parseUnaryGuarded(allowColon)
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, Left: left, Right: right, SpanValue: span(left.Span().Start, right.Span().End)}
	}
	return left, nil
}

func (p *parser) parseUnary() (ast.Expr, error) { return p.parseUnaryGuarded(true) }

func (p *parser) parseUnaryGuarded(allowColon bool) (ast.Expr, error) {
	if p.check(token.Bang) || p.check(token.Minus) {
		start := p.peek().Span.Start
		op := ast.OpNot
		if p.check(token.Minus) {
			op = ast.OpNegate
		}
		p.advance()
		operand, err := p.parseUnaryGuarded(allowColon)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: op, Operand: operand, SpanValue: span(start, operand.Span().End)}, nil
	}
	return p.parsePostfixGuarded(allowColon)
}

// ---- postfix / access chains ----

func (p *parser) parsePostfix() (ast.Expr, error) { return p.parsePostfixGuarded(true) }

func (p *parser) parsePostfixGuarded(allowColon bool) (ast.Expr, error) {
	expr, err := p.parsePrimary(allowColon)
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.check(token.Dot):
			expr, err = p.parseDotAccess(expr)
		case p.check(token.ExistDot):
			expr, err = p.parseExistenceCheck(expr)
		case p.check(token.AnnotDot):
			expr, err = p.parseAnnotAccess(expr)
		case p.check(token.Colon) && allowColon:
			expr, err = p.parseTypeAssertionOrCheck(expr)
		case p.check(token.DefaultOp):
			return p.parseDefaultOp(expr, allowColon)
		default:
			return expr, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// parseDefaultOp parses the trailing `?? default` suffix (spec §4.4). It is
// returned directly rather than fed back into the postfix loop above, since
// nothing chains onto a default expression's own result in the grammar.
func (p *parser) parseDefaultOp(target ast.Expr, allowColon bool) (ast.Expr, error) {
	start := target.Span().Start
	p.advance() // '??'
	def, err := p.parseUnaryGuarded(allowColon)
	if err != nil {
		return nil, err
	}
	return &ast.DefaultExpr{Target: target, Default: def, SpanValue: span(start, def.Span().End)}, nil
}

func (p *parser) parseDotAccess(target ast.Expr) (ast.Expr, error) {
	start := target.Span().Start
	p.advance() // '.'
	switch {
	case p.check(token.LBracket):
		p.advance()
		idx, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(token.RBracket, "Expected `]` to close index access")
		if err != nil {
			return nil, err
		}
		return &ast.IndexAccess{Target: target, Index: idx, SpanValue: span(start, end.Span.End)}, nil
	case p.check(token.LParen):
		return p.parseParenAccess(target, start)
	case p.check(token.LBrace):
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.BlockAccess{Target: target, Body: body, SpanValue: span(start, body.Span().End)}, nil
	default:
		name, err := p.expectMethodName()
		if err != nil {
			return nil, err
		}
		if p.check(token.LParen) {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &ast.MethodCall{Target: target, Name: name, Args: args, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
		}
		return &ast.FieldAccess{Target: target, Name: name, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
	}
}

// parseParenAccess parses `.($expr)` (computed access) and `.(a | b | c)`
// (alternatives: first present wins).
func (p *parser) parseParenAccess(target ast.Expr, start token.Position) (ast.Expr, error) {
	p.advance() // '('
	if p.check(token.Dollar) {
		p.advance()
		keyExpr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		end, err := p.expect(token.RParen, "Expected `)` to close computed access")
		if err != nil {
			return nil, err
		}
		return &ast.ComputedAccess{Target: target, KeyExpr: keyExpr, SpanValue: span(start, end.Span.End)}, nil
	}
	first, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	opts := []ast.Expr{first}
	for p.check(token.Bar) {
		p.advance()
		opt, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		opts = append(opts, opt)
	}
	end, err := p.expect(token.RParen, "Expected `)` to close alternatives")
	if err != nil {
		return nil, err
	}
	return &ast.Alternatives{Target: target, Options: opts, SpanValue: span(start, end.Span.End)}, nil
}

func (p *parser) parseExistenceCheck(target ast.Expr) (ast.Expr, error) {
	start := target.Span().Start
	p.advance() // '.?'
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	guardType := ""
	if p.check(token.Amp) {
		p.advance()
		guardType, err = p.expectTypeName()
		if err != nil {
			return nil, err
		}
	}
	return &ast.ExistenceCheck{Target: target, Name: name, GuardType: guardType, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
}

func (p *parser) parseAnnotAccess(target ast.Expr) (ast.Expr, error) {
	start := target.Span().Start
	p.advance() // '.^'
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	return &ast.AnnotAccess{Target: target, Key: name, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
}

func (p *parser) parseTypeAssertionOrCheck(target ast.Expr) (ast.Expr, error) {
	start := target.Span().Start
	p.advance() // ':'
	if p.check(token.Question) {
		p.advance()
		typ, err := p.expectTypeName()
		if err != nil {
			return nil, err
		}
		return &ast.TypeCheck{Target: target, Type: typ, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
	}
	typ, err := p.expectTypeName()
	if err != nil {
		return nil, err
	}
	return &ast.TypeAssertion{Target: target, Type: typ, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
}

// ---- primary expressions ----

func (p *parser) parsePrimary(allowColon bool) (ast.Expr, error) {
	tok := p.peek()
	switch tok.Kind {
	case token.Number:
		p.advance()
		v, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, p.errorAt(tok.Span.Start, "RILL-P002", "Invalid numeric literal")
		}
		return &ast.NumberLit{Value: v, SpanValue: tok.Span}, nil
	case token.KwTrue, token.KwFalse:
		p.advance()
		return &ast.BoolLit{Value: tok.Kind == token.KwTrue, SpanValue: tok.Span}, nil
	case token.StrStart:
		return p.parseStringLit()
	case token.LBracket:
		return p.parseListOrDictLit()
	case token.LParen:
		return p.parseGroup()
	case token.LBrace:
		b, err := p.parseBlock()
		return ast.Expr(b), err
	case token.Bar:
		return p.parseClosureLit(allowColon)
	case token.Dollar:
		return p.parseDollar()
	case token.DollarAt:
		p.advance()
		return &ast.VarRef{Name: "$@", SpanValue: tok.Span}, nil
	case token.Star:
		p.advance()
		inner, err := p.parseUnaryGuarded(allowColon)
		if err != nil {
			return nil, err
		}
		return &ast.SpreadExpr{Inner: inner, SpanValue: span(tok.Span.Start, inner.Span().End)}, nil
	case token.Ellipsis:
		p.advance()
		inner, err := p.parseUnaryGuarded(allowColon)
		if err != nil {
			return nil, p.errorAt(tok.Span.Start, "RILL-P003", "Expected expression after `...`")
		}
		return &ast.SpreadExpr{Inner: inner, SpanValue: span(tok.Span.Start, inner.Span().End)}, nil
	case token.DestrOpen:
		return p.parseDestructure()
	case token.SliceOpen:
		return p.parseSlice()
	case token.KwBreak:
		p.advance()
		var value ast.Expr
		if p.startsExpr() {
			var err error
			value, err = p.parseOr()
			if err != nil {
				return nil, err
			}
		}
		end := tok.Span.End
		if value != nil {
			end = value.Span().End
		}
		return &ast.BreakExpr{Value: value, SpanValue: span(tok.Span.Start, end)}, nil
	case token.KwReturn:
		p.advance()
		var value ast.Expr
		if p.startsExpr() {
			var err error
			value, err = p.parseOr()
			if err != nil {
				return nil, err
			}
		}
		end := tok.Span.End
		if value != nil {
			end = value.Span().End
		}
		return &ast.ReturnExpr{Value: value, SpanValue: span(tok.Span.Start, end)}, nil
	case token.KwAssert:
		p.advance()
		cond, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		var msg ast.Expr
		if p.match(token.Comma) {
			msg, err = p.parseOr()
			if err != nil {
				return nil, err
			}
		}
		end := cond.Span().End
		if msg != nil {
			end = msg.Span().End
		}
		return &ast.AssertExpr{Cond: cond, Message: msg, SpanValue: span(tok.Span.Start, end)}, nil
	case token.KwError:
		p.advance()
		msg, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return &ast.ErrorExpr{Message: msg, SpanValue: span(tok.Span.Start, msg.Span().End)}, nil
	case token.KwPass:
		p.advance()
		return &ast.PassExpr{SpanValue: tok.Span}, nil
	case token.Ident:
		return p.parseIdentPrimary()
	default:
		return nil, p.errorAt(tok.Span.Start, "RILL-P004", "Unexpected token "+tok.Kind.String())
	}
}

// startsExpr reports whether the current token could begin an expression,
// used to decide whether `break`/`return` carry a value.
func (p *parser) startsExpr() bool {
	switch p.peek().Kind {
	case token.Newline, token.EOF, token.RBrace, token.RParen, token.RBracket, token.Comma:
		return false
	default:
		return true
	}
}

func (p *parser) parseGroup() (ast.Expr, error) {
	start := p.peek().Span.Start
	p.advance() // '('
	inner, err := p.parseCondOrLoop()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(token.RParen, "Expected `)` to close group")
	if err != nil {
		return nil, err
	}
	return &ast.GroupExpr{Inner: inner, SpanValue: span(start, end.Span.End)}, nil
}

// parseDollar parses `$`, `$name`, `$()`, and `$name()`.
func (p *parser) parseDollar() (ast.Expr, error) {
	start := p.peek().Span.Start
	p.advance() // '$'
	if p.check(token.LParen) {
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		callee := &ast.VarRef{Name: "$", SpanValue: span(start, start)}
		return &ast.InvokeExpr{Callee: callee, Args: args, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
	}
	if p.check(token.Ident) {
		name := p.advance().Text
		if p.check(token.LParen) {
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			callee := &ast.VarRef{Name: "$" + name, SpanValue: span(start, p.peekAt(-1).Span.End)}
			return &ast.InvokeExpr{Callee: callee, Args: args, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
		}
		return &ast.VarRef{Name: "$" + name, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
	}
	return &ast.VarRef{Name: "$", SpanValue: span(start, start)}, nil
}

// parseIdentPrimary parses a bare/namespaced host-call `a::b::c(args)`. A
// bare identifier not followed by `(` or `::` yields a VarRef without the
// leading `$`: the dict-literal parser uses it as a key, parsePipeTarget turns
// it into a call, and anywhere else the evaluator reads it as a variable
// (which is how a closure body such as `|x| x * 2` reads its parameter).
func (p *parser) parseIdentPrimary() (ast.Expr, error) {
	start := p.peek().Span.Start
	name := p.advance().Text
	var namespace []string
	for p.check(token.DoubleColon) {
		p.advance()
		namespace = append(namespace, name)
		next, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		name = next
	}
	if p.check(token.LParen) {
		args, err := p.parseArgs()
		if err != nil {
			return nil, err
		}
		return &ast.CallExpr{Namespace: namespace, Name: name, Args: args, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
	}
	if len(namespace) > 0 {
		return nil, p.errorAt(start, "RILL-P005", "Expected `(` after host-call name")
	}
	// Bare identifier with no call parens: a dict key when a dict-key colon
	// follows (the dict-literal parser detects this by inspecting this
	// VarRef), otherwise a variable read or, as a pipe target, a call.
	return &ast.VarRef{Name: name, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
}

func (p *parser) parseArgs() ([]ast.Expr, error) {
	p.advance() // '('
	p.skipNewlines()
	var args []ast.Expr
	for !p.check(token.RParen) {
		var arg ast.Expr
		var err error
		switch {
		case p.check(token.Star):
			p.advance()
			inner, ierr := p.parseUnary()
			if ierr != nil {
				return nil, ierr
			}
			arg = &ast.SpreadExpr{Inner: inner, SpanValue: span(p.peekAt(-1).Span.Start, inner.Span().End)}
		case p.check(token.Ellipsis):
			start := p.peek().Span.Start
			p.advance()
			inner, ierr := p.parseUnary()
			if ierr != nil {
				return nil, p.errorAt(start, "RILL-P003", "Expected expression after `...`")
			}
			arg = &ast.SpreadExpr{Inner: inner, SpanValue: span(start, inner.Span().End)}
		default:
			arg, err = p.parseCondOrLoop()
		}
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipNewlines()
		if !p.match(token.Comma) {
			break
		}
		p.skipNewlines()
	}
	if _, err := p.expect(token.RParen, "Expected `)` to close argument list"); err != nil {
		return nil, err
	}
	return args, nil
}

// parseClosureLit parses `|x, y| body` / `|x: number = 0| body`. Closure
// parameters are plain names; the body reads them as `$name` or as the bare
// name. Surface syntax for a closure's own return-type annotation is not part
// of this grammar — return types are only validated at host-function
// registration (spec §4.3), on FunctionSpec.ReturnType — so nothing in this
// module sets ClosureLit.ReturnType.
func (p *parser) parseClosureLit(allowColon bool) (*ast.ClosureLit, error) {
	start := p.peek().Span.Start
	p.advance() // opening '|'
	var params []ast.Param
	for !p.check(token.Bar) {
		pStart := p.peek().Span.Start
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		typ := ""
		if p.match(token.Colon) {
			typ, err = p.expectTypeName()
			if err != nil {
				return nil, err
			}
		}
		var def ast.Expr
		if p.match(token.Assign) {
			def, err = p.parseOr()
			if err != nil {
				return nil, err
			}
		}
		params = append(params, ast.Param{Name: name, Type: typ, Default: def, SpanValue: span(pStart, p.peekAt(-1).Span.End)})
		if !p.match(token.Comma) {
			break
		}
	}
	if _, err := p.expect(token.Bar, "Expected `|` to close parameter list"); err != nil {
		return nil, err
	}
	// body has no closing delimiter of its own, so a trailing `:` right
	// after it is ambiguous with a dict-key/slice-field separator exactly
	// like the top-level postfix chain — forward allowColon instead of
	// hardcoding true, or a closure used as a dict key would greedily eat
	// the entry's separating colon as a bogus type assertion.
	body, err := p.parseCondOrLoopGuarded(allowColon)
	if err != nil {
		return nil, err
	}
	return &ast.ClosureLit{Params: params, Body: body, SpanValue: span(start, body.Span().End)}, nil
}

// ---- string literals ----

// parseStringLit assembles an ast.StringLit from the lexer's StrStart/
// StrText/StrInterpStart/.../StrInterpEnd/StrEnd token stream.
func (p *parser) parseStringLit() (*ast.StringLit, error) {
	startTok := p.advance() // StrStart
	triple := startTok.Text == `"""`
	var parts []ast.StringPart
	for {
		switch {
		case p.check(token.StrText):
			t := p.advance()
			parts = append(parts, ast.StringPart{Literal: t.Text})
		case p.check(token.StrInterpStart):
			p.advance()
			expr, err := p.parseCondOrLoop()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.StrInterpEnd, "Expected `}` to close string interpolation"); err != nil {
				return nil, err
			}
			parts = append(parts, ast.StringPart{Expr: expr})
		case p.check(token.StrEnd):
			end := p.advance()
			return &ast.StringLit{Parts: parts, Triple: triple, SpanValue: span(startTok.Span.Start, end.Span.End)}, nil
		default:
			return nil, p.errorAt(p.peek().Span.Start, "RILL-P006", "Malformed string literal")
		}
	}
}

// ---- list / dict literals ----

func (p *parser) parseListOrDictLit() (ast.Expr, error) {
	start := p.peek().Span.Start
	p.advance() // '['
	p.skipNewlines()
	if p.check(token.RBracket) {
		end := p.advance()
		return &ast.ListLit{SpanValue: span(start, end.Span.End)}, nil
	}

	// Parsed with allowColon=false: a trailing `:` here separates a dict key
	// from its value and must not be consumed as a type-assertion suffix.
	first, err := p.parseOrGuarded(false)
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if p.check(token.Colon) {
		return p.parseDictLit(start, first)
	}
	return p.parseListLitTail(start, first)
}

func (p *parser) parseListLitTail(start token.Position, first ast.Expr) (*ast.ListLit, error) {
	elements := []ast.Expr{first}
	for p.match(token.Comma) {
		p.skipNewlines()
		if p.check(token.RBracket) {
			break
		}
		var el ast.Expr
		var err error
		switch {
		case p.check(token.Star):
			p.advance()
			inner, ierr := p.parseUnary()
			if ierr != nil {
				return nil, ierr
			}
			el = &ast.SpreadExpr{Inner: inner, SpanValue: span(p.peekAt(-1).Span.Start, inner.Span().End)}
		default:
			el, err = p.parseOr()
		}
		if err != nil {
			return nil, err
		}
		elements = append(elements, el)
		p.skipNewlines()
	}
	end, err := p.expect(token.RBracket, "Expected `]` to close list literal")
	if err != nil {
		return nil, err
	}
	return &ast.ListLit{Elements: elements, SpanValue: span(start, end.Span.End)}, nil
}

func (p *parser) parseDictLit(start token.Position, firstKeyExpr ast.Expr) (*ast.DictLit, error) {
	keys, err := exprToDictKeys(firstKeyExpr)
	if err != nil {
		return nil, p.errorAt(firstKeyExpr.Span().Start, "RILL-P007", err.Error())
	}
	p.advance() // ':'
	p.skipNewlines()
	value, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	entries := []ast.DictEntry{{Keys: keys, Value: value, SpanValue: span(firstKeyExpr.Span().Start, value.Span().End)}}
	p.skipNewlines()
	for p.match(token.Comma) {
		p.skipNewlines()
		if p.check(token.RBracket) {
			break
		}
		keyExpr, err := p.parseOrGuarded(false)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.Colon, "Expected `:` after dict entry key"); err != nil {
			return nil, err
		}
		p.skipNewlines()
		keys, err := exprToDictKeys(keyExpr)
		if err != nil {
			return nil, p.errorAt(keyExpr.Span().Start, "RILL-P007", err.Error())
		}
		v, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		entries = append(entries, ast.DictEntry{Keys: keys, Value: v, SpanValue: span(keyExpr.Span().Start, v.Span().End)})
		p.skipNewlines()
	}
	end, err := p.expect(token.RBracket, "Expected `]` to close dict literal")
	if err != nil {
		return nil, err
	}
	return &ast.DictLit{Entries: entries, SpanValue: span(start, end.Span.End)}, nil
}

// exprToDictKeys converts a parsed key-position expression into one or more
// DictKey values (spec §4.2: "Dict literal keys are identifiers, strings,
// numbers, booleans, or list-of-the-above for multi-key entries").
func exprToDictKeys(e ast.Expr) ([]ast.DictKey, error) {
	switch v := e.(type) {
	case *ast.VarRef:
		if strings.HasPrefix(v.Name, "$") {
			return nil, errInvalidDictKey("variable reference")
		}
		name := v.Name
		return []ast.DictKey{{Ident: name}}, nil
	case *ast.StringLit:
		if len(v.Parts) > 1 || (len(v.Parts) == 1 && v.Parts[0].Expr != nil) {
			return nil, errInvalidDictKey("interpolated string")
		}
		s := ""
		if len(v.Parts) == 1 {
			s = v.Parts[0].Literal
		}
		return []ast.DictKey{{String: &s}}, nil
	case *ast.NumberLit:
		val := v.Value
		return []ast.DictKey{{Number: &val}}, nil
	case *ast.BoolLit:
		val := v.Value
		return []ast.DictKey{{Bool: &val}}, nil
	case *ast.ListLit:
		var keys []ast.DictKey
		for _, el := range v.Elements {
			ks, err := exprToDictKeys(el)
			if err != nil {
				return nil, err
			}
			keys = append(keys, ks...)
		}
		return keys, nil
	case *ast.DictLit:
		return nil, errInvalidDictKey("dict")
	case *ast.ClosureLit:
		return nil, errInvalidDictKey("closure")
	default:
		return nil, errInvalidDictKey("expression")
	}
}

func errInvalidDictKey(got string) error {
	return dictKeyError{got: got}
}

type dictKeyError struct{ got string }

func (e dictKeyError) Error() string {
	return "Dict entry key must be identifier or list, not " + e.got
}

// ---- destructure & slice ----

// parseDestructure parses `*< patterns >`.
func (p *parser) parseDestructure() (*ast.DestructureExpr, error) {
	start := p.peek().Span.Start
	p.advance() // '*<'
	patterns, err := p.parseDestructurePatternList()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(token.Gt, "Expected `>` to close destructure pattern")
	if err != nil {
		return nil, err
	}
	return &ast.DestructureExpr{Patterns: patterns, SpanValue: span(start, end.Span.End)}, nil
}

func (p *parser) parseDestructurePatternList() ([]ast.DestructurePattern, error) {
	var patterns []ast.DestructurePattern
	for !p.check(token.Gt) {
		pat, err := p.parseDestructurePattern()
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, pat)
		if !p.match(token.Comma) {
			break
		}
	}
	return patterns, nil
}

func (p *parser) parseDestructurePattern() (ast.DestructurePattern, error) {
	start := p.peek().Span.Start
	switch {
	case p.check(token.Ident) && p.peek().Text == "_":
		p.advance()
		return ast.DestructurePattern{Wildcard: true, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
	case p.check(token.DestrOpen):
		p.advance()
		nested, err := p.parseDestructurePatternList()
		if err != nil {
			return ast.DestructurePattern{}, err
		}
		if _, err := p.expect(token.Gt, "Expected `>` to close nested destructure pattern"); err != nil {
			return ast.DestructurePattern{}, err
		}
		return ast.DestructurePattern{Nested: nested, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
	case p.check(token.Ident):
		// dict key-binding form `name: $var`
		key := p.advance().Text
		if _, err := p.expect(token.Colon, "Expected `:` after dict destructure key"); err != nil {
			return ast.DestructurePattern{}, err
		}
		name, err := p.expectDollarName()
		if err != nil {
			return ast.DestructurePattern{}, err
		}
		typ := ""
		if p.match(token.Colon) {
			typ, err = p.expectTypeName()
			if err != nil {
				return ast.DestructurePattern{}, err
			}
		}
		return ast.DestructurePattern{Key: key, Name: name, Type: typ, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
	case p.check(token.Dollar):
		name, err := p.expectDollarName()
		if err != nil {
			return ast.DestructurePattern{}, err
		}
		typ := ""
		if p.match(token.Colon) {
			typ, err = p.expectTypeName()
			if err != nil {
				return ast.DestructurePattern{}, err
			}
		}
		return ast.DestructurePattern{Name: name, Type: typ, SpanValue: span(start, p.peekAt(-1).Span.End)}, nil
	default:
		return ast.DestructurePattern{}, p.errorAt(start, "RILL-P008", "Expected destructure pattern")
	}
}

// parseSlice parses `/< start : stop : step >`, where `::` stands for both
// separators at once when stop is omitted.
func (p *parser) parseSlice() (*ast.SliceExpr, error) {
	start := p.peek().Span.Start
	p.advance() // '/<'

	// Fields are parsed at additive level, so the closing `>` is never read
	// as a comparison, and with allowColon=false, so the `:` separating slice
	// fields is never swallowed as a type-assertion suffix.
	readField := func() (ast.Expr, error) {
		if p.checkAny(token.Colon, token.DoubleColon, token.Gt) {
			return nil, nil
		}
		return p.parseAdditiveGuarded(false)
	}

	startExpr, err := readField()
	if err != nil {
		return nil, err
	}
	var stopExpr, stepExpr ast.Expr
	switch {
	case p.check(token.CaptureColon):
		// `:>` lexes as one token when stop is omitted right before the close
		end := p.advance()
		return &ast.SliceExpr{Start: startExpr, SpanValue: span(start, end.Span.End)}, nil
	case p.check(token.DoubleColon):
		p.advance()
		stepExpr, err = readField()
		if err != nil {
			return nil, err
		}
	case p.check(token.Colon):
		p.advance()
		stopExpr, err = readField()
		if err != nil {
			return nil, err
		}
		if p.check(token.Colon) {
			p.advance()
			stepExpr, err = readField()
			if err != nil {
				return nil, err
			}
		}
	}
	end, err := p.expect(token.Gt, "Expected `>` to close slice")
	if err != nil {
		return nil, err
	}
	return &ast.SliceExpr{Start: startExpr, Stop: stopExpr, Step: stepExpr, SpanValue: span(start, end.Span.End)}, nil
}

// ---- small token helpers ----

func (p *parser) expectIdent() (string, error) {
	if !p.check(token.Ident) {
		return "", p.errorAt(p.peek().Span.Start, "RILL-P009", "Expected identifier")
	}
	return p.advance().Text, nil
}

// expectMethodName parses a field/method name after `.`, additionally
// accepting the collection keywords (each/map/fold/filter) so the built-in
// iteration methods can be spelled `.each(...)`/`.map(...)`/etc. without
// reserving those words as general identifiers elsewhere.
func (p *parser) expectMethodName() (string, error) {
	switch p.peek().Kind {
	case token.Ident, token.KwEach, token.KwMap, token.KwFold, token.KwFilter:
		return p.advance().Text, nil
	default:
		return "", p.errorAt(p.peek().Span.Start, "RILL-P009", "Expected identifier")
	}
}

func (p *parser) expectDollarName() (string, error) {
	if _, err := p.expect(token.Dollar, "Expected `$name` after capture operator"); err != nil {
		return "", err
	}
	return p.expectIdent()
}

func (p *parser) expectTypeName() (string, error) {
	if !p.peek().IsTypeName() {
		return "", p.errorAt(p.peek().Span.Start, "RILL-P010", "Expected type name")
	}
	return p.advance().Text, nil
}
