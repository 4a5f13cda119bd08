// Package lexer turns Rill source text into a flat token stream with
// source spans (spec §4.1). It normalizes CRLF, skips whitespace and
// `#`-comments, and recognizes frontmatter, literals, identifiers/keywords,
// and the full punctuation/operator set.
//
// The scanning shape — classify the current rune, advance, return a token —
// keeps each case of the scan loop small and self-contained, the same way a
// hand-written recursive-descent parser keeps each production in its own
// function.
package lexer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rcrsr/rill/rillerr"
	"github.com/rcrsr/rill/token"
)

// DefaultTabWidth is how many columns a tab advances for column reporting.
const DefaultTabWidth = 4

// Lexer scans a complete source string into tokens. It is not re-entrant
// across goroutines; create one per source.
type Lexer struct {
	src      string
	pos      int // byte offset into src
	line     int
	col      int
	tabWidth int

	frontmatter *string

	// strStack tracks nested string/interpolation scopes; see frame.
	strStack []frame
}

// New creates a Lexer over src. CRLF sequences are normalized to LF before
// scanning so downstream spans only ever see '\n'.
func New(src string) *Lexer {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	l := &Lexer{src: src, line: 1, col: 1, tabWidth: DefaultTabWidth}
	l.consumeFrontmatter()
	return l
}

// Frontmatter returns the trimmed, opaque frontmatter body and true if the
// source began with a `---` delimited block (spec §6, §9 Open Question #1:
// the core never parses this text, it only extracts it verbatim).
func (l *Lexer) Frontmatter() (string, bool) {
	if l.frontmatter == nil {
		return "", false
	}
	return *l.frontmatter, true
}

func (l *Lexer) consumeFrontmatter() {
	const delim = "---"
	if !strings.HasPrefix(l.src, delim) {
		return
	}
	rest := l.src[len(delim):]
	if !(strings.HasPrefix(rest, "\n") || rest == "") {
		return // `---` not alone on the first line: not frontmatter
	}
	// Find the closing "---" on its own line.
	search := rest
	searched := len(delim)
	for {
		idx := strings.Index(search, "\n"+delim)
		if idx < 0 {
			return // unterminated: treat whole file as having no frontmatter
		}
		lineEnd := idx + 1 + len(delim)
		afterDelim := search[lineEnd:]
		if strings.HasPrefix(afterDelim, "\n") || afterDelim == "" {
			body := rest[:idx]
			body = strings.TrimSpace(body)
			l.frontmatter = &body
			total := searched + lineEnd
			if strings.HasPrefix(afterDelim, "\n") {
				total++ // the closing delimiter's line break belongs to the block
			}
			l.advanceRaw(total)
			return
		}
		search = search[lineEnd:]
		searched += lineEnd
	}
}

// advanceRaw moves pos/line/col forward over n raw bytes already known to be
// part of the consumed frontmatter block (used only during construction).
func (l *Lexer) advanceRaw(n int) {
	for i := 0; i < n; i++ {
		l.bump(rune(l.src[l.pos]))
	}
}

func (l *Lexer) bump(r rune) {
	sz := utf8.RuneLen(r)
	if sz <= 0 {
		sz = 1
	}
	l.pos += sz
	if r == '\n' {
		l.line++
		l.col = 1
	} else if r == '\t' {
		l.col += l.tabWidth
	} else {
		l.col++
	}
}

func (l *Lexer) here() token.Position {
	return token.Position{Line: l.line, Column: l.col, Offset: l.pos}
}

func (l *Lexer) eof() bool { return l.pos >= len(l.src) }

func (l *Lexer) peekByte() byte {
	if l.eof() {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peekByteAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) peekRune() rune {
	if l.eof() {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r
}

func (l *Lexer) advance() rune {
	r, sz := utf8.DecodeRuneInString(l.src[l.pos:])
	if sz == 0 {
		return 0
	}
	l.bump(r)
	return r
}

// Tokens scans the entire source and returns every token, always ending in
// a single EOF token. On the first lexer error it returns the tokens
// collected so far, the error, and stops — the lexer itself has no
// recovery mode (only the parser does, per spec §4.2).
func (l *Lexer) Tokens() ([]token.Token, error) {
	var out []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			return out, err
		}
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out, nil
		}
	}
}

// Next scans and returns the next token.
func (l *Lexer) Next() (token.Token, error) {
	if len(l.strStack) > 0 {
		top := &l.strStack[len(l.strStack)-1]
		if top.interp {
			return l.nextInInterp(top)
		}
		return l.nextInStringText(top)
	}
	return l.nextCode()
}

// frame is one entry of the lexer's nesting stack: either "inside string
// text" (interp=false) or "inside a {…} interpolation's code" (interp=true).
type frame struct {
	interp     bool
	triple     bool
	braceDepth int
}

func (l *Lexer) nextCode() (token.Token, error) {
	l.skipWhitespaceAndComments()

	start := l.here()
	if l.eof() {
		return l.tok(token.EOF, "", start), nil
	}

	r := l.peekRune()

	switch {
	case r == '\n':
		l.advance()
		return l.tok(token.Newline, "\n", start), nil
	case r == '"':
		return l.startString(start)
	case isDigit(r):
		return l.lexNumber(start)
	case isIdentStart(r):
		return l.lexIdentOrKeyword(start)
	default:
		return l.lexOperator(start)
	}
}

// nextInInterp lexes inside a `{…}` interpolation: ordinary code tokens,
// except `{`/`}` are depth-tracked so the interpolation's own blocks don't
// prematurely close it, and a fresh `"` recurses into a nested string.
func (l *Lexer) nextInInterp(top *frame) (token.Token, error) {
	l.skipWhitespaceAndComments()
	start := l.here()
	if l.eof() {
		return token.Token{}, rillerr.New("RILL-L001", "unterminated interpolation").At(start)
	}
	r := l.peekRune()
	switch {
	case r == '\n':
		l.advance()
		return l.tok(token.Newline, "\n", start), nil
	case r == '{':
		l.advance()
		top.braceDepth++
		return l.tok(token.LBrace, "{", start), nil
	case r == '}':
		if top.braceDepth > 0 {
			l.advance()
			top.braceDepth--
			return l.tok(token.RBrace, "}", start), nil
		}
		l.advance()
		l.strStack = l.strStack[:len(l.strStack)-1]
		return l.tok(token.StrInterpEnd, "}", start), nil
	case r == '"':
		return l.startString(start)
	case isDigit(r):
		return l.lexNumber(start)
	case isIdentStart(r):
		return l.lexIdentOrKeyword(start)
	default:
		return l.lexOperator(start)
	}
}

// startString begins a string literal: emits StrStart and pushes a text
// frame (single or triple quoted, detected by lookahead).
func (l *Lexer) startString(start token.Position) (token.Token, error) {
	l.advance() // opening quote
	triple := false
	if l.peekByte() == '"' && l.peekByteAt(1) == '"' {
		l.advance()
		l.advance()
		triple = true
	}
	l.strStack = append(l.strStack, frame{interp: false, triple: triple})
	text := `"`
	if triple {
		text = `"""`
	}
	return l.tok(token.StrStart, text, start), nil
}

// nextInStringText scans literal text inside a string until it hits an
// interpolation opener or the closing quote(s), returning one StrText token
// per run (possibly emitting the boundary marker directly when the run is
// empty, e.g. two interpolations back to back).
func (l *Lexer) nextInStringText(top *frame) (token.Token, error) {
	start := l.here()
	var b strings.Builder

	closeOK := func() bool {
		if top.triple {
			return l.peekByte() == '"' && l.peekByteAt(1) == '"' && l.peekByteAt(2) == '"'
		}
		return l.peekByte() == '"'
	}

	for {
		if l.eof() {
			return token.Token{}, rillerr.New("RILL-L001", "unterminated string literal").At(start)
		}
		if closeOK() {
			if b.Len() > 0 {
				return l.tok(token.StrText, b.String(), start), nil
			}
			n := 1
			if top.triple {
				n = 3
			}
			for i := 0; i < n; i++ {
				l.advance()
			}
			l.strStack = l.strStack[:len(l.strStack)-1]
			return l.tok(token.StrEnd, `"`, start), nil
		}
		r := l.peekRune()
		if r == '{' {
			if b.Len() > 0 {
				return l.tok(token.StrText, b.String(), start), nil
			}
			l.advance()
			l.strStack = append(l.strStack, frame{interp: true})
			return l.tok(token.StrInterpStart, "{", start), nil
		}
		if r == '\n' && !top.triple {
			return token.Token{}, rillerr.New("RILL-L001", "unterminated string literal").At(start)
		}
		if r == '\\' && !top.triple {
			l.advance()
			if l.eof() {
				return token.Token{}, rillerr.New("RILL-L001", "unterminated string literal").At(start)
			}
			esc := l.advance()
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case '\\':
				b.WriteByte('\\')
			case '"':
				b.WriteByte('"')
			case '{':
				b.WriteByte('{')
			default:
				return token.Token{}, rillerr.Newf("RILL-L002", "unknown escape sequence \\%c", esc).At(l.here())
			}
			continue
		}
		b.WriteRune(l.advance())
	}
}

func (l *Lexer) tok(kind token.Kind, text string, start token.Position) token.Token {
	return token.Token{Kind: kind, Text: text, Span: token.Span{Start: start, End: l.here()}}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		switch {
		case l.eof():
			return
		case l.peekByte() == '#':
			for !l.eof() && l.peekByte() != '\n' {
				l.advance()
			}
		case l.peekByte() == ' ' || l.peekByte() == '\t':
			l.advance()
		default:
			return
		}
	}
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (l *Lexer) lexIdentOrKeyword(start token.Position) (token.Token, error) {
	var b strings.Builder
	for !l.eof() && isIdentPart(l.peekRune()) {
		b.WriteRune(l.advance())
	}
	text := b.String()
	if kw, ok := token.Keywords[text]; ok {
		return l.tok(kw, text, start), nil
	}
	return l.tok(token.Ident, text, start), nil
}

func (l *Lexer) lexNumber(start token.Position) (token.Token, error) {
	var b strings.Builder
	for !l.eof() && isDigit(l.peekRune()) {
		b.WriteRune(l.advance())
	}
	if l.peekByte() == '.' && isDigit(rune(l.peekByteAt(1))) {
		b.WriteRune(l.advance()) // '.'
		for !l.eof() && isDigit(l.peekRune()) {
			b.WriteRune(l.advance())
		}
	}
	return l.tok(token.Number, b.String(), start), nil
}

// lexOperator recognizes punctuation and multi-character operators using
// maximal munch, longest prefix first.
func (l *Lexer) lexOperator(start token.Position) (token.Token, error) {
	rest := l.src[l.pos:]

	if strings.HasPrefix(rest, "<<EOF") {
		return token.Token{}, rillerr.New("RILL-L010", "heredoc syntax removed — use triple-quote").At(start)
	}

	type op struct {
		text string
		kind token.Kind
	}
	// Longest-first so maximal munch is just "first match wins".
	ops := []op{
		{"->", token.Arrow},
		{":>", token.CaptureColon},
		{"=>", token.CaptureArrow},
		{"??", token.DefaultOp},
		{".?", token.ExistDot},
		{".^", token.AnnotDot},
		{"::", token.DoubleColon},
		{"==", token.Eq},
		{"!=", token.Ne},
		{"<=", token.Le},
		{">=", token.Ge},
		{"&&", token.And},
		{"||", token.Or},
		{"...", token.Ellipsis},
		{"/<", token.SliceOpen},
		{"*<", token.DestrOpen},
		{"$@", token.DollarAt},
		{"(", token.LParen},
		{")", token.RParen},
		{"[", token.LBracket},
		{"]", token.RBracket},
		{"{", token.LBrace},
		{"}", token.RBrace},
		{",", token.Comma},
		{".", token.Dot},
		{":", token.Colon},
		{"=", token.Assign},
		{"+", token.Plus},
		{"-", token.Minus},
		{"*", token.Star},
		{"/", token.Slash},
		{"<", token.Lt},
		{">", token.Gt},
		{"!", token.Bang},
		{"?", token.Question},
		{"|", token.Bar},
		{"$", token.Dollar},
		{"@", token.At},
		{"&", token.Amp},
		{"^", token.Caret},
	}
	// "..." must be checked before "." and ":" variants, and two-char ops
	// before their one-char prefixes; the slice above is already ordered
	// longest-first, so a linear scan is correct and keeps this table small
	// enough to read at a glance.
	for _, candidate := range ops {
		if strings.HasPrefix(rest, candidate.text) {
			for range candidate.text {
				l.advance()
			}
			return l.tok(candidate.kind, candidate.text, start), nil
		}
	}

	r := l.advance()
	return token.Token{}, rillerr.Newf("RILL-L003", "unexpected character %q", r).At(start)
}
