package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcrsr/rill/token"
)

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, 0, len(toks))
	for _, tk := range toks {
		out = append(out, tk.Kind)
	}
	return out
}

func TestLexBasicTokens(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []token.Kind
	}{
		{"number", "42", []token.Kind{token.Number, token.EOF}},
		{"ident", "foo_bar", []token.Kind{token.Ident, token.EOF}},
		{"keyword", "each", []token.Kind{token.KwEach, token.EOF}},
		{
			"operators longest match",
			"-> :> => ?? .? .^ :: == != <= >= && || ... /< *< $@",
			[]token.Kind{
				token.Arrow, token.CaptureColon, token.CaptureArrow, token.DefaultOp,
				token.ExistDot, token.AnnotDot, token.DoubleColon, token.Eq, token.Ne,
				token.Le, token.Ge, token.And, token.Or, token.Ellipsis,
				token.SliceOpen, token.DestrOpen, token.DollarAt, token.EOF,
			},
		},
		{
			"comment skipped",
			"1 # trailing comment\n2",
			[]token.Kind{token.Number, token.Newline, token.Number, token.EOF},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			toks, err := New(tc.input).Tokens()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, kinds(toks))
		})
	}
}

func TestLexFrontmatter(t *testing.T) {
	src := "---\nname: demo\n---\n1"
	l := New(src)
	fm, ok := l.Frontmatter()
	require.True(t, ok)
	assert.Equal(t, "name: demo", fm)

	toks, err := l.Tokens()
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{token.Number, token.EOF}, kinds(toks))
}

func TestLexNoFrontmatterWhenDashesNotAlone(t *testing.T) {
	src := "--- not frontmatter\n1"
	l := New(src)
	_, ok := l.Frontmatter()
	assert.False(t, ok)
}

func TestLexSimpleString(t *testing.T) {
	toks, err := New(`"hello"`).Tokens()
	require.NoError(t, err)
	require.Equal(t, []token.Kind{token.StrStart, token.StrText, token.StrEnd, token.EOF}, kinds(toks))
	assert.Equal(t, "hello", toks[1].Text)
}

func TestLexStringEscapes(t *testing.T) {
	toks, err := New(`"a\nb\{c\"d"`).Tokens()
	require.NoError(t, err)
	require.Equal(t, []token.Kind{token.StrStart, token.StrText, token.StrEnd, token.EOF}, kinds(toks))
	assert.Equal(t, "a\nb{c\"d", toks[1].Text)
}

func TestLexStringInterpolation(t *testing.T) {
	toks, err := New(`"count: {n + 1} left"`).Tokens()
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{
		token.StrStart, token.StrText, token.StrInterpStart,
		token.Ident, token.Plus, token.Number, token.StrInterpEnd,
		token.StrText, token.StrEnd, token.EOF,
	}, kinds(toks))
}

// TestLexEscapedBraceIsNotInterpolation ensures `\{` decodes to a literal
// brace without opening an interpolation, and stays distinguishable from a
// real `{expr}` segment later in the same literal.
func TestLexEscapedBraceIsNotInterpolation(t *testing.T) {
	toks, err := New(`"\{literal} then {x}"`).Tokens()
	require.NoError(t, err)
	require.Equal(t, []token.Kind{
		token.StrStart, token.StrText, token.StrInterpStart, token.Ident,
		token.StrInterpEnd, token.StrText, token.StrEnd, token.EOF,
	}, kinds(toks))
	assert.Equal(t, "{literal} then ", toks[1].Text)
}

func TestLexInterpolationWithNestedBlock(t *testing.T) {
	// The `{ }` of the nested block must not be mistaken for the end of the
	// surrounding string interpolation.
	toks, err := New(`"{ x ? { 1 } ! { 2 } }"`).Tokens()
	require.NoError(t, err)
	assert.Equal(t, token.StrStart, toks[0].Kind)
	assert.Equal(t, token.StrInterpStart, toks[1].Kind)
	assert.Equal(t, token.StrInterpEnd, toks[len(toks)-3].Kind)
	assert.Equal(t, token.StrEnd, toks[len(toks)-2].Kind)
	assert.Equal(t, token.EOF, toks[len(toks)-1].Kind)
}

func TestLexNestedStringInsideInterpolation(t *testing.T) {
	toks, err := New(`"outer {"inner"} end"`).Tokens()
	require.NoError(t, err)
	assert.Equal(t, []token.Kind{
		token.StrStart, token.StrText, token.StrInterpStart,
		token.StrStart, token.StrText, token.StrEnd,
		token.StrInterpEnd, token.StrText, token.StrEnd, token.EOF,
	}, kinds(toks))
}

func TestLexTripleQuotedStringAllowsNewlines(t *testing.T) {
	toks, err := New("\"\"\"line one\nline two\"\"\"").Tokens()
	require.NoError(t, err)
	require.Equal(t, []token.Kind{token.StrStart, token.StrText, token.StrEnd, token.EOF}, kinds(toks))
	assert.Equal(t, "line one\nline two", toks[1].Text)
}

func TestLexUnterminatedStringErrors(t *testing.T) {
	_, err := New(`"no closing quote`).Tokens()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RILL-L001")
}

func TestLexUnterminatedStringAtNewlineErrors(t *testing.T) {
	_, err := New("\"broken\nstring\"").Tokens()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RILL-L001")
}

func TestLexUnknownEscapeErrors(t *testing.T) {
	_, err := New(`"\q"`).Tokens()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RILL-L002")
}

func TestLexHeredocRemovedHint(t *testing.T) {
	_, err := New("<<EOF").Tokens()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RILL-L010")
}

func TestLexUnexpectedCharacter(t *testing.T) {
	_, err := New("`").Tokens()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RILL-L003")
}
