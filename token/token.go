// Package token defines the lexical token kinds and source-span value types
// shared by the lexer, parser, and runtime error types.
package token

import "fmt"

// Kind identifies the lexical class of a Token.
type Kind int

const (
	Illegal Kind = iota
	EOF
	Newline

	Ident
	Number

	// String literal token sequence: StrStart Text=`"` or `"""` for triple,
	// then any interleaving of StrText (literal run) and
	// StrInterpStart/.../StrInterpEnd (a nested `{expr}` segment, itself a
	// normal token stream that can recursively contain further strings),
	// terminated by StrEnd.
	StrStart
	StrText
	StrInterpStart
	StrInterpEnd
	StrEnd

	// Keywords
	KwEach
	KwMap
	KwFold
	KwFilter
	KwBreak
	KwReturn
	KwAssert
	KwError
	KwPass
	KwTrue
	KwFalse

	// Type names, recognized as keywords in type-assertion position.
	KwString
	KwNumber
	KwBool
	KwClosure
	KwList
	KwDict
	KwTuple

	// Punctuation & operators
	Arrow        // ->
	CaptureColon // :>
	CaptureArrow // =>
	DefaultOp    // ??
	ExistDot     // .?
	AnnotDot     // .^
	Caret        // ^
	LParen       // (
	RParen       // )
	LBracket     // [
	RBracket     // ]
	LBrace       // {
	RBrace       // }
	Comma        // ,
	Dot          // .
	DoubleColon  // ::
	Colon        // :
	Assign       // =
	Plus         // +
	Minus        // -
	Star         // *
	Slash        // /
	Eq           // ==
	Ne           // !=
	Lt           // <
	Gt           // >
	Le           // <=
	Ge           // >=
	And          // &&
	Or           // ||
	Bang         // !
	Question     // ?
	Ellipsis     // ...
	Bar          // |
	Dollar       // $
	DollarAt     // $@
	SliceOpen    // /<
	DestrOpen    // *<
	At           // @
	Amp          // &
	QuestionDot  // .? (a separate kind; the lexer emits ExistDot for `.?`)
	FrontmatterDelim
)

var names = map[Kind]string{
	Illegal: "ILLEGAL", EOF: "EOF", Newline: "NEWLINE",
	Ident: "IDENT", Number: "NUMBER",
	StrStart: "STR_START", StrText: "STR_TEXT", StrInterpStart: "STR_INTERP_START",
	StrInterpEnd: "STR_INTERP_END", StrEnd: "STR_END",
	KwEach: "each", KwMap: "map", KwFold: "fold", KwFilter: "filter",
	KwBreak: "break", KwReturn: "return", KwAssert: "assert", KwError: "error", KwPass: "pass",
	KwTrue: "true", KwFalse: "false",
	KwString: "string", KwNumber: "number", KwBool: "bool", KwClosure: "closure",
	KwList: "list", KwDict: "dict", KwTuple: "tuple",
	Arrow: "->", CaptureColon: ":>", CaptureArrow: "=>", DefaultOp: "??",
	ExistDot: ".?", AnnotDot: ".^", Caret: "^",
	LParen: "(", RParen: ")", LBracket: "[", RBracket: "]", LBrace: "{", RBrace: "}",
	Comma: ",", Dot: ".", DoubleColon: "::", Colon: ":", Assign: "=",
	Plus: "+", Minus: "-", Star: "*", Slash: "/",
	Eq: "==", Ne: "!=", Lt: "<", Gt: ">", Le: "<=", Ge: ">=",
	And: "&&", Or: "||", Bang: "!", Question: "?", Ellipsis: "...",
	Bar: "|", Dollar: "$", DollarAt: "$@",
	SliceOpen: "/<", DestrOpen: "*<", At: "@", Amp: "&",
	FrontmatterDelim: "---",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Keywords maps the reserved-word spelling to its Kind. Identifiers that are
// not in this table lex as Ident.
var Keywords = map[string]Kind{
	"each": KwEach, "map": KwMap, "fold": KwFold, "filter": KwFilter,
	"break": KwBreak, "return": KwReturn, "assert": KwAssert, "error": KwError, "pass": KwPass,
	"true": KwTrue, "false": KwFalse,
	"string": KwString, "number": KwNumber, "bool": KwBool, "closure": KwClosure,
	"list": KwList, "dict": KwDict, "tuple": KwTuple,
}

// Position is a 1-based line/column, 0-based byte-offset location in source.
// This matches the error-shape contract in spec §6: "1-based line/column,
// 0-based offset".
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span covers a half-open [Start, End) range in the source.
type Span struct {
	Start Position
	End   Position
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

// Token is one lexical unit: its Kind, the exact source text it spans
// (already unescaped for literals where that is unambiguous), and its Span.
type Token struct {
	Kind Kind
	Text string
	Span Span
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Text, t.Span)
}

// IsTypeName reports whether the token spells one of the built-in type
// names usable after `:` / `:?` in a type assertion or type check.
func (t Token) IsTypeName() bool {
	switch t.Kind {
	case KwString, KwNumber, KwBool, KwClosure, KwList, KwDict, KwTuple:
		return true
	default:
		return false
	}
}
