package token

import "fmt"

// Kind identifies the lexical category of a token.
type Kind int

const (
	// Single-character tokens.
	LeftParen Kind = iota
	RightParen
	LeftBrace
	RightBrace
	Comma
	Dot
	Minus
	Plus
	Semicolon
	Slash
	Star
	Percent
	Question
	Colon

	// One or two character tokens.
	Bang
	BangEqual
	Equal
	EqualEqual
	Greater
	GreaterEqual
	Less
	LessEqual
	AndAnd
	OrOr

	// Literals.
	Identifier
	String
	Number

	// Keywords.
	Break
	Class
	Continue
	Else
	False
	Fun
	If
	Nil
	Return
	Static
	Super
	This
	True
	Var
	While

	Eof
)

var kindNames = map[Kind]string{
	LeftParen:    "(",
	RightParen:   ")",
	LeftBrace:    "{",
	RightBrace:   "}",
	Comma:        ",",
	Dot:          ".",
	Minus:        "-",
	Plus:         "+",
	Semicolon:    ";",
	Slash:        "/",
	Star:         "*",
	Percent:      "%",
	Question:     "?",
	Colon:        ":",
	Bang:         "!",
	BangEqual:    "!=",
	Equal:        "=",
	EqualEqual:   "==",
	Greater:      ">",
	GreaterEqual: ">=",
	Less:         "<",
	LessEqual:    "<=",
	AndAnd:       "&&",
	OrOr:         "||",
	Identifier:   "identifier",
	String:       "string",
	Number:       "number",
	Break:        "break",
	Class:        "class",
	Continue:     "continue",
	Else:         "else",
	False:        "false",
	Fun:          "fun",
	If:           "if",
	Nil:          "nil",
	Return:       "return",
	Static:       "static",
	Super:        "super",
	This:         "this",
	True:         "true",
	Var:          "var",
	While:        "while",
	Eof:          "end of file",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown_kind_%d", int(k))
}

var keywords = map[string]Kind{
	"break":    Break,
	"class":    Class,
	"continue": Continue,
	"else":     Else,
	"false":    False,
	"fun":      Fun,
	"if":       If,
	"nil":      Nil,
	"return":   Return,
	"static":   Static,
	"super":    Super,
	"this":     This,
	"true":     True,
	"var":      Var,
	"while":    While,
}

// LookupIdent checks the keyword table for an identifier lexeme.
func LookupIdent(ident string) Kind {
	if kind, ok := keywords[ident]; ok {
		return kind
	}
	return Identifier
}

// Token is a single lexeme produced by the lexer. Immutable once scanned.
// Literal carries the decoded payload for Number (float64), String (string),
// True/False (bool), and Nil (untyped nil); it is nil for everything else.
type Token struct {
	Kind    Kind
	Lexeme  string
	Literal any
	Line    int // 1-based
	Column  int // 1-based, rune offset within the line
}

// Length reports the token's width in source, used for diagnostic spans.
// The EOF sentinel has no lexeme but still spans one column.
func (t Token) Length() int {
	if n := len([]rune(t.Lexeme)); n > 0 {
		return n
	}
	return 1
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q %d:%d", t.Kind, t.Lexeme, t.Line, t.Column)
}
