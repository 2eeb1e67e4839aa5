package lexer

import (
	"strconv"
	"unicode/utf8"

	"slate/interpreter-go/pkg/diag"
	"slate/interpreter-go/pkg/token"
)

// Lexer holds the state of the scanner for one source file.
type Lexer struct {
	source string
	file   string
	engine *diag.Engine

	start     int // byte offset of the token being scanned
	current   int // byte offset of the next unread character
	line      int
	column    int // 1-based column of the next unread character
	startLine int
	startCol  int

	tokens []token.Token
}

// Scan tokenizes source in one pass. Lexical errors are reported to the
// engine and scanning continues, so one pass can surface every bad
// character. The returned slice always ends with an Eof sentinel.
func Scan(source, file string, engine *diag.Engine) []token.Token {
	l := &Lexer{
		source: source,
		file:   file,
		engine: engine,
		line:   1,
		column: 1,
	}
	for !l.atEnd() {
		l.start = l.current
		l.startLine = l.line
		l.startCol = l.column
		l.scanToken()
	}
	l.tokens = append(l.tokens, token.Token{Kind: token.Eof, Line: l.line, Column: l.column})
	return l.tokens
}

func (l *Lexer) atEnd() bool {
	return l.current >= len(l.source)
}

func (l *Lexer) advance() byte {
	ch := l.source[l.current]
	l.current++
	switch {
	case ch == '\n':
		l.line++
		l.column = 1
	case ch&0xc0 != 0x80:
		// UTF-8 continuation bytes stay in the same column, so Column
		// counts runes the way token.Length does.
		l.column++
	}
	return ch
}

func (l *Lexer) peek() byte {
	if l.atEnd() {
		return 0
	}
	return l.source[l.current]
}

func (l *Lexer) peekNext() byte {
	if l.current+1 >= len(l.source) {
		return 0
	}
	return l.source[l.current+1]
}

func (l *Lexer) match(expected byte) bool {
	if l.atEnd() || l.source[l.current] != expected {
		return false
	}
	l.advance()
	return true
}

func (l *Lexer) scanToken() {
	ch := l.advance()
	switch ch {
	case '(':
		l.add(token.LeftParen)
	case ')':
		l.add(token.RightParen)
	case '{':
		l.add(token.LeftBrace)
	case '}':
		l.add(token.RightBrace)
	case ',':
		l.add(token.Comma)
	case '.':
		l.add(token.Dot)
	case '-':
		l.add(token.Minus)
	case '+':
		l.add(token.Plus)
	case ';':
		l.add(token.Semicolon)
	case '*':
		l.add(token.Star)
	case '%':
		l.add(token.Percent)
	case '?':
		l.add(token.Question)
	case ':':
		l.add(token.Colon)
	case '!':
		if l.match('=') {
			l.add(token.BangEqual)
		} else {
			l.add(token.Bang)
		}
	case '=':
		if l.match('=') {
			l.add(token.EqualEqual)
		} else {
			l.add(token.Equal)
		}
	case '<':
		if l.match('=') {
			l.add(token.LessEqual)
		} else {
			l.add(token.Less)
		}
	case '>':
		if l.match('=') {
			l.add(token.GreaterEqual)
		} else {
			l.add(token.Greater)
		}
	case '&':
		if l.match('&') {
			l.add(token.AndAnd)
		} else {
			l.invalidCharacter(ch)
		}
	case '|':
		if l.match('|') {
			l.add(token.OrOr)
		} else {
			l.invalidCharacter(ch)
		}
	case '/':
		if l.match('/') {
			for !l.atEnd() && l.peek() != '\n' {
				l.advance()
			}
		} else {
			l.add(token.Slash)
		}
	case ' ', '\t', '\r', '\n':
		// whitespace
	case '"':
		l.scanString()
	default:
		switch {
		case isDigit(ch):
			l.scanNumber()
		case isAlpha(ch):
			l.scanIdentifier()
		default:
			l.invalidCharacter(ch)
		}
	}
}

func (l *Lexer) scanString() {
	for !l.atEnd() && l.peek() != '"' {
		l.advance()
	}
	if l.atEnd() {
		l.engine.Emit(diag.NewError("unterminated string literal").
			WithCode(diag.CodeUnterminatedString).
			WithPrimaryLabel(diag.Span{File: l.file, Line: l.startLine, Column: l.startCol, Length: 1}, "string starts here").
			WithHelp(`add a closing "`))
		return
	}
	l.advance() // closing quote
	value := l.source[l.start+1 : l.current-1]
	l.addLiteral(token.String, value)
}

func (l *Lexer) scanNumber() {
	for isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.advance()
		for isDigit(l.peek()) {
			l.advance()
		}
	}
	lexeme := l.source[l.start:l.current]
	value, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		l.engine.Emit(diag.NewError("invalid number literal '" + lexeme + "'").
			WithCode(diag.CodeInvalidNumber).
			WithPrimaryLabel(l.span(), ""))
		return
	}
	l.addLiteral(token.Number, value)
}

func (l *Lexer) scanIdentifier() {
	for isAlphaNumeric(l.peek()) {
		l.advance()
	}
	lexeme := l.source[l.start:l.current]
	kind := token.LookupIdent(lexeme)
	switch kind {
	case token.True:
		l.addLiteral(kind, true)
	case token.False:
		l.addLiteral(kind, false)
	default:
		l.add(kind)
	}
}

func (l *Lexer) invalidCharacter(ch byte) {
	text := string(ch)
	if ch >= utf8.RuneSelf {
		// Consume the rest of the rune so one bad character yields one
		// diagnostic rather than one per byte.
		r, size := utf8.DecodeRuneInString(l.source[l.start:])
		for l.current < l.start+size {
			l.advance()
		}
		text = string(r)
	}
	l.engine.Emit(diag.NewError("invalid character '" + text + "'").
		WithCode(diag.CodeInvalidCharacter).
		WithPrimaryLabel(l.span(), "not a Slate token"))
}

func (l *Lexer) add(kind token.Kind) {
	l.addLiteral(kind, nil)
}

func (l *Lexer) addLiteral(kind token.Kind, literal any) {
	l.tokens = append(l.tokens, token.Token{
		Kind:    kind,
		Lexeme:  l.source[l.start:l.current],
		Literal: literal,
		Line:    l.startLine,
		Column:  l.startCol,
	})
}

func (l *Lexer) span() diag.Span {
	length := utf8.RuneCountInString(l.source[l.start:l.current])
	if length < 1 {
		length = 1
	}
	return diag.Span{File: l.file, Line: l.startLine, Column: l.startCol, Length: length}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isAlpha(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isAlphaNumeric(ch byte) bool {
	return isAlpha(ch) || isDigit(ch)
}
