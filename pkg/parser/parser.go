package parser

import (
	"fmt"

	"slate/interpreter-go/pkg/ast"
	"slate/interpreter-go/pkg/diag"
	"slate/interpreter-go/pkg/token"
)

// maxCallArguments bounds argument lists so arity stays representable.
const maxCallArguments = 255

// Parser consumes a token stream and produces the statement list.
type Parser struct {
	tokens  []token.Token
	current int
	file    string
	engine  *diag.Engine
}

// parseError marks a structural mismatch already reported to the engine.
// It unwinds to the nearest statement boundary where the parser
// synchronizes and resumes.
type parseError struct {
	at token.Token
}

func (e parseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d", e.at.Line, e.at.Column)
}

// Parse builds an ordered statement list from tokens. Diagnostics for any
// syntax errors go to the engine; the parser recovers at statement
// boundaries so one pass reports as many independent errors as possible.
// Empty or EOF-only input yields an empty list without error.
func Parse(tokens []token.Token, file string, engine *diag.Engine) []ast.Statement {
	p := &Parser{tokens: tokens, file: file, engine: engine}
	statements := make([]ast.Statement, 0)
	for !p.atEnd() {
		if stmt := p.declaration(); stmt != nil {
			statements = append(statements, stmt)
		}
	}
	return statements
}

//-----------------------------------------------------------------------------
// Token cursor helpers
//-----------------------------------------------------------------------------

func (p *Parser) atEnd() bool {
	return p.peek().Kind == token.Eof
}

func (p *Parser) peek() token.Token {
	return p.tokens[p.current]
}

func (p *Parser) previous() token.Token {
	return p.tokens[p.current-1]
}

func (p *Parser) advance() token.Token {
	if !p.atEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) check(kind token.Kind) bool {
	return p.peek().Kind == kind
}

func (p *Parser) match(kinds ...token.Kind) bool {
	for _, kind := range kinds {
		if p.check(kind) {
			p.advance()
			return true
		}
	}
	return false
}

// consume advances past the expected token or reports a diagnostic with a
// primary label at the offending token and a secondary label at the
// construct that demanded it.
func (p *Parser) consume(kind token.Kind, code string, message string, context token.Token, contextMsg string) (token.Token, error) {
	if p.check(kind) {
		return p.advance(), nil
	}
	offending := p.peek()
	d := diag.NewError(message).
		WithCode(code).
		WithPrimaryLabel(p.span(offending), fmt.Sprintf("expected %s, found %s", kind, describeToken(offending)))
	if contextMsg != "" {
		d.WithSecondaryLabel(p.span(context), contextMsg)
	}
	p.engine.Emit(d)
	return token.Token{}, parseError{at: offending}
}

func (p *Parser) span(tok token.Token) diag.Span {
	return diag.Span{File: p.file, Line: tok.Line, Column: tok.Column, Length: tok.Length()}
}

func describeToken(tok token.Token) string {
	if tok.Kind == token.Eof {
		return "end of file"
	}
	return fmt.Sprintf("'%s'", tok.Lexeme)
}

// synchronize discards tokens until the next statement boundary so parsing
// can resume after an error.
func (p *Parser) synchronize() {
	p.advance()
	for !p.atEnd() {
		if p.previous().Kind == token.Semicolon {
			return
		}
		switch p.peek().Kind {
		case token.Class, token.Fun, token.Var, token.If, token.While,
			token.Return, token.Break, token.Continue:
			return
		}
		p.advance()
	}
}
