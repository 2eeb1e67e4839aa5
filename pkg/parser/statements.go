package parser

import (
	"slate/interpreter-go/pkg/ast"
	"slate/interpreter-go/pkg/diag"
	"slate/interpreter-go/pkg/token"
)

// declaration parses one top-level or block-level statement, synchronizing
// on error so the caller always makes progress. Returns nil when the
// statement was discarded during recovery.
func (p *Parser) declaration() ast.Statement {
	var stmt ast.Statement
	var err error
	switch {
	case p.match(token.Class):
		stmt, err = p.classDeclaration()
	case p.match(token.Fun):
		stmt, err = p.functionDeclaration("function")
	case p.match(token.Var):
		stmt, err = p.varDeclaration()
	default:
		stmt, err = p.statement()
	}
	if err != nil {
		p.synchronize()
		return nil
	}
	return stmt
}

func (p *Parser) varDeclaration() (ast.Statement, error) {
	keyword := p.previous()
	name, err := p.consume(token.Identifier, diag.CodeExpectedIdentifier,
		"expected variable name", keyword, "after this 'var'")
	if err != nil {
		return nil, err
	}
	var initializer ast.Expression
	if p.match(token.Equal) {
		initializer, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(token.Semicolon, diag.CodeMissingSemicolon,
		"expected ';' after variable declaration", name, "declaration starts here"); err != nil {
		return nil, err
	}
	return ast.NewVarDeclaration(name, initializer), nil
}

func (p *Parser) functionDeclaration(kind string) (*ast.FunctionDeclaration, error) {
	name, err := p.consume(token.Identifier, diag.CodeExpectedIdentifier,
		"expected "+kind+" name", p.previous(), "")
	if err != nil {
		return nil, err
	}
	lparen, err := p.consume(token.LeftParen, diag.CodeUnexpectedToken,
		"expected '(' after "+kind+" name", name, kind+" name here")
	if err != nil {
		return nil, err
	}

	params := make([]token.Token, 0)
	if !p.check(token.RightParen) {
		for {
			if len(params) >= maxCallArguments {
				p.engine.Emit(diag.NewError("too many parameters").
					WithCode(diag.CodeTooManyArguments).
					WithPrimaryLabel(p.span(p.peek()), "parameter limit is 255"))
			}
			param, err := p.consume(token.Identifier, diag.CodeExpectedIdentifier,
				"expected parameter name", lparen, "parameter list starts here")
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	if _, err := p.consume(token.RightParen, diag.CodeMissingClosingParen,
		"expected ')' after parameters", lparen, "to match this '('"); err != nil {
		return nil, err
	}

	lbrace, err := p.consume(token.LeftBrace, diag.CodeUnexpectedToken,
		"expected '{' before "+kind+" body", name, kind+" declared here")
	if err != nil {
		return nil, err
	}
	body, err := p.blockStatements(lbrace)
	if err != nil {
		return nil, err
	}
	return ast.NewFunctionDeclaration(name, params, body), nil
}

func (p *Parser) classDeclaration() (ast.Statement, error) {
	keyword := p.previous()
	name, err := p.consume(token.Identifier, diag.CodeExpectedIdentifier,
		"expected class name", keyword, "after this 'class'")
	if err != nil {
		return nil, err
	}

	var superclass *ast.Identifier
	if p.match(token.Less) {
		superName, err := p.consume(token.Identifier, diag.CodeExpectedIdentifier,
			"expected superclass name", p.previous(), "after this '<'")
		if err != nil {
			return nil, err
		}
		superclass = ast.NewIdentifier(superName)
	}

	lbrace, err := p.consume(token.LeftBrace, diag.CodeUnexpectedToken,
		"expected '{' before class body", name, "class declared here")
	if err != nil {
		return nil, err
	}

	methods := make([]*ast.FunctionDeclaration, 0)
	statics := make([]*ast.FunctionDeclaration, 0)
	for !p.check(token.RightBrace) && !p.atEnd() {
		if p.match(token.Static) {
			method, err := p.functionDeclaration("static method")
			if err != nil {
				return nil, err
			}
			statics = append(statics, method)
			continue
		}
		method, err := p.functionDeclaration("method")
		if err != nil {
			return nil, err
		}
		methods = append(methods, method)
	}
	if _, err := p.consume(token.RightBrace, diag.CodeMissingClosingBrace,
		"expected '}' after class body", lbrace, "class body starts here"); err != nil {
		return nil, err
	}
	return ast.NewClassDeclaration(name, superclass, methods, statics), nil
}

func (p *Parser) statement() (ast.Statement, error) {
	switch {
	case p.match(token.LeftBrace):
		lbrace := p.previous()
		statements, err := p.blockStatements(lbrace)
		if err != nil {
			return nil, err
		}
		return ast.NewBlockStatement(statements), nil
	case p.match(token.If):
		return p.ifStatement()
	case p.match(token.While):
		return p.whileStatement()
	case p.match(token.Return):
		return p.returnStatement()
	case p.match(token.Break):
		keyword := p.previous()
		if _, err := p.consume(token.Semicolon, diag.CodeMissingSemicolon,
			"expected ';' after 'break'", keyword, ""); err != nil {
			return nil, err
		}
		return ast.NewBreakStatement(keyword), nil
	case p.match(token.Continue):
		keyword := p.previous()
		if _, err := p.consume(token.Semicolon, diag.CodeMissingSemicolon,
			"expected ';' after 'continue'", keyword, ""); err != nil {
			return nil, err
		}
		return ast.NewContinueStatement(keyword), nil
	default:
		return p.expressionStatement()
	}
}

// blockStatements parses statements until the closing brace. The opening
// brace has already been consumed.
func (p *Parser) blockStatements(lbrace token.Token) ([]ast.Statement, error) {
	statements := make([]ast.Statement, 0)
	for !p.check(token.RightBrace) && !p.atEnd() {
		if stmt := p.declaration(); stmt != nil {
			statements = append(statements, stmt)
		}
	}
	if _, err := p.consume(token.RightBrace, diag.CodeMissingClosingBrace,
		"expected '}' after block", lbrace, "block starts here"); err != nil {
		return nil, err
	}
	return statements, nil
}

func (p *Parser) ifStatement() (ast.Statement, error) {
	keyword := p.previous()
	lparen, err := p.consume(token.LeftParen, diag.CodeUnexpectedToken,
		"expected '(' after 'if'", keyword, "")
	if err != nil {
		return nil, err
	}
	condition, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RightParen, diag.CodeMissingClosingParen,
		"expected ')' after if condition", lparen, "to match this '('"); err != nil {
		return nil, err
	}
	then, err := p.statement()
	if err != nil {
		return nil, err
	}
	var els ast.Statement
	if p.match(token.Else) {
		els, err = p.statement()
		if err != nil {
			return nil, err
		}
	}
	return ast.NewIfStatement(condition, then, els), nil
}

func (p *Parser) whileStatement() (ast.Statement, error) {
	keyword := p.previous()
	lparen, err := p.consume(token.LeftParen, diag.CodeUnexpectedToken,
		"expected '(' after 'while'", keyword, "")
	if err != nil {
		return nil, err
	}
	condition, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RightParen, diag.CodeMissingClosingParen,
		"expected ')' after while condition", lparen, "to match this '('"); err != nil {
		return nil, err
	}
	body, err := p.statement()
	if err != nil {
		return nil, err
	}
	return ast.NewWhileStatement(condition, body), nil
}

func (p *Parser) returnStatement() (ast.Statement, error) {
	keyword := p.previous()
	var value ast.Expression
	if !p.check(token.Semicolon) {
		var err error
		value, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(token.Semicolon, diag.CodeMissingSemicolon,
		"expected ';' after return value", keyword, "return starts here"); err != nil {
		return nil, err
	}
	return ast.NewReturnStatement(keyword, value), nil
}

func (p *Parser) expressionStatement() (ast.Statement, error) {
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.Semicolon, diag.CodeMissingSemicolon,
		"expected ';' after expression", p.previous(), ""); err != nil {
		return nil, err
	}
	return ast.NewExpressionStatement(expr), nil
}
