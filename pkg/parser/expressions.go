package parser

import (
	"slate/interpreter-go/pkg/ast"
	"slate/interpreter-go/pkg/diag"
	"slate/interpreter-go/pkg/token"
)

// expression parses at the lowest precedence tier. The tiers from lowest
// to highest: assignment, ternary, ||, &&, equality, comparison, term,
// factor, unary, call/property postfix, primary.
func (p *Parser) expression() (ast.Expression, error) {
	return p.assignment()
}

// assignment is right-associative. The left side is parsed as a ternary
// and then validated: identifiers become Assign, property gets become
// Set, anything else is an invalid assignment target. The invalid-target
// diagnostic does not synchronize; the expression value still parses.
func (p *Parser) assignment() (ast.Expression, error) {
	expr, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if p.match(token.Equal) {
		equals := p.previous()
		value, err := p.assignment()
		if err != nil {
			return nil, err
		}
		switch target := expr.(type) {
		case *ast.Identifier:
			return ast.NewAssignmentExpression(target.Name, value), nil
		case *ast.GetExpression:
			return ast.NewSetExpression(target.Object, target.Name, value), nil
		default:
			p.engine.Emit(diag.NewError("invalid assignment target").
				WithCode(diag.CodeInvalidAssignmentTarget).
				WithPrimaryLabel(p.span(equals), "cannot assign to this expression").
				WithHelp("only variables and object properties can be assigned"))
			return expr, nil
		}
	}
	return expr, nil
}

// ternary parses cond ? then : else with a right-associative else arm.
func (p *Parser) ternary() (ast.Expression, error) {
	condition, err := p.logicalOr()
	if err != nil {
		return nil, err
	}
	if !p.match(token.Question) {
		return condition, nil
	}
	question := p.previous()
	then, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.Colon, diag.CodeUnexpectedToken,
		"expected ':' in ternary expression", question, "to match this '?'"); err != nil {
		return nil, err
	}
	els, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return ast.NewTernaryExpression(condition, then, els), nil
}

func (p *Parser) logicalOr() (ast.Expression, error) {
	expr, err := p.logicalAnd()
	if err != nil {
		return nil, err
	}
	for p.match(token.OrOr) {
		op := p.previous()
		right, err := p.logicalAnd()
		if err != nil {
			return nil, err
		}
		expr = ast.NewLogicalExpression(expr, op, right)
	}
	return expr, nil
}

func (p *Parser) logicalAnd() (ast.Expression, error) {
	expr, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.match(token.AndAnd) {
		op := p.previous()
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		expr = ast.NewLogicalExpression(expr, op, right)
	}
	return expr, nil
}

func (p *Parser) equality() (ast.Expression, error) {
	expr, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.match(token.EqualEqual, token.BangEqual) {
		op := p.previous()
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		expr = ast.NewBinaryExpression(expr, op, right)
	}
	return expr, nil
}

func (p *Parser) comparison() (ast.Expression, error) {
	expr, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.match(token.Greater, token.GreaterEqual, token.Less, token.LessEqual) {
		op := p.previous()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		expr = ast.NewBinaryExpression(expr, op, right)
	}
	return expr, nil
}

func (p *Parser) term() (ast.Expression, error) {
	expr, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.match(token.Plus, token.Minus) {
		op := p.previous()
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		expr = ast.NewBinaryExpression(expr, op, right)
	}
	return expr, nil
}

func (p *Parser) factor() (ast.Expression, error) {
	expr, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.match(token.Star, token.Slash, token.Percent) {
		op := p.previous()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		expr = ast.NewBinaryExpression(expr, op, right)
	}
	return expr, nil
}

func (p *Parser) unary() (ast.Expression, error) {
	if p.match(token.Bang, token.Minus) {
		op := p.previous()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryExpression(op, operand), nil
	}
	return p.call()
}

// call parses the postfix tier: call arguments and property access chain
// onto the running operand.
func (p *Parser) call() (ast.Expression, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.match(token.LeftParen):
			expr, err = p.finishCall(expr, p.previous())
			if err != nil {
				return nil, err
			}
		case p.match(token.Dot):
			name, err := p.consume(token.Identifier, diag.CodeExpectedIdentifier,
				"expected property name after '.'", p.previous(), "")
			if err != nil {
				return nil, err
			}
			expr = ast.NewGetExpression(expr, name)
		default:
			return expr, nil
		}
	}
}

func (p *Parser) finishCall(callee ast.Expression, lparen token.Token) (ast.Expression, error) {
	args := make([]ast.Expression, 0)
	if !p.check(token.RightParen) {
		for {
			if len(args) >= maxCallArguments {
				p.engine.Emit(diag.NewError("too many arguments").
					WithCode(diag.CodeTooManyArguments).
					WithPrimaryLabel(p.span(p.peek()), "argument limit is 255"))
			}
			arg, err := p.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if !p.match(token.Comma) {
				break
			}
		}
	}
	paren, err := p.consume(token.RightParen, diag.CodeMissingClosingParen,
		"expected ')' after arguments", lparen, "to match this '('")
	if err != nil {
		return nil, err
	}
	return ast.NewCallExpression(callee, paren, args), nil
}

func (p *Parser) primary() (ast.Expression, error) {
	switch {
	case p.match(token.Number):
		tok := p.previous()
		return ast.NewNumberLiteral(tok, tok.Literal.(float64)), nil
	case p.match(token.String):
		tok := p.previous()
		return ast.NewStringLiteral(tok, tok.Literal.(string)), nil
	case p.match(token.True, token.False):
		tok := p.previous()
		return ast.NewBooleanLiteral(tok, tok.Literal.(bool)), nil
	case p.match(token.Nil):
		return ast.NewNilLiteral(p.previous()), nil
	case p.match(token.This):
		return ast.NewThisExpression(p.previous()), nil
	case p.match(token.Super):
		keyword := p.previous()
		if _, err := p.consume(token.Dot, diag.CodeUnexpectedToken,
			"expected '.' after 'super'", keyword, ""); err != nil {
			return nil, err
		}
		method, err := p.consume(token.Identifier, diag.CodeExpectedIdentifier,
			"expected superclass method name", keyword, "after this 'super'")
		if err != nil {
			return nil, err
		}
		return ast.NewSuperExpression(keyword, method), nil
	case p.match(token.Identifier):
		return ast.NewIdentifier(p.previous()), nil
	case p.match(token.LeftParen):
		lparen := p.previous()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RightParen, diag.CodeMissingClosingParen,
			"expected ')' after expression", lparen, "to match this '('"); err != nil {
			return nil, err
		}
		return ast.NewGroupingExpression(inner), nil
	default:
		offending := p.peek()
		p.engine.Emit(diag.NewError("expected expression").
			WithCode(diag.CodeExpectedExpression).
			WithPrimaryLabel(p.span(offending), "found "+describeToken(offending)))
		return nil, parseError{at: offending}
	}
}
