package ast

import "slate/interpreter-go/pkg/token"

type ExpressionStatement struct {
	nodeImpl
	statementMarker

	Expr Expression `json:"expr"`
}

func NewExpressionStatement(expr Expression) *ExpressionStatement {
	return &ExpressionStatement{nodeImpl: newNodeImpl(NodeExpressionStatement), Expr: expr}
}

type VarDeclaration struct {
	nodeImpl
	statementMarker

	Name        token.Token `json:"name"`
	Initializer Expression  `json:"initializer,omitempty"` // nil when declared without a value
}

func NewVarDeclaration(name token.Token, initializer Expression) *VarDeclaration {
	return &VarDeclaration{nodeImpl: newNodeImpl(NodeVarDeclaration), Name: name, Initializer: initializer}
}

type BlockStatement struct {
	nodeImpl
	statementMarker

	Statements []Statement `json:"statements"`
}

func NewBlockStatement(statements []Statement) *BlockStatement {
	return &BlockStatement{nodeImpl: newNodeImpl(NodeBlockStatement), Statements: statements}
}

type IfStatement struct {
	nodeImpl
	statementMarker

	Condition Expression `json:"condition"`
	Then      Statement  `json:"then"`
	Else      Statement  `json:"else,omitempty"`
}

func NewIfStatement(condition Expression, then, els Statement) *IfStatement {
	return &IfStatement{nodeImpl: newNodeImpl(NodeIfStatement), Condition: condition, Then: then, Else: els}
}

type WhileStatement struct {
	nodeImpl
	statementMarker

	Condition Expression `json:"condition"`
	Body      Statement  `json:"body"`
}

func NewWhileStatement(condition Expression, body Statement) *WhileStatement {
	return &WhileStatement{nodeImpl: newNodeImpl(NodeWhileStatement), Condition: condition, Body: body}
}

type FunctionDeclaration struct {
	nodeImpl
	statementMarker

	Name   token.Token   `json:"name"`
	Params []token.Token `json:"params"`
	Body   []Statement   `json:"body"`
}

func NewFunctionDeclaration(name token.Token, params []token.Token, body []Statement) *FunctionDeclaration {
	return &FunctionDeclaration{nodeImpl: newNodeImpl(NodeFunctionDeclaration), Name: name, Params: params, Body: body}
}

type ClassDeclaration struct {
	nodeImpl
	statementMarker

	Name          token.Token            `json:"name"`
	Superclass    *Identifier            `json:"superclass,omitempty"` // nil when the class has no parent
	Methods       []*FunctionDeclaration `json:"methods"`
	StaticMethods []*FunctionDeclaration `json:"staticMethods"`
}

func NewClassDeclaration(name token.Token, superclass *Identifier, methods, staticMethods []*FunctionDeclaration) *ClassDeclaration {
	return &ClassDeclaration{
		nodeImpl:      newNodeImpl(NodeClassDeclaration),
		Name:          name,
		Superclass:    superclass,
		Methods:       methods,
		StaticMethods: staticMethods,
	}
}

type ReturnStatement struct {
	nodeImpl
	statementMarker

	Keyword token.Token `json:"keyword"`
	Value   Expression  `json:"value,omitempty"`
}

func NewReturnStatement(keyword token.Token, value Expression) *ReturnStatement {
	return &ReturnStatement{nodeImpl: newNodeImpl(NodeReturnStatement), Keyword: keyword, Value: value}
}

type BreakStatement struct {
	nodeImpl
	statementMarker

	Keyword token.Token `json:"keyword"`
}

func NewBreakStatement(keyword token.Token) *BreakStatement {
	return &BreakStatement{nodeImpl: newNodeImpl(NodeBreakStatement), Keyword: keyword}
}

type ContinueStatement struct {
	nodeImpl
	statementMarker

	Keyword token.Token `json:"keyword"`
}

func NewContinueStatement(keyword token.Token) *ContinueStatement {
	return &ContinueStatement{nodeImpl: newNodeImpl(NodeContinueStatement), Keyword: keyword}
}
