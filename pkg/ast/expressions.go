package ast

import "slate/interpreter-go/pkg/token"

// Identifier is a variable reference. The token carries the use-site
// position that the resolver keys hop counts on.
type Identifier struct {
	nodeImpl
	expressionMarker

	Name token.Token `json:"name"`
}

func NewIdentifier(name token.Token) *Identifier {
	return &Identifier{nodeImpl: newNodeImpl(NodeIdentifier), Name: name}
}

type NumberLiteral struct {
	nodeImpl
	expressionMarker

	Token token.Token `json:"token"`
	Value float64     `json:"value"`
}

func NewNumberLiteral(tok token.Token, value float64) *NumberLiteral {
	return &NumberLiteral{nodeImpl: newNodeImpl(NodeNumberLiteral), Token: tok, Value: value}
}

type StringLiteral struct {
	nodeImpl
	expressionMarker

	Token token.Token `json:"token"`
	Value string      `json:"value"`
}

func NewStringLiteral(tok token.Token, value string) *StringLiteral {
	return &StringLiteral{nodeImpl: newNodeImpl(NodeStringLiteral), Token: tok, Value: value}
}

type BooleanLiteral struct {
	nodeImpl
	expressionMarker

	Token token.Token `json:"token"`
	Value bool        `json:"value"`
}

func NewBooleanLiteral(tok token.Token, value bool) *BooleanLiteral {
	return &BooleanLiteral{nodeImpl: newNodeImpl(NodeBooleanLiteral), Token: tok, Value: value}
}

type NilLiteral struct {
	nodeImpl
	expressionMarker

	Token token.Token `json:"token"`
}

func NewNilLiteral(tok token.Token) *NilLiteral {
	return &NilLiteral{nodeImpl: newNodeImpl(NodeNilLiteral), Token: tok}
}

type GroupingExpression struct {
	nodeImpl
	expressionMarker

	Inner Expression `json:"inner"`
}

func NewGroupingExpression(inner Expression) *GroupingExpression {
	return &GroupingExpression{nodeImpl: newNodeImpl(NodeGroupingExpression), Inner: inner}
}

type UnaryExpression struct {
	nodeImpl
	expressionMarker

	Operator token.Token `json:"operator"`
	Operand  Expression  `json:"operand"`
}

func NewUnaryExpression(operator token.Token, operand Expression) *UnaryExpression {
	return &UnaryExpression{nodeImpl: newNodeImpl(NodeUnaryExpression), Operator: operator, Operand: operand}
}

type BinaryExpression struct {
	nodeImpl
	expressionMarker

	Left     Expression  `json:"left"`
	Operator token.Token `json:"operator"`
	Right    Expression  `json:"right"`
}

func NewBinaryExpression(left Expression, operator token.Token, right Expression) *BinaryExpression {
	return &BinaryExpression{nodeImpl: newNodeImpl(NodeBinaryExpression), Left: left, Operator: operator, Right: right}
}

// LogicalExpression is kept distinct from BinaryExpression because && and ||
// short-circuit: the right operand may never be evaluated.
type LogicalExpression struct {
	nodeImpl
	expressionMarker

	Left     Expression  `json:"left"`
	Operator token.Token `json:"operator"`
	Right    Expression  `json:"right"`
}

func NewLogicalExpression(left Expression, operator token.Token, right Expression) *LogicalExpression {
	return &LogicalExpression{nodeImpl: newNodeImpl(NodeLogicalExpression), Left: left, Operator: operator, Right: right}
}

type TernaryExpression struct {
	nodeImpl
	expressionMarker

	Condition Expression `json:"condition"`
	Then      Expression `json:"then"`
	Else      Expression `json:"else"`
}

func NewTernaryExpression(condition, then, els Expression) *TernaryExpression {
	return &TernaryExpression{nodeImpl: newNodeImpl(NodeTernaryExpression), Condition: condition, Then: then, Else: els}
}

type AssignmentExpression struct {
	nodeImpl
	expressionMarker

	Name  token.Token `json:"name"`
	Value Expression  `json:"value"`
}

func NewAssignmentExpression(name token.Token, value Expression) *AssignmentExpression {
	return &AssignmentExpression{nodeImpl: newNodeImpl(NodeAssignmentExpression), Name: name, Value: value}
}

// CallExpression records the closing paren token so arity diagnostics can
// point at the call site.
type CallExpression struct {
	nodeImpl
	expressionMarker

	Callee Expression   `json:"callee"`
	Paren  token.Token  `json:"paren"`
	Args   []Expression `json:"args"`
}

func NewCallExpression(callee Expression, paren token.Token, args []Expression) *CallExpression {
	return &CallExpression{nodeImpl: newNodeImpl(NodeCallExpression), Callee: callee, Paren: paren, Args: args}
}

type GetExpression struct {
	nodeImpl
	expressionMarker

	Object Expression  `json:"object"`
	Name   token.Token `json:"name"`
}

func NewGetExpression(object Expression, name token.Token) *GetExpression {
	return &GetExpression{nodeImpl: newNodeImpl(NodeGetExpression), Object: object, Name: name}
}

type SetExpression struct {
	nodeImpl
	expressionMarker

	Object Expression  `json:"object"`
	Name   token.Token `json:"name"`
	Value  Expression  `json:"value"`
}

func NewSetExpression(object Expression, name token.Token, value Expression) *SetExpression {
	return &SetExpression{nodeImpl: newNodeImpl(NodeSetExpression), Object: object, Name: name, Value: value}
}

type ThisExpression struct {
	nodeImpl
	expressionMarker

	Keyword token.Token `json:"keyword"`
}

func NewThisExpression(keyword token.Token) *ThisExpression {
	return &ThisExpression{nodeImpl: newNodeImpl(NodeThisExpression), Keyword: keyword}
}

type SuperExpression struct {
	nodeImpl
	expressionMarker

	Keyword token.Token `json:"keyword"`
	Method  token.Token `json:"method"`
}

func NewSuperExpression(keyword, method token.Token) *SuperExpression {
	return &SuperExpression{nodeImpl: newNodeImpl(NodeSuperExpression), Keyword: keyword, Method: method}
}
