package ast

type NodeType string

const (
	NodeIdentifier           NodeType = "Identifier"
	NodeNumberLiteral        NodeType = "NumberLiteral"
	NodeStringLiteral        NodeType = "StringLiteral"
	NodeBooleanLiteral       NodeType = "BooleanLiteral"
	NodeNilLiteral           NodeType = "NilLiteral"
	NodeGroupingExpression   NodeType = "GroupingExpression"
	NodeUnaryExpression      NodeType = "UnaryExpression"
	NodeBinaryExpression     NodeType = "BinaryExpression"
	NodeLogicalExpression    NodeType = "LogicalExpression"
	NodeTernaryExpression    NodeType = "TernaryExpression"
	NodeAssignmentExpression NodeType = "AssignmentExpression"
	NodeCallExpression       NodeType = "CallExpression"
	NodeGetExpression        NodeType = "GetExpression"
	NodeSetExpression        NodeType = "SetExpression"
	NodeThisExpression       NodeType = "ThisExpression"
	NodeSuperExpression      NodeType = "SuperExpression"
	NodeExpressionStatement  NodeType = "ExpressionStatement"
	NodeVarDeclaration       NodeType = "VarDeclaration"
	NodeBlockStatement       NodeType = "BlockStatement"
	NodeIfStatement          NodeType = "IfStatement"
	NodeWhileStatement       NodeType = "WhileStatement"
	NodeFunctionDeclaration  NodeType = "FunctionDeclaration"
	NodeClassDeclaration     NodeType = "ClassDeclaration"
	NodeReturnStatement      NodeType = "ReturnStatement"
	NodeBreakStatement       NodeType = "BreakStatement"
	NodeContinueStatement    NodeType = "ContinueStatement"
)

type Node interface {
	NodeType() NodeType
	isNode()
}

type nodeImpl struct {
	Type NodeType `json:"type"`
}

func newNodeImpl(kind NodeType) nodeImpl {
	return nodeImpl{Type: kind}
}

func (n nodeImpl) NodeType() NodeType { return n.Type }
func (nodeImpl) isNode()              {}

// Marker interfaces.

type Expression interface {
	Node
	expressionNode()
}

type expressionMarker struct{}

func (expressionMarker) expressionNode() {}

type Statement interface {
	Node
	statementNode()
}

type statementMarker struct{}

func (statementMarker) statementNode() {}
