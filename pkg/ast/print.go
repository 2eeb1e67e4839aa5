package ast

import (
	"strconv"
	"strings"
)

// Print renders an expression back to Slate source. Groupings are explicit
// nodes, so re-lexing and re-parsing the output reproduces the same tree
// shape without the printer having to reason about precedence.
func Print(expr Expression) string {
	var b strings.Builder
	printExpr(&b, expr)
	return b.String()
}

func printExpr(b *strings.Builder, expr Expression) {
	switch n := expr.(type) {
	case *Identifier:
		b.WriteString(n.Name.Lexeme)
	case *NumberLiteral:
		b.WriteString(numberLexeme(n))
	case *StringLiteral:
		// The lexer has no escape sequences, so the value is quoted verbatim.
		b.WriteByte('"')
		b.WriteString(n.Value)
		b.WriteByte('"')
	case *BooleanLiteral:
		if n.Value {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case *NilLiteral:
		b.WriteString("nil")
	case *GroupingExpression:
		b.WriteByte('(')
		printExpr(b, n.Inner)
		b.WriteByte(')')
	case *UnaryExpression:
		b.WriteString(n.Operator.Lexeme)
		printExpr(b, n.Operand)
	case *BinaryExpression:
		printExpr(b, n.Left)
		b.WriteByte(' ')
		b.WriteString(n.Operator.Lexeme)
		b.WriteByte(' ')
		printExpr(b, n.Right)
	case *LogicalExpression:
		printExpr(b, n.Left)
		b.WriteByte(' ')
		b.WriteString(n.Operator.Lexeme)
		b.WriteByte(' ')
		printExpr(b, n.Right)
	case *TernaryExpression:
		printExpr(b, n.Condition)
		b.WriteString(" ? ")
		printExpr(b, n.Then)
		b.WriteString(" : ")
		printExpr(b, n.Else)
	case *AssignmentExpression:
		b.WriteString(n.Name.Lexeme)
		b.WriteString(" = ")
		printExpr(b, n.Value)
	case *CallExpression:
		printExpr(b, n.Callee)
		b.WriteByte('(')
		for i, arg := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			printExpr(b, arg)
		}
		b.WriteByte(')')
	case *GetExpression:
		printExpr(b, n.Object)
		b.WriteByte('.')
		b.WriteString(n.Name.Lexeme)
	case *SetExpression:
		printExpr(b, n.Object)
		b.WriteByte('.')
		b.WriteString(n.Name.Lexeme)
		b.WriteString(" = ")
		printExpr(b, n.Value)
	case *ThisExpression:
		b.WriteString("this")
	case *SuperExpression:
		b.WriteString("super.")
		b.WriteString(n.Method.Lexeme)
	}
}

// numberLexeme prefers the scanned lexeme, which re-lexes to the same
// literal by construction. Hand-built nodes fall back to formatting the
// value.
func numberLexeme(n *NumberLiteral) string {
	if n.Token.Lexeme != "" {
		return n.Token.Lexeme
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}
