package interpreter

import (
	"fmt"
	"math"

	"slate/interpreter-go/pkg/ast"
	"slate/interpreter-go/pkg/diag"
	"slate/interpreter-go/pkg/runtime"
	"slate/interpreter-go/pkg/token"
)

func (i *Interpreter) evaluateExpression(node ast.Expression, env *runtime.Environment) (runtime.Value, error) {
	switch n := node.(type) {
	case *ast.NumberLiteral:
		return runtime.NumberValue{Val: n.Value}, nil
	case *ast.StringLiteral:
		return runtime.StringValue{Val: n.Value}, nil
	case *ast.BooleanLiteral:
		return runtime.BoolValue{Val: n.Value}, nil
	case *ast.NilLiteral:
		return runtime.NilValue{}, nil
	case *ast.GroupingExpression:
		return i.evaluateExpression(n.Inner, env)
	case *ast.Identifier:
		return i.lookUpVariable(n.Name, n, env)
	case *ast.UnaryExpression:
		return i.evaluateUnary(n, env)
	case *ast.BinaryExpression:
		return i.evaluateBinary(n, env)
	case *ast.LogicalExpression:
		return i.evaluateLogical(n, env)
	case *ast.TernaryExpression:
		cond, err := i.evaluateExpression(n.Condition, env)
		if err != nil {
			return nil, err
		}
		if isTruthy(cond) {
			return i.evaluateExpression(n.Then, env)
		}
		return i.evaluateExpression(n.Else, env)
	case *ast.AssignmentExpression:
		return i.evaluateAssignment(n, env)
	case *ast.CallExpression:
		return i.evaluateCall(n, env)
	case *ast.GetExpression:
		return i.evaluateGet(n, env)
	case *ast.SetExpression:
		return i.evaluateSet(n, env)
	case *ast.ThisExpression:
		return i.lookUpVariable(n.Keyword, n, env)
	case *ast.SuperExpression:
		return i.evaluateSuper(n, env)
	default:
		return nil, fmt.Errorf("unsupported expression type: %s", n.NodeType())
	}
}

// lookUpVariable reads a reference. Resolved references walk exactly the
// hop count recorded by the resolver; unresolved ones fall back to a full
// chain search ending at the global environment.
func (i *Interpreter) lookUpVariable(name token.Token, expr ast.Expression, env *runtime.Environment) (runtime.Value, error) {
	if distance, ok := i.table[expr]; ok {
		val, err := env.GetAt(distance, name.Lexeme)
		if err != nil {
			return nil, i.undeclared(name)
		}
		return val, nil
	}
	val, err := env.Get(name.Lexeme)
	if err != nil {
		return nil, i.undeclared(name)
	}
	return val, nil
}

func (i *Interpreter) undeclared(name token.Token) error {
	return i.fail(diag.NewError(fmt.Sprintf("undeclared variable '%s'", name.Lexeme)).
		WithCode(diag.CodeUndeclaredVariable).
		WithPrimaryLabel(i.span(name), "not found in any enclosing scope"))
}

func (i *Interpreter) evaluateAssignment(n *ast.AssignmentExpression, env *runtime.Environment) (runtime.Value, error) {
	value, err := i.evaluateExpression(n.Value, env)
	if err != nil {
		return nil, err
	}
	if distance, ok := i.table[n]; ok {
		if err := env.AssignAt(distance, n.Name.Lexeme, value); err != nil {
			return nil, i.undeclared(n.Name)
		}
		return value, nil
	}
	if err := env.Assign(n.Name.Lexeme, value); err != nil {
		return nil, i.undeclared(n.Name)
	}
	return value, nil
}

func (i *Interpreter) evaluateUnary(n *ast.UnaryExpression, env *runtime.Environment) (runtime.Value, error) {
	operand, err := i.evaluateExpression(n.Operand, env)
	if err != nil {
		return nil, err
	}
	switch n.Operator.Kind {
	case token.Bang:
		return runtime.BoolValue{Val: !isTruthy(operand)}, nil
	case token.Minus:
		num, ok := operand.(runtime.NumberValue)
		if !ok {
			return nil, i.fail(diag.NewError("operand of unary '-' must be a number").
				WithCode(diag.CodeTypeError).
				WithPrimaryLabel(i.span(n.Operator), fmt.Sprintf("operand is %s", operand.Kind())))
		}
		return runtime.NumberValue{Val: -num.Val}, nil
	default:
		return nil, i.fail(diag.NewError(fmt.Sprintf("invalid unary operator '%s'", n.Operator.Lexeme)).
			WithCode(diag.CodeInvalidOperator).
			WithPrimaryLabel(i.span(n.Operator), ""))
	}
}

func (i *Interpreter) evaluateLogical(n *ast.LogicalExpression, env *runtime.Environment) (runtime.Value, error) {
	left, err := i.evaluateExpression(n.Left, env)
	if err != nil {
		return nil, err
	}
	if n.Operator.Kind == token.OrOr {
		if isTruthy(left) {
			return left, nil
		}
	} else {
		if !isTruthy(left) {
			return left, nil
		}
	}
	return i.evaluateExpression(n.Right, env)
}

func (i *Interpreter) evaluateBinary(n *ast.BinaryExpression, env *runtime.Environment) (runtime.Value, error) {
	left, err := i.evaluateExpression(n.Left, env)
	if err != nil {
		return nil, err
	}
	right, err := i.evaluateExpression(n.Right, env)
	if err != nil {
		return nil, err
	}

	op := n.Operator
	switch op.Kind {
	case token.Plus:
		return i.evaluatePlus(op, left, right)
	case token.Minus, token.Star, token.Slash, token.Percent:
		return i.evaluateArithmetic(op, left, right)
	case token.Greater, token.GreaterEqual, token.Less, token.LessEqual:
		return i.evaluateComparison(op, left, right)
	case token.EqualEqual:
		return runtime.BoolValue{Val: valuesEqual(left, right)}, nil
	case token.BangEqual:
		return runtime.BoolValue{Val: !valuesEqual(left, right)}, nil
	default:
		return nil, i.fail(diag.NewError(fmt.Sprintf("invalid binary operator '%s'", op.Lexeme)).
			WithCode(diag.CodeInvalidOperator).
			WithPrimaryLabel(i.span(op), ""))
	}
}

// evaluatePlus adds numbers, or concatenates when either side is a string
// and the other is a string or number (numbers coerce to text).
func (i *Interpreter) evaluatePlus(op token.Token, left, right runtime.Value) (runtime.Value, error) {
	if ln, ok := left.(runtime.NumberValue); ok {
		if rn, ok := right.(runtime.NumberValue); ok {
			return runtime.NumberValue{Val: ln.Val + rn.Val}, nil
		}
	}
	lt, lok := concatOperand(left)
	rt, rok := concatOperand(right)
	if lok && rok {
		return runtime.StringValue{Val: lt + rt}, nil
	}
	return nil, i.fail(diag.NewError("operands of '+' must be numbers, or strings mixed with numbers").
		WithCode(diag.CodeTypeError).
		WithPrimaryLabel(i.span(op), fmt.Sprintf("operands are %s and %s", left.Kind(), right.Kind())))
}

// concatOperand textualizes a value for '+' concatenation. Only strings
// and numbers participate; at least one side must be a string, which
// holds whenever this is reached with both sides admissible because the
// all-numeric case was already handled.
func concatOperand(val runtime.Value) (string, bool) {
	switch v := val.(type) {
	case runtime.StringValue:
		return v.Val, true
	case runtime.NumberValue:
		return formatNumber(v.Val), true
	default:
		return "", false
	}
}

func (i *Interpreter) evaluateArithmetic(op token.Token, left, right runtime.Value) (runtime.Value, error) {
	ln, lok := left.(runtime.NumberValue)
	rn, rok := right.(runtime.NumberValue)
	if !lok || !rok {
		return nil, i.fail(diag.NewError(fmt.Sprintf("operands of '%s' must be numbers", op.Lexeme)).
			WithCode(diag.CodeTypeError).
			WithPrimaryLabel(i.span(op), fmt.Sprintf("operands are %s and %s", left.Kind(), right.Kind())))
	}
	switch op.Kind {
	case token.Minus:
		return runtime.NumberValue{Val: ln.Val - rn.Val}, nil
	case token.Star:
		return runtime.NumberValue{Val: ln.Val * rn.Val}, nil
	case token.Slash:
		if rn.Val == 0 {
			return nil, i.divisionByZero(op)
		}
		return runtime.NumberValue{Val: ln.Val / rn.Val}, nil
	case token.Percent:
		if rn.Val == 0 {
			return nil, i.divisionByZero(op)
		}
		return runtime.NumberValue{Val: math.Mod(ln.Val, rn.Val)}, nil
	default:
		return nil, i.fail(diag.NewError(fmt.Sprintf("invalid arithmetic operator '%s'", op.Lexeme)).
			WithCode(diag.CodeInvalidOperator).
			WithPrimaryLabel(i.span(op), ""))
	}
}

func (i *Interpreter) divisionByZero(op token.Token) error {
	return i.fail(diag.NewError("division by zero").
		WithCode(diag.CodeDivisionByZero).
		WithPrimaryLabel(i.span(op), "right operand is zero"))
}

func (i *Interpreter) evaluateComparison(op token.Token, left, right runtime.Value) (runtime.Value, error) {
	ln, lok := left.(runtime.NumberValue)
	rn, rok := right.(runtime.NumberValue)
	if !lok || !rok {
		return nil, i.fail(diag.NewError(fmt.Sprintf("operands of '%s' must be numbers", op.Lexeme)).
			WithCode(diag.CodeTypeError).
			WithPrimaryLabel(i.span(op), fmt.Sprintf("operands are %s and %s", left.Kind(), right.Kind())))
	}
	var result bool
	switch op.Kind {
	case token.Greater:
		result = ln.Val > rn.Val
	case token.GreaterEqual:
		result = ln.Val >= rn.Val
	case token.Less:
		result = ln.Val < rn.Val
	case token.LessEqual:
		result = ln.Val <= rn.Val
	}
	return runtime.BoolValue{Val: result}, nil
}

// valuesEqual compares across types, yielding false on kind mismatch
// rather than erroring. Functions, classes, and instances compare by
// identity.
func valuesEqual(left, right runtime.Value) bool {
	switch lv := left.(type) {
	case runtime.NilValue:
		_, ok := right.(runtime.NilValue)
		return ok
	case runtime.BoolValue:
		if rv, ok := right.(runtime.BoolValue); ok {
			return lv.Val == rv.Val
		}
	case runtime.NumberValue:
		if rv, ok := right.(runtime.NumberValue); ok {
			return lv.Val == rv.Val
		}
	case runtime.StringValue:
		if rv, ok := right.(runtime.StringValue); ok {
			return lv.Val == rv.Val
		}
	case *runtime.FunctionValue:
		if rv, ok := right.(*runtime.FunctionValue); ok {
			return lv == rv
		}
	case *runtime.ClassValue:
		if rv, ok := right.(*runtime.ClassValue); ok {
			return lv == rv
		}
	case *runtime.InstanceValue:
		if rv, ok := right.(*runtime.InstanceValue); ok {
			return lv == rv
		}
	case runtime.NativeFunctionValue:
		if rv, ok := right.(runtime.NativeFunctionValue); ok {
			return lv.Name == rv.Name
		}
	}
	return false
}
