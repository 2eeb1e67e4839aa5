package interpreter

import (
	"fmt"

	"slate/interpreter-go/pkg/ast"
	"slate/interpreter-go/pkg/diag"
	"slate/interpreter-go/pkg/runtime"
	"slate/interpreter-go/pkg/token"
)

// Interpreter drives evaluation of Slate AST nodes. The current
// environment is threaded explicitly through every evaluation call; the
// only environment the interpreter itself holds is the global one.
type Interpreter struct {
	globals *runtime.Environment
	engine  *diag.Engine
	file    string
	table   map[ast.Expression]int
}

// New returns an interpreter with an empty global environment.
func New(engine *diag.Engine) *Interpreter {
	return &Interpreter{
		globals: runtime.NewEnvironment(nil),
		engine:  engine,
		table:   make(map[ast.Expression]int),
	}
}

// GlobalEnvironment returns the interpreter's global environment.
func (i *Interpreter) GlobalEnvironment() *runtime.Environment {
	return i.globals
}

// SetFile names the source file for diagnostic spans.
func (i *Interpreter) SetFile(file string) {
	i.file = file
}

// RegisterNative installs a host function into the global environment.
func (i *Interpreter) RegisterNative(name string, arity int, impl runtime.NativeFunc) {
	i.globals.Define(name, runtime.NativeFunctionValue{Name: name, Arity: arity, Impl: impl})
}

// Run executes a resolved program. The resolution table entries are merged
// so a REPL can keep feeding new lines through the same interpreter. The
// first runtime error aborts the remainder of the run; its diagnostic has
// already been emitted when Run returns. The returned value is the result
// of the last expression statement, which the REPL echoes.
func (i *Interpreter) Run(program []ast.Statement, table map[ast.Expression]int) (runtime.Value, error) {
	for expr, depth := range table {
		i.table[expr] = depth
	}
	var last runtime.Value = runtime.NilValue{}
	for _, stmt := range program {
		val, err := i.executeStatement(stmt, i.globals)
		if err != nil {
			return nil, i.reportStray(err)
		}
		last = val
	}
	return last, nil
}

// reportStray turns control-flow signals that escaped to the top level
// into diagnostics. The resolver rejects these statically, so this only
// fires for ASTs that bypassed resolution.
func (i *Interpreter) reportStray(err error) error {
	switch err.(type) {
	case returnSignal:
		i.engine.Emit(diag.NewError("'return' outside of a function").
			WithCode(diag.CodeReturnNotInFunction))
		return runtimeHalt{}
	case breakSignal:
		i.engine.Emit(diag.NewError("'break' outside of a loop").
			WithCode(diag.CodeBreakOutsideLoop))
		return runtimeHalt{}
	case continueSignal:
		i.engine.Emit(diag.NewError("'continue' outside of a loop").
			WithCode(diag.CodeContinueOutsideLoop))
		return runtimeHalt{}
	default:
		return err
	}
}

//-----------------------------------------------------------------------------
// Statement execution
//-----------------------------------------------------------------------------

func (i *Interpreter) executeStatement(node ast.Statement, env *runtime.Environment) (runtime.Value, error) {
	switch n := node.(type) {
	case *ast.ExpressionStatement:
		return i.evaluateExpression(n.Expr, env)
	case *ast.VarDeclaration:
		var value runtime.Value = runtime.NilValue{}
		if n.Initializer != nil {
			v, err := i.evaluateExpression(n.Initializer, env)
			if err != nil {
				return nil, err
			}
			value = v
		}
		env.Define(n.Name.Lexeme, value)
		return runtime.NilValue{}, nil
	case *ast.BlockStatement:
		return i.executeBlock(n.Statements, env.Extend())
	case *ast.IfStatement:
		cond, err := i.evaluateExpression(n.Condition, env)
		if err != nil {
			return nil, err
		}
		if isTruthy(cond) {
			return i.executeStatement(n.Then, env)
		}
		if n.Else != nil {
			return i.executeStatement(n.Else, env)
		}
		return runtime.NilValue{}, nil
	case *ast.WhileStatement:
		return i.executeWhile(n, env)
	case *ast.FunctionDeclaration:
		fn := &runtime.FunctionValue{Declaration: n, Closure: env}
		env.Define(n.Name.Lexeme, fn)
		return runtime.NilValue{}, nil
	case *ast.ClassDeclaration:
		return i.executeClassDeclaration(n, env)
	case *ast.ReturnStatement:
		var value runtime.Value = runtime.NilValue{}
		if n.Value != nil {
			v, err := i.evaluateExpression(n.Value, env)
			if err != nil {
				return nil, err
			}
			value = v
		}
		return nil, returnSignal{value: value}
	case *ast.BreakStatement:
		return nil, breakSignal{}
	case *ast.ContinueStatement:
		return nil, continueSignal{}
	default:
		return nil, fmt.Errorf("unsupported statement type: %s", n.NodeType())
	}
}

// executeBlock runs statements in the given environment. The environment
// is dropped on exit unless a closure created inside it captured it.
func (i *Interpreter) executeBlock(statements []ast.Statement, env *runtime.Environment) (runtime.Value, error) {
	var result runtime.Value = runtime.NilValue{}
	for _, stmt := range statements {
		val, err := i.executeStatement(stmt, env)
		if err != nil {
			return nil, err
		}
		result = val
	}
	return result, nil
}

func (i *Interpreter) executeWhile(loop *ast.WhileStatement, env *runtime.Environment) (runtime.Value, error) {
	for {
		cond, err := i.evaluateExpression(loop.Condition, env)
		if err != nil {
			return nil, err
		}
		if !isTruthy(cond) {
			return runtime.NilValue{}, nil
		}
		if _, err := i.executeStatement(loop.Body, env); err != nil {
			switch err.(type) {
			case breakSignal:
				return runtime.NilValue{}, nil
			case continueSignal:
				continue
			default:
				return nil, err
			}
		}
	}
}

//-----------------------------------------------------------------------------
// Control flow signals
//-----------------------------------------------------------------------------

// returnSignal unwinds to the enclosing function call boundary.
type returnSignal struct {
	value runtime.Value
}

func (returnSignal) Error() string { return "return" }

// breakSignal and continueSignal unwind to the nearest enclosing loop.
type breakSignal struct{}

func (breakSignal) Error() string { return "break" }

type continueSignal struct{}

func (continueSignal) Error() string { return "continue" }

// runtimeHalt marks a runtime error whose diagnostic is already in the
// engine; it aborts the remainder of the current top-level run.
type runtimeHalt struct{}

func (runtimeHalt) Error() string { return "runtime error" }

// fail emits the diagnostic and produces the halt signal.
func (i *Interpreter) fail(d *diag.Diagnostic) error {
	i.engine.Emit(d)
	return runtimeHalt{}
}

func (i *Interpreter) span(tok token.Token) diag.Span {
	return diag.Span{File: i.file, Line: tok.Line, Column: tok.Column, Length: tok.Length()}
}

// isTruthy applies Slate's truthiness rule: nil and false are falsy,
// everything else (including 0 and "") is truthy.
func isTruthy(val runtime.Value) bool {
	switch v := val.(type) {
	case runtime.BoolValue:
		return v.Val
	case runtime.NilValue:
		return false
	default:
		return true
	}
}
