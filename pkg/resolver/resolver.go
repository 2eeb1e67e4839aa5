package resolver

import (
	"fmt"

	"slate/interpreter-go/pkg/ast"
	"slate/interpreter-go/pkg/diag"
	"slate/interpreter-go/pkg/token"
)

type functionKind int

const (
	functionNone functionKind = iota
	functionPlain
	functionMethod
	functionInitializer
	functionStatic
)

type classKind int

const (
	classNone classKind = iota
	classPlain
	classSubclass
)

// binding tracks one declaration inside a lexical scope. Declared-but-not-
// defined is the window between `var x` and the end of its initializer,
// which is how `var x = x;` self-reference gets caught.
type binding struct {
	declared bool
	defined  bool
	used     bool
	token    token.Token
}

// Resolver performs the static scope pass. Its scope stack mirrors, at
// every point of the walk, the environment chain the interpreter builds
// for the same AST; hop counts are only correct because the two walks
// stay structurally identical.
type Resolver struct {
	engine *diag.Engine
	file   string

	scopes          []map[string]*binding
	table           map[ast.Expression]int
	currentFunction functionKind
	currentClass    classKind
	loopDepth       int

	// WarnUnused can be disabled for REPL lines, where a binding entered on
	// one line is routinely read on a later one.
	WarnUnused bool
}

// New creates a resolver for one source file.
func New(file string, engine *diag.Engine) *Resolver {
	return &Resolver{
		engine:     engine,
		file:       file,
		table:      make(map[ast.Expression]int),
		WarnUnused: true,
	}
}

// Resolve walks the program and returns the resolution table: hop counts
// keyed by use-site expression identity. Globals are absent from the
// table and fall back to dynamic lookup at run time.
func Resolve(program []ast.Statement, file string, engine *diag.Engine) map[ast.Expression]int {
	r := New(file, engine)
	return r.Run(program)
}

// Run resolves the given statements with this resolver's settings.
func (r *Resolver) Run(program []ast.Statement) map[ast.Expression]int {
	for _, stmt := range program {
		r.resolveStatement(stmt)
	}
	return r.table
}

// Table exposes the resolution table built so far (the REPL resolves
// incrementally and reuses one table across lines).
func (r *Resolver) Table() map[ast.Expression]int {
	return r.table
}

//-----------------------------------------------------------------------------
// Scope stack
//-----------------------------------------------------------------------------

func (r *Resolver) beginScope() {
	r.scopes = append(r.scopes, make(map[string]*binding))
}

func (r *Resolver) endScope() {
	scope := r.scopes[len(r.scopes)-1]
	r.scopes = r.scopes[:len(r.scopes)-1]
	if !r.WarnUnused {
		return
	}
	for name, b := range scope {
		if name == "this" || name == "super" {
			continue
		}
		if b.defined && !b.used {
			r.engine.Emit(diag.NewWarning(fmt.Sprintf("variable '%s' is never used", name)).
				WithCode(diag.CodeUnusedVariable).
				WithPrimaryLabel(r.span(b.token), "declared here").
				WithHelp("remove the declaration or prefix the name with _ to keep it"))
		}
	}
}

func (r *Resolver) declare(name token.Token) {
	if len(r.scopes) == 0 {
		return
	}
	scope := r.scopes[len(r.scopes)-1]
	if existing, ok := scope[name.Lexeme]; ok {
		r.engine.Emit(diag.NewError(fmt.Sprintf("duplicate declaration of '%s'", name.Lexeme)).
			WithCode(diag.CodeDuplicateDeclaration).
			WithPrimaryLabel(r.span(name), "redeclared here").
			WithSecondaryLabel(r.span(existing.token), "first declared here"))
		return
	}
	scope[name.Lexeme] = &binding{declared: true, token: name}
}

func (r *Resolver) define(name token.Token) {
	if len(r.scopes) == 0 {
		return
	}
	if b, ok := r.scopes[len(r.scopes)-1][name.Lexeme]; ok {
		b.defined = true
	}
}

// resolveLocal records the hop count for a reference, walking the scope
// stack from innermost outward. References that reach the bottom without
// a hit are globals and stay out of the table.
func (r *Resolver) resolveLocal(expr ast.Expression, name token.Token, isRead bool) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if b, ok := r.scopes[i][name.Lexeme]; ok {
			if isRead {
				b.used = true
			}
			r.table[expr] = len(r.scopes) - 1 - i
			return
		}
	}
}

func (r *Resolver) span(tok token.Token) diag.Span {
	return diag.Span{File: r.file, Line: tok.Line, Column: tok.Column, Length: tok.Length()}
}

//-----------------------------------------------------------------------------
// Statements
//-----------------------------------------------------------------------------

func (r *Resolver) resolveStatement(node ast.Statement) {
	switch n := node.(type) {
	case *ast.ExpressionStatement:
		r.resolveExpression(n.Expr)
	case *ast.VarDeclaration:
		r.declare(n.Name)
		if n.Initializer != nil {
			r.resolveExpression(n.Initializer)
		}
		r.define(n.Name)
	case *ast.BlockStatement:
		r.beginScope()
		for _, stmt := range n.Statements {
			r.resolveStatement(stmt)
		}
		r.endScope()
	case *ast.IfStatement:
		r.resolveExpression(n.Condition)
		r.resolveStatement(n.Then)
		if n.Else != nil {
			r.resolveStatement(n.Else)
		}
	case *ast.WhileStatement:
		r.resolveExpression(n.Condition)
		r.loopDepth++
		r.resolveStatement(n.Body)
		r.loopDepth--
	case *ast.FunctionDeclaration:
		r.declare(n.Name)
		r.define(n.Name)
		r.resolveFunction(n, functionPlain)
	case *ast.ClassDeclaration:
		r.resolveClass(n)
	case *ast.ReturnStatement:
		r.resolveReturn(n)
	case *ast.BreakStatement:
		if r.loopDepth == 0 {
			r.engine.Emit(diag.NewError("'break' outside of a loop").
				WithCode(diag.CodeBreakOutsideLoop).
				WithPrimaryLabel(r.span(n.Keyword), "no enclosing loop"))
		}
	case *ast.ContinueStatement:
		if r.loopDepth == 0 {
			r.engine.Emit(diag.NewError("'continue' outside of a loop").
				WithCode(diag.CodeContinueOutsideLoop).
				WithPrimaryLabel(r.span(n.Keyword), "no enclosing loop"))
		}
	}
}

func (r *Resolver) resolveReturn(n *ast.ReturnStatement) {
	if r.currentFunction == functionNone {
		r.engine.Emit(diag.NewError("'return' outside of a function").
			WithCode(diag.CodeReturnNotInFunction).
			WithPrimaryLabel(r.span(n.Keyword), "no enclosing function"))
	}
	if n.Value != nil {
		if r.currentFunction == functionInitializer {
			r.engine.Emit(diag.NewError("cannot return a value from 'init'").
				WithCode(diag.CodeReturnInInitializer).
				WithPrimaryLabel(r.span(n.Keyword), "initializers always return the new instance").
				WithHelp("use a bare 'return;' to exit early"))
		}
		r.resolveExpression(n.Value)
	}
}

// resolveFunction opens the scope that the interpreter mirrors with the
// call-frame environment: parameters first, then the body statements,
// without an extra block scope around them.
func (r *Resolver) resolveFunction(fn *ast.FunctionDeclaration, kind functionKind) {
	enclosing := r.currentFunction
	r.currentFunction = kind
	enclosingLoop := r.loopDepth
	r.loopDepth = 0

	r.beginScope()
	for _, param := range fn.Params {
		r.declare(param)
		r.define(param)
	}
	for _, stmt := range fn.Body {
		r.resolveStatement(stmt)
	}
	r.endScope()

	r.loopDepth = enclosingLoop
	r.currentFunction = enclosing
}

func (r *Resolver) resolveClass(n *ast.ClassDeclaration) {
	enclosing := r.currentClass
	r.currentClass = classPlain

	// The class name is declared before the superclass expression resolves,
	// so a later binding can legally shadow it; direct self-inheritance is
	// still an error.
	r.declare(n.Name)
	r.define(n.Name)

	if n.Superclass != nil {
		if n.Superclass.Name.Lexeme == n.Name.Lexeme {
			r.engine.Emit(diag.NewError(fmt.Sprintf("class '%s' cannot inherit from itself", n.Name.Lexeme)).
				WithCode(diag.CodeSelfInheritance).
				WithPrimaryLabel(r.span(n.Superclass.Name), "inherits from itself"))
		}
		r.currentClass = classSubclass
		r.resolveExpression(n.Superclass)
	}

	// Static methods resolve outside both synthetic scopes, so 'this' and
	// 'super' inside them fail at resolution time instead of at run time.
	for _, method := range n.StaticMethods {
		r.resolveFunction(method, functionStatic)
	}

	if n.Superclass != nil {
		r.beginScope()
		r.scopes[len(r.scopes)-1]["super"] = &binding{declared: true, defined: true, token: n.Name}
	}

	r.beginScope()
	r.scopes[len(r.scopes)-1]["this"] = &binding{declared: true, defined: true, token: n.Name}
	for _, method := range n.Methods {
		kind := functionMethod
		if method.Name.Lexeme == "init" {
			kind = functionInitializer
		}
		r.resolveFunction(method, kind)
	}
	r.endScope()

	if n.Superclass != nil {
		r.endScope()
	}

	r.currentClass = enclosing
}

//-----------------------------------------------------------------------------
// Expressions
//-----------------------------------------------------------------------------

func (r *Resolver) resolveExpression(node ast.Expression) {
	switch n := node.(type) {
	case *ast.Identifier:
		r.resolveIdentifier(n)
	case *ast.NumberLiteral, *ast.StringLiteral, *ast.BooleanLiteral, *ast.NilLiteral:
		// nothing to resolve
	case *ast.GroupingExpression:
		r.resolveExpression(n.Inner)
	case *ast.UnaryExpression:
		r.resolveExpression(n.Operand)
	case *ast.BinaryExpression:
		r.resolveExpression(n.Left)
		r.resolveExpression(n.Right)
	case *ast.LogicalExpression:
		r.resolveExpression(n.Left)
		r.resolveExpression(n.Right)
	case *ast.TernaryExpression:
		r.resolveExpression(n.Condition)
		r.resolveExpression(n.Then)
		r.resolveExpression(n.Else)
	case *ast.AssignmentExpression:
		r.resolveExpression(n.Value)
		r.resolveLocal(n, n.Name, false)
	case *ast.CallExpression:
		r.resolveExpression(n.Callee)
		for _, arg := range n.Args {
			r.resolveExpression(arg)
		}
	case *ast.GetExpression:
		r.resolveExpression(n.Object)
	case *ast.SetExpression:
		r.resolveExpression(n.Object)
		r.resolveExpression(n.Value)
	case *ast.ThisExpression:
		r.resolveThis(n)
	case *ast.SuperExpression:
		r.resolveSuper(n)
	}
}

func (r *Resolver) resolveIdentifier(n *ast.Identifier) {
	if len(r.scopes) > 0 {
		if b, ok := r.scopes[len(r.scopes)-1][n.Name.Lexeme]; ok && b.declared && !b.defined {
			r.engine.Emit(diag.NewError(fmt.Sprintf("'%s' used in its own initializer", n.Name.Lexeme)).
				WithCode(diag.CodeSelfReference).
				WithPrimaryLabel(r.span(n.Name), "refers to the variable being declared").
				WithSecondaryLabel(r.span(b.token), "declaration here"))
			return
		}
	}
	r.resolveLocal(n, n.Name, true)
}

func (r *Resolver) resolveThis(n *ast.ThisExpression) {
	if r.currentClass == classNone || r.currentFunction == functionStatic {
		r.engine.Emit(diag.NewError("'this' outside of an instance method").
			WithCode(diag.CodeInvalidThis).
			WithPrimaryLabel(r.span(n.Keyword), "no enclosing instance method"))
		return
	}
	r.resolveLocal(n, n.Keyword, true)
}

func (r *Resolver) resolveSuper(n *ast.SuperExpression) {
	switch {
	case r.currentClass == classNone || r.currentFunction == functionStatic:
		r.engine.Emit(diag.NewError("'super' outside of an instance method").
			WithCode(diag.CodeInvalidSuper).
			WithPrimaryLabel(r.span(n.Keyword), "no enclosing instance method"))
		return
	case r.currentClass != classSubclass:
		r.engine.Emit(diag.NewError("'super' in a class with no superclass").
			WithCode(diag.CodeInvalidSuper).
			WithPrimaryLabel(r.span(n.Keyword), "this class has no parent"))
		return
	}
	r.resolveLocal(n, n.Keyword, true)
}
