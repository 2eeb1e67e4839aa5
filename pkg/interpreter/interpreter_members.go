package interpreter

import (
	"fmt"

	"slate/interpreter-go/pkg/ast"
	"slate/interpreter-go/pkg/diag"
	"slate/interpreter-go/pkg/runtime"
)

//-----------------------------------------------------------------------------
// Calls
//-----------------------------------------------------------------------------

func (i *Interpreter) evaluateCall(n *ast.CallExpression, env *runtime.Environment) (runtime.Value, error) {
	callee, err := i.evaluateExpression(n.Callee, env)
	if err != nil {
		return nil, err
	}
	args := make([]runtime.Value, 0, len(n.Args))
	for _, argExpr := range n.Args {
		arg, err := i.evaluateExpression(argExpr, env)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	switch fn := callee.(type) {
	case *runtime.FunctionValue:
		if err := i.checkArity(n, fn, len(args)); err != nil {
			return nil, err
		}
		return i.callFunction(fn, args)
	case runtime.NativeFunctionValue:
		if fn.Arity != runtime.VariadicArity && fn.Arity != len(args) {
			return nil, i.fail(diag.NewError(fmt.Sprintf("wrong number of arguments: '%s' takes %d, got %d", fn.Name, fn.Arity, len(args))).
				WithCode(diag.CodeWrongNumberOfArguments).
				WithPrimaryLabel(i.span(n.Paren), fmt.Sprintf("call supplies %d argument(s)", len(args))))
		}
		result, err := fn.Impl(args)
		if err != nil {
			return nil, i.fail(diag.NewError(fmt.Sprintf("%s: %v", fn.Name, err)).
				WithCode(diag.CodeTypeError).
				WithPrimaryLabel(i.span(n.Paren), "in this call"))
		}
		if result == nil {
			result = runtime.NilValue{}
		}
		return result, nil
	case *runtime.ClassValue:
		return i.instantiate(n, fn, args)
	default:
		return nil, i.fail(diag.NewError(fmt.Sprintf("%s is not callable", callee.Kind())).
			WithCode(diag.CodeNotCallable).
			WithPrimaryLabel(i.span(n.Paren), "only functions and classes can be called"))
	}
}

// checkArity reports a mismatch before the body runs, labelling both the
// call site and the declaration.
func (i *Interpreter) checkArity(n *ast.CallExpression, fn *runtime.FunctionValue, argCount int) error {
	if fn.Arity() == argCount {
		return nil
	}
	name := fn.Declaration.Name
	return i.fail(diag.NewError(fmt.Sprintf("wrong number of arguments: '%s' takes %d, got %d", name.Lexeme, fn.Arity(), argCount)).
		WithCode(diag.CodeWrongNumberOfArguments).
		WithPrimaryLabel(i.span(n.Paren), fmt.Sprintf("call supplies %d argument(s)", argCount)).
		WithSecondaryLabel(i.span(name), fmt.Sprintf("'%s' declared with %d parameter(s)", name.Lexeme, fn.Arity())))
}

// callFunction binds arguments into a fresh environment parented by the
// function's captured closure, not the caller's environment. That parent
// choice is what makes closures lexical rather than dynamic.
func (i *Interpreter) callFunction(fn *runtime.FunctionValue, args []runtime.Value) (runtime.Value, error) {
	callEnv := fn.Closure.Extend()
	for idx, param := range fn.Declaration.Params {
		callEnv.Define(param.Lexeme, args[idx])
	}

	_, err := i.executeBlock(fn.Declaration.Body, callEnv)
	if err != nil {
		if ret, ok := err.(returnSignal); ok {
			if fn.IsInitializer {
				return i.initializerThis(fn)
			}
			return ret.value, nil
		}
		return nil, err
	}
	if fn.IsInitializer {
		return i.initializerThis(fn)
	}
	return runtime.NilValue{}, nil
}

// initializerThis returns the instance bound at method-bind time; init
// always yields the new instance regardless of how it exits.
func (i *Interpreter) initializerThis(fn *runtime.FunctionValue) (runtime.Value, error) {
	this, err := fn.Closure.GetAt(0, "this")
	if err != nil {
		return nil, fmt.Errorf("initializer missing 'this' binding: %w", err)
	}
	return this, nil
}

//-----------------------------------------------------------------------------
// Classes
//-----------------------------------------------------------------------------

// executeClassDeclaration binds the class name to nil first so methods can
// close over it by name, then rebinds it to the finished class value.
func (i *Interpreter) executeClassDeclaration(n *ast.ClassDeclaration, env *runtime.Environment) (runtime.Value, error) {
	env.Define(n.Name.Lexeme, runtime.NilValue{})

	var superclass *runtime.ClassValue
	if n.Superclass != nil {
		superVal, err := i.evaluateExpression(n.Superclass, env)
		if err != nil {
			return nil, err
		}
		sc, ok := superVal.(*runtime.ClassValue)
		if !ok {
			return nil, i.fail(diag.NewError(fmt.Sprintf("superclass of '%s' must be a class", n.Name.Lexeme)).
				WithCode(diag.CodeInvalidSuperclass).
				WithPrimaryLabel(i.span(n.Superclass.Name), fmt.Sprintf("this is a %s", superVal.Kind())))
		}
		superclass = sc
	}

	// Instance methods close over an extra environment carrying 'super';
	// static methods close over the declaration environment directly. The
	// resolver mirrors exactly this shape.
	methodEnv := env
	if superclass != nil {
		methodEnv = env.Extend()
		methodEnv.Define("super", superclass)
	}

	methods := make(map[string]*runtime.FunctionValue, len(n.Methods))
	for _, decl := range n.Methods {
		methods[decl.Name.Lexeme] = &runtime.FunctionValue{
			Declaration:   decl,
			Closure:       methodEnv,
			IsInitializer: decl.Name.Lexeme == "init",
		}
	}
	statics := make(map[string]*runtime.FunctionValue, len(n.StaticMethods))
	for _, decl := range n.StaticMethods {
		statics[decl.Name.Lexeme] = &runtime.FunctionValue{Declaration: decl, Closure: env}
	}

	class := &runtime.ClassValue{
		Name:       n.Name.Lexeme,
		Superclass: superclass,
		Methods:    methods,
		Statics:    statics,
	}
	if err := env.Assign(n.Name.Lexeme, class); err != nil {
		return nil, fmt.Errorf("rebind class '%s': %w", n.Name.Lexeme, err)
	}
	return runtime.NilValue{}, nil
}

// instantiate allocates a fresh instance and runs 'init' when the class
// chain declares one; without an initializer the call must be empty.
func (i *Interpreter) instantiate(n *ast.CallExpression, class *runtime.ClassValue, args []runtime.Value) (runtime.Value, error) {
	instance := runtime.NewInstance(class)
	initializer, ok := class.FindMethod("init")
	if !ok {
		if len(args) != 0 {
			return nil, i.fail(diag.NewError(fmt.Sprintf("wrong number of arguments: '%s' has no initializer and takes 0, got %d", class.Name, len(args))).
				WithCode(diag.CodeWrongNumberOfArguments).
				WithPrimaryLabel(i.span(n.Paren), fmt.Sprintf("call supplies %d argument(s)", len(args))))
		}
		return instance, nil
	}
	bound := initializer.BindTo(instance)
	if err := i.checkArity(n, bound, len(args)); err != nil {
		return nil, err
	}
	if _, err := i.callFunction(bound, args); err != nil {
		return nil, err
	}
	return instance, nil
}

//-----------------------------------------------------------------------------
// Properties
//-----------------------------------------------------------------------------

func (i *Interpreter) evaluateGet(n *ast.GetExpression, env *runtime.Environment) (runtime.Value, error) {
	object, err := i.evaluateExpression(n.Object, env)
	if err != nil {
		return nil, err
	}
	switch obj := object.(type) {
	case *runtime.InstanceValue:
		if val, ok := obj.Get(n.Name.Lexeme); ok {
			return val, nil
		}
		return nil, i.fail(diag.NewError(fmt.Sprintf("undefined property '%s'", n.Name.Lexeme)).
			WithCode(diag.CodeUndefinedProperty).
			WithPrimaryLabel(i.span(n.Name), fmt.Sprintf("'%s' instances have no such field or method", obj.Class.Name)))
	case *runtime.ClassValue:
		if method, ok := obj.FindStatic(n.Name.Lexeme); ok {
			return method, nil
		}
		return nil, i.fail(diag.NewError(fmt.Sprintf("undefined static method '%s'", n.Name.Lexeme)).
			WithCode(diag.CodeUndefinedProperty).
			WithPrimaryLabel(i.span(n.Name), fmt.Sprintf("class '%s' has no such static method", obj.Name)))
	default:
		return nil, i.fail(diag.NewError(fmt.Sprintf("%s has no properties", object.Kind())).
			WithCode(diag.CodeInvalidPropertyTarget).
			WithPrimaryLabel(i.span(n.Name), "only instances and classes have properties"))
	}
}

func (i *Interpreter) evaluateSet(n *ast.SetExpression, env *runtime.Environment) (runtime.Value, error) {
	object, err := i.evaluateExpression(n.Object, env)
	if err != nil {
		return nil, err
	}
	instance, ok := object.(*runtime.InstanceValue)
	if !ok {
		return nil, i.fail(diag.NewError(fmt.Sprintf("cannot set property on %s", object.Kind())).
			WithCode(diag.CodeInvalidPropertyTarget).
			WithPrimaryLabel(i.span(n.Name), "only instance fields can be assigned"))
	}
	value, err := i.evaluateExpression(n.Value, env)
	if err != nil {
		return nil, err
	}
	instance.Set(n.Name.Lexeme, value)
	return value, nil
}

// evaluateSuper starts the method search at the superclass recorded in
// the environment chain, never at the dynamic class of 'this', and binds
// the found method to the 'this' one environment closer.
func (i *Interpreter) evaluateSuper(n *ast.SuperExpression, env *runtime.Environment) (runtime.Value, error) {
	distance, ok := i.table[n]
	if !ok {
		return nil, i.fail(diag.NewError("'super' outside of an instance method").
			WithCode(diag.CodeInvalidSuper).
			WithPrimaryLabel(i.span(n.Keyword), "no enclosing subclass method"))
	}
	superVal, err := env.GetAt(distance, "super")
	if err != nil {
		return nil, fmt.Errorf("missing 'super' binding: %w", err)
	}
	superclass, ok := superVal.(*runtime.ClassValue)
	if !ok {
		return nil, fmt.Errorf("'super' bound to %s", superVal.Kind())
	}
	thisVal, err := env.GetAt(distance-1, "this")
	if err != nil {
		return nil, fmt.Errorf("missing 'this' binding: %w", err)
	}
	instance, ok := thisVal.(*runtime.InstanceValue)
	if !ok {
		return nil, fmt.Errorf("'this' bound to %s", thisVal.Kind())
	}
	method, found := superclass.FindMethod(n.Method.Lexeme)
	if !found {
		return nil, i.fail(diag.NewError(fmt.Sprintf("undefined property '%s'", n.Method.Lexeme)).
			WithCode(diag.CodeUndefinedProperty).
			WithPrimaryLabel(i.span(n.Method), fmt.Sprintf("'%s' and its ancestors have no such method", superclass.Name)))
	}
	return method.BindTo(instance), nil
}
