package runtime

import (
	"fmt"

	"slate/interpreter-go/pkg/ast"
)

// Kind identifies the runtime value category.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindString
	KindFunction
	KindNativeFunction
	KindClass
	KindInstance
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindFunction:
		return "function"
	case KindNativeFunction:
		return "native_function"
	case KindClass:
		return "class"
	case KindInstance:
		return "instance"
	default:
		return fmt.Sprintf("unknown_kind_%d", int(k))
	}
}

// Value is the shared behaviour for all runtime values.
type Value interface {
	Kind() Kind
}

//-----------------------------------------------------------------------------
// Scalars
//-----------------------------------------------------------------------------

type NilValue struct{}

func (NilValue) Kind() Kind { return KindNil }

type BoolValue struct {
	Val bool
}

func (v BoolValue) Kind() Kind { return KindBool }

type NumberValue struct {
	Val float64
}

func (v NumberValue) Kind() Kind { return KindNumber }

type StringValue struct {
	Val string
}

func (v StringValue) Kind() Kind { return KindString }

//-----------------------------------------------------------------------------
// Functions & closures
//-----------------------------------------------------------------------------

// FunctionValue pairs a declaration with the environment active at its
// definition site. Immutable once built; binding a method produces a new
// value rather than mutating this one.
type FunctionValue struct {
	Declaration   *ast.FunctionDeclaration
	Closure       *Environment
	IsInitializer bool
}

func (v *FunctionValue) Kind() Kind { return KindFunction }

// Arity reports the declared parameter count.
func (v *FunctionValue) Arity() int {
	return len(v.Declaration.Params)
}

// BindTo returns a copy of the function whose closure has this wired to
// the given instance, one environment closer than the method body.
func (v *FunctionValue) BindTo(instance *InstanceValue) *FunctionValue {
	bound := v.Closure.Extend()
	bound.Define("this", instance)
	return &FunctionValue{Declaration: v.Declaration, Closure: bound, IsInitializer: v.IsInitializer}
}

// VariadicArity marks a native function that accepts any argument count.
const VariadicArity = -1

type NativeFunc func(args []Value) (Value, error)

type NativeFunctionValue struct {
	Name  string
	Arity int // VariadicArity for variadic natives
	Impl  NativeFunc
}

func (v NativeFunctionValue) Kind() Kind { return KindNativeFunction }

//-----------------------------------------------------------------------------
// Classes & instances
//-----------------------------------------------------------------------------

// ClassValue is immutable after construction. Method tables are keyed by
// name; instance methods and static methods live in separate tables.
type ClassValue struct {
	Name       string
	Superclass *ClassValue
	Methods    map[string]*FunctionValue
	Statics    map[string]*FunctionValue
}

func (v *ClassValue) Kind() Kind { return KindClass }

// FindMethod walks the superclass chain for an instance method.
func (v *ClassValue) FindMethod(name string) (*FunctionValue, bool) {
	for class := v; class != nil; class = class.Superclass {
		if method, ok := class.Methods[name]; ok {
			return method, true
		}
	}
	return nil, false
}

// FindStatic walks the superclass chain for a static method.
func (v *ClassValue) FindStatic(name string) (*FunctionValue, bool) {
	for class := v; class != nil; class = class.Superclass {
		if method, ok := class.Statics[name]; ok {
			return method, true
		}
	}
	return nil, false
}

// InstanceValue is a mutable heap object shared by reference; field writes
// are visible through every alias immediately.
type InstanceValue struct {
	Class  *ClassValue
	Fields map[string]Value
}

func NewInstance(class *ClassValue) *InstanceValue {
	return &InstanceValue{Class: class, Fields: make(map[string]Value)}
}

func (v *InstanceValue) Kind() Kind { return KindInstance }

// Get checks instance fields first, then the method chain, binding any
// found method to this instance.
func (v *InstanceValue) Get(name string) (Value, bool) {
	if field, ok := v.Fields[name]; ok {
		return field, true
	}
	if method, ok := v.Class.FindMethod(name); ok {
		return method.BindTo(v), true
	}
	return nil, false
}

// Set writes a field, creating it on first assignment.
func (v *InstanceValue) Set(name string, value Value) {
	v.Fields[name] = value
}
