// Package metadata models a loaded compiled module: its type and method
// declarations, generic instantiation directives, and the concrete
// (closed) methods produced from them.
//
// The model is an immutable view over the module as parsed by the hosting
// facility. Nothing here touches the runtime.
package metadata

import "fmt"

// TypeRef names a type used as a generic argument or in a method signature.
// A TypeRef is either a concrete type or a placeholder for a generic
// parameter that is substituted during instantiation.
type TypeRef struct {
	Name      string // concrete type name, e.g. "int32", "string"
	Reference bool   // reference type (heap-allocated), not a value type

	Param       bool // placeholder for a generic parameter
	MethodParam bool // method-level parameter (valid when Param)
	Index       int  // parameter position (valid when Param)
}

// TypeParam returns a placeholder for the type-level generic parameter at i.
func TypeParam(i int) TypeRef { return TypeRef{Param: true, Index: i} }

// MethodParam returns a placeholder for the method-level generic parameter at i.
func MethodParam(i int) TypeRef { return TypeRef{Param: true, MethodParam: true, Index: i} }

// Resolve substitutes generic parameter placeholders from the given argument
// lists. Concrete refs pass through unchanged. Out-of-range placeholders
// resolve to a "!n"/"!!n" position marker rather than panicking, so a
// malformed directive degrades to a readable signature.
func (r TypeRef) Resolve(typeArgs, methodArgs []TypeRef) TypeRef {
	if !r.Param {
		return r
	}
	args := typeArgs
	marker := "!"
	if r.MethodParam {
		args = methodArgs
		marker = "!!"
	}
	if r.Index >= 0 && r.Index < len(args) {
		return args[r.Index]
	}
	return TypeRef{Name: fmt.Sprintf("%s%d", marker, r.Index)}
}

func (r TypeRef) String() string {
	if r.Param {
		if r.MethodParam {
			return fmt.Sprintf("!!%d", r.Index)
		}
		return fmt.Sprintf("!%d", r.Index)
	}
	return r.Name
}

// Directive is an explicit instantiation directive attached to a generic
// type or method definition. Each directive materializes one concrete
// instantiation with the given arguments.
type Directive struct {
	Args []TypeRef
}

// Method is a method or constructor declaration.
type Method struct {
	Name       string
	Arity      int // method-level generic parameter count
	Directives []Directive

	Abstract  bool // no body, never compiled
	Intrinsic bool // runtime-provided implementation, no emitted native body
	Ctor      bool

	Params []TypeRef
	Return TypeRef
	Token  uint32 // metadata token, stable across introspection records
}

// Type is a type declaration. Arity counts all generic parameters visible on
// the type, including those inherited from enclosing types, so a nested type
// is closed exactly when Arity arguments are supplied.
type Type struct {
	Name       string // full display name, e.g. "Demo.Pair" or "Demo.Outer.Inner"
	Arity      int
	Directives []Directive

	Methods []*Method
	Nested  []*Type

	HasInitializer bool // declares a static/type initializer
}

// Module is a loaded compiled module. Top-level types only; nested types are
// reachable through their enclosing type.
type Module struct {
	Name           string
	Types          []*Type
	HasInitializer bool // module-level initializer
}

// UnsupportedConstructError is returned when a module declares a static or
// module-level initializer. Triggering JIT compilation can transitively run
// such initializers with unrepeatable side effects, so the whole request is
// refused before any code is touched.
type UnsupportedConstructError struct {
	Type string // offending type, or "" for a module-level initializer
}

func (e *UnsupportedConstructError) Error() string {
	if e.Type == "" {
		return "unsupported construct: module declares an initializer"
	}
	return fmt.Sprintf("unsupported construct: type %s declares a static initializer", e.Type)
}

// Validate scans every declared type, nested included, for static
// initializers. It must run before any method is compiled.
func Validate(m *Module) error {
	if m.HasInitializer {
		return &UnsupportedConstructError{}
	}
	for _, t := range m.Types {
		if err := validateType(t); err != nil {
			return err
		}
	}
	return nil
}

func validateType(t *Type) error {
	if t.HasInitializer {
		return &UnsupportedConstructError{Type: t.Name}
	}
	for _, n := range t.Nested {
		if err := validateType(n); err != nil {
			return err
		}
	}
	return nil
}
