package metadata

import "strings"

// ConcreteMethod is a closed type/method pair ready for JIT compilation:
// the declaration plus the concrete arguments substituted for every generic
// parameter. Produced by the expand package, consumed per method and never
// cached across methods.
type ConcreteMethod struct {
	Type       *Type
	Method     *Method
	TypeArgs   []TypeRef
	MethodArgs []TypeRef
}

// Signature reconstructs the full signature from the module's own
// declarations. Used when introspection cannot format one (open generics,
// methods that were never compiled).
func (c ConcreteMethod) Signature() string {
	var b strings.Builder
	b.WriteString(c.Type.Name)
	writeArgs(&b, c.TypeArgs)
	b.WriteByte('.')
	if c.Method.Ctor {
		b.WriteString(".ctor")
	} else {
		b.WriteString(c.Method.Name)
	}
	writeArgs(&b, c.MethodArgs)
	b.WriteByte('(')
	for i, p := range c.Method.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.Resolve(c.TypeArgs, c.MethodArgs).String())
	}
	b.WriteByte(')')
	return b.String()
}

// HasReferenceArgs reports whether any concrete generic argument is a
// reference type. Region lookups for such instantiations are a documented
// runtime limitation and get an annotated diagnostic.
func (c ConcreteMethod) HasReferenceArgs() bool {
	for _, a := range c.TypeArgs {
		if a.Reference {
			return true
		}
	}
	for _, a := range c.MethodArgs {
		if a.Reference {
			return true
		}
	}
	return false
}

// DeclaredSignature formats the open declaration of a method, with generic
// parameters left as position markers. Used for diagnostic-only members.
func DeclaredSignature(t *Type, m *Method) string {
	return ConcreteMethod{Type: t, Method: m}.Signature()
}

func writeArgs(b *strings.Builder, args []TypeRef) {
	if len(args) == 0 {
		return
	}
	b.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte('>')
}
