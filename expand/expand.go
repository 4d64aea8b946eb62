// Package expand walks a module's declaration tree and materializes the
// concrete methods that can actually be compiled and disassembled.
//
// Generic definitions are closed through explicit instantiation directives.
// An open generic with no directive and no arguments inherited from its
// enclosing type is never compiled; each of its members gets a diagnostic
// instead.
package expand

import (
	"unjit/diag"
	"unjit/metadata"
)

// Item is one listing unit in declaration order: either a concrete method to
// compile and disassemble, or a member-level diagnostic. Signature is the
// declared signature, used when introspection cannot format one.
type Item struct {
	Signature string
	Method    *metadata.ConcreteMethod // nil for diagnostic-only items
	Diag      *diag.Diag
}

// Module expands every top-level type. Nested types are never processed as
// separate roots; they are reached only by recursing from their enclosing
// type, so an enclosing generic instantiated multiple ways expands each
// nested type once per instantiation.
func Module(m *metadata.Module) []Item {
	var items []Item
	for _, t := range m.Types {
		items = appendType(items, t, nil)
	}
	return items
}

func appendType(items []Item, t *metadata.Type, inherited []metadata.TypeRef) []Item {
	var argSets [][]metadata.TypeRef
	switch {
	case t.Arity == 0:
		argSets = [][]metadata.TypeRef{nil}
	case len(t.Directives) > 0:
		for _, d := range t.Directives {
			args := make([]metadata.TypeRef, 0, len(inherited)+len(d.Args))
			args = append(args, inherited...)
			args = append(args, d.Args...)
			argSets = append(argSets, args)
		}
	case len(inherited) == t.Arity:
		argSets = [][]metadata.TypeRef{inherited}
	default:
		// Open generic: one diagnostic per member, no descent.
		for _, m := range t.Methods {
			items = append(items, openItem(t, m))
		}
		return items
	}

	for _, args := range argSets {
		for _, m := range t.Methods {
			items = appendMethod(items, t, m, args)
		}
		for _, n := range t.Nested {
			items = appendType(items, n, args)
		}
	}
	return items
}

func appendMethod(items []Item, t *metadata.Type, m *metadata.Method, typeArgs []metadata.TypeRef) []Item {
	if m.Abstract {
		return items // nothing to compile
	}

	var methodSets [][]metadata.TypeRef
	switch {
	case m.Arity == 0:
		methodSets = [][]metadata.TypeRef{nil}
	case len(m.Directives) > 0:
		// Method-level directives expand the method in isolation; type-level
		// directives are never inherited into the method argument list.
		for _, d := range m.Directives {
			methodSets = append(methodSets, d.Args)
		}
	default:
		return append(items, openItem(t, m))
	}

	for _, margs := range methodSets {
		cm := &metadata.ConcreteMethod{
			Type:       t,
			Method:     m,
			TypeArgs:   typeArgs,
			MethodArgs: margs,
		}
		if m.Intrinsic {
			items = append(items, Item{
				Signature: cm.Signature(),
				Diag:      diag.Newf(diag.KindIntrinsic, "runtime intrinsic; no native body to disassemble"),
			})
			continue
		}
		items = append(items, Item{Signature: cm.Signature(), Method: cm})
	}
	return items
}

func openItem(t *metadata.Type, m *metadata.Method) Item {
	sig := metadata.DeclaredSignature(t, m)
	return Item{
		Signature: sig,
		Diag:      diag.Newf(diag.KindOpenGeneric, "open generic; no instantiation directive: %s", sig),
	}
}
