// Package hosting declares the runtime-hosting collaborator: a facility that
// loads a compiled module into a disposable, isolated context and forces JIT
// compilation of concrete methods inside it.
//
// Parsing the module's bytecode is the facility's job, not this library's.
// The context owns the module and everything it pulls in; Unload releases the
// isolation boundary on every exit path.
package hosting

import (
	"unjit/metadata"
	"unjit/session"
)

// Facility creates disposable load contexts.
type Facility interface {
	NewContext(name string) (Context, error)
}

// Context is one isolation boundary. A context is owned exclusively by one
// decompilation request and unloaded when the request ends, success or
// failure.
type Context interface {
	// Load parses the byte stream into the module's declaration model.
	Load(data []byte) (*metadata.Module, error)
	// Compile forces native compilation of a concrete method and returns its
	// runtime identity. The native code region is NOT part of the result;
	// locating it is the locate package's problem, because the introspected
	// view of a freshly compiled method is only eventually consistent.
	Compile(m metadata.ConcreteMethod) (CompiledMethod, error)
	// Unload releases the context and the module loaded into it.
	Unload() error
}

// CompiledMethod identifies a JIT-compiled method.
type CompiledMethod struct {
	Handle session.MethodHandle
	Entry  uint64 // native entry point address
	Token  uint32 // metadata token
}
