// Package unjit turns a compiled module into an annotated native-code
// listing by forcing JIT compilation inside a disposable hosting context and
// disassembling what the runtime produced.
//
// The pipeline: lease an introspection session, load the module into an
// isolated context, expand generic instantiation directives into concrete
// methods, compile each one, locate its hot code region, and disassemble it
// with local branch labels and foreign call annotations. Members that cannot
// be compiled or located degrade to diagnostic comments in the listing; only
// unsupported module constructs and unsupported architectures abort the
// request.
//
// The Decompiler is the entry point; hosting.Facility and session.Introspector
// are the two collaborators a caller must supply.
package unjit
