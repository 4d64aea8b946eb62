// Package session wraps the runtime-introspection connection: a leasable,
// stateful view over the hosting runtime's compiled-method metadata and
// memory. Sessions are expensive to establish and are reused through a Pool;
// each lease is exclusive to one decompilation request.
package session

import "fmt"

// MethodHandle is the runtime's stable identity for a compiled method.
type MethodHandle uint64

// Arch is the target process architecture as reported by the runtime.
type Arch string

const (
	ArchX86 Arch = "x86"
	ArchX64 Arch = "x64"
)

// Region is a native code byte range.
type Region struct {
	Start uint64
	Size  uint32
}

// MethodRecord is the introspected view of one compiled method. The runtime
// may hold several records for the same metadata token; records with a
// zero-size hot region can coexist with a compiled sibling.
type MethodRecord struct {
	Handle    MethodHandle
	Token     uint32
	Signature string
	Hot       Region
	Cold      Region
}

// Target identifies the runtime under inspection.
type Target struct {
	Flavor   string // e.g. "CoreCLR"
	Version  string
	Arch     Arch
	Profiler bool // a profiling agent is attached; JIT output may differ
}

// Introspector is the runtime-introspection collaborator. Implementations
// maintain an internal metadata cache that Flush invalidates; lookups against
// a stale cache are the reason the locate package retries.
type Introspector interface {
	Flush() error
	// MethodsByHandle returns every record the runtime currently holds for
	// the handle's metadata token, primary record first. Empty when the
	// cached view has not observed the method yet.
	MethodsByHandle(h MethodHandle) ([]MethodRecord, error)
	// MethodByAddress resolves an address inside a compiled method's code.
	// Returns nil, nil when the address is not method code.
	MethodByAddress(addr uint64) (*MethodRecord, error)
	// Signature formats the full signature for a handle, if the runtime
	// can still resolve it.
	Signature(h MethodHandle) (string, bool)
	ReadMemory(addr uint64, buf []byte) (int, error)
	Target() Target
	Close() error
}

// Session is a leased introspection connection. Not safe for concurrent use;
// the pool guarantees at most one in-flight request per session.
type Session struct {
	intro  Introspector
	leased bool
}

// Invalidate flushes the session's cached view of the process. Called at the
// start of every request and between locate stages, never implicitly.
func (s *Session) Invalidate() error { return s.intro.Flush() }

func (s *Session) MethodsByHandle(h MethodHandle) ([]MethodRecord, error) {
	return s.intro.MethodsByHandle(h)
}

func (s *Session) MethodByAddress(addr uint64) (*MethodRecord, error) {
	return s.intro.MethodByAddress(addr)
}

func (s *Session) Signature(h MethodHandle) (string, bool) {
	return s.intro.Signature(h)
}

// ReadMemory reads target process memory. Satisfies disasm.MemoryReader.
func (s *Session) ReadMemory(addr uint64, buf []byte) (int, error) {
	return s.intro.ReadMemory(addr, buf)
}

func (s *Session) Target() Target { return s.intro.Target() }

func (s *Session) String() string {
	t := s.Target()
	return fmt.Sprintf("%s %s (%s)", t.Flavor, t.Version, t.Arch)
}
