// Package diag provides non-fatal diagnostics emitted into decompilation listings.
package diag

import "fmt"

// Kind classifies a diagnostic message.
type Kind string

const (
	KindOpenGeneric    Kind = "open_generic"    // generic definition with no instantiation directive
	KindIntrinsic      Kind = "intrinsic"       // runtime-intrinsic method, no native body
	KindRegionNotFound Kind = "region_not_found" // all locate stages exhausted
	KindCompileFailed  Kind = "compile_failed"  // runtime refused to JIT the method
	KindReadFailed     Kind = "read_failed"     // code region could not be read
	KindOperand        Kind = "operand"         // per-instruction operand resolution failure
)

// Diag records a non-fatal issue tied to one member or instruction.
// Diagnostics are written into the listing, never returned as errors.
type Diag struct {
	Kind Kind
	Msg  string
}

func (d Diag) String() string { return d.Msg }

// Newf builds a diagnostic with a formatted message.
func Newf(kind Kind, format string, args ...any) *Diag {
	return &Diag{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
