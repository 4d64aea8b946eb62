// Package listing renders the decompilation output: a header, optional
// environment notes, and per-member blocks of labeled instructions or
// diagnostic comments. The text format is a stable contract.
package listing

import (
	"fmt"
	"io"

	"unjit/diag"
	"unjit/disasm"
	"unjit/session"
)

const indent = "    "

// Writer emits one listing. Not safe for concurrent use; a listing is owned
// by a single request.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Header names the runtime flavor, version, module, and target architecture.
func (lw *Writer) Header(t session.Target, moduleName string) {
	fmt.Fprintf(lw.w, "; %s %s (%s) on %s.\n", t.Flavor, t.Version, moduleName, t.Arch)
}

// ProfilerNote warns that a profiling agent is active. Profiling measurably
// perturbs JIT output, so the condition is surfaced, never hidden.
func (lw *Writer) ProfilerNote() {
	fmt.Fprintln(lw.w, "; WARNING: a profiling agent is attached; generated code may be affected.")
}

// Member starts a member block: a blank line, then the full signature.
func (lw *Writer) Member(signature string) {
	fmt.Fprintf(lw.w, "\n%s\n", signature)
}

// Instruction writes one labeled instruction line, with an optional
// annotation comment.
func (lw *Writer) Instruction(inst disasm.Instruction, annotation string) {
	if annotation != "" {
		fmt.Fprintf(lw.w, "%s%s: %s ; %s\n", indent, disasm.Label(inst.Offset), inst.Text, annotation)
		return
	}
	fmt.Fprintf(lw.w, "%s%s: %s\n", indent, disasm.Label(inst.Offset), inst.Text)
}

// Diagnostic writes a comment line in place of instructions.
func (lw *Writer) Diagnostic(d *diag.Diag) {
	fmt.Fprintf(lw.w, "%s; %s\n", indent, d.Msg)
}

// Note writes an informational comment line inside a member block.
func (lw *Writer) Note(format string, args ...any) {
	fmt.Fprintf(lw.w, "%s; %s\n", indent, fmt.Sprintf(format, args...))
}
