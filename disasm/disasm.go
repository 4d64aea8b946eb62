// Package disasm decodes a compiled method's hot region into annotated
// instructions using golang.org/x/arch/x86/x86asm. Only the two x86 variants
// the decoder's translator understands are supported; anything else is a
// fatal UnsupportedArchitectureError.
package disasm

import (
	"fmt"

	"golang.org/x/arch/x86/x86asm"

	"unjit/session"
)

// Mode is the disassembler's architecture mode in bits.
type Mode int

const (
	Mode32 Mode = 32
	Mode64 Mode = 64
)

// UnsupportedArchitectureError is fatal: the runtime reports an architecture
// the decoder cannot translate.
type UnsupportedArchitectureError struct {
	Arch session.Arch
}

func (e *UnsupportedArchitectureError) Error() string {
	return fmt.Sprintf("unsupported architecture %q: only x86 and x64 are supported", e.Arch)
}

// ModeFor maps the runtime's reported architecture to a decoder mode.
func ModeFor(arch session.Arch) (Mode, error) {
	switch arch {
	case session.ArchX86:
		return Mode32, nil
	case session.ArchX64:
		return Mode64, nil
	}
	return 0, &UnsupportedArchitectureError{Arch: arch}
}

// MemoryReader reads target process memory. session.Session satisfies it.
type MemoryReader interface {
	ReadMemory(addr uint64, buf []byte) (int, error)
}

// OperandKind classifies an instruction's first operand for symbol resolution.
type OperandKind int

const (
	OperandNone     OperandKind = iota
	OperandRelative             // PC-relative branch/call displacement
	OperandAbsolute             // possible absolute address of other code
)

// Operand is the decoded metadata of an instruction's first operand.
type Operand struct {
	Kind  OperandKind
	Width int    // encoded width of the relative immediate, in bits
	Rel   int64  // signed displacement (OperandRelative)
	Abs   uint64 // absolute address (OperandAbsolute)
	Text  string // raw operand text, for failed-to-resolve annotations
}

// Instruction is one decoded instruction, positioned by its byte offset from
// the method start.
type Instruction struct {
	Offset uint32
	Len    int
	Text   string // mnemonic + operands
	Op     Operand
}

// Facility is the disassembler collaborator: it turns a code byte range into
// a lazy instruction sequence.
type Facility interface {
	Decode(start uint64, size uint32, mode Mode) (*Stream, error)
}

// X86 implements Facility over a memory reader.
type X86 struct {
	mem MemoryReader
}

func NewX86(mem MemoryReader) *X86 {
	return &X86{mem: mem}
}

// Decode reads the hot region once and returns a stream decoding it lazily.
// The stream covers exactly [start, start+size).
func (d *X86) Decode(start uint64, size uint32, mode Mode) (*Stream, error) {
	buf := make([]byte, size)
	n, err := d.mem.ReadMemory(start, buf)
	if err != nil {
		return nil, fmt.Errorf("read code region at 0x%x: %w", start, err)
	}
	if n < int(size) {
		return nil, fmt.Errorf("short read of code region at 0x%x: %d of %d bytes", start, n, size)
	}
	return &Stream{start: start, data: buf, mode: int(mode)}, nil
}

// Stream is a finite, non-restartable instruction sequence over one region.
type Stream struct {
	start uint64
	data  []byte
	off   uint32
	mode  int
}

// Next decodes the instruction at the current offset. Undecodable bytes are
// emitted as single "db" lines so the stream stays byte-accurate; offsets are
// strictly increasing.
func (s *Stream) Next() (Instruction, bool) {
	if int(s.off) >= len(s.data) {
		return Instruction{}, false
	}

	inst, err := x86asm.Decode(s.data[s.off:], s.mode)
	if err != nil || inst.Len == 0 {
		out := Instruction{
			Offset: s.off,
			Len:    1,
			Text:   fmt.Sprintf("db 0x%02x", s.data[s.off]),
		}
		s.off++
		return out, true
	}

	out := Instruction{
		Offset: s.off,
		Len:    inst.Len,
		Text:   x86asm.IntelSyntax(inst, uint64(s.off), nil),
		Op:     firstOperand(inst, s.start, s.off),
	}
	s.off += uint32(inst.Len)
	return out, true
}

// firstOperand extracts resolution metadata from the first operand, when
// present. Relative displacements carry their encoded width so the resolver
// can refuse widths it cannot interpret; memory operands with a direct or
// RIP-relative address are rebased to an absolute process address.
func firstOperand(inst x86asm.Inst, start uint64, off uint32) Operand {
	if inst.Args[0] == nil {
		return Operand{}
	}
	a := inst.Args[0]
	text := a.String()

	switch arg := a.(type) {
	case x86asm.Rel:
		return Operand{
			Kind:  OperandRelative,
			Width: inst.PCRel * 8,
			Rel:   int64(arg),
			Text:  text,
		}
	case x86asm.Imm:
		return Operand{Kind: OperandAbsolute, Abs: uint64(int64(arg)), Text: text}
	case x86asm.Mem:
		if arg.Base == x86asm.RIP && arg.Index == 0 {
			next := start + uint64(off) + uint64(inst.Len)
			return Operand{Kind: OperandAbsolute, Abs: uint64(int64(next) + arg.Disp), Text: text}
		}
		if arg.Base == 0 && arg.Index == 0 && arg.Segment == 0 {
			return Operand{Kind: OperandAbsolute, Abs: uint64(arg.Disp), Text: text}
		}
	}
	return Operand{Text: text}
}
