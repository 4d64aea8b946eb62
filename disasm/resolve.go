package disasm

import "fmt"

// ForeignLookup resolves an absolute address to another compiled method's
// full signature. Returns ("", false) when the address is not method code —
// which is the common case, not an error.
type ForeignLookup func(addr uint64) (string, bool)

// Resolution is the symbol annotation for one instruction.
type Resolution struct {
	Annotation string // "" = no annotation
	Callee     string // resolved foreign signature, when the operand was a call target
	Failed     bool   // relative operand had an uninterpretable width
}

// Label renders a byte offset as a local label.
func Label(off uint32) string {
	return fmt.Sprintf("L%04X", off)
}

// Resolve computes the symbol annotation for an instruction's first operand.
//
// A PC-relative displacement whose target lands inside the region resolves to
// a local label: the instruction's offset from the method start, plus its
// length, plus the signed displacement. Displacements encoded at a width
// other than 8, 16 or 32 bits cannot be interpreted; rather than emit a wrong
// address, the raw operand text is annotated as unresolved. A relative target
// outside the region, or an absolute operand, is looked up as a possible
// foreign method and annotated with its signature when found.
func Resolve(inst Instruction, start uint64, size uint32, lookup ForeignLookup) Resolution {
	switch inst.Op.Kind {
	case OperandRelative:
		switch inst.Op.Width {
		case 8, 16, 32:
		default:
			return Resolution{
				Annotation: fmt.Sprintf("failed to resolve %s", inst.Op.Text),
				Failed:     true,
			}
		}
		target := int64(inst.Offset) + int64(inst.Len) + inst.Op.Rel
		if target >= 0 && target < int64(size) {
			return Resolution{Annotation: Label(uint32(target))}
		}
		if lookup != nil {
			if sig, ok := lookup(uint64(int64(start) + target)); ok {
				return Resolution{Annotation: sig, Callee: sig}
			}
		}
	case OperandAbsolute:
		if lookup != nil {
			if sig, ok := lookup(inst.Op.Abs); ok {
				return Resolution{Annotation: sig, Callee: sig}
			}
		}
	}
	return Resolution{}
}
