// Package callgraph builds lattice graphs from decompiled methods: an
// inter-method call graph from resolved call annotations, and per-method
// control flow graphs from the decoded instruction stream.
package callgraph

import (
	"sort"
	"strings"

	"github.com/zboralski/lattice"

	"unjit/disasm"
)

// MethodInfo holds the data needed to build graphs for one decompiled method.
// Calls maps instruction offsets to resolved callee signatures.
type MethodInfo struct {
	Signature string
	Insts     []disasm.Instruction
	Calls     map[uint32]string
}

// BuildCallGraph constructs a lattice.Graph. Each method becomes a node and
// each resolved call annotation an edge; unresolved call targets are skipped.
func BuildCallGraph(methods []MethodInfo) *lattice.Graph {
	g := &lattice.Graph{}
	for _, m := range methods {
		g.Nodes = append(g.Nodes, m.Signature)
		for _, off := range sortedOffsets(m.Calls) {
			callee := m.Calls[off]
			if callee == "" {
				continue
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: m.Signature,
				Callee: callee,
			})
		}
	}
	g.Dedup()
	return g
}

// BuildCFG constructs a lattice.CFGGraph with one FuncCFG per method.
func BuildCFG(methods []MethodInfo) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, m := range methods {
		cg.Funcs = append(cg.Funcs, buildFuncCFG(m))
	}
	return cg
}

// buildFuncCFG partitions a method's instructions into basic blocks:
//  1. Find block leaders: index 0, local branch targets, instructions after
//     terminators.
//  2. Partition instructions into blocks by leaders.
//  3. Compute successor edges from each block's last instruction.
func buildFuncCFG(m MethodInfo) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: m.Signature}
	if len(m.Insts) == 0 {
		return lcfg
	}

	size := regionSize(m.Insts)

	// Map offset → instruction index for branch target resolution.
	offToIdx := make(map[uint32]int, len(m.Insts))
	for i, inst := range m.Insts {
		offToIdx[inst.Offset] = i
	}

	// Pass 1: identify leaders.
	leaders := map[int]bool{0: true}
	for i, inst := range m.Insts {
		b, ok := branchInfo(inst, size)
		if !ok {
			continue
		}
		if i+1 < len(m.Insts) {
			leaders[i+1] = true
		}
		if b.local {
			if ti, found := offToIdx[b.target]; found {
				leaders[ti] = true
			}
		}
	}

	// Pass 2: partition into blocks.
	var starts []int
	for i := range m.Insts {
		if leaders[i] {
			starts = append(starts, i)
		}
	}
	sort.Ints(starts)

	blockAt := make(map[int]int, len(starts)) // leader index → block ID
	for id, s := range starts {
		blockAt[s] = id
	}

	// Pass 3: blocks with successors and call sites.
	for id, s := range starts {
		end := len(m.Insts)
		if id+1 < len(starts) {
			end = starts[id+1]
		}
		lb := &lattice.BasicBlock{ID: id, Start: s, End: end}

		last := m.Insts[end-1]
		b, isBranch := branchInfo(last, size)
		switch {
		case isBranch && b.ret:
			lb.Term = true
		case isBranch && b.local:
			if ti, found := offToIdx[b.target]; found {
				cond := ""
				if b.cond {
					cond = "T"
				}
				lb.Succs = append(lb.Succs, lattice.Successor{BlockID: blockAt[ti], Cond: cond})
			}
			if b.cond && end < len(m.Insts) {
				lb.Succs = append(lb.Succs, lattice.Successor{BlockID: blockAt[end], Cond: "F"})
			}
			if !b.cond && len(lb.Succs) == 0 {
				lb.Term = true // unconditional branch out of the method
			}
		case isBranch && !b.local:
			lb.Term = true // tail jump to foreign code
		default:
			if end < len(m.Insts) {
				lb.Succs = append(lb.Succs, lattice.Successor{BlockID: blockAt[end]})
			}
		}

		for idx := s; idx < end; idx++ {
			if callee, ok := m.Calls[m.Insts[idx].Offset]; ok && callee != "" {
				lb.Calls = append(lb.Calls, lattice.CallSite{Offset: idx, Callee: callee})
			}
		}

		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}

type branch struct {
	target uint32
	local  bool
	cond   bool
	ret    bool
}

// branchInfo classifies an instruction as a block terminator. Calls return to
// the next instruction and do not terminate blocks.
func branchInfo(inst disasm.Instruction, size uint32) (branch, bool) {
	mn := mnemonic(inst.Text)
	switch {
	case mn == "ret":
		return branch{ret: true}, true
	case mn == "call":
		return branch{}, false
	case mn == "jmp" || strings.HasPrefix(mn, "j"):
		b := branch{cond: mn != "jmp"}
		if inst.Op.Kind == disasm.OperandRelative {
			t := int64(inst.Offset) + int64(inst.Len) + inst.Op.Rel
			if t >= 0 && t < int64(size) {
				b.target = uint32(t)
				b.local = true
			}
		}
		return b, true
	}
	return branch{}, false
}

func mnemonic(text string) string {
	f := strings.Fields(text)
	if len(f) == 0 {
		return ""
	}
	return strings.ToLower(f[0])
}

func regionSize(insts []disasm.Instruction) uint32 {
	last := insts[len(insts)-1]
	return last.Offset + uint32(last.Len)
}

func sortedOffsets(calls map[uint32]string) []uint32 {
	offs := make([]uint32, 0, len(calls))
	for off := range calls {
		offs = append(offs, off)
	}
	sort.Slice(offs, func(i, j int) bool { return offs[i] < offs[j] })
	return offs
}
