package codegen

import (
	"github.com/arneph/katara/pkg/regalloc"
	"github.com/arneph/katara/pkg/x64"
)

// Register indices, in x86-64's ModRM numbering (rax=0 .. r15=15).
const (
	idxRAX uint8 = 0
	idxRCX uint8 = 1
	idxRDX uint8 = 2
	idxRBX uint8 = 3
	idxRSP uint8 = 4
	idxRBP uint8 = 5
	idxRSI uint8 = 6
	idxRDI uint8 = 7
	idxR8  uint8 = 8
	idxR9  uint8 = 9
	idxR10 uint8 = 10
	idxR11 uint8 = 11
	idxR12 uint8 = 12
	idxR13 uint8 = 13
	idxR14 uint8 = 14
	idxR15 uint8 = 15
)

// The translator reserves three registers for its own staging (never
// handed out by register allocation) beyond rsp/rbp, which the frame
// convention below already claims: r13 and r14 stage operands for
// mul/div's implicit rax:rdx dance and for read/modify/write lowering of
// ordinary binary operators, r15 carries a mem-to-mem copy's value across
// the two movs it takes since no x86-64 instruction moves memory directly
// to memory.
const (
	scratchA uint8 = idxR13
	scratchB uint8 = idxR14
	scratchC uint8 = idxR15
)

// argRegs and resultRegs are the registers this package's calling
// convention homes the first few call arguments and return values in.
// Grounded on ir_translator.h's GenerateFuncPrologue/GenerateFuncEpilogue
// split (every argument and result gets a fixed home) but using a
// custom, self-contained register assignment: the generated code never
// calls or is called by anything outside itself except through
// internal/driver's JIT entry point, which invokes "main" with zero
// arguments (matching original_source/src/cmd/run.cc), so there is no C
// ABI to match.
var (
	argRegs    = []uint8{idxRDI, idxRSI, idxRDX, idxRCX, idxR8, idxR9}
	resultRegs = []uint8{idxRAX, idxRDX, idxRCX, idxR8}
)

// maxParallelCopyWidth bounds how many values a single phi resolution,
// call, or return site may move at once (spec.md's own examples and the
// embedded shared-pointer runtime never exceed 3 simultaneous values).
// Exceeding it is a translation error, not silently wrong code.
const maxParallelCopyWidth = 16

// Palette is the default set of physical-register colors available to
// register allocation once the translator's own frame pointer, stack
// pointer, and scratch registers are set aside. Pass it to
// regalloc.NewAllocator unless a caller has a reason to further restrict
// it.
func Palette() []regalloc.PhysReg {
	names := []string{
		"rax", "rcx", "rdx", "rbx", "rsi", "rdi", "r8", "r9", "r10", "r11",
	}
	out := make([]regalloc.PhysReg, len(names))
	for i, n := range names {
		out[i] = regalloc.PhysReg(n)
	}
	return out
}

var physRegIndex = map[regalloc.PhysReg]uint8{
	"rax": idxRAX, "rcx": idxRCX, "rdx": idxRDX, "rbx": idxRBX,
	"rsi": idxRSI, "rdi": idxRDI,
	"r8": idxR8, "r9": idxR9, "r10": idxR10, "r11": idxR11,
}

func regIndexOf(p regalloc.PhysReg) (uint8, bool) {
	idx, ok := physRegIndex[p]
	return idx, ok
}

// reg64 returns the 64-bit view of a register index; the translator
// operates at a uniform 64-bit width throughout (see package doc).
func reg64(idx uint8) x64.Reg { return x64.NewReg(x64.Size64, idx) }
