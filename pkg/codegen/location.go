package codegen

import "github.com/arneph/katara/pkg/x64"

// loc names where a 64-bit value currently lives: a register, or a memory
// slot relative to rbp.
type loc struct {
	isReg bool
	reg   x64.Reg
	mem   x64.Mem
}

func regLoc(idx uint8) loc { return loc{isReg: true, reg: reg64(idx)} }
func memLoc(m x64.Mem) loc { return loc{mem: m} }

// copySrc is the source side of a copy: either an immediate or a loc.
type copySrc struct {
	isImm bool
	imm   x64.Imm
	l     loc
}

func immSrc(imm x64.Imm) copySrc { return copySrc{isImm: true, imm: imm} }
func locSrc(l loc) copySrc       { return copySrc{l: l} }

// emitCopy moves src into dst, which must be a different operand (the
// caller is responsible for not asking to move a location into itself).
// Memory-to-memory moves stage through scratchC, since no x86-64
// instruction moves memory to memory directly.
func emitCopy(blk *x64.MCBlock, dst, src loc) {
	switch {
	case dst.isReg && src.isReg:
		instr, err := x64.NewMovRMReg(dst.reg, src.reg)
		must(err)
		blk.AddInstr(instr)
	case dst.isReg && !src.isReg:
		instr, err := x64.NewMovRegMem(dst.reg, src.mem)
		must(err)
		blk.AddInstr(instr)
	case !dst.isReg && src.isReg:
		instr, err := x64.NewMovRMReg(dst.mem, src.reg)
		must(err)
		blk.AddInstr(instr)
	default:
		tmp := reg64(scratchC)
		load, err := x64.NewMovRegMem(tmp, src.mem)
		must(err)
		blk.AddInstr(load)
		store, err := x64.NewMovRMReg(dst.mem, tmp)
		must(err)
		blk.AddInstr(store)
	}
}

// emitCopyImm stores an immediate into dst. NewMovImm's sign-extending
// 64-bit form only exists for a register destination (see instrs_data.go);
// a 64-bit memory destination has no imm64/imm32-into-mem64 form at all, so
// a memory dst stages the immediate through scratchC first.
func emitCopyImm(blk *x64.MCBlock, dst loc, imm x64.Imm) {
	if dst.isReg {
		instr, err := x64.NewMovImm(dst.reg, imm)
		must(err)
		blk.AddInstr(instr)
		return
	}
	tmp := reg64(scratchC)
	load, err := x64.NewMovImm(tmp, imm)
	must(err)
	blk.AddInstr(load)
	store, err := x64.NewMovRMReg(dst.mem, tmp)
	must(err)
	blk.AddInstr(store)
}

func emitCopySrc(blk *x64.MCBlock, dst loc, src copySrc) {
	if src.isImm {
		emitCopyImm(blk, dst, src.imm)
		return
	}
	emitCopy(blk, dst, src.l)
}

// must panics on an error pkg/x64's own constructors would only return
// for an operand-shape mistake this package's lowering must never make
// (e.g. mismatched operand sizes): a real, unrecoverable bug, not a
// reportable translation failure.
func must(err error) {
	if err != nil {
		panic("BUG: codegen: " + err.Error())
	}
}
