package codegen

import (
	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/x64"
)

// compareFusesWithNext reports whether b's Compare at index i can skip
// materializing a 0/1 value entirely and be folded straight into the
// conditional jump that follows it: the Compare must be the instruction
// immediately before b's terminator, that terminator must be a JumpCond
// testing exactly the Compare's result, and the result must not be read
// anywhere else in the func (a phi in some successor, say, would still
// need a materialized value to copy).
func (ft *funcTranslator) compareFusesWithNext(b *ir.Block, i int) bool {
	instrs := b.Instrs()
	if i+1 != len(instrs)-1 {
		return false
	}
	cmp := instrs[i].(*ir.Compare)
	jc, ok := instrs[i+1].(*ir.JumpCond)
	if !ok {
		return false
	}
	cond, ok := jc.Cond.(ir.Computed)
	if !ok || !cond.Equal(cmp.Result) {
		return false
	}
	return ft.useCount(cmp.Result) == 1
}

// useCount scans every instruction and phi argument of the func for
// occurrences of v, including the implicit "uses" phi arguments represent.
// Only called for Compare results deciding fusion eligibility, which keeps
// the scan cheap in practice (it's bounded by one func's instruction
// count, not run per value in general).
func (ft *funcTranslator) useCount(v ir.Computed) int {
	n := 0
	for _, b := range ft.irFunc.Blocks() {
		for _, instr := range b.Instrs() {
			for _, use := range instr.Uses() {
				if c, ok := use.(ir.Computed); ok && c.Equal(v) {
					n++
				}
			}
		}
	}
	return n
}

// compareCond maps an ir.CompareOp to the x64.Cond that tests the result of
// a preceding signed-or-unsigned cmp the same way. Gt/Gte/Lte/Lt pick the
// signed or unsigned family of condition codes per the operand type, since
// "greater than" means something different for signed vs. unsigned bit
// patterns.
func compareCond(op ir.CompareOp, unsigned bool) x64.Cond {
	switch op {
	case ir.Eq:
		return x64.CondEqual
	case ir.Neq:
		return x64.CondNotEqual
	case ir.Gt:
		if unsigned {
			return x64.CondAbove
		}
		return x64.CondGreater
	case ir.Gte:
		if unsigned {
			return x64.CondAboveOrEqual
		}
		return x64.CondGreaterOrEq
	case ir.Lte:
		if unsigned {
			return x64.CondBelowOrEqual
		}
		return x64.CondLessOrEqual
	case ir.Lt:
		if unsigned {
			return x64.CondBelow
		}
		return x64.CondLess
	default:
		panic("BUG: codegen: unknown compare operator")
	}
}

// emitCmp loads a into scratchA and emits a cmp of it against b: a Constant
// b whose immediate fits group1's RM,Imm encoding is folded in as an
// immediate directly, any other b is first loaded into scratchB. Since a
// Compare's A and B always share a type (an invariant retained unchanged
// here), and this package carries every scalar at 64-bit width, the
// comparison is always a 64-bit cmp.
func (ft *funcTranslator) emitCmp(a, b ir.Value) error {
	aSrc, aOK, err := ft.valueSrc(a)
	if err != nil {
		return err
	}
	bSrc, bOK, err := ft.valueSrc(b)
	if err != nil {
		return err
	}
	if !aOK || !bOK {
		return errorf("compare: an operand has no assigned location")
	}

	lhs := regLoc(scratchA)
	emitCopySrc(ft.cur, lhs, aSrc)

	// group1 (cmp included) has no imm64 encoding — newGroup1RMImm rejects
	// it outright — so a 64-bit-magnitude constant must be materialized
	// into a register first, same as any other non-immediate operand.
	if bSrc.isImm && bSrc.imm.Size() != x64.Size64 {
		instr, err := x64.NewCmp(lhs.reg, bSrc.imm)
		if err != nil {
			return err
		}
		ft.cur.AddInstr(instr)
		return nil
	}
	rhs := regLoc(scratchB)
	emitCopySrc(ft.cur, rhs, bSrc)
	instr, err := x64.NewCmpReg(lhs.reg, rhs.reg)
	if err != nil {
		return err
	}
	ft.cur.AddInstr(instr)
	return nil
}

// translateCompareMaterialize lowers a Compare whose bool result is
// consumed by something other than an immediately following JumpCond: a
// three-block diamond computes the 0/1 value explicitly, since pkg/x64 has
// no SETcc-family instruction (see codegen.go's package doc). ft.cur is
// left positioned at the diamond's continuation block, so the rest of the
// original ir.Block's instructions keep appending after it.
func (ft *funcTranslator) translateCompareMaterialize(in *ir.Compare) error {
	dst, ok := ft.locOf(in.Result)
	if !ok {
		return nil
	}
	if err := ft.emitCmp(in.A, in.B); err != nil {
		return err
	}

	trueBlk := ft.mcFunc.AddBlock()
	falseBlk := ft.mcFunc.AddBlock()
	contBlk := ft.mcFunc.AddBlock()

	unsigned := in.A.ValueType().Unsigned()
	cond := compareCond(in.Op, unsigned)
	jcc := x64.NewJcc(cond, trueBlk.Ref())
	ft.cur.AddInstr(jcc)
	jmpFalse := x64.NewJmpBlock(falseBlk.Ref())
	ft.cur.AddInstr(jmpFalse)

	emitCopyImm(trueBlk, dst, x64.Imm32(1))
	trueBlk.AddInstr(x64.NewJmpBlock(contBlk.Ref()))

	emitCopyImm(falseBlk, dst, x64.Imm32(0))
	falseBlk.AddInstr(x64.NewJmpBlock(contBlk.Ref()))

	ft.cur = contBlk
	return nil
}
