package codegen

import (
	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/x64"
)

// translateBlock lowers every instruction of b into ft.cur, starting with
// ft.cur already set to b's corresponding MCBlock (or, for the entry
// block, positioned just after the prologue). The phi prefix itself is
// never translated here: a phi's value is materialized by every
// predecessor edge that flows into it, in branchTarget.
func (ft *funcTranslator) translateBlock(b *ir.Block) error {
	instrs := b.Instrs()
	prefixLen := b.PhiPrefixLen()
	for i := prefixLen; i < len(instrs); i++ {
		instr := instrs[i]
		switch in := instr.(type) {
		case *ir.Mov:
			if err := ft.translateMov(in); err != nil {
				return err
			}
		case *ir.UnaryAL:
			if err := ft.translateUnaryAL(in); err != nil {
				return err
			}
		case *ir.BinaryAL:
			if err := ft.translateBinaryAL(in); err != nil {
				return err
			}
		case *ir.Compare:
			// A Compare fused into the very next JumpCond is translated
			// entirely by translateJumpCond (it never materializes a 0/1
			// value); otherwise materialize it here via the branch
			// diamond.
			if !ft.compareFusesWithNext(b, i) {
				if err := ft.translateCompareMaterialize(in); err != nil {
					return err
				}
			}
		case *ir.Jump:
			return ft.translateJump(b, in)
		case *ir.JumpCond:
			return ft.translateJumpCond(b, i, in)
		case *ir.Call:
			if err := ft.translateCall(in); err != nil {
				return err
			}
		case *ir.Return:
			return ft.translateReturn(in)
		case *ir.Phi:
			return errorf("phi instruction %s outside the phi prefix", in)
		default:
			return errorf("unsupported instruction %T", in)
		}
	}
	return nil
}

// translateMov lowers a plain copy. A Constant of FuncType source (a
// function address used as data rather than as a direct Call callee) is
// the one operand shape this package cannot encode; see valueSrc.
func (ft *funcTranslator) translateMov(in *ir.Mov) error {
	dst, ok := ft.locOf(in.Result)
	if !ok {
		return nil // result never consumed, evaluated purely for its absent side effects
	}
	src, ok, err := ft.valueSrc(in.Origin)
	if err != nil {
		return err
	}
	if !ok {
		// Source is a Computed regalloc never gave a home to: it was
		// never itself consumed anywhere that survived to this use,
		// which cannot happen for a well-formed program (the Mov's
		// Uses() count as a use). Treat defensively as a bug.
		return errorf("mov %s: origin %s has no assigned location", in, in.Origin)
	}
	emitCopySrc(ft.cur, dst, src)
	return nil
}

// translateUnaryAL lowers not/neg via the read-into-scratch,
// operate-in-place, write-out pattern: the ISA's not/neg only take a
// single read/modify/write operand, so the operand is first copied into
// scratchA (to avoid mutating a location regalloc may believe still holds
// the original, undamaged value), operated on there, then copied to the
// result's real home.
func (ft *funcTranslator) translateUnaryAL(in *ir.UnaryAL) error {
	dst, dstOK := ft.locOf(in.Result)
	src, srcOK, err := ft.valueSrc(in.Operand)
	if err != nil {
		return err
	}
	if !dstOK {
		return nil
	}
	if !srcOK {
		return errorf("%s: operand has no assigned location", in)
	}
	scratch := regLoc(scratchA)
	emitCopySrc(ft.cur, scratch, src)
	var instr x64.Instr
	switch in.Op {
	case ir.Not:
		instr = x64.NewNot(scratch.reg)
	case ir.Neg:
		instr = x64.NewNeg(scratch.reg)
	default:
		return errorf("unsupported unary operator %s", in.Op)
	}
	ft.cur.AddInstr(instr)
	emitCopy(ft.cur, dst, scratch)
	return nil
}

// translateBinaryAL lowers a two-operand arithmetic/logic op. And/Or/Xor/
// Add/Sub go through the ISA's native two-operand ALU encoding (load A
// into scratchA, apply B in place, write out); Mul/Div/Rem go through
// translateMulDivRem, since those three implicitly read and clobber rdx:rax
// regardless of where regalloc placed their operands or result.
func (ft *funcTranslator) translateBinaryAL(in *ir.BinaryAL) error {
	switch in.Op {
	case ir.Mul, ir.Div, ir.Rem:
		return ft.translateMulDivRem(in)
	}

	dst, dstOK := ft.locOf(in.Result)
	aSrc, aOK, err := ft.valueSrc(in.A)
	if err != nil {
		return err
	}
	bSrc, bOK, err := ft.valueSrc(in.B)
	if err != nil {
		return err
	}
	if !dstOK {
		return nil
	}
	if !aOK || !bOK {
		return errorf("%s: an operand has no assigned location", in)
	}

	acc := regLoc(scratchA)
	emitCopySrc(ft.cur, acc, aSrc)

	bReg := regLoc(scratchB)
	emitCopySrc(ft.cur, bReg, bSrc)

	var instr x64.Instr
	switch in.Op {
	case ir.And:
		instr, err = x64.NewAndReg(acc.reg, bReg.reg)
	case ir.Or:
		instr, err = x64.NewOrReg(acc.reg, bReg.reg)
	case ir.Xor:
		instr, err = x64.NewXorReg(acc.reg, bReg.reg)
	case ir.Add:
		instr, err = x64.NewAddReg(acc.reg, bReg.reg)
	case ir.Sub:
		instr, err = x64.NewSubReg(acc.reg, bReg.reg)
	default:
		return errorf("unsupported binary operator %s", in.Op)
	}
	if err != nil {
		return err
	}
	ft.cur.AddInstr(instr)
	emitCopy(ft.cur, dst, acc)
	return nil
}

// translateMulDivRem implements the rax:rdx dance every one of mul/div/rem
// forces (group3Instr's Mul/Div/Idiv all implicitly read/write rax and
// rdx; see instrs_alu.go). Both operands are loaded into scratchA/scratchB
// before rax/rdx are touched, since either operand's Computed may
// currently, legitimately, live in rax or rdx per regalloc's own
// coloring. rax and rdx are saved and restored around the operation, and
// the true result is copied out to scratchC immediately after the
// operation and before the restore, so that a restore that happens to
// target the same physical register as the result's real home can never
// clobber it.
func (ft *funcTranslator) translateMulDivRem(in *ir.BinaryAL) error {
	dst, dstOK := ft.locOf(in.Result)
	aSrc, aOK, err := ft.valueSrc(in.A)
	if err != nil {
		return err
	}
	bSrc, bOK, err := ft.valueSrc(in.B)
	if err != nil {
		return err
	}
	if !dstOK {
		return nil
	}
	if !aOK || !bOK {
		return errorf("%s: an operand has no assigned location", in)
	}

	a := regLoc(scratchA)
	emitCopySrc(ft.cur, a, aSrc)
	b := regLoc(scratchB)
	emitCopySrc(ft.cur, b, bSrc)

	rax := reg64(idxRAX)
	rdx := reg64(idxRDX)
	pushRax, err := x64.NewPushReg(rax)
	must(err)
	ft.cur.AddInstr(pushRax)
	pushRdx, err := x64.NewPushReg(rdx)
	must(err)
	ft.cur.AddInstr(pushRdx)

	movRax, err := x64.NewMovRMReg(rax, a.reg)
	must(err)
	ft.cur.AddInstr(movRax)

	signed := !in.Result.Typ.Unsigned()
	if signed {
		sext, err := x64.NewSignExtendRegAD(x64.Size64)
		must(err)
		ft.cur.AddInstr(sext)
	} else {
		zero, err := x64.NewXorReg(rdx, rdx)
		must(err)
		ft.cur.AddInstr(zero)
	}

	var opInstr x64.Instr
	switch {
	case in.Op == ir.Mul && signed:
		opInstr = x64.NewImul(b.reg)
	case in.Op == ir.Mul:
		opInstr = x64.NewMul(b.reg)
	case signed:
		opInstr = x64.NewIdiv(b.reg)
	default:
		opInstr = x64.NewDiv(b.reg)
	}
	ft.cur.AddInstr(opInstr)

	resultReg := rax // Mul's low word, Div's quotient
	if in.Op == ir.Rem {
		resultReg = rdx
	}
	c := regLoc(scratchC)
	saveResult, err := x64.NewMovRMReg(c.reg, resultReg)
	must(err)
	ft.cur.AddInstr(saveResult)

	popRdx, err := x64.NewPopReg(rdx)
	must(err)
	ft.cur.AddInstr(popRdx)
	popRax, err := x64.NewPopReg(rax)
	must(err)
	ft.cur.AddInstr(popRax)

	emitCopy(ft.cur, dst, c)
	return nil
}
