package codegen

import (
	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/x64"
)

// branchTarget returns the BlockRef a jump from block `from` to block `to`
// should actually target: `to`'s own MCBlock when `to` has no phis (the
// common case), or a small trampoline block that resolves `to`'s phis for
// this specific predecessor edge and then jumps on, when it does. Each
// edge gets its own trampoline, so two branches into the same phi-bearing
// block never share one (their phi arguments may differ per predecessor).
func (ft *funcTranslator) branchTarget(from ir.BlockID, to ir.BlockID) (x64.BlockRef, error) {
	succ := ft.irFunc.Block(to)
	phis := succ.Phis()
	if len(phis) == 0 {
		return ft.blockOf[to].Ref(), nil
	}

	trampoline := ft.mcFunc.AddBlock()
	var srcs []copySrc
	var dsts []loc
	for _, phi := range phis {
		val, ok := phi.ArgOf(from)
		if !ok {
			return x64.BlockRef{}, errorf("phi %s has no argument for predecessor block %d", phi.Result, from)
		}
		dst, ok := ft.locOf(phi.Result)
		if !ok {
			continue
		}
		src, ok, err := ft.valueSrc(val)
		if err != nil {
			return x64.BlockRef{}, err
		}
		if !ok {
			return x64.BlockRef{}, errorf("phi %s argument %s has no assigned location", phi.Result, val)
		}
		srcs = append(srcs, src)
		dsts = append(dsts, dst)
	}
	temps := ft.stageIntoTemps(trampoline, srcs)
	for i, dst := range dsts {
		emitCopy(trampoline, dst, temps[i])
	}
	trampoline.AddInstr(x64.NewJmpBlock(ft.blockOf[to].Ref()))
	return trampoline.Ref(), nil
}

func (ft *funcTranslator) translateJump(b *ir.Block, j *ir.Jump) error {
	target, err := ft.branchTarget(b.ID(), j.Dst.Block)
	if err != nil {
		return err
	}
	ft.cur.AddInstr(x64.NewJmpBlock(target))
	return nil
}

// translateJumpCond lowers a conditional terminator. When the JumpCond
// directly follows a Compare it fuses with (compareFusesWithNext already
// confirmed this at idx-1), the comparison is emitted here directly and
// tested with its own condition code; otherwise the condition value
// (already materialized, by a prior translateCompareMaterialize or by
// whatever instruction produced it) is compared against zero.
func (ft *funcTranslator) translateJumpCond(b *ir.Block, idx int, jc *ir.JumpCond) error {
	trueTarget, err := ft.branchTarget(b.ID(), jc.DstTrue.Block)
	if err != nil {
		return err
	}
	falseTarget, err := ft.branchTarget(b.ID(), jc.DstFalse.Block)
	if err != nil {
		return err
	}

	if idx > 0 {
		if cmp, ok := b.Instrs()[idx-1].(*ir.Compare); ok && ft.compareFusesWithNext(b, idx-1) {
			if err := ft.emitCmp(cmp.A, cmp.B); err != nil {
				return err
			}
			cond := compareCond(cmp.Op, cmp.A.ValueType().Unsigned())
			ft.cur.AddInstr(x64.NewJcc(cond, trueTarget))
			ft.cur.AddInstr(x64.NewJmpBlock(falseTarget))
			return nil
		}
	}

	src, ok, err := ft.valueSrc(jc.Cond)
	if err != nil {
		return err
	}
	if !ok {
		return errorf("jcc: condition %s has no assigned location", jc.Cond)
	}
	reg := regLoc(scratchA)
	emitCopySrc(ft.cur, reg, src)
	test, err := x64.NewCmp(reg.reg, x64.Imm8(0))
	if err != nil {
		return err
	}
	ft.cur.AddInstr(test)
	ft.cur.AddInstr(x64.NewJcc(x64.CondNotEqual, trueTarget))
	ft.cur.AddInstr(x64.NewJmpBlock(falseTarget))
	return nil
}

// translateCall lowers a call per abi.go's convention: the first six
// arguments and first four results live in fixed registers, the rest are
// passed on the stack, caller-allocated in both directions (see argHome and
// resultHome in func.go for the callee-side view of the stack layout this
// produces and consumes).
func (ft *funcTranslator) translateCall(in *ir.Call) error {
	ref, err := ft.directCallee(in.Callee)
	if err != nil {
		return err
	}

	numRegArgs := len(in.Args)
	if numRegArgs > len(argRegs) {
		numRegArgs = len(argRegs)
	}
	extraArgs := in.Args[numRegArgs:]
	extraResultsCount := 0
	if len(in.Rets) > len(resultRegs) {
		extraResultsCount = len(in.Rets) - len(resultRegs)
	}
	if len(extraArgs) > maxParallelCopyWidth || extraResultsCount > maxParallelCopyWidth {
		return errorf("call %s: too many stack-passed arguments/results for this translator", in)
	}

	if extraResultsCount > 0 {
		instr, err := x64.NewSub(reg64(idxRSP), x64.Imm32(8*extraResultsCount))
		if err != nil {
			return err
		}
		ft.cur.AddInstr(instr)
	}

	for k := len(extraArgs) - 1; k >= 0; k-- {
		src, ok, err := ft.valueSrc(extraArgs[k])
		if err != nil {
			return err
		}
		if !ok {
			return errorf("call %s: argument %d has no assigned location", in, numRegArgs+k)
		}
		if err := ft.emitPush(src); err != nil {
			return err
		}
	}

	var regSrcs []copySrc
	for i := 0; i < numRegArgs; i++ {
		src, ok, err := ft.valueSrc(in.Args[i])
		if err != nil {
			return err
		}
		if !ok {
			return errorf("call %s: argument %d has no assigned location", in, i)
		}
		regSrcs = append(regSrcs, src)
	}
	argTemps := ft.stageIntoTemps(ft.cur, regSrcs)
	for i, t := range argTemps {
		emitCopy(ft.cur, regLoc(argRegs[i]), t)
	}

	ft.cur.AddInstr(x64.NewCallFunc(ref))

	if len(extraArgs) > 0 {
		instr, err := x64.NewAdd(reg64(idxRSP), x64.Imm32(8*len(extraArgs)))
		if err != nil {
			return err
		}
		ft.cur.AddInstr(instr)
	}

	var resultSrcs []copySrc
	var resultDsts []loc
	for i, ret := range in.Rets {
		dst, ok := ft.locOf(ret)
		if !ok {
			continue
		}
		var src loc
		if i < len(resultRegs) {
			src = regLoc(resultRegs[i])
		} else {
			j := int32(i - len(resultRegs))
			src = memLoc(x64.NewMemBaseDisp(x64.Size64, reg64(idxRSP), 8*j))
		}
		resultSrcs = append(resultSrcs, locSrc(src))
		resultDsts = append(resultDsts, dst)
	}
	resultTemps := ft.stageIntoTemps(ft.cur, resultSrcs)

	if extraResultsCount > 0 {
		instr, err := x64.NewAdd(reg64(idxRSP), x64.Imm32(8*extraResultsCount))
		if err != nil {
			return err
		}
		ft.cur.AddInstr(instr)
	}

	for i, dst := range resultDsts {
		emitCopy(ft.cur, dst, resultTemps[i])
	}
	return nil
}

func (ft *funcTranslator) emitPush(src copySrc) error {
	if src.isImm {
		// push has no imm64 form (NewPushImm rejects Size64); a 64-bit-
		// magnitude constant is loaded into scratchC and pushed as a
		// register instead.
		if src.imm.Size() == x64.Size64 {
			tmp := reg64(scratchC)
			mov, err := x64.NewMovImm(tmp, src.imm)
			if err != nil {
				return err
			}
			ft.cur.AddInstr(mov)
			instr, err := x64.NewPushReg(tmp)
			if err != nil {
				return err
			}
			ft.cur.AddInstr(instr)
			return nil
		}
		instr, err := x64.NewPushImm(src.imm)
		if err != nil {
			return err
		}
		ft.cur.AddInstr(instr)
		return nil
	}
	if src.l.isReg {
		instr, err := x64.NewPushReg(src.l.reg)
		if err != nil {
			return err
		}
		ft.cur.AddInstr(instr)
		return nil
	}
	instr, err := x64.NewPushMem(src.l.mem)
	if err != nil {
		return err
	}
	ft.cur.AddInstr(instr)
	return nil
}

// translateReturn distributes each result into its home (resultRegs, then
// the caller-reserved stack slots beyond those) and emits the epilogue:
// mov rsp,rbp; pop rbp; ret. Only the saved rbp is popped here — the
// return address is consumed by ret itself, and the caller's own pushed
// stack arguments are the caller's responsibility to unwind (translateCall
// does so right after the call).
func (ft *funcTranslator) translateReturn(in *ir.Return) error {
	stackArgs := numArgsOnStack(ft.irFunc.Signature())

	var srcs []copySrc
	var dsts []loc
	for i, v := range in.Args {
		src, ok, err := ft.valueSrc(v)
		if err != nil {
			return err
		}
		if !ok {
			return errorf("return: value %d has no assigned location", i)
		}
		srcs = append(srcs, src)
		dsts = append(dsts, ft.resultHome(i, stackArgs))
	}
	temps := ft.stageIntoTemps(ft.cur, srcs)
	for i, dst := range dsts {
		emitCopy(ft.cur, dst, temps[i])
	}

	movRsp, err := x64.NewMovRMReg(reg64(idxRSP), reg64(idxRBP))
	if err != nil {
		return err
	}
	ft.cur.AddInstr(movRsp)
	popRbp, err := x64.NewPopReg(reg64(idxRBP))
	if err != nil {
		return err
	}
	ft.cur.AddInstr(popRbp)
	ft.cur.AddInstr(x64.NewRet())
	return nil
}
