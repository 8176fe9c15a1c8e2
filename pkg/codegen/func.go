package codegen

import (
	"github.com/pkg/errors"

	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/regalloc"
	"github.com/arneph/katara/pkg/x64"
)

// funcTranslator lowers a single ir.Func into its already-allocated
// x64.MCFunc. One funcTranslator is used per func; it does not outlive
// Translator.Translate's per-func loop iteration.
type funcTranslator struct {
	tr     *Translator
	irFunc *ir.Func
	alloc  *regalloc.Allocation
	mcFunc *x64.MCFunc

	blockOf map[ir.BlockID]*x64.MCBlock

	// frame layout: negative rbp-relative offsets, assigned once up front.
	// Spill slots come from alloc.Spills (one 8-byte slot per distinct
	// spill index); temp slots back every staged parallel copy
	// (stageIntoTemps) this func's translation performs, and are reused
	// across call sites/phi resolutions/prologue since only one staged
	// copy is ever in flight at a time.
	spillSlotOffset map[int]int32
	tempSlotOffset  []int32
	frameSize       int32

	// cur is the MCBlock instructions are currently being appended to; it
	// changes mid-translation of a single ir.Block when a Compare's bool
	// result needs materializing through an explicit branch diamond
	// (translateCompareMaterialize in cond.go).
	cur *x64.MCBlock
}

// locOf returns where c lives, and whether regalloc ever gave it a home at
// all. A Computed with no entry in alloc.Colors/alloc.Spills is a value
// pkg/liveness never saw referenced anywhere (see liveness.Compute, which
// only walks instruction Uses/Results and phi args): this happens for
// unused func arguments and for results of instructions whose value is
// never consumed. Callers must treat !ok as "nothing to materialize",
// never as an error.
func (ft *funcTranslator) locOf(c ir.Computed) (loc, bool) {
	if p, ok := ft.alloc.Colors[c]; ok {
		idx, ok := regIndexOf(p)
		if !ok {
			panic("BUG: codegen: allocation used color " + string(p) + " outside this package's palette")
		}
		return regLoc(idx), true
	}
	if slot, ok := ft.alloc.Spills[c]; ok {
		return memLoc(ft.spillMem(slot, c.Typ)), true
	}
	return loc{}, false
}

func (ft *funcTranslator) spillMem(slot int, t ir.Type) x64.Mem {
	off, ok := ft.spillSlotOffset[slot]
	if !ok {
		panic("BUG: codegen: spill slot not laid out")
	}
	return x64.NewMemBaseDisp(x64.Size64, reg64(idxRBP), off)
}

func (ft *funcTranslator) tempMem(i int) x64.Mem {
	return x64.NewMemBaseDisp(x64.Size64, reg64(idxRBP), ft.tempSlotOffset[i])
}

// layoutFrame assigns rbp-relative offsets to every spill slot referenced
// by alloc, followed by maxParallelCopyWidth temp slots, and records the
// total frame size (rounded up to a 16-byte boundary, matching
// GenerateFuncPrologue's documented intent in ir_translator.h even though
// this package does not maintain a real SysV-style stack alignment
// contract with anything external).
func (ft *funcTranslator) layoutFrame() {
	maxSlot := -1
	for _, slot := range ft.alloc.Spills {
		if slot > maxSlot {
			maxSlot = slot
		}
	}
	numSpillSlots := maxSlot + 1

	ft.spillSlotOffset = make(map[int]int32, numSpillSlots)
	var off int32
	for i := 0; i < numSpillSlots; i++ {
		off -= 8
		ft.spillSlotOffset[i] = off
	}

	ft.tempSlotOffset = make([]int32, maxParallelCopyWidth)
	for i := 0; i < maxParallelCopyWidth; i++ {
		off -= 8
		ft.tempSlotOffset[i] = off
	}

	size := -off
	if size%16 != 0 {
		size += 16 - size%16
	}
	ft.frameSize = size
}

// stageIntoTemps copies every src into its own temp slot, then returns a
// loc for each temp. Splitting "read all sources" from "write all
// destinations" this way is what makes multi-value copies (phi
// resolution, call argument/result marshaling, prologue/epilogue argument
// distribution) correct regardless of aliasing between a copy's sources
// and destinations: by the time any destination is written, every source
// has already been read into a location nothing else in this copy
// targets.
func (ft *funcTranslator) stageIntoTemps(blk *x64.MCBlock, srcs []copySrc) []loc {
	if len(srcs) > maxParallelCopyWidth {
		panic("BUG: codegen: parallel copy wider than maxParallelCopyWidth, should have been rejected earlier")
	}
	temps := make([]loc, len(srcs))
	for i, src := range srcs {
		t := memLoc(ft.tempMem(i))
		emitCopySrc(blk, t, src)
		temps[i] = t
	}
	return temps
}

// translate lowers ft.irFunc's entry through every reachable block into
// ft.mcFunc.
func (ft *funcTranslator) translate() error {
	ft.layoutFrame()

	if !ft.irFunc.HasEntry() {
		return errorf("func %s has no entry block", ft.irFunc.Name())
	}

	// Every parallel copy below is staged through stageIntoTemps, which
	// holds at most maxParallelCopyWidth values; reject wider ones up front.
	width := len(ft.irFunc.Args())
	for _, b := range ft.irFunc.Blocks() {
		width = max(width, len(b.Phis()))
		for _, instr := range b.Instrs() {
			switch in := instr.(type) {
			case *ir.Call:
				width = max(width, len(in.Rets))
			case *ir.Return:
				width = max(width, len(in.Args))
			}
		}
	}
	if width > maxParallelCopyWidth {
		return errorf("func %s: parallel copy of %d values exceeds the limit of %d", ft.irFunc.Name(), width, maxParallelCopyWidth)
	}

	// The entry block's MCBlock must be the first one this func's MCFunc
	// ever creates: MCFunc.Encode lays out blocks in creation order, and a
	// call to this function (direct or via the JIT driver) always jumps
	// to the func's base address, i.e. its first block. ir.Func.Blocks()
	// returns blocks in insertion order, which need not put the entry
	// block first (e.g. after a parse that defines blocks out of order).
	entryID := ft.irFunc.Entry().ID()
	ft.blockOf[entryID] = ft.mcFunc.AddBlock()
	for _, b := range ft.irFunc.Blocks() {
		if b.ID() == entryID {
			continue
		}
		ft.blockOf[b.ID()] = ft.mcFunc.AddBlock()
	}

	entryMC := ft.blockOf[entryID]
	ft.cur = entryMC
	ft.emitPrologue()

	for _, b := range ft.irFunc.Blocks() {
		ft.cur = ft.blockOf[b.ID()]
		if err := ft.translateBlock(b); err != nil {
			return errors.Wrapf(err, "block %s", b.Name())
		}
	}
	return nil
}

// emitPrologue reserves the frame and distributes incoming arguments (home
// registers and caller-pushed stack slots, per abi.go's convention) into
// each argument's regalloc-assigned location. Dead arguments (no entry in
// alloc at all, see locOf) are simply never read out of their incoming
// home: nothing downstream can observe them.
func (ft *funcTranslator) emitPrologue() {
	push, err := x64.NewPushReg(reg64(idxRBP))
	must(err)
	ft.cur.AddInstr(push)
	movRbp, err := x64.NewMovRMReg(reg64(idxRBP), reg64(idxRSP))
	must(err)
	ft.cur.AddInstr(movRbp)
	if ft.frameSize > 0 {
		sub, err := x64.NewSub(reg64(idxRSP), x64.Imm32(ft.frameSize))
		must(err)
		ft.cur.AddInstr(sub)
	}

	args := ft.irFunc.Args()
	var srcs []copySrc
	var dsts []loc
	for i, c := range args {
		dst, ok := ft.locOf(c)
		if !ok {
			continue
		}
		srcs = append(srcs, locSrc(ft.argHome(i)))
		dsts = append(dsts, dst)
	}
	temps := ft.stageIntoTemps(ft.cur, srcs)
	for i, dst := range dsts {
		emitCopy(ft.cur, dst, temps[i])
	}
}

// argHome returns where incoming argument i lives on entry to the func,
// before the prologue has moved it anywhere: one of argRegs, or (beyond
// len(argRegs)) a caller-pushed stack slot. Offsets account for the
// prologue's "push rbp; mov rbp,rsp" having already executed: [rbp] holds
// the saved rbp and [rbp+8] the return address, so stack argument k (which
// translateCall pushes last-to-first) is at [rbp+16+8*k].
func (ft *funcTranslator) argHome(i int) loc {
	if i < len(argRegs) {
		return regLoc(argRegs[i])
	}
	k := int32(i - len(argRegs))
	return memLoc(x64.NewMemBaseDisp(x64.Size64, reg64(idxRBP), 16+8*k))
}

// resultHome returns where result i of this func must be written before
// returning: one of resultRegs, or (beyond len(resultRegs)) the reserved
// result slot the caller allocated above its pushed arguments.
func (ft *funcTranslator) resultHome(i, numArgsOnStack int) loc {
	if i < len(resultRegs) {
		return regLoc(resultRegs[i])
	}
	j := int32(i - len(resultRegs))
	base := int32(16 + 8*numArgsOnStack)
	return memLoc(x64.NewMemBaseDisp(x64.Size64, reg64(idxRBP), base+8*j))
}

func numArgsOnStack(sig ir.Signature) int {
	if len(sig.ArgTypes) <= len(argRegs) {
		return 0
	}
	return len(sig.ArgTypes) - len(argRegs)
}
