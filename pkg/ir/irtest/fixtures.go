// Package irtest builds small, well-formed ir.Func fixtures shared by the
// domtree, liveness, regalloc, and callgraph packages' test suites, so each
// doesn't hand-roll the same diamond/loop CFGs.
package irtest

import "github.com/arneph/katara/pkg/ir"

// Diamond builds `entry -> {A,B} -> merge`, entry branching on whether its
// single i64 argument is greater than zero, merge phi-ing a constant from
// each side and returning it (spec.md §8 scenario 6's shape).
func Diamond() (f *ir.Func, entry, a, b, merge ir.BlockID) {
	prog := ir.NewProgram()
	f = prog.NewFunc("diamond", ir.Signature{ArgTypes: []ir.Type{ir.I64}, ResultTypes: []ir.Type{ir.I64}})

	entryBlk := f.AllocateBlock()
	aBlk := f.AllocateBlock()
	bBlk := f.AllocateBlock()
	mergeBlk := f.AllocateBlock()
	f.SetEntry(entryBlk.ID())

	cond, err := ir.NewCompare(ir.Gt, f.AllocateValue(ir.Bool), f.Args()[0], ir.NewConstant(ir.I64, 0))
	must(err)
	entryBlk.AppendInstr(cond)
	jc, err := ir.NewJumpCond(cond.Result, ir.BlockValue{Block: aBlk.ID()}, ir.BlockValue{Block: bBlk.ID()})
	must(err)
	entryBlk.AppendInstr(jc)
	f.LinksForTerminator(entryBlk.ID(), jc)

	aJump := ir.NewJump(ir.BlockValue{Block: mergeBlk.ID()})
	aBlk.AppendInstr(aJump)
	f.LinksForTerminator(aBlk.ID(), aJump)

	bJump := ir.NewJump(ir.BlockValue{Block: mergeBlk.ID()})
	bBlk.AppendInstr(bJump)
	f.LinksForTerminator(bBlk.ID(), bJump)

	phiResult := f.AllocateValue(ir.I64)
	phi, err := ir.NewPhi(phiResult, []ir.PhiArg{
		{Value: ir.NewConstant(ir.I64, 1), Origin: ir.BlockValue{Block: aBlk.ID()}},
		{Value: ir.NewConstant(ir.I64, 2), Origin: ir.BlockValue{Block: bBlk.ID()}},
	})
	must(err)
	mergeBlk.AppendInstr(phi)
	mergeBlk.AppendInstr(ir.NewReturn([]ir.Value{phiResult}))

	return f, entryBlk.ID(), aBlk.ID(), bBlk.ID(), mergeBlk.ID()
}

// Loop builds `entry -> header -> body -> header; header -> exit`, a
// single-back-edge loop counting its argument down to zero: a minimal fixture
// for loop-aware passes (dominator back-edge detection, liveness fixpoint
// iteration).
func Loop() (f *ir.Func, entry, header, body, exit ir.BlockID) {
	prog := ir.NewProgram()
	f = prog.NewFunc("loop", ir.Signature{ArgTypes: []ir.Type{ir.I64}, ResultTypes: []ir.Type{ir.I64}})

	entryBlk := f.AllocateBlock()
	headerBlk := f.AllocateBlock()
	bodyBlk := f.AllocateBlock()
	exitBlk := f.AllocateBlock()
	f.SetEntry(entryBlk.ID())

	entryJump := ir.NewJump(ir.BlockValue{Block: headerBlk.ID()})
	entryBlk.AppendInstr(entryJump)
	f.LinksForTerminator(entryBlk.ID(), entryJump)

	counter := f.AllocateValue(ir.I64)
	phi, err := ir.NewPhi(counter, []ir.PhiArg{
		{Value: f.Args()[0], Origin: ir.BlockValue{Block: entryBlk.ID()}},
		{Value: ir.NewConstant(ir.I64, 0), Origin: ir.BlockValue{Block: bodyBlk.ID()}}, // patched below
	})
	must(err)
	headerBlk.AppendInstr(phi)
	cond, err := ir.NewCompare(ir.Gt, f.AllocateValue(ir.Bool), counter, ir.NewConstant(ir.I64, 0))
	must(err)
	headerBlk.AppendInstr(cond)
	jc, err := ir.NewJumpCond(cond.Result, ir.BlockValue{Block: bodyBlk.ID()}, ir.BlockValue{Block: exitBlk.ID()})
	must(err)
	headerBlk.AppendInstr(jc)
	f.LinksForTerminator(headerBlk.ID(), jc)

	decremented, err := ir.NewBinaryAL(ir.Sub, f.AllocateValue(ir.I64), counter, ir.NewConstant(ir.I64, 1))
	must(err)
	bodyBlk.AppendInstr(decremented)
	phi.Args[1].Value = decremented.Result
	bodyJump := ir.NewJump(ir.BlockValue{Block: headerBlk.ID()})
	bodyBlk.AppendInstr(bodyJump)
	f.LinksForTerminator(bodyBlk.ID(), bodyJump)

	exitBlk.AppendInstr(ir.NewReturn([]ir.Value{counter}))

	return f, entryBlk.ID(), headerBlk.ID(), bodyBlk.ID(), exitBlk.ID()
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
