package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/regalloc"
)

func allocate(t *testing.T, f *ir.Func) *regalloc.Allocation {
	t.Helper()
	a := regalloc.NewAllocator(Palette(), nil)
	alloc, err := a.Allocate(f)
	require.NoError(t, err)
	return alloc
}

// diamondIn builds `entry -> {a,b} -> merge` in prog, the same shape as
// pkg/ir/irtest.Diamond, merge phi-ing a constant from each side: a
// translator-level fixture needs its func attached to a Program the
// Translator itself can iterate, which irtest's helpers (each building
// their own throwaway Program) don't expose.
func diamondIn(prog *ir.Program, name string) *ir.Func {
	f := prog.NewFunc(name, ir.Signature{ArgTypes: []ir.Type{ir.I64}, ResultTypes: []ir.Type{ir.I64}})
	entry := f.AllocateBlock()
	a := f.AllocateBlock()
	b := f.AllocateBlock()
	merge := f.AllocateBlock()
	f.SetEntry(entry.ID())

	cond, err := ir.NewCompare(ir.Gt, f.AllocateValue(ir.Bool), f.Args()[0], ir.NewConstant(ir.I64, 0))
	must(err)
	entry.AppendInstr(cond)
	jc, err := ir.NewJumpCond(cond.Result, ir.BlockValue{Block: a.ID()}, ir.BlockValue{Block: b.ID()})
	must(err)
	entry.AppendInstr(jc)
	f.LinksForTerminator(entry.ID(), jc)

	aJump := ir.NewJump(ir.BlockValue{Block: merge.ID()})
	a.AppendInstr(aJump)
	f.LinksForTerminator(a.ID(), aJump)

	bJump := ir.NewJump(ir.BlockValue{Block: merge.ID()})
	b.AppendInstr(bJump)
	f.LinksForTerminator(b.ID(), bJump)

	phiResult := f.AllocateValue(ir.I64)
	phi, err := ir.NewPhi(phiResult, []ir.PhiArg{
		{Value: ir.NewConstant(ir.I64, 1), Origin: ir.BlockValue{Block: a.ID()}},
		{Value: ir.NewConstant(ir.I64, 2), Origin: ir.BlockValue{Block: b.ID()}},
	})
	must(err)
	merge.AppendInstr(phi)
	merge.AppendInstr(ir.NewReturn([]ir.Value{phiResult}))
	return f
}

// loopIn builds `entry -> header -> body -> header; header -> exit`, the
// same shape as pkg/ir/irtest.Loop, for the same Program-ownership reason
// as diamondIn.
func loopIn(prog *ir.Program, name string) *ir.Func {
	f := prog.NewFunc(name, ir.Signature{ArgTypes: []ir.Type{ir.I64}, ResultTypes: []ir.Type{ir.I64}})
	entry := f.AllocateBlock()
	header := f.AllocateBlock()
	body := f.AllocateBlock()
	exit := f.AllocateBlock()
	f.SetEntry(entry.ID())

	entryJump := ir.NewJump(ir.BlockValue{Block: header.ID()})
	entry.AppendInstr(entryJump)
	f.LinksForTerminator(entry.ID(), entryJump)

	counter := f.AllocateValue(ir.I64)
	phi, err := ir.NewPhi(counter, []ir.PhiArg{
		{Value: f.Args()[0], Origin: ir.BlockValue{Block: entry.ID()}},
		{Value: ir.NewConstant(ir.I64, 0), Origin: ir.BlockValue{Block: body.ID()}},
	})
	must(err)
	header.AppendInstr(phi)
	cond, err := ir.NewCompare(ir.Gt, f.AllocateValue(ir.Bool), counter, ir.NewConstant(ir.I64, 0))
	must(err)
	header.AppendInstr(cond)
	jc, err := ir.NewJumpCond(cond.Result, ir.BlockValue{Block: body.ID()}, ir.BlockValue{Block: exit.ID()})
	must(err)
	header.AppendInstr(jc)
	f.LinksForTerminator(header.ID(), jc)

	decremented, err := ir.NewBinaryAL(ir.Sub, f.AllocateValue(ir.I64), counter, ir.NewConstant(ir.I64, 1))
	must(err)
	body.AppendInstr(decremented)
	phi.Args[1].Value = decremented.Result
	bodyJump := ir.NewJump(ir.BlockValue{Block: header.ID()})
	body.AppendInstr(bodyJump)
	f.LinksForTerminator(body.ID(), bodyJump)

	exit.AppendInstr(ir.NewReturn([]ir.Value{counter}))
	return f
}

func TestTranslateDiamondProducesTrampolinesForPhiBearingEdges(t *testing.T) {
	prog := ir.NewProgram()
	f := diamondIn(prog, "diamond")
	alloc := allocate(t, f)

	tr := NewTranslator(prog, Allocations{f.ID(): alloc})
	mcProg, err := tr.Translate()
	require.NoError(t, err)
	require.Len(t, mcProg.Funcs(), 1)

	mcFunc := mcProg.Funcs()[0]
	// entry, a, b, merge, plus a trampoline for each of the two edges
	// flowing into merge's phi (a->merge, b->merge).
	require.GreaterOrEqual(t, len(mcFunc.Blocks()), 6)
}

func TestTranslateLoopHandlesBackEdgePhi(t *testing.T) {
	prog := ir.NewProgram()
	f := loopIn(prog, "loop")
	alloc := allocate(t, f)

	tr := NewTranslator(prog, Allocations{f.ID(): alloc})
	mcProg, err := tr.Translate()
	require.NoError(t, err)
	require.Len(t, mcProg.Funcs(), 1)
}

func TestTranslateRejectsFuncMissingAllocation(t *testing.T) {
	prog := ir.NewProgram()
	diamondIn(prog, "diamond")

	tr := NewTranslator(prog, Allocations{})
	_, err := tr.Translate()
	require.Error(t, err)
}

func TestTranslateDirectCallResolvesAcrossFuncIDGaps(t *testing.T) {
	prog := ir.NewProgram()
	a := prog.NewFunc("a", ir.Signature{ResultTypes: []ir.Type{ir.I64}})
	aEntry := a.AllocateBlock()
	a.SetEntry(aEntry.ID())
	aEntry.AppendInstr(ir.NewReturn([]ir.Value{ir.NewConstant(ir.I64, 7)}))

	doomed := prog.NewFunc("doomed", ir.Signature{})
	doomedEntry := doomed.AllocateBlock()
	doomed.SetEntry(doomedEntry.ID())
	doomedEntry.AppendInstr(ir.NewReturn(nil))
	prog.RemoveFunc(doomed.ID()) // leaves a gap in FuncIDs

	caller := prog.NewFunc("caller", ir.Signature{ResultTypes: []ir.Type{ir.I64}})
	callerEntry := caller.AllocateBlock()
	caller.SetEntry(callerEntry.ID())
	callResult := caller.AllocateValue(ir.I64)
	call, err := ir.NewCall(ir.NewConstant(ir.FuncType, uint64(a.ID())), []ir.Computed{callResult}, nil)
	require.NoError(t, err)
	callerEntry.AppendInstr(call)
	callerEntry.AppendInstr(ir.NewReturn([]ir.Value{callResult}))

	allocs := Allocations{
		a.ID():      allocate(t, a),
		caller.ID(): allocate(t, caller),
	}
	tr := NewTranslator(prog, allocs)
	mcProg, err := tr.Translate()
	require.NoError(t, err)
	require.Len(t, mcProg.Funcs(), 2)
}

func TestTranslateRejectsFuncValueUsedAsData(t *testing.T) {
	prog := ir.NewProgram()
	f := prog.NewFunc("main", ir.Signature{ResultTypes: []ir.Type{ir.FuncType}})
	entry := f.AllocateBlock()
	f.SetEntry(entry.ID())
	dst := f.AllocateValue(ir.FuncType)
	mov, err := ir.NewMov(dst, ir.NewConstant(ir.FuncType, 0))
	require.NoError(t, err)
	entry.AppendInstr(mov)
	entry.AppendInstr(ir.NewReturn([]ir.Value{dst}))

	alloc := allocate(t, f)
	tr := NewTranslator(prog, Allocations{f.ID(): alloc})
	_, err = tr.Translate()
	require.Error(t, err)
	var cgErr *Error
	require.ErrorAs(t, err, &cgErr)
}
