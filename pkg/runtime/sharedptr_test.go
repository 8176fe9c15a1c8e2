package runtime

import (
	"testing"

	"github.com/arneph/katara/pkg/ir"
)

func TestInjectAddsEightFuncsStartingAtZero(t *testing.T) {
	prog := ir.NewProgram()
	funcs, err := Inject(prog)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if got := len(prog.Funcs()); got != 8 {
		t.Fatalf("got %d funcs in program, want 8", got)
	}
	wantIDs := []ir.FuncID{
		funcs.MakeShared, funcs.StrongCopyShared, funcs.WeakCopyShared,
		funcs.DeletePtrToStrongShared, funcs.DeleteStrongShared,
		funcs.DeletePtrToWeakShared, funcs.DeleteWeakShared, funcs.ValidateWeakShared,
	}
	for i, id := range wantIDs {
		if id != ir.FuncID(i) {
			t.Errorf("func %d: got id %d, want %d", i, id, i)
		}
	}
}

func TestInjectLeavesExistingFuncsUntouched(t *testing.T) {
	prog := ir.NewProgram()
	main := prog.NewFunc("main", ir.Signature{})
	entry := main.AllocateBlock()
	main.SetEntry(entry.ID())
	entry.AppendInstr(ir.NewReturn(nil))

	funcs, err := Inject(prog)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if main.ID() != 0 {
		t.Fatalf("pre-existing func id changed to %d", main.ID())
	}
	if funcs.MakeShared != 1 {
		t.Errorf("got MakeShared id %d, want 1 (after the pre-existing func)", funcs.MakeShared)
	}
	if prog.Func(0) != main {
		t.Errorf("Inject replaced the pre-existing func at id 0")
	}
}

func TestMakeSharedReturnsInitialRefcountsOfOne(t *testing.T) {
	prog := ir.NewProgram()
	funcs, err := Inject(prog)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	f := prog.Func(funcs.MakeShared)
	ret, ok := f.Entry().Terminator().(*ir.Return)
	if !ok {
		t.Fatalf("entry block terminator is %T, want *ir.Return", f.Entry().Terminator())
	}
	if len(ret.Args) != 2 {
		t.Fatalf("got %d return values, want 2", len(ret.Args))
	}
	for i, arg := range ret.Args {
		c, ok := arg.(ir.Constant)
		if !ok || c.Typ != ir.U64 || c.Pattern != 1 {
			t.Errorf("return value %d is %#v, want constant 1:u64", i, arg)
		}
	}
}

func TestDeleteStrongSharedBranchesOnRefcountReachingZero(t *testing.T) {
	prog := ir.NewProgram()
	funcs, err := Inject(prog)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	f := prog.Func(funcs.DeleteStrongShared)
	if got := len(f.Blocks()); got != 4 {
		t.Fatalf("got %d blocks, want 4 (entry, free-weak, keep-weak, merge)", got)
	}
	var sawPhi bool
	for _, b := range f.Blocks() {
		if len(b.Phis()) > 0 {
			sawPhi = true
		}
	}
	if !sawPhi {
		t.Errorf("expected a phi merging the weak count across both branches")
	}
	children := f.Entry().Children()
	if len(children) != 2 {
		t.Errorf("entry block should have two successors (the jcc branches), got %d", len(children))
	}
}

func TestValidateWeakSharedReturnsBoolResult(t *testing.T) {
	prog := ir.NewProgram()
	funcs, err := Inject(prog)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	f := prog.Func(funcs.ValidateWeakShared)
	if len(f.Signature().ResultTypes) != 1 || f.Signature().ResultTypes[0] != ir.Bool {
		t.Errorf("got result types %v, want [Bool]", f.Signature().ResultTypes)
	}
}

func TestInjectProducesWellFormedFuncBodies(t *testing.T) {
	prog := ir.NewProgram()
	if _, err := Inject(prog); err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	for _, f := range prog.Funcs() {
		if f.Entry() == nil {
			t.Errorf("func %s has no entry block", f.Name())
		}
		for _, b := range f.Blocks() {
			term := b.Terminator()
			if term == nil || !ir.IsTerminator(term) {
				t.Errorf("func %s block %s has no terminator", f.Name(), b.Name())
			}
		}
	}
}
