package regalloc

import (
	"testing"

	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/ir/irtest"
	"github.com/arneph/katara/pkg/liveness"
	"github.com/stretchr/testify/require"
)

var threeColors = []PhysReg{"rbx", "r12", "r13"}

func TestAllocateColorsDiamond(t *testing.T) {
	f, _, _, _, _ := irtest.Diamond()
	a := NewAllocator(threeColors, nil)

	alloc, err := a.Allocate(f)
	require.NoError(t, err)
	assertValidColoring(t, f, alloc)
}

func TestAllocateColorsLoop(t *testing.T) {
	f, _, _, _, _ := irtest.Loop()
	a := NewAllocator(threeColors, nil)

	alloc, err := a.Allocate(f)
	require.NoError(t, err)
	assertValidColoring(t, f, alloc)
}

func TestAllocateRejectsEmptyPalette(t *testing.T) {
	f, _, _, _, _ := irtest.Diamond()
	a := NewAllocator(nil, nil)

	_, err := a.Allocate(f)
	require.Error(t, err)
}

func TestAllocateSpillsUnderPressure(t *testing.T) {
	f := buildHighPressureFunc(t, 6)
	a := NewAllocator([]PhysReg{"rbx"}, nil)

	alloc, err := a.Allocate(f)
	require.NoError(t, err)
	assertValidColoring(t, f, alloc)
	require.NotEmpty(t, alloc.Spills, "six simultaneously live values can't all fit in one color")
}

func TestAllocateHonorsPrecoloring(t *testing.T) {
	f, entry, _, _, _ := irtest.Diamond()
	arg := f.Args()[0]
	a := NewAllocator(threeColors, map[ir.Computed]PhysReg{arg: "r13"})

	alloc, err := a.Allocate(f)
	require.NoError(t, err)
	require.Equal(t, PhysReg("r13"), alloc.Colors[arg])
	_ = entry
}

// assertValidColoring checks spec.md §8's coloring property: every
// interference edge has distinct colors, unless one endpoint is spilled.
func assertValidColoring(t *testing.T, f *ir.Func, alloc *Allocation) {
	t.Helper()
	fr := liveness.Compute(f)
	g := liveness.BuildInterferenceGraph(f, fr)
	for _, v := range g.Nodes() {
		for _, n := range g.Neighbors(v) {
			cv, vColored := alloc.Colors[v]
			cn, nColored := alloc.Colors[n]
			if vColored && nColored {
				require.NotEqual(t, cv, cn, "interfering values %s and %s share a color", v, n)
			}
		}
	}
}

// buildHighPressureFunc builds a func computing n values from the same
// argument and summing them with a chain of adds; all n are still live at
// the first add, forcing n simultaneously-live values at that point.
func buildHighPressureFunc(t *testing.T, n int) *ir.Func {
	t.Helper()
	prog := ir.NewProgram()
	f := prog.NewFunc("pressure", ir.Signature{ArgTypes: []ir.Type{ir.I64}, ResultTypes: []ir.Type{ir.I64}})
	entry := f.AllocateBlock()
	f.SetEntry(entry.ID())

	vals := make([]ir.Value, n)
	for i := 0; i < n; i++ {
		v := f.AllocateValue(ir.I64)
		mov, err := ir.NewMov(v, f.Args()[0])
		require.NoError(t, err)
		entry.AppendInstr(mov)
		vals[i] = v
	}
	sum := vals[0]
	for i := 1; i < n; i++ {
		next, err := ir.NewBinaryAL(ir.Add, f.AllocateValue(ir.I64), sum, vals[i])
		require.NoError(t, err)
		entry.AppendInstr(next)
		sum = next.Result
	}
	entry.AppendInstr(ir.NewReturn([]ir.Value{sum}))
	return f
}
