package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arneph/katara/pkg/ir"
	"github.com/arneph/katara/pkg/x64"
)

// newProgramWithLargeConstantReturn builds a single-func program that
// returns a constant outside the int32 range directly, the simplest shape
// that forces valueSrc's Constant case through constImm's Imm64 branch.
func newProgramWithLargeConstantReturn(t *testing.T) *ir.Program {
	t.Helper()
	prog := ir.NewProgram()
	f := prog.NewFunc("main", ir.Signature{ResultTypes: []ir.Type{ir.I64}})
	entry := f.AllocateBlock()
	f.SetEntry(entry.ID())
	prog.SetEntryFunc(f.ID())
	entry.AppendInstr(ir.NewReturn([]ir.Value{ir.NewConstant(ir.I64, 5_000_000_000)}))
	return prog
}

func TestConstImmPicksImm32WhenSignExtensionRoundTrips(t *testing.T) {
	imm := constImm(42)
	require.Equal(t, x64.Size32, imm.Size())
	require.Equal(t, x64.Imm32(42), imm)

	neg := constImm(uint64(int64(-1)))
	require.Equal(t, x64.Size32, neg.Size())
	require.Equal(t, x64.Imm32(-1), neg)
}

func TestConstImmPicksImm64ForValuesBeyondInt32Range(t *testing.T) {
	const large uint64 = 5_000_000_000 // > math.MaxInt32

	imm := constImm(large)
	require.Equal(t, x64.Size64, imm.Size())
	require.Equal(t, x64.Imm64(large), imm)
}

func TestConstImmPicksImm64ForHighBitPatternThatIsNotASignExtension(t *testing.T) {
	// 0x00000000FFFFFFFF: low 32 bits alone sign-extend to -1, but the
	// actual pattern is a large positive number, so it must round-trip
	// via Imm64 rather than being silently narrowed to Imm32(-1).
	const pattern uint64 = 0x00000000FFFFFFFF

	imm := constImm(pattern)
	require.Equal(t, x64.Size64, imm.Size())
	require.Equal(t, x64.Imm64(int64(pattern)), imm)
}

// TestTranslateReturnsLargeConstantViaImm64 exercises valueSrc/constImm
// through the full translator: a func that returns a constant outside
// int32 range must translate without error and without invoking any
// encoder that rejects Imm64 (group1 ALU ops, push).
func TestTranslateReturnsLargeConstantViaImm64(t *testing.T) {
	prog := newProgramWithLargeConstantReturn(t)
	f := prog.EntryFunc()
	alloc := allocate(t, f)

	tr := NewTranslator(prog, Allocations{f.ID(): alloc})
	mcProg, err := tr.Translate()
	require.NoError(t, err)
	require.Len(t, mcProg.Funcs(), 1)
}
