package x64

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildLoopProgram builds one function with two blocks: an entry that adds
// one to rax, compares it against 10, and jumps back to itself while
// rax<10, falling through via an explicit jmp otherwise to a block that
// returns. Encoding it end to end exercises the full pre-order walk
// (program -> func -> block -> instr), the two-pass dummy-then-real sizing
// discipline, and the linker resolving both the loop back-edge and the
// forward fallthrough jump.
func buildLoopProgram(t *testing.T) (prog *MCProgram, entry, done *MCBlock) {
	t.Helper()
	prog = NewMCProgram()
	f := prog.AddFunc("loop")
	entry = f.AddBlock()
	done = f.AddBlock()

	add, err := NewAdd(RAX, Imm8(1))
	require.NoError(t, err)
	entry.AddInstr(add)
	cmp, err := NewCmp(RAX, Imm8(10))
	require.NoError(t, err)
	entry.AddInstr(cmp)
	entry.AddInstr(NewJcc(CondLess, entry.Ref()))
	entry.AddInstr(NewJmpBlock(done.Ref()))

	done.AddInstr(NewRet())
	return prog, entry, done
}

func encodeProgram(t *testing.T, prog *MCProgram) []byte {
	t.Helper()
	dummyLinker := NewLinker()
	n, err := prog.Encode(dummyLinker, NewDummyBuffer())
	require.NoError(t, err)
	require.Greater(t, n, int64(0))

	buf := NewBuffer(make([]byte, n))
	linker := NewLinker()
	got, err := prog.Encode(linker, buf)
	require.NoError(t, err)
	require.Equal(t, n, got)
	require.NoError(t, linker.ApplyPatches())
	return buf.data
}

func TestProgramEncodeResolvesLoopBackEdgeAndFallthrough(t *testing.T) {
	prog, _, _ := buildLoopProgram(t)
	code := encodeProgram(t, prog)

	// add rax,1 (REX.W 83 c0 01, 4 bytes) ; cmp rax,10 (REX.W 83 f8 0a, 4
	// bytes) ; jl rel32 (0f 8c + imm32, 6 bytes) ; jmp rel32 (e9 + imm32, 5
	// bytes) ; ret (c3, 1 byte)
	wantLen := 4 + 4 + 6 + 5 + 1
	require.Len(t, code, wantLen)

	require.Equal(t, []byte{0x48, 0x83, 0xc0, 0x01}, code[0:4])
	require.Equal(t, []byte{0x48, 0x83, 0xf8, 0x0a}, code[4:8])
	require.Equal(t, []byte{0x0f, 0x8c}, code[8:10])
	require.Equal(t, []byte{0xe9}, code[14:15])
	require.Equal(t, byte(0xc3), code[19])

	// jl's patch site sits at byte 10 (entry block + add + cmp + condition
	// byte pair); it targets the entry block itself at address 0.
	jlOffset := int32(binary.LittleEndian.Uint32(code[10:14]))
	require.EqualValues(t, 0-(10+4), jlOffset)

	// jmp's patch site sits at byte 15; it targets the done block, which
	// immediately follows at address 19.
	jmpOffset := int32(binary.LittleEndian.Uint32(code[15:19]))
	require.EqualValues(t, 19-(15+4), jmpOffset)
}

func TestProgramEncodeResolvesCrossFunctionCall(t *testing.T) {
	prog := NewMCProgram()
	callee := prog.AddFunc("callee")
	calleeEntry := callee.AddBlock()
	calleeEntry.AddInstr(NewRet())

	caller := prog.AddFunc("caller")
	callerEntry := caller.AddBlock()
	callerEntry.AddInstr(NewCallFunc(caller.Ref()))
	callerEntry.AddInstr(NewCallFunc(callee.Ref()))
	callerEntry.AddInstr(NewRet())

	code := encodeProgram(t, prog)

	// callee: ret (1 byte) at address 0.
	// caller: call rel32 (e8+imm32, 5 bytes) x2, then ret.
	require.Len(t, code, 1+5+5+1)
	require.Equal(t, byte(0xc3), code[0])
	require.Equal(t, byte(0xe8), code[1])
	require.Equal(t, byte(0xe8), code[6])
	require.Equal(t, byte(0xc3), code[11])

	// first call targets caller's own entry at address 1; patch site is at
	// address 2.
	selfCallOffset := int32(binary.LittleEndian.Uint32(code[2:6]))
	require.EqualValues(t, 1-(2+4), selfCallOffset)

	// second call targets callee's entry at address 0; patch site is at
	// address 7.
	calleeCallOffset := int32(binary.LittleEndian.Uint32(code[7:11]))
	require.EqualValues(t, 0-(7+4), calleeCallOffset)
}

func TestProgramStringJoinsFunctionsWithBlankLine(t *testing.T) {
	prog, _, _ := buildLoopProgram(t)
	prog.AddFunc("second")
	s := prog.String()
	require.Contains(t, s, "ret\n\nsecond:")
	require.Contains(t, s, "loop:")
	require.Contains(t, s, "BB")
	require.Contains(t, s, "jl BB")
	require.Contains(t, s, "ret")
}
