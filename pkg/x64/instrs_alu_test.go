package x64

import (
	"testing"

	"github.com/arneph/katara/internal/x64test"
	"github.com/stretchr/testify/require"
)

func encodeOne(t *testing.T, instr Instr) []byte {
	t.Helper()
	dummy := NewDummyBuffer()
	n, err := instr.Encode(NewLinker(), dummy)
	require.NoError(t, err)

	buf := NewBuffer(make([]byte, n))
	got, err := instr.Encode(NewLinker(), buf)
	require.NoError(t, err)
	require.Equal(t, n, got)
	return buf.data
}

func TestAddRegRegEncodesAndDecodes(t *testing.T) {
	add, err := NewAddReg(RAX, RBX)
	require.NoError(t, err)
	code := encodeOne(t, add)
	require.Equal(t, []byte{0x48, 0x01, 0xd8}, code, x64test.RoundTrip(code))
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "ADD", len(code)))
}

func TestAndRMImm32UsesRegAShortcut(t *testing.T) {
	and, err := NewAnd(RAX, Imm32(0xff))
	require.NoError(t, err)
	code := encodeOne(t, and)
	require.Equal(t, []byte{0x48, 0x25, 0xff, 0x00, 0x00, 0x00}, code)
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "AND", len(code)))
}

func TestSubMemImmNoShortcut(t *testing.T) {
	mem := NewMemBaseDisp(Size32, RDI, 16)
	sub, err := NewSub(mem, Imm8(3))
	require.NoError(t, err)
	code := encodeOne(t, sub)
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "SUB", len(code)))
}

func TestCmpRegMemEncodesAndDecodes(t *testing.T) {
	mem := NewMemBaseIndexDisp(Size64, RBP, RCX, 3, -8)
	cmp, err := NewCmpMem(RAX, mem)
	require.NoError(t, err)
	code := encodeOne(t, cmp)
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "CMP", len(code)))
}

func TestNotAndNegShareOpcodeDifferByExt(t *testing.T) {
	not := NewNot(EAX)
	neg := NewNeg(EAX)
	notCode := encodeOne(t, not)
	negCode := encodeOne(t, neg)
	require.Equal(t, notCode[0], negCode[0], "same opcode byte")
	require.NotEqual(t, notCode, negCode, "differing ModRM.reg extension")
	require.NoError(t, x64test.AssertMnemonicAndLen(notCode, "NOT", len(notCode)))
	require.NoError(t, x64test.AssertMnemonicAndLen(negCode, "NEG", len(negCode)))
}

func TestImulTwoOperandSkipsImmWhenMultiplierIsOne(t *testing.T) {
	withImm, err := NewImulImm(RAX, RBX, Imm32(1))
	require.NoError(t, err)
	code := encodeOne(t, withImm)
	require.Equal(t, []byte{0x48, 0x0f, 0xaf, 0xc3}, code, "multiplier 1 collapses to the two-operand form")
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "IMUL", len(code)))
}

func TestImulThreeOperandImm8(t *testing.T) {
	instr, err := NewImulImm(RAX, RBX, Imm8(5))
	require.NoError(t, err)
	code := encodeOne(t, instr)
	require.Equal(t, []byte{0x48, 0x6b, 0xc3, 0x05}, code)
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "IMUL", len(code)))
}

func TestTestRegAShortcut(t *testing.T) {
	test, err := NewTestImm(EAX, Imm32(0x0f))
	require.NoError(t, err)
	code := encodeOne(t, test)
	require.Equal(t, []byte{0xa9, 0x0f, 0x00, 0x00, 0x00}, code)
	require.NoError(t, x64test.AssertMnemonicAndLen(code, "TEST", len(code)))
}

func TestSignExtendRegAMnemonics(t *testing.T) {
	cwde, err := NewSignExtendRegA(Size32)
	require.NoError(t, err)
	require.Equal(t, "cwde", cwde.String())
	code := encodeOne(t, cwde)
	require.Equal(t, []byte{0x98}, code)
}

func TestImulRejectsSize8Operands(t *testing.T) {
	_, err := NewImulReg(AL, BL)
	require.Error(t, err)
}
